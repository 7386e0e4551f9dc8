package cli

import (
	"context"
	"log/slog"

	"github.com/seojun-park/sheetwise/internal/anchor"
	"github.com/seojun-park/sheetwise/internal/cache"
	"github.com/seojun-park/sheetwise/internal/common"
	"github.com/seojun-park/sheetwise/internal/export"
	"github.com/seojun-park/sheetwise/internal/fusion"
	"github.com/seojun-park/sheetwise/internal/gateway"
	"github.com/seojun-park/sheetwise/internal/layout"
	"github.com/seojun-park/sheetwise/internal/merge"
	"github.com/seojun-park/sheetwise/internal/pipeline"
	"github.com/seojun-park/sheetwise/internal/repository"
	"github.com/seojun-park/sheetwise/internal/resilience"
	"github.com/seojun-park/sheetwise/internal/vision"
)

// app holds one run's wired components. Breakers live in a per-run
// registry, never in package state.
type app struct {
	cfg       *common.Config
	log       *slog.Logger
	registry  *resilience.Registry
	gateway   *gateway.Gateway
	pipeline  *pipeline.Pipeline
	processor *pipeline.Processor
	export    *export.Service
	close     func()
}

// newApp loads configuration and wires the full pipeline. The repository
// backend is Postgres when database.dsn is set, otherwise the embedded
// SQLite store.
func newApp(ctx context.Context, log *slog.Logger) (*app, error) {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		repo    repository.DocumentRepository
		cleanup = func() {}
	)
	if cfg.Database.DSN != "" {
		pool, err := repository.Open(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := repository.HealthCheck(ctx, pool, log, cfg.Database); err != nil {
			repository.Close(pool, log)
			return nil, err
		}
		repo = repository.NewPostgresDocumentRepository(pool, log)
		cleanup = func() { repository.Close(pool, log) }
	} else {
		var (
			closeDB func() error
			err     error
		)
		repo, closeDB, err = repository.NewSQLiteDocumentRepository(cfg.Database.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		cleanup = func() { _ = closeDB() }
	}

	registry := resilience.NewRegistry()
	hook := func(name string, from, to resilience.State) {
		log.Warn("breaker.state.changed", "resource", name, "from", from.String(), "to", to.String())
	}
	registry.Register(resilience.NewBreaker(resilience.ResourcePrimaryStorage, cfg.Breaker.Primary, resilience.WithStateChangeHook(hook)))
	registry.Register(resilience.NewBreaker(resilience.ResourceExternalServices, cfg.Breaker.Upstream, resilience.WithStateChangeHook(hook)))

	results := cache.NewResults(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	retry := resilience.NewRetryPolicy(cfg.Retry.MaxAttempts, cfg.Retry.Backoff)
	gw := gateway.New(
		repo,
		registry.Get(resilience.ResourcePrimaryStorage),
		retry,
		results,
		cfg.Breaker.Primary.SlowCallDuration,
		log,
	)

	var describer vision.Describer
	if cfg.Vision.APIKey != "" {
		d, err := vision.NewOpenAIDescriber(cfg.Vision, registry.Get(resilience.ResourceExternalServices), log)
		if err != nil {
			cleanup()
			return nil, err
		}
		describer = d
	}

	scorer := fusion.NewScorer(cfg.Fusion)
	pipe := pipeline.New(
		layout.NewSegmenter(cfg.Layout),
		anchor.NewExtractor(scorer, log),
		merge.NewMerger(log),
		gw,
		describer,
		log,
	)

	return &app{
		cfg:       cfg,
		log:       log,
		registry:  registry,
		gateway:   gw,
		pipeline:  pipe,
		processor: pipeline.NewProcessor(pipe, cfg.Pipeline.MaxConcurrentJobs, log),
		export:    export.NewService(gw, log),
		close:     cleanup,
	}, nil
}
