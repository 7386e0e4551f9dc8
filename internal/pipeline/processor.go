package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/seojun-park/sheetwise/internal/common"
	"github.com/seojun-park/sheetwise/internal/gateway"
	"github.com/seojun-park/sheetwise/internal/normalize"
)

// JobReport summarizes one job's run for batch callers.
type JobReport struct {
	JobID     uuid.UUID
	Outcome   gateway.Outcome
	Questions int
	Err       error
}

// Processor fans a batch of jobs out over the pipeline with bounded
// concurrency. One job's failure never cancels its siblings.
type Processor struct {
	Pipeline *Pipeline
	Limit    int
	Log      *slog.Logger
}

// NewProcessor creates a batch processor.
func NewProcessor(p *Pipeline, limit int, log *slog.Logger) *Processor {
	if limit < 1 {
		limit = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Processor{Pipeline: p, Limit: limit, Log: log}
}

// ProcessAll runs every job and returns one report per input, in input
// order.
func (p *Processor) ProcessAll(ctx context.Context, inputs []*normalize.JobInput) []JobReport {
	reports := make([]JobReport, len(inputs))
	p.Log.Info("processor.batch.start",
		"request_id", common.RequestIDFromContext(ctx),
		"jobs", len(inputs),
		"limit", p.Limit,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Limit)
	for i, in := range inputs {
		g.Go(func() error {
			jctx := common.WithJobID(ctx, in.JobID.String())
			doc, res, err := p.Pipeline.Run(jctx, in)
			reports[i] = JobReport{
				JobID:   in.JobID,
				Outcome: res.Outcome,
				Err:     err,
			}
			if doc != nil {
				reports[i].Questions = doc.Info.TotalQuestions
			}
			// Job-level faults stay in the report.
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range reports {
		if r.Err != nil {
			p.Log.Warn("processor.job.failed", "job_id", r.JobID, "err", r.Err)
		}
	}
	return reports
}
