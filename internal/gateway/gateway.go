// Package gateway is the resilient persistence wrapper: it stores each
// job's structured document at most once, retrying transient storage
// faults, breaking the circuit on sustained failure, and serving reads
// through the result cache.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seojun-park/sheetwise/constants"
	"github.com/seojun-park/sheetwise/internal/cache"
	"github.com/seojun-park/sheetwise/internal/common"
	"github.com/seojun-park/sheetwise/internal/entity"
	"github.com/seojun-park/sheetwise/internal/repository"
	"github.com/seojun-park/sheetwise/internal/resilience"
)

// Outcome is the result class of a Save call.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeAlreadyExists
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeAlreadyExists:
		return "already-exists"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureKind qualifies an OutcomeFailed result.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureTransient   FailureKind = "transient"
	FailurePermanent   FailureKind = "permanent"
	FailureCircuitOpen FailureKind = "circuit-open"
)

// SaveResult carries the outcome of one Save call.
type SaveResult struct {
	Outcome Outcome
	Failure FailureKind
	Err     error
}

// jobPhase is the per-job-id persistence state. The zero value means
// NotStarted; Completed is terminal, Failed is retryable.
type jobPhase int

const (
	phaseNotStarted jobPhase = iota
	phaseInProgress
	phaseCompleted
	phaseFailed
)

// Gateway guards the document repository.
type Gateway struct {
	repo     repository.DocumentRepository
	breaker  *resilience.Breaker
	retry    *resilience.RetryPolicy
	results  *cache.Results
	slowCall time.Duration
	log      *slog.Logger

	mu   sync.Mutex
	jobs map[uuid.UUID]jobPhase
}

// New creates a gateway. slowCall bounds each storage attempt; a timed-out
// attempt counts as a slow call in the breaker's window.
func New(repo repository.DocumentRepository, breaker *resilience.Breaker, retry *resilience.RetryPolicy, results *cache.Results, slowCall time.Duration, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		repo:     repo,
		breaker:  breaker,
		retry:    retry,
		results:  results,
		slowCall: slowCall,
		log:      log,
		jobs:     make(map[uuid.UUID]jobPhase),
	}
}

// Save persists the document for jobID at most once. Concurrent duplicate
// calls observe InProgress or Completed and get already-exists without
// re-writing; only transient faults are retried. Callers must not hold
// other locks across this call.
func (g *Gateway) Save(ctx context.Context, jobID uuid.UUID, doc *entity.StructuredDocument) SaveResult {
	payload, err := json.Marshal(doc)
	if err != nil {
		return SaveResult{Outcome: OutcomeFailed, Failure: FailurePermanent, Err: fmt.Errorf("marshal document: %w", err)}
	}

	if !g.claim(jobID) {
		g.log.Info("gateway.save.duplicate", "job_id", jobID)
		return SaveResult{Outcome: OutcomeAlreadyExists}
	}

	row := &entity.DocumentRow{
		JobID:         jobID,
		Status:        constants.StatusCompleted,
		Payload:       payload,
		QuestionCount: len(doc.Questions),
	}

	var rowExisted bool
	attempt := func(ctx context.Context) error {
		return g.breaker.Execute(ctx, func(ctx context.Context) error {
			actx, cancel := context.WithTimeout(ctx, g.slowCall)
			defer cancel()
			err := g.repo.Insert(actx, row)
			if errors.Is(err, repository.ErrDuplicateJob) {
				// The row exists; success-equivalent, not a storage failure.
				rowExisted = true
				return nil
			}
			return err
		})
	}

	err = g.retry.Do(ctx, repository.IsTransient, attempt)
	switch {
	case err == nil && rowExisted:
		g.settle(jobID, phaseCompleted)
		g.log.Info("gateway.save.exists", "job_id", jobID)
		return SaveResult{Outcome: OutcomeAlreadyExists}
	case err == nil:
		g.settle(jobID, phaseCompleted)
		g.results.Set(jobID, payload)
		g.log.Info("gateway.save.ok", "job_id", jobID, "questions", row.QuestionCount)
		return SaveResult{Outcome: OutcomeCompleted}
	case errors.Is(err, resilience.ErrOpen):
		g.settle(jobID, phaseFailed)
		g.log.Warn("gateway.save.rejected", "job_id", jobID, "request_id", common.RequestIDFromContext(ctx), "err", err)
		return SaveResult{Outcome: OutcomeFailed, Failure: FailureCircuitOpen, Err: err}
	case repository.IsTransient(err):
		g.settle(jobID, phaseFailed)
		g.log.Error("gateway.save.exhausted", "job_id", jobID, "request_id", common.RequestIDFromContext(ctx), "err", err)
		return SaveResult{Outcome: OutcomeFailed, Failure: FailureTransient, Err: err}
	default:
		g.settle(jobID, phaseFailed)
		g.log.Error("gateway.save.permanent", "job_id", jobID, "err", err)
		return SaveResult{Outcome: OutcomeFailed, Failure: FailurePermanent, Err: err}
	}
}

// claim serializes the NotStarted -> InProgress transition so only one
// concurrent caller proceeds to the actual write. Failed jobs may be
// claimed again.
func (g *Gateway) claim(jobID uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.jobs[jobID] {
	case phaseInProgress, phaseCompleted:
		return false
	default:
		g.jobs[jobID] = phaseInProgress
		return true
	}
}

func (g *Gateway) settle(jobID uuid.UUID, phase jobPhase) {
	g.mu.Lock()
	g.jobs[jobID] = phase
	g.mu.Unlock()
}

// Load returns the structured document for a job id, serving from the
// result cache when possible.
func (g *Gateway) Load(ctx context.Context, jobID uuid.UUID) (*entity.StructuredDocument, error) {
	if payload, ok := g.results.Get(jobID); ok {
		var doc entity.StructuredDocument
		if err := json.Unmarshal(payload, &doc); err == nil {
			return &doc, nil
		}
		// A corrupt cache entry falls through to storage.
		g.results.Invalidate(jobID)
	}

	row, err := g.repo.GetByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if row.Status != constants.StatusCompleted || len(row.Payload) == 0 {
		return nil, common.ErrNotFound
	}
	var doc entity.StructuredDocument
	if err := json.Unmarshal(row.Payload, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal stored document: %w", err)
	}
	g.results.Set(jobID, row.Payload)
	return &doc, nil
}

// Reprocess invalidates a job so an explicit rerun can supersede the
// persisted document: the row is removed, the cache entry dropped, and the
// per-job state reset to NotStarted.
func (g *Gateway) Reprocess(ctx context.Context, jobID uuid.UUID) error {
	if err := g.repo.Delete(ctx, jobID); err != nil {
		return err
	}
	g.results.Invalidate(jobID)
	g.mu.Lock()
	delete(g.jobs, jobID)
	g.mu.Unlock()
	g.log.Info("gateway.reprocess.reset", "job_id", jobID)
	return nil
}
