package actions

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/ports"
	"github.com/tjfontaine/roboto-ai-actions/internal/orchestrator"
)

type runKey struct{}

// run tracks one action invocation. It travels in the context so observers
// registered once on the orchestrator and persister can find it.
type run struct {
	mu     sync.Mutex
	record ports.RunRecord
}

func (r *run) setAttempts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.record.Attempts {
		r.record.Attempts = n
	}
}

func (r *run) attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record.Attempts
}

func runFromContext(ctx context.Context) *run {
	r, _ := ctx.Value(runKey{}).(*run)
	return r
}

// startRun creates the run and, when a ledger is configured, records it.
// Ledger failures are logged and never fail the action.
func (s *Service) startRun(ctx context.Context, action, datasetID string) (context.Context, *run) {
	r := &run{record: ports.RunRecord{
		ID:        uuid.NewString(),
		Action:    action,
		DatasetID: datasetID,
		Status:    ports.RunStatusRunning,
	}}
	if s.ledger != nil {
		rec := r.record
		if err := s.ledger.StartRun(ctx, &rec); err != nil {
			s.logger.Warn("failed to record run start",
				slog.String("run_id", r.record.ID),
				slog.String("error", err.Error()),
			)
		} else {
			r.record.StartedAt = rec.StartedAt
		}
	}
	return context.WithValue(ctx, runKey{}, r), r
}

// finishRun stores the terminal state derived from err.
func (s *Service) finishRun(ctx context.Context, r *run, status ports.RunStatus, summary domain.OutcomeSummary, err error) {
	r.mu.Lock()
	switch {
	case orchestrator.IsExhausted(err):
		status = ports.RunStatusExhausted
	case err != nil:
		status = ports.RunStatusFailed
	}
	r.record.Status = status
	r.record.Attempted = summary.Attempted
	r.record.Created = summary.Created
	if err != nil {
		r.record.Error = err.Error()
	}
	rec := r.record
	r.mu.Unlock()

	if s.ledger == nil {
		return
	}
	// The run is finished even when the caller's context was cancelled.
	if ferr := s.ledger.FinishRun(context.WithoutCancel(ctx), &rec); ferr != nil {
		s.logger.Warn("failed to record run result",
			slog.String("run_id", rec.ID),
			slog.String("error", ferr.Error()),
		)
	}
}

func (s *Service) observeAttempt(ctx context.Context, attempt domain.RetryAttempt) {
	r := runFromContext(ctx)
	if r == nil {
		return
	}
	r.setAttempts(attempt.Number)
	if s.ledger == nil {
		return
	}

	rec := &ports.AttemptRecord{
		RunID:            r.record.ID,
		Number:           attempt.Number,
		Transcript:       attempt.Transcript,
		TranscriptTokens: s.counter.Count(attempt.Transcript),
	}
	if attempt.Err != nil {
		rec.Error = attempt.Err.Error()
	}
	if err := s.ledger.RecordAttempt(ctx, rec); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("failed to record attempt",
			slog.String("run_id", rec.RunID),
			slog.Int("attempt", rec.Number),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) observeOutcome(ctx context.Context, outcome domain.PersistenceOutcome) {
	r := runFromContext(ctx)
	if r == nil || s.ledger == nil {
		return
	}

	rec := &ports.OutcomeRecord{
		RunID:   r.record.ID,
		Index:   outcome.Index,
		Name:    outcome.Name,
		EventID: outcome.EventID,
	}
	if outcome.Err != nil {
		rec.Error = outcome.Err.Error()
	}
	if err := s.ledger.RecordOutcome(ctx, rec); err != nil {
		s.logger.Warn("failed to record outcome",
			slog.String("run_id", rec.RunID),
			slog.Int("index", rec.Index),
			slog.String("error", err.Error()),
		)
	}
}
