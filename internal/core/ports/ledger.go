package ports

import (
	"context"
	"time"
)

// RunStatus is the terminal state of an action run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusDryRun    RunStatus = "dry_run"
	RunStatusExhausted RunStatus = "exhausted"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord summarizes one action invocation.
type RunRecord struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	DatasetID string    `json:"dataset_id"`
	Status    RunStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	Attempted int       `json:"attempted"`
	Created   int       `json:"created"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// AttemptRecord is one retry attempt of a run.
type AttemptRecord struct {
	RunID            string `json:"run_id"`
	Number           int    `json:"number"`
	TranscriptTokens int    `json:"transcript_tokens"`
	Transcript       string `json:"transcript"`
	Error            string `json:"error,omitempty"`
}

// OutcomeRecord is the persisted result of one descriptor.
type OutcomeRecord struct {
	RunID   string `json:"run_id"`
	Index   int    `json:"index"`
	Name    string `json:"name"`
	EventID string `json:"event_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ledger keeps an audit trail of action runs across invocations.
type Ledger interface {
	StartRun(ctx context.Context, run *RunRecord) error
	FinishRun(ctx context.Context, run *RunRecord) error
	RecordAttempt(ctx context.Context, attempt *AttemptRecord) error
	RecordOutcome(ctx context.Context, outcome *OutcomeRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListAttempts(ctx context.Context, runID string) ([]*AttemptRecord, error)
	ListOutcomes(ctx context.Context, runID string) ([]*OutcomeRecord, error)
	Close() error
}
