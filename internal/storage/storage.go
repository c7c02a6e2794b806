// Package storage defines the local backends that keep the run ledger and,
// when the platform is not used, the events and dataset annotations the
// actions produce.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/ports"
)

// ErrNotFound is returned when a run, event or dataset is unknown.
var ErrNotFound = errors.New("not found")

// Re-export ledger types from core/ports.
type (
	Ledger        = ports.Ledger
	RunRecord     = ports.RunRecord
	AttemptRecord = ports.AttemptRecord
	OutcomeRecord = ports.OutcomeRecord
	RunStatus     = ports.RunStatus
)

const (
	RunStatusRunning   = ports.RunStatusRunning
	RunStatusSucceeded = ports.RunStatusSucceeded
	RunStatusDryRun    = ports.RunStatusDryRun
	RunStatusExhausted = ports.RunStatusExhausted
	RunStatusFailed    = ports.RunStatusFailed
)

// StoredEvent is an event kept by a local store.
type StoredEvent struct {
	ID        string                    `json:"event_id"`
	Request   domain.CreateEventRequest `json:"request"`
	CreatedAt time.Time                 `json:"created"`
}

// Event returns the platform view of the stored event.
func (e *StoredEvent) Event() *domain.Event {
	return &domain.Event{
		EventID:   e.ID,
		Name:      e.Request.Name,
		StartTime: e.Request.StartTime,
		EndTime:   e.Request.EndTime,
		CreatedAt: e.CreatedAt,
	}
}

// Store is a local backend: a run ledger that can also stand in for the
// platform as an event sink and dataset writer.
type Store interface {
	ports.Ledger
	ports.EventStore
	ports.DatasetWriter

	ListEvents(ctx context.Context, datasetID string) ([]*StoredEvent, error)
	GetDatasetSummary(ctx context.Context, datasetID string) (string, error)
	ListDatasetTags(ctx context.Context, datasetID string) ([]string, error)
}

// MergeTags appends tags not already present, keeping first-seen order.
func MergeTags(existing, tags []string) []string {
	seen := make(map[string]bool, len(existing)+len(tags))
	out := make([]string, 0, len(existing)+len(tags))
	for _, list := range [][]string{existing, tags} {
		for _, t := range list {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
