// Package memory is an in-process storage.Store for tests and one-off runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/storage"
)

type dataset struct {
	summary *string
	tags    []string
}

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu       sync.RWMutex
	runs     map[string]*storage.RunRecord
	attempts map[string][]*storage.AttemptRecord
	outcomes map[string][]*storage.OutcomeRecord
	events   []*storage.StoredEvent
	datasets map[string]*dataset
}

var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:     make(map[string]*storage.RunRecord),
		attempts: make(map[string][]*storage.AttemptRecord),
		outcomes: make(map[string][]*storage.OutcomeRecord),
		datasets: make(map[string]*dataset),
	}
}

func (s *Store) StartRun(ctx context.Context, run *storage.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = storage.RunStatusRunning
	}

	stored := *run
	s.runs[run.ID] = &stored
	return nil
}

func (s *Store) FinishRun(ctx context.Context, run *storage.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.runs[run.ID]
	if !exists {
		return fmt.Errorf("run %s: %w", run.ID, storage.ErrNotFound)
	}
	if run.EndedAt.IsZero() {
		run.EndedAt = time.Now().UTC()
	}

	existing.Status = run.Status
	existing.Attempts = run.Attempts
	existing.Attempted = run.Attempted
	existing.Created = run.Created
	existing.Error = run.Error
	existing.EndedAt = run.EndedAt
	return nil
}

func (s *Store) RecordAttempt(ctx context.Context, attempt *storage.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[attempt.RunID]; !exists {
		return fmt.Errorf("run %s: %w", attempt.RunID, storage.ErrNotFound)
	}

	stored := *attempt
	list := s.attempts[attempt.RunID]
	for i, a := range list {
		if a.Number == attempt.Number {
			list[i] = &stored
			return nil
		}
	}
	s.attempts[attempt.RunID] = append(list, &stored)
	return nil
}

func (s *Store) RecordOutcome(ctx context.Context, outcome *storage.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[outcome.RunID]; !exists {
		return fmt.Errorf("run %s: %w", outcome.RunID, storage.ErrNotFound)
	}

	stored := *outcome
	s.outcomes[outcome.RunID] = append(s.outcomes[outcome.RunID], &stored)
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*storage.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("run %s: %w", id, storage.ErrNotFound)
	}
	out := *run
	return &out, nil
}

func (s *Store) ListAttempts(ctx context.Context, runID string) ([]*storage.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.AttemptRecord, 0, len(s.attempts[runID]))
	for _, a := range s.attempts[runID] {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) ListOutcomes(ctx context.Context, runID string) ([]*storage.OutcomeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.OutcomeRecord, 0, len(s.outcomes[runID]))
	for _, o := range s.outcomes[runID] {
		cp := *o
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Store) CreateEvent(ctx context.Context, req *domain.CreateEventRequest) (*domain.Event, error) {
	if len(req.DatasetIDs) == 0 {
		return nil, domain.ErrNoDataset
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := &storage.StoredEvent{
		ID:        "ev_" + uuid.NewString(),
		Request:   *req,
		CreatedAt: time.Now().UTC(),
	}
	s.events = append(s.events, stored)
	return stored.Event(), nil
}

func (s *Store) ListEvents(ctx context.Context, datasetID string) ([]*storage.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.StoredEvent
	for _, ev := range s.events {
		if ev.Request.DatasetIDs[0] == datasetID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Request.StartTime < out[j].Request.StartTime })
	return out, nil
}

func (s *Store) SetDatasetSummary(ctx context.Context, datasetID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.dataset(datasetID)
	ds.summary = &summary
	return nil
}

func (s *Store) PutDatasetTags(ctx context.Context, datasetID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.dataset(datasetID)
	ds.tags = storage.MergeTags(ds.tags, tags)
	return nil
}

func (s *Store) GetDatasetSummary(ctx context.Context, datasetID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, exists := s.datasets[datasetID]
	if !exists || ds.summary == nil {
		return "", fmt.Errorf("summary for dataset %s: %w", datasetID, storage.ErrNotFound)
	}
	return *ds.summary, nil
}

func (s *Store) ListDatasetTags(ctx context.Context, datasetID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, exists := s.datasets[datasetID]
	if !exists {
		return nil, fmt.Errorf("tags for dataset %s: %w", datasetID, storage.ErrNotFound)
	}
	return append([]string{}, ds.tags...), nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// dataset returns the entry for id, creating it. Callers hold the write lock.
func (s *Store) dataset(id string) *dataset {
	ds, exists := s.datasets[id]
	if !exists {
		ds = &dataset{}
		s.datasets[id] = ds
	}
	return ds
}
