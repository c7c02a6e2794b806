package persist

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
)

// recordingStore records create calls and fails the configured call numbers.
type recordingStore struct {
	failOn map[int]error
	calls  []*domain.CreateEventRequest
}

func (s *recordingStore) CreateEvent(ctx context.Context, req *domain.CreateEventRequest) (*domain.Event, error) {
	s.calls = append(s.calls, req)
	n := len(s.calls)
	if err, ok := s.failOn[n]; ok {
		return nil, err
	}
	return &domain.Event{EventID: fmt.Sprintf("ev_%d", n), Name: req.Name}, nil
}

func descriptor(name string, severity domain.Severity) domain.EventDescriptor {
	return domain.EventDescriptor{
		Start:          1_000_000_000,
		End:            3_000_000_000,
		Name:           name,
		Description:    name + " happened.",
		Severity:       severity,
		MessagePathIDs: []string{"mp_a", "mp_b"},
	}
}

func threeEventBatch() *domain.ResponseBatch {
	return &domain.ResponseBatch{
		DatasetID: "ds_1",
		Descriptors: []domain.EventDescriptor{
			descriptor("first", 1),
			descriptor("second", 3),
			descriptor("third", 5),
		},
	}
}

func TestPersist_IsolatesFailures(t *testing.T) {
	storeErr := errors.New("503 service unavailable")
	store := &recordingStore{failOn: map[int]error{2: storeErr}}

	outcomes := New(store).Persist(context.Background(), threeEventBatch(), "ds_1", false)

	if len(outcomes) != 3 {
		t.Fatalf("len(outcomes) = %d, want 3", len(outcomes))
	}
	if len(store.calls) != 3 {
		t.Errorf("store calls = %d, want 3", len(store.calls))
	}

	if !outcomes[0].Succeeded() || outcomes[0].EventID != "ev_1" {
		t.Errorf("outcome 1 = %+v", outcomes[0])
	}
	if outcomes[1].Succeeded() {
		t.Error("outcome 2 should have failed")
	}
	if !errors.Is(outcomes[1].Err, storeErr) {
		t.Errorf("outcome 2 error = %v, want wrapped store error", outcomes[1].Err)
	}
	if !domain.IsPersistenceError(outcomes[1].Err) {
		t.Errorf("outcome 2 error type = %T", outcomes[1].Err)
	}
	if !outcomes[2].Succeeded() || outcomes[2].EventID != "ev_3" || outcomes[2].Name != "third" {
		t.Errorf("outcome 3 = %+v", outcomes[2])
	}

	summary := domain.Summarize(outcomes)
	if summary.Created != 2 || summary.Failed != 1 || summary.Attempted != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.String() != "2/3" {
		t.Errorf("summary.String() = %q", summary.String())
	}
}

func TestPersist_DryRunNeverCallsStore(t *testing.T) {
	store := &recordingStore{}
	batch := threeEventBatch()
	for i := 0; i < 50; i++ {
		batch.Descriptors = append(batch.Descriptors, descriptor(fmt.Sprintf("extra %d", i), 2))
	}

	outcomes := New(store).Persist(context.Background(), batch, "ds_1", true)

	if len(outcomes) != 0 {
		t.Errorf("len(outcomes) = %d, want 0", len(outcomes))
	}
	if len(store.calls) != 0 {
		t.Errorf("store calls = %d, want 0", len(store.calls))
	}
}

func TestPersist_EmptyBatch(t *testing.T) {
	store := &recordingStore{}
	outcomes := New(store).Persist(context.Background(), &domain.ResponseBatch{DatasetID: "ds_1"}, "ds_1", false)
	if len(outcomes) != 0 || len(store.calls) != 0 {
		t.Errorf("outcomes = %d, calls = %d", len(outcomes), len(store.calls))
	}
}

func TestPersist_RequestFields(t *testing.T) {
	store := &recordingStore{}
	New(store).Persist(context.Background(), threeEventBatch(), "ds_target", false)

	want := &domain.CreateEventRequest{
		Name:           "second",
		StartTime:      1_000_000_000,
		EndTime:        3_000_000_000,
		Description:    "second happened.",
		DatasetIDs:     []string{"ds_target"},
		MessagePathIDs: []string{"mp_a", "mp_b"},
		Metadata:       map[string]any{"severity": 3, "ai_generated": true},
		Tags:           []string{"severity-3", "ai-generated", "create-ai-events-action"},
		DisplayOptions: domain.DisplayOptions{Color: "#FFA500"},
	}
	if diff := cmp.Diff(want, store.calls[1]); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestPersist_ObserverSeesEveryOutcome(t *testing.T) {
	store := &recordingStore{failOn: map[int]error{1: errors.New("boom")}}

	var seen []int
	p := New(store, WithOutcomeObserver(func(ctx context.Context, o domain.PersistenceOutcome) {
		seen = append(seen, o.Index)
	}))
	p.Persist(context.Background(), threeEventBatch(), "ds_1", false)

	if diff := cmp.Diff([]int{1, 2, 3}, seen); diff != "" {
		t.Errorf("observed indexes (-want +got):\n%s", diff)
	}
}

func TestSeverityColors(t *testing.T) {
	tests := []struct {
		severity domain.Severity
		want     string
	}{
		{1, "#90EE90"},
		{2, "#FFD700"},
		{3, "#FFA500"},
		{4, "#FF6347"},
		{5, "#DC143C"},
		{0, "#808080"},
		{6, "#808080"},
	}

	for _, tt := range tests {
		req := NewCreateEventRequest(descriptor("x", tt.severity), "ds_1")
		if req.DisplayOptions.Color != tt.want {
			t.Errorf("severity %d color = %q, want %q", tt.severity, req.DisplayOptions.Color, tt.want)
		}
	}
}
