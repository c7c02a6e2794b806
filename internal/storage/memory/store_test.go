package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/storage"
)

func TestMemoryStore_RunLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	run := &storage.RunRecord{ID: "run-1", Action: "create-ai-events", DatasetID: "ds_1"}
	if err := store.StartRun(ctx, run); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if err := store.StartRun(ctx, &storage.RunRecord{ID: "run-1"}); err == nil {
		t.Error("expected duplicate run error")
	}

	for _, n := range []int{2, 1} {
		if err := store.RecordAttempt(ctx, &storage.AttemptRecord{RunID: "run-1", Number: n}); err != nil {
			t.Fatalf("RecordAttempt() error = %v", err)
		}
	}
	if err := store.RecordOutcome(ctx, &storage.OutcomeRecord{RunID: "run-1", Index: 1, Name: "a", EventID: "ev_1"}); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	if err := store.RecordOutcome(ctx, &storage.OutcomeRecord{RunID: "nope", Index: 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("RecordOutcome() for unknown run error = %v", err)
	}

	run.Status = storage.RunStatusExhausted
	run.Attempts = 2
	run.Error = "no valid advisory response after 2 attempts"
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != storage.RunStatusExhausted || got.Attempts != 2 || got.Error == "" || got.EndedAt.IsZero() {
		t.Errorf("GetRun() = %+v", got)
	}

	attempts, _ := store.ListAttempts(ctx, "run-1")
	var numbers []int
	for _, a := range attempts {
		numbers = append(numbers, a.Number)
	}
	if diff := cmp.Diff([]int{1, 2}, numbers); diff != "" {
		t.Errorf("attempt numbers (-want +got):\n%s", diff)
	}

	outcomes, _ := store.ListOutcomes(ctx, "run-1")
	if len(outcomes) != 1 || outcomes[0].EventID != "ev_1" {
		t.Errorf("outcomes = %+v", outcomes)
	}
}

func TestMemoryStore_GetRunReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()
	if err := store.StartRun(ctx, &storage.RunRecord{ID: "r"}); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetRun(ctx, "r")
	got.Status = storage.RunStatusFailed

	again, _ := store.GetRun(ctx, "r")
	if again.Status != storage.RunStatusRunning {
		t.Errorf("stored run mutated through returned copy: %v", again.Status)
	}
}

func TestMemoryStore_EventsAndAnnotations(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, start := range []int64{30, 10, 20} {
		if _, err := store.CreateEvent(ctx, &domain.CreateEventRequest{Name: "e", StartTime: start, EndTime: start + 5, DatasetIDs: []string{"ds_1"}}); err != nil {
			t.Fatalf("CreateEvent() error = %v", err)
		}
	}
	if _, err := store.CreateEvent(ctx, &domain.CreateEventRequest{Name: "x"}); !errors.Is(err, domain.ErrNoDataset) {
		t.Errorf("CreateEvent() without dataset error = %v", err)
	}

	events, _ := store.ListEvents(ctx, "ds_1")
	var starts []int64
	for _, ev := range events {
		starts = append(starts, ev.Request.StartTime)
	}
	if diff := cmp.Diff([]int64{10, 20, 30}, starts); diff != "" {
		t.Errorf("event order (-want +got):\n%s", diff)
	}

	if _, err := store.ListDatasetTags(ctx, "ds_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ListDatasetTags() before put error = %v", err)
	}
	_ = store.PutDatasetTags(ctx, "ds_1", []string{"ERROR"})
	_ = store.PutDatasetTags(ctx, "ds_1", []string{"ERROR"})
	tags, _ := store.ListDatasetTags(ctx, "ds_1")
	if diff := cmp.Diff([]string{"ERROR"}, tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}

	if _, err := store.GetDatasetSummary(ctx, "ds_1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetDatasetSummary() before set error = %v", err)
	}
	_ = store.SetDatasetSummary(ctx, "ds_1", "")
	if summary, err := store.GetDatasetSummary(ctx, "ds_1"); err != nil || summary != "" {
		t.Errorf("GetDatasetSummary() = %q, %v", summary, err)
	}
}
