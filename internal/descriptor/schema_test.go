package descriptor

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
)

func event(start, end int64, name string, severity int, paths ...any) map[string]any {
	if paths == nil {
		paths = []any{}
	}
	return map[string]any{
		"start":            json.Number(itoa(start)),
		"end":              json.Number(itoa(end)),
		"name":             name,
		"description":      "Something happened.",
		"severity":         json.Number(itoa(int64(severity))),
		"message_path_ids": paths,
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func batchOf(events ...any) map[string]any {
	return map[string]any{
		"dataset_id": "ds_test123",
		"data":       events,
	}
}

func TestValidate_ValidBatch(t *testing.T) {
	raw := batchOf(
		event(1_000_000_000, 2_000_000_000, "First Event", 2, "mp_topic_one"),
		event(3_000_000_000, 5_000_000_000, "Second Event", 4, "mp_topic_two", "mp_topic_three"),
	)

	batch, err := Validate(raw)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if batch.DatasetID != "ds_test123" {
		t.Errorf("DatasetID = %q, want ds_test123", batch.DatasetID)
	}
	if len(batch.Descriptors) != 2 {
		t.Fatalf("len(Descriptors) = %d, want 2", len(batch.Descriptors))
	}

	first := batch.Descriptors[0]
	if first.Name != "First Event" {
		t.Errorf("Name = %q, want First Event", first.Name)
	}
	if first.DurationNS() != 1_000_000_000 {
		t.Errorf("DurationNS() = %d, want 1e9", first.DurationNS())
	}
	if first.DurationSeconds() != 1.0 {
		t.Errorf("DurationSeconds() = %v, want 1.0", first.DurationSeconds())
	}
	if got := len(batch.Descriptors[1].MessagePathIDs); got != 2 {
		t.Errorf("len(MessagePathIDs) = %d, want 2", got)
	}
}

func TestValidate_EmptyDataIsValid(t *testing.T) {
	batch, err := Validate(batchOf())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if batch.Len() != 0 {
		t.Errorf("Len() = %d, want 0", batch.Len())
	}
}

func TestValidate_FieldViolations(t *testing.T) {
	longName := strings.Repeat("x", 101)

	tests := []struct {
		name    string
		event   map[string]any
		wantErr string
	}{
		{
			name:    "negative start",
			event:   event(-1_000_000_000, 2_000_000_000, "Test", 1, "mp_topic"),
			wantErr: "timestamp must be non-negative",
		},
		{
			name:    "end before start",
			event:   event(2_000_000_000, 1_000_000_000, "Test", 1, "mp_topic"),
			wantErr: "must be > start timestamp",
		},
		{
			name:    "end equals start",
			event:   event(2_000_000_000, 2_000_000_000, "Test", 1, "mp_topic"),
			wantErr: "must be > start timestamp",
		},
		{
			name:    "severity too high",
			event:   event(1_000_000_000, 2_000_000_000, "Test", 6, "mp_topic"),
			wantErr: "severity: must be between 1 and 5",
		},
		{
			name:    "severity zero",
			event:   event(1_000_000_000, 2_000_000_000, "Test", 0, "mp_topic"),
			wantErr: "severity: must be between 1 and 5",
		},
		{
			name:    "empty message path ids",
			event:   event(1_000_000_000, 2_000_000_000, "Test", 1),
			wantErr: "must contain at least one message path id",
		},
		{
			name:    "whitespace message path id",
			event:   event(1_000_000_000, 2_000_000_000, "Test", 1, "mp_ok", "   "),
			wantErr: "message path ids cannot be empty",
		},
		{
			name:    "name too long",
			event:   event(1_000_000_000, 2_000_000_000, longName, 1, "mp_topic"),
			wantErr: "must be at most 100 characters",
		},
		{
			name:    "empty name",
			event:   event(1_000_000_000, 2_000_000_000, "", 1, "mp_topic"),
			wantErr: "name: must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(batchOf(tt.event))
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsSchemaError(err) {
				t.Fatalf("expected SchemaError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_MissingFields(t *testing.T) {
	_, err := Validate(map[string]any{"data": []any{map[string]any{}}})
	if err == nil {
		t.Fatal("expected error")
	}

	se := err.(*SchemaError)
	for _, want := range []string{
		"dataset_id: field required",
		"data[0].start: field required",
		"data[0].end: field required",
		"data[0].name: field required",
		"data[0].description: field required",
		"data[0].severity: field required",
		"data[0].message_path_ids: field required",
	} {
		found := false
		for _, r := range se.Reasons {
			if r == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing reason %q in %v", want, se.Reasons)
		}
	}
}

func TestValidate_RejectsNonObjectRoot(t *testing.T) {
	if _, err := Validate([]any{}); err == nil {
		t.Fatal("expected error for list root")
	}
}

func TestValidate_RejectsNonIntegerTimestamp(t *testing.T) {
	e := event(1_000_000_000, 2_000_000_000, "Test", 1, "mp_topic")
	e["start"] = json.Number("1.5")

	_, err := Validate(batchOf(e))
	if err == nil || !strings.Contains(err.Error(), "expected integer") {
		t.Fatalf("expected integer error, got %v", err)
	}
}

func TestValidate_DurationBounds(t *testing.T) {
	tests := []struct {
		name    string
		events  []any
		wantErr string
	}{
		{
			name:    "near-zero duration",
			events:  []any{event(1_000_000_000, 1_000_000_100, "Blip", 1, "mp_topic")},
			wantErr: "near-zero duration",
		},
		{
			name:    "too long",
			events:  []any{event(1_000_000_000, 2_000_000_000_000, "Forever", 1, "mp_topic")},
			wantErr: "suspiciously long duration",
		},
		{
			name: "one bad descriptor invalidates the batch",
			events: []any{
				event(1_000_000_000, 3_000_000_000, "Fine", 1, "mp_topic"),
				event(5_000_000_000, 5_000_000_001, "Blip", 1, "mp_topic"),
			},
			wantErr: "near-zero duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(batchOf(tt.events...))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsEveryDurationViolation(t *testing.T) {
	_, err := Validate(batchOf(
		event(9_000_000_000, 9_000_000_010, "Second", 1, "mp_topic"),
		event(1_000_000_000, 5_000_000_000_000, "First", 1, "mp_topic"),
	))
	if err == nil {
		t.Fatal("expected error")
	}

	se := err.(*SchemaError)
	if len(se.Reasons) != 2 {
		t.Fatalf("len(Reasons) = %d, want 2: %v", len(se.Reasons), se.Reasons)
	}
	// Reported in start order.
	if !strings.Contains(se.Reasons[0], `"First"`) || !strings.Contains(se.Reasons[0], "start=1000000000") {
		t.Errorf("Reasons[0] = %q", se.Reasons[0])
	}
	if !strings.Contains(se.Reasons[1], `"Second"`) {
		t.Errorf("Reasons[1] = %q", se.Reasons[1])
	}
}

func TestValidate_AcceptsDurationsOutsideGuidanceWindow(t *testing.T) {
	batch, err := Validate(batchOf(
		event(1_000_000_000, 1_001_000_000, "Millisecond", 1, "mp_topic"),    // 0.001s
		event(2_000_000_000, 2_500_000_000, "Half second", 2, "mp_topic"),    // 0.5s
		event(10_000_000_000, 60_000_000_000, "Minute-ish", 3, "mp_topic"),   // 50s
		event(100_000_000_000, 1_100_000_000_000, "Thousand", 4, "mp_topic"), // 1000s
	))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if batch.Len() != 4 {
		t.Errorf("Len() = %d, want 4", batch.Len())
	}
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{in: json.Number("42"), want: 42},
		{in: json.Number("-7"), want: -7},
		{in: json.Number("1e3"), wantErr: true},
		{in: json.Number("1769641146670000000000"), wantErr: true},
		{in: float64(3), want: 3},
		{in: float64(3.5), wantErr: true},
		{in: true, wantErr: true},
		{in: "12", wantErr: true},
	}

	for _, tt := range tests {
		got, err := AsInt64(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("AsInt64(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("AsInt64(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
