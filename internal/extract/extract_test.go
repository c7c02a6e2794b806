package extract

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const validPayload = `{
  "dataset_id": "ds_test123",
  "data": [
    {
      "start": 1769641146670000000,
      "end": 1769641148050000000,
      "name": "Executive reports failure",
      "description": "The operation failed.\n\nerror.code = 2 at +3.7s.",
      "severity": 4,
      "message_path_ids": ["mp_abc123", "mp_def456"]
    }
  ]
}`

func TestExtract_FenceStrippingIsTransparent(t *testing.T) {
	want, err := Extract(validPayload)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	inputs := map[string]string{
		"json fence":           "```json\n" + validPayload + "\n```",
		"bare fence":           "```\n" + validPayload + "\n```",
		"surrounding space":    "\n\n   " + validPayload + "   \n",
		"fence without close":  "```json\n" + validPayload,
		"crlf closing fence":   "```json\r\n" + validPayload + "\r\n```\r\n",
		"fence with padding":   "  ```json\n" + validPayload + "\n```  ",
		"closing fence spaced": "```\n" + validPayload + "\n   ```",
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := Extract(in)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("batch mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_ValidPayload(t *testing.T) {
	batch, err := Extract(validPayload)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if batch.DatasetID != "ds_test123" {
		t.Errorf("DatasetID = %q", batch.DatasetID)
	}
	if batch.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", batch.Len())
	}
	d := batch.Descriptors[0]
	if d.Severity != 4 {
		t.Errorf("Severity = %d, want 4", d.Severity)
	}
	if got := d.DurationSeconds(); got < 1.379 || got > 1.381 {
		t.Errorf("DurationSeconds() = %v, want 1.38", got)
	}
}

func TestExtract_CorrectsPicosecondTimestamps(t *testing.T) {
	raw := `{"dataset_id": "ds_1", "data": [{
		"start": 1769641146670000000000,
		"end": 1769641147050000000000,
		"name": "Picoseconds",
		"description": "Timestamps in the wrong unit.",
		"severity": 2,
		"message_path_ids": ["mp_1"]
	}]}`

	batch, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	d := batch.Descriptors[0]
	if d.Start != 1769641146670000000 {
		t.Errorf("Start = %d, want 1769641146670000000", d.Start)
	}
	if d.End != 1769641147050000000 {
		t.Errorf("End = %d, want 1769641147050000000", d.End)
	}
	if got := d.DurationSeconds(); got < 0.379 || got > 0.381 {
		t.Errorf("DurationSeconds() = %v, want ~0.38", got)
	}
}

func TestExtract_NotJSON(t *testing.T) {
	tests := map[string]string{
		"prose":         "I could not read the messages in this dataset.",
		"truncated":     `{"dataset_id": "ds_1", "data": [`,
		"empty":         "   ",
		"extra data":    `{"dataset_id": "ds_1", "data": []} trailing`,
		"two documents": `{"dataset_id": "ds_1", "data": []} {}`,
		"trailing comma": `{"dataset_id": "ds_1", "data": [],}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsNotJSON(err) {
				t.Errorf("expected NotJSON, got %v", err)
			}
			if IsSchemaInvalid(err) {
				t.Error("NotJSON must not also be SchemaInvalid")
			}
		})
	}
}

func TestExtract_NotJSONCarriesOffset(t *testing.T) {
	_, err := Extract(`{"dataset_id": x}`)
	ee, ok := err.(*ExtractionError)
	if !ok {
		t.Fatalf("expected *ExtractionError, got %T", err)
	}
	if ee.Offset <= 0 {
		t.Errorf("Offset = %d, want > 0", ee.Offset)
	}
	if !strings.Contains(ee.Error(), "offset") {
		t.Errorf("Error() = %q, want offset", ee.Error())
	}
}

func TestExtract_SchemaInvalid(t *testing.T) {
	raw := `{"dataset_id": "ds_1", "data": [
		{"start": 2, "end": 1, "name": "A", "description": "d", "severity": 9, "message_path_ids": []}
	]}`

	_, err := Extract(raw)
	if !IsSchemaInvalid(err) {
		t.Fatalf("expected SchemaInvalid, got %v", err)
	}
	ee := err.(*ExtractionError)
	if got := len(ee.Reasons()); got != 3 {
		t.Errorf("len(Reasons()) = %d, want 3: %v", got, ee.Reasons())
	}
}

func TestExtract_LenientJSON(t *testing.T) {
	raw := `{
		// agent commentary
		"dataset_id": "ds_1",
		"data": [],
	}`

	if _, err := Extract(raw); !IsNotJSON(err) {
		t.Fatalf("strict Extract() error = %v, want NotJSON", err)
	}

	batch, err := New(WithLenientJSON(true)).Extract(raw)
	if err != nil {
		t.Fatalf("lenient Extract() error = %v", err)
	}
	if batch.DatasetID != "ds_1" || batch.Len() != 0 {
		t.Errorf("unexpected batch %+v", batch)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "```json\n{}\n```", want: "{}"},
		{in: "```\n{}\n```", want: "{}"},
		{in: "```json\n{}", want: "{}"},
		{in: "```", want: ""},
		{in: "```json\n{}\n```\nnot a fence", want: "{}\n```\nnot a fence"},
	}

	for _, tt := range tests {
		if got := StripCodeFence(tt.in); got != tt.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCorrectTimestampUnits(t *testing.T) {
	tests := []struct {
		name          string
		start, end    any
		wantStart     any
		wantEnd       any
		wantCorrected int
	}{
		{
			name:          "both picoseconds",
			start:         json.Number("1769641146670000000000"),
			end:           json.Number("1769641147050000000000"),
			wantStart:     json.Number("1769641146670000000"),
			wantEnd:       json.Number("1769641147050000000"),
			wantCorrected: 1,
		},
		{
			name:          "only start oversized scales both",
			start:         json.Number("1769641146670000000000"),
			end:           json.Number("1769641147050000000"),
			wantStart:     json.Number("1769641146670000000"),
			wantEnd:       json.Number("1769641147050000"),
			wantCorrected: 1,
		},
		{
			name:      "nanoseconds untouched",
			start:     json.Number("1769641146670000000"),
			end:       json.Number("1769641147050000000"),
			wantStart: json.Number("1769641146670000000"),
			wantEnd:   json.Number("1769641147050000000"),
		},
		{
			name:      "21 digits untouched",
			start:     json.Number("176964114667000000000"),
			end:       json.Number("176964114705000000000"),
			wantStart: json.Number("176964114667000000000"),
			wantEnd:   json.Number("176964114705000000000"),
		},
		{
			name:      "non-integer end never triggers",
			start:     json.Number("1769641146670000000000"),
			end:       json.Number("1.5"),
			wantStart: json.Number("1769641146670000000000"),
			wantEnd:   json.Number("1.5"),
		},
		{
			name:      "string start never triggers",
			start:     "1769641146670000000000",
			end:       json.Number("1769641147050000000000"),
			wantStart: "1769641146670000000000",
			wantEnd:   json.Number("1769641147050000000000"),
		},
		{
			name:          "negative picoseconds floor",
			start:         json.Number("-1000000000000000000001"),
			end:           json.Number("1"),
			wantStart:     json.Number("-1000000000000000001"),
			wantEnd:       json.Number("0"),
			wantCorrected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := map[string]any{"start": tt.start, "end": tt.end}
			root := map[string]any{"data": []any{event}}

			_, n := CorrectTimestampUnits(root)
			if n != tt.wantCorrected {
				t.Errorf("corrected = %d, want %d", n, tt.wantCorrected)
			}
			if event["start"] != tt.wantStart {
				t.Errorf("start = %v, want %v", event["start"], tt.wantStart)
			}
			if event["end"] != tt.wantEnd {
				t.Errorf("end = %v, want %v", event["end"], tt.wantEnd)
			}
		})
	}
}

func TestCorrectTimestampUnits_IdempotentOnCorrectedInput(t *testing.T) {
	event := map[string]any{
		"start": json.Number("1769641146670000000000"),
		"end":   json.Number("1769641147050000000000"),
	}
	root := map[string]any{"data": []any{event, "not an object"}}

	CorrectTimestampUnits(root)
	_, n := CorrectTimestampUnits(root)
	if n != 0 {
		t.Errorf("second pass corrected %d events, want 0", n)
	}
	if event["start"] != json.Number("1769641146670000000") {
		t.Errorf("start = %v", event["start"])
	}
}

func TestCorrectTimestampUnits_IgnoresMalformedRoots(t *testing.T) {
	for _, root := range []any{nil, "text", []any{}, map[string]any{"data": "x"}} {
		if _, n := CorrectTimestampUnits(root); n != 0 {
			t.Errorf("CorrectTimestampUnits(%v) corrected %d", root, n)
		}
	}
}
