package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/tjfontaine/roboto-ai-actions/internal/actions"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/pkg/config"
	"github.com/tjfontaine/roboto-ai-actions/internal/storage"
)

const eventsTranscript = "Reading /executive/status...\n\n# FINAL SUMMARY\n" + `{
  "dataset_id": "ds_1",
  "data": [
    {"start": 1769641146000000000, "end": 1769641148000000000, "name": "Goal aborted",
     "description": "The executive aborted the goal.", "severity": 4, "message_path_ids": ["mp_1"]}
  ]
}`

// fakePlatform serves the subset of the platform API the actions use.
type fakePlatform struct {
	mu         sync.Mutex
	transcript string
	events     int
	summaries  map[string]string
}

func newFakePlatform(t *testing.T, transcript string) (*fakePlatform, *httptest.Server) {
	t.Helper()
	p := &fakePlatform{transcript: transcript, summaries: make(map[string]string)}

	r := chi.NewRouter()
	r.Get("/v1/datasets/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id != "ds_1" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"error_code":"NOT_FOUND","message":"no such dataset"}}`)
			return
		}
		writeData(w, domain.Dataset{DatasetID: id, Name: "nav2 failure"})
	})
	r.Get("/v1/datasets/{id}/files", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]any{"items": []domain.File{{FileID: "fl_a", DatasetID: "ds_1"}}})
	})
	r.Post("/v1/ai/chats/start", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		writeData(w, map[string]any{"chat_id": "ch_1", "status": "user_turn", "transcript": p.transcript})
	})
	r.Post("/v1/events/create", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.events++
		p.mu.Unlock()
		writeData(w, domain.Event{EventID: "ev_remote", Name: "Goal aborted"})
	})
	r.Put("/v1/datasets/{id}/summary", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Summary string `json:"summary"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		p.mu.Lock()
		p.summaries[chi.URLParam(r, "id")] = body.Summary
		p.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return p, srv
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func testConfig(t *testing.T, endpoint string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	cfg.Roboto.Endpoint = endpoint
	cfg.Roboto.APIKey = "test-key"
	cfg.Advisor.PollInterval = time.Millisecond
	cfg.Advisor.Timeout = time.Second
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApp_CreateAIEventsToLocalStore(t *testing.T) {
	platform, srv := newFakePlatform(t, eventsTranscript)
	cfg := testConfig(t, srv.URL)
	cfg.Store.Type = config.StoreMemory
	cfg.Ledger.Enabled = true
	cfg.Invocation.DatasetID = "ds_1"

	app, err := New(cfg, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	result, err := app.Run(context.Background(), actions.ActionCreateAIEvents)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	report := result.(*actions.EventsReport)
	if report.Summary.String() != "1/1" {
		t.Errorf("summary = %+v", report.Summary)
	}
	if platform.events != 0 {
		t.Errorf("platform received %d events, want 0 with a local store", platform.events)
	}

	events, err := app.Store().ListEvents(context.Background(), "ds_1")
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 1 || events[0].Request.Name != "Goal aborted" {
		t.Errorf("stored events = %+v", events)
	}

	run, err := app.Ledger().GetRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Status != storage.RunStatusSucceeded || run.Created != 1 {
		t.Errorf("run = %+v", run)
	}
}

func TestApp_CreateAISummaryToPlatform(t *testing.T) {
	platform, srv := newFakePlatform(t, "Reading...\n# FINAL SUMMARY\n## Overview\n- A nav2 run.")
	cfg := testConfig(t, srv.URL)
	cfg.Invocation.DatasetID = "ds_1"

	app, err := New(cfg, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Store() != nil || app.Ledger() != nil {
		t.Error("default configuration should use the platform without a ledger")
	}

	if _, err := app.Run(context.Background(), actions.ActionCreateAISummary); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := platform.summaries["ds_1"]; got != "## Overview\n- A nav2 run." {
		t.Errorf("summary = %q", got)
	}
}

func TestApp_SQLiteLedgerSharing(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name       string
		storePath  string
		ledgerPath string
		shared     bool
	}{
		{name: "same file", storePath: filepath.Join(dir, "a.db"), ledgerPath: filepath.Join(dir, "a.db"), shared: true},
		{name: "separate files", storePath: filepath.Join(dir, "b.db"), ledgerPath: filepath.Join(dir, "ledger.db"), shared: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "http://127.0.0.1:0")
			cfg.Store.Type = config.StoreSQLite
			cfg.Store.SQLite.Path = tt.storePath
			cfg.Ledger.Enabled = true
			cfg.Ledger.Path = tt.ledgerPath

			app, err := New(cfg, WithLogger(discardLogger()))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer app.Close()

			shared := any(app.Ledger()) == any(app.Store())
			if shared != tt.shared {
				t.Errorf("ledger shared = %v, want %v", shared, tt.shared)
			}
			if _, err := os.Stat(tt.ledgerPath); err != nil {
				t.Errorf("ledger file: %v", err)
			}
		})
	}
}

func TestApp_Invocation(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Invocation = config.InvocationConfig{
		DatasetID: "ds_1",
		InputDir:  "/input",
		InputFiles: []config.InputFileConfig{
			{FileID: "fl_a", DatasetID: "ds_1", RelativePath: "logs/a.txt", LocalPath: "/input/logs/a.txt"},
		},
		DryRun:     true,
		Parameters: map[string]string{"keyword": "WARN"},
	}

	app, err := New(cfg, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	want := actions.Invocation{
		DatasetID:  "ds_1",
		InputDir:   "/input",
		InputFiles: []domain.File{{FileID: "fl_a", DatasetID: "ds_1", RelativePath: "logs/a.txt", LocalPath: "/input/logs/a.txt"}},
		DryRun:     true,
		Parameters: map[string]string{"keyword": "WARN"},
	}
	if diff := cmp.Diff(want, app.Invocation()); diff != "" {
		t.Errorf("Invocation() mismatch (-want +got):\n%s", diff)
	}
}

func TestRunAction_ExitCodes(t *testing.T) {
	_, srv := newFakePlatform(t, eventsTranscript)

	tests := []struct {
		name      string
		action    string
		datasetID string
		want      int
	}{
		{name: "no dataset is not an error", action: actions.ActionCreateAIEvents, want: 0},
		{name: "unspecified dataset", action: actions.ActionCreateAIEvents, datasetID: "unspecified", want: 0},
		{name: "unknown dataset", action: actions.ActionCreateAIEvents, datasetID: "ds_missing", want: 1},
		{name: "unknown action", action: "frobnicate", datasetID: "ds_1", want: 1},
		{name: "success", action: actions.ActionCreateAIEvents, datasetID: "ds_1", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, srv.URL)
			cfg.Store.Type = config.StoreMemory
			cfg.Invocation.DatasetID = tt.datasetID

			if got := RunAction(context.Background(), cfg, tt.action, WithLogger(discardLogger())); got != tt.want {
				t.Errorf("RunAction() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(config.LogConfig{Level: "debug", Format: "text"}, &buf).Debug("hello", slog.String("k", "v"))
	if !strings.Contains(buf.String(), "msg=hello k=v") {
		t.Errorf("text output = %q", buf.String())
	}

	buf.Reset()
	NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf).Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	NewLogger(config.LogConfig{Format: "json"}, &buf).Info("kept")
	if !strings.Contains(buf.String(), `"msg":"kept"`) {
		t.Errorf("json output = %q", buf.String())
	}
}
