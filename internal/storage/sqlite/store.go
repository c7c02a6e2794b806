// Package sqlite is the SQLite backend for the run ledger and the offline
// event sink.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/storage"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			dataset_id TEXT NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			attempted INTEGER NOT NULL DEFAULT 0,
			created INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			run_id TEXT NOT NULL,
			number INTEGER NOT NULL,
			transcript_tokens INTEGER NOT NULL DEFAULT 0,
			transcript TEXT,
			error TEXT,
			PRIMARY KEY (run_id, number),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			name TEXT NOT NULL,
			event_id TEXT,
			error TEXT,
			PRIMARY KEY (run_id, idx),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			dataset_id TEXT NOT NULL,
			name TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			request TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS datasets (
			dataset_id TEXT PRIMARY KEY,
			summary TEXT,
			tags TEXT,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_dataset ON events(dataset_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// StartRun inserts a run, assigning an id and start time when missing.
func (s *Store) StartRun(ctx context.Context, run *storage.RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = storage.RunStatusRunning
	}

	query := `INSERT INTO runs (id, action, dataset_id, status, attempts, attempted, created, error, started_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Action, run.DatasetID, string(run.Status),
		run.Attempts, run.Attempted, run.Created, nullString(run.Error), run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun records the terminal state of a run.
func (s *Store) FinishRun(ctx context.Context, run *storage.RunRecord) error {
	if run.EndedAt.IsZero() {
		run.EndedAt = time.Now().UTC()
	}

	query := `UPDATE runs SET status = ?, attempts = ?, attempted = ?, created = ?, error = ?, ended_at = ?
	          WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query,
		string(run.Status), run.Attempts, run.Attempted, run.Created, nullString(run.Error), run.EndedAt, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, storage.ErrNotFound)
	}
	return nil
}

// RecordAttempt stores one retry attempt.
func (s *Store) RecordAttempt(ctx context.Context, attempt *storage.AttemptRecord) error {
	query := `INSERT INTO attempts (run_id, number, transcript_tokens, transcript, error)
	          VALUES (?, ?, ?, ?, ?)
	          ON CONFLICT(run_id, number) DO UPDATE SET
	            transcript_tokens = excluded.transcript_tokens,
	            transcript = excluded.transcript,
	            error = excluded.error`

	_, err := s.db.ExecContext(ctx, query,
		attempt.RunID, attempt.Number, attempt.TranscriptTokens, attempt.Transcript, nullString(attempt.Error))
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// RecordOutcome stores the result of one descriptor.
func (s *Store) RecordOutcome(ctx context.Context, outcome *storage.OutcomeRecord) error {
	query := `INSERT INTO outcomes (run_id, idx, name, event_id, error)
	          VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		outcome.RunID, outcome.Index, outcome.Name, nullString(outcome.EventID), nullString(outcome.Error))
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// GetRun returns a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*storage.RunRecord, error) {
	query := `SELECT id, action, dataset_id, status, attempts, attempted, created, error, started_at, ended_at
	          FROM runs WHERE id = ?`

	var (
		run     storage.RunRecord
		status  string
		errText sql.NullString
		endedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Action, &run.DatasetID, &status,
		&run.Attempts, &run.Attempted, &run.Created, &errText, &run.StartedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Status = storage.RunStatus(status)
	run.Error = errText.String
	if endedAt.Valid {
		run.EndedAt = endedAt.Time
	}
	return &run, nil
}

// ListAttempts returns the attempts of a run in order.
func (s *Store) ListAttempts(ctx context.Context, runID string) ([]*storage.AttemptRecord, error) {
	query := `SELECT run_id, number, transcript_tokens, transcript, error
	          FROM attempts WHERE run_id = ? ORDER BY number ASC`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*storage.AttemptRecord
	for rows.Next() {
		var (
			a          storage.AttemptRecord
			transcript sql.NullString
			errText    sql.NullString
		)
		if err := rows.Scan(&a.RunID, &a.Number, &a.TranscriptTokens, &transcript, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Transcript = transcript.String
		a.Error = errText.String
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// ListOutcomes returns the outcomes of a run in batch order.
func (s *Store) ListOutcomes(ctx context.Context, runID string) ([]*storage.OutcomeRecord, error) {
	query := `SELECT run_id, idx, name, event_id, error
	          FROM outcomes WHERE run_id = ? ORDER BY idx ASC`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*storage.OutcomeRecord
	for rows.Next() {
		var (
			o       storage.OutcomeRecord
			eventID sql.NullString
			errText sql.NullString
		)
		if err := rows.Scan(&o.RunID, &o.Index, &o.Name, &eventID, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.EventID = eventID.String
		o.Error = errText.String
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}

// CreateEvent stores an event for every dataset it names.
func (s *Store) CreateEvent(ctx context.Context, req *domain.CreateEventRequest) (*domain.Event, error) {
	if len(req.DatasetIDs) == 0 {
		return nil, domain.ErrNoDataset
	}

	request, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	stored := &storage.StoredEvent{
		ID:        "ev_" + uuid.NewString(),
		Request:   *req,
		CreatedAt: time.Now().UTC(),
	}

	query := `INSERT INTO events (id, dataset_id, name, start_time, end_time, request, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		stored.ID, req.DatasetIDs[0], req.Name, req.StartTime, req.EndTime, string(request), stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return stored.Event(), nil
}

// ListEvents returns the events of a dataset ordered by start time.
func (s *Store) ListEvents(ctx context.Context, datasetID string) ([]*storage.StoredEvent, error) {
	query := `SELECT id, request, created_at FROM events
	          WHERE dataset_id = ? ORDER BY start_time ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*storage.StoredEvent
	for rows.Next() {
		var (
			ev      storage.StoredEvent
			request string
		)
		if err := rows.Scan(&ev.ID, &request, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(request), &ev.Request); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event %s: %w", ev.ID, err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// SetDatasetSummary replaces the stored summary of a dataset.
func (s *Store) SetDatasetSummary(ctx context.Context, datasetID, summary string) error {
	query := `INSERT INTO datasets (dataset_id, summary, updated_at) VALUES (?, ?, ?)
	          ON CONFLICT(dataset_id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, datasetID, summary, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}
	return nil
}

// PutDatasetTags adds tags to a dataset, keeping existing ones.
func (s *Store) PutDatasetTags(ctx context.Context, datasetID string, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := queryTags(ctx, tx, datasetID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	data, err := json.Marshal(storage.MergeTags(existing, tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `INSERT INTO datasets (dataset_id, tags, updated_at) VALUES (?, ?, ?)
	          ON CONFLICT(dataset_id) DO UPDATE SET tags = excluded.tags, updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, query, datasetID, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to put tags: %w", err)
	}

	return tx.Commit()
}

// GetDatasetSummary returns the stored summary of a dataset.
func (s *Store) GetDatasetSummary(ctx context.Context, datasetID string) (string, error) {
	var summary sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM datasets WHERE dataset_id = ?`, datasetID).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !summary.Valid) {
		return "", fmt.Errorf("summary for dataset %s: %w", datasetID, storage.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get summary: %w", err)
	}
	return summary.String, nil
}

// ListDatasetTags returns the stored tags of a dataset.
func (s *Store) ListDatasetTags(ctx context.Context, datasetID string) ([]string, error) {
	return queryTags(ctx, s.db, datasetID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryTags(ctx context.Context, q queryer, datasetID string) ([]string, error) {
	var data sql.NullString
	err := q.QueryRowContext(ctx, `SELECT tags FROM datasets WHERE dataset_id = ?`, datasetID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tags for dataset %s: %w", datasetID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	if !data.Valid || data.String == "" {
		return []string{}, nil
	}

	var tags []string
	if err := json.Unmarshal([]byte(data.String), &tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	return tags, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
