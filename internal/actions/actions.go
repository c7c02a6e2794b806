// Package actions implements the dataset actions: AI event creation, AI
// dataset summaries and keyword tagging.
package actions

import (
	"log/slog"
	"strings"

	"github.com/tjfontaine/roboto-ai-actions/internal/advisor"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/ports"
	"github.com/tjfontaine/roboto-ai-actions/internal/extract"
	"github.com/tjfontaine/roboto-ai-actions/internal/orchestrator"
	"github.com/tjfontaine/roboto-ai-actions/internal/persist"
	"github.com/tjfontaine/roboto-ai-actions/internal/tokens"
)

// Action names, as recorded in the ledger.
const (
	ActionCreateAIEvents  = "create-ai-events"
	ActionCreateAISummary = "create-ai-summary"
	ActionTagDataset      = "tag-dataset"
)

// DefaultKeyword is searched for by TagDataset when no keyword parameter is given.
const DefaultKeyword = "ERROR"

// unspecifiedDatasetID is what the platform passes when an invocation is not
// bound to a dataset.
const unspecifiedDatasetID = "unspecified"

// Invocation is the input of one action run.
type Invocation struct {
	// DatasetID is the dataset the action was triggered on, if any.
	DatasetID string
	// InputFiles are the files handed to the action, possibly downloaded.
	InputFiles []domain.File
	// InputDir holds downloaded inputs when InputFiles carry no local paths.
	InputDir   string
	DryRun     bool
	Parameters map[string]string
}

// Parameter returns a named parameter or def when unset or blank.
func (inv Invocation) Parameter(name, def string) string {
	for k, v := range inv.Parameters {
		if strings.EqualFold(k, name) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return def
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLedger records every run, attempt and outcome.
func WithLedger(ledger ports.Ledger) Option {
	return func(s *Service) {
		s.ledger = ledger
	}
}

// WithMaxAttempts bounds the advisory retry loop.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		s.maxAttempts = n
	}
}

// WithExtractor replaces the default extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(s *Service) {
		s.extractor = e
	}
}

// WithTokenCounter measures transcripts recorded in the ledger.
func WithTokenCounter(c *tokens.Counter) Option {
	return func(s *Service) {
		s.counter = c
	}
}

// Service runs the actions against a catalog, an advisory agent and the
// stores that receive their results.
type Service struct {
	catalog ports.Catalog
	advisor *advisor.Advisor
	events  ports.EventStore
	writer  ports.DatasetWriter

	ledger      ports.Ledger
	extractor   *extract.Extractor
	counter     *tokens.Counter
	maxAttempts int
	logger      *slog.Logger

	orchestrator *orchestrator.Orchestrator
	persister    *persist.Persister
}

// New creates a Service.
func New(catalog ports.Catalog, adv *advisor.Advisor, events ports.EventStore, writer ports.DatasetWriter, opts ...Option) *Service {
	s := &Service{
		catalog:     catalog,
		advisor:     adv,
		events:      events,
		writer:      writer,
		maxAttempts: orchestrator.DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.counter == nil {
		s.counter = tokens.NewCounter("")
	}
	if s.extractor == nil {
		s.extractor = extract.New(extract.WithLogger(s.logger))
	}

	s.orchestrator = orchestrator.New(
		orchestrator.WithMaxAttempts(s.maxAttempts),
		orchestrator.WithExtractor(s.extractor),
		orchestrator.WithLogger(s.logger),
		orchestrator.WithAttemptObserver(s.observeAttempt),
	)
	s.persister = persist.New(events,
		persist.WithLogger(s.logger),
		persist.WithOutcomeObserver(s.observeOutcome),
	)
	return s
}

// OutcomeReport is the JSON view of one persistence outcome.
type OutcomeReport struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	EventID string `json:"event_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newOutcomeReports(outcomes []domain.PersistenceOutcome) []OutcomeReport {
	reports := make([]OutcomeReport, 0, len(outcomes))
	for _, o := range outcomes {
		r := OutcomeReport{Index: o.Index, Name: o.Name, EventID: o.EventID}
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
		reports = append(reports, r)
	}
	return reports
}

// EventsReport is the result of CreateAIEvents.
type EventsReport struct {
	RunID     string                `json:"run_id,omitempty"`
	DatasetID string                `json:"dataset_id"`
	DryRun    bool                  `json:"dry_run"`
	Files     int                   `json:"files"`
	Attempts  int                   `json:"attempts"`
	Batch     *domain.ResponseBatch `json:"batch,omitempty"`
	Outcomes  []OutcomeReport       `json:"outcomes"`
	Summary   domain.OutcomeSummary `json:"summary"`
}

// SummaryReport is the result of CreateAISummary.
type SummaryReport struct {
	RunID     string `json:"run_id,omitempty"`
	DatasetID string `json:"dataset_id"`
	DryRun    bool   `json:"dry_run"`
	Files     int    `json:"files"`
	Summary   string `json:"summary"`
	Written   bool   `json:"written"`
}

// TagReport is the result of TagDataset.
type TagReport struct {
	RunID     string `json:"run_id,omitempty"`
	DatasetID string `json:"dataset_id"`
	DryRun    bool   `json:"dry_run"`
	Keyword   string `json:"keyword"`
	Found     bool   `json:"found"`
	File      string `json:"file,omitempty"`
	Tagged    bool   `json:"tagged"`
}
