// Package persist writes validated event batches to an event store.
package persist

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/ports"
)

var errNoEvent = errors.New("store returned no event")

// OutcomeObserver is told about every descriptor after its store call.
type OutcomeObserver func(ctx context.Context, outcome domain.PersistenceOutcome)

// Option configures a Persister.
type Option func(*Persister)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Persister) {
		p.logger = logger
	}
}

// WithOutcomeObserver registers a callback invoked after each descriptor.
func WithOutcomeObserver(fn OutcomeObserver) Option {
	return func(p *Persister) {
		p.observer = fn
	}
}

// Persister creates one event per descriptor. A failed descriptor never stops
// the rest of the batch, and events already created are never rolled back.
type Persister struct {
	store    ports.EventStore
	logger   *slog.Logger
	observer OutcomeObserver
	tracer   trace.Tracer
}

// New creates a Persister writing to store.
func New(store ports.EventStore, opts ...Option) *Persister {
	p := &Persister{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("github.com/tjfontaine/roboto-ai-actions/internal/persist"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Persist creates events for every descriptor of batch, associated with
// datasetID, and returns one outcome per descriptor in batch order. In dry-run
// mode the store is not called and the result is empty.
func (p *Persister) Persist(ctx context.Context, batch *domain.ResponseBatch, datasetID string, dryRun bool) []domain.PersistenceOutcome {
	if dryRun || batch.Len() == 0 {
		return []domain.PersistenceOutcome{}
	}

	ctx, span := p.tracer.Start(ctx, "persist.Persist", trace.WithAttributes(
		attribute.String("dataset.id", datasetID),
		attribute.Int("events", batch.Len()),
	))
	defer span.End()

	total := batch.Len()
	outcomes := make([]domain.PersistenceOutcome, 0, total)
	for i, d := range batch.Descriptors {
		outcome := p.persistOne(ctx, i+1, total, d, datasetID)
		outcomes = append(outcomes, outcome)
		if p.observer != nil {
			p.observer(ctx, outcome)
		}
	}

	summary := domain.Summarize(outcomes)
	span.SetAttributes(
		attribute.Int("events.created", summary.Created),
		attribute.Int("events.failed", summary.Failed),
	)
	p.logger.Info("created events",
		slog.String("dataset_id", datasetID),
		slog.Int("created", summary.Created),
		slog.Int("attempted", summary.Attempted),
	)
	return outcomes
}

func (p *Persister) persistOne(ctx context.Context, index, total int, d domain.EventDescriptor, datasetID string) domain.PersistenceOutcome {
	ctx, span := p.tracer.Start(ctx, "persist.CreateEvent", trace.WithAttributes(
		attribute.Int("event.index", index),
		attribute.Int("event.severity", int(d.Severity)),
	))
	defer span.End()

	outcome := domain.PersistenceOutcome{Index: index, Name: d.Name}

	p.logger.Info("creating event",
		slog.String("name", d.Name),
		slog.Int("severity", int(d.Severity)),
		slog.Int64("start", d.Start),
		slog.Int64("end", d.End),
		slog.Int("message_paths", len(d.MessagePathIDs)),
	)

	event, err := p.store.CreateEvent(ctx, NewCreateEventRequest(d, datasetID))
	if err == nil && event == nil {
		err = errNoEvent
	}
	if err != nil {
		outcome.Err = &domain.PersistenceError{Index: index, Name: d.Name, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create event failed")
		p.logger.Error("failed to create event",
			slog.Int("index", index),
			slog.Int("total", total),
			slog.String("name", d.Name),
			slog.String("error", err.Error()),
		)
		return outcome
	}

	outcome.EventID = event.EventID
	p.logger.Info("created event",
		slog.String("event_id", event.EventID),
		slog.String("name", d.Name),
	)
	return outcome
}

// NewCreateEventRequest maps a descriptor to a store request, deriving the
// display color, tags and metadata from its severity.
func NewCreateEventRequest(d domain.EventDescriptor, datasetID string) *domain.CreateEventRequest {
	return &domain.CreateEventRequest{
		Name:           d.Name,
		StartTime:      d.Start,
		EndTime:        d.End,
		Description:    d.Description,
		DatasetIDs:     []string{datasetID},
		MessagePathIDs: d.MessagePathIDs,
		Metadata:       d.Metadata(),
		Tags:           d.Severity.Tags(),
		DisplayOptions: domain.DisplayOptions{Color: d.Severity.Color()},
	}
}
