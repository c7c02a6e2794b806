// Package orchestrator drives the request/extract retry loop that turns an
// advisory session into a validated event batch.
//
// Each attempt requests a fresh transcript; a failed transcript is never
// repaired or reused. Only extraction failures and empty transcripts are
// retried. Anything else returned by the transcript source ends the run
// immediately.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/extract"
)

// DefaultMaxAttempts is used when no attempt budget is configured.
const DefaultMaxAttempts = 3

// TranscriptSource produces a new advisory transcript for a dataset on every call.
type TranscriptSource interface {
	Transcript(ctx context.Context, datasetID string) (string, error)
}

// TranscriptSourceFunc adapts a function to TranscriptSource.
type TranscriptSourceFunc func(ctx context.Context, datasetID string) (string, error)

// Transcript calls f.
func (f TranscriptSourceFunc) Transcript(ctx context.Context, datasetID string) (string, error) {
	return f(ctx, datasetID)
}

// AttemptObserver is told about every attempt, successful or not.
type AttemptObserver func(ctx context.Context, attempt domain.RetryAttempt)

// ExhaustedError is returned when every attempt produced an unusable transcript.
type ExhaustedError struct {
	Attempts       int
	LastTranscript string
	LastErr        error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no valid advisory response after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsExhausted reports whether err wraps an ExhaustedError.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxAttempts sets the attempt budget. Values below 1 mean a single attempt.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n < 1 {
			n = 1
		}
		o.maxAttempts = n
	}
}

// WithExtractor sets the extractor applied to each transcript.
func WithExtractor(e *extract.Extractor) Option {
	return func(o *Orchestrator) {
		o.extractor = e
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithAttemptObserver registers a callback invoked after each attempt.
func WithAttemptObserver(fn AttemptObserver) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// Orchestrator runs the attempt loop for one dataset at a time. It keeps no
// state between calls to Run.
type Orchestrator struct {
	maxAttempts int
	extractor   *extract.Extractor
	logger      *slog.Logger
	observer    AttemptObserver
	tracer      trace.Tracer
}

// New creates an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
		tracer:      otel.Tracer("github.com/tjfontaine/roboto-ai-actions/internal/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.extractor == nil {
		o.extractor = extract.New(extract.WithLogger(o.logger))
	}
	return o
}

// MaxAttempts returns the attempt budget.
func (o *Orchestrator) MaxAttempts() int {
	return o.maxAttempts
}

// Run requests transcripts from source until one yields a valid batch or the
// attempt budget is spent.
func (o *Orchestrator) Run(ctx context.Context, source TranscriptSource, datasetID string) (*domain.ResponseBatch, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Run", trace.WithAttributes(
		attribute.String("dataset.id", datasetID),
		attribute.Int("attempts.max", o.maxAttempts),
	))
	defer span.End()

	var last domain.RetryAttempt
	for n := 1; n <= o.maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		o.logger.Info("requesting advisory response",
			slog.String("dataset_id", datasetID),
			slog.Int("attempt", n),
			slog.Int("max_attempts", o.maxAttempts),
		)

		batch, attempt, err := o.attempt(ctx, source, datasetID, n)
		o.observe(ctx, attempt)
		span.AddEvent("attempt", trace.WithAttributes(
			attribute.Int("attempt", n),
			attribute.Bool("ok", err == nil),
		))

		if err == nil {
			o.logger.Info("parsed and validated advisory response",
				slog.String("dataset_id", datasetID),
				slog.Int("attempt", n),
				slog.Int("events", batch.Len()),
			)
			span.SetAttributes(attribute.Int("attempts.used", n))
			return batch, nil
		}

		if !retryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "transcript request failed")
			return nil, fmt.Errorf("request advisory response (attempt %d/%d): %w", n, o.maxAttempts, err)
		}

		last = attempt
		o.logger.Warn("advisory response rejected",
			slog.String("dataset_id", datasetID),
			slog.Int("attempt", n),
			slog.Int("max_attempts", o.maxAttempts),
			slog.String("error", err.Error()),
		)
	}

	o.logger.Error("all advisory attempts failed",
		slog.String("dataset_id", datasetID),
		slog.Int("attempts", o.maxAttempts),
		slog.String("last_response", last.Transcript),
	)
	exhausted := &ExhaustedError{
		Attempts:       o.maxAttempts,
		LastTranscript: last.Transcript,
		LastErr:        last.Err,
	}
	span.RecordError(exhausted)
	span.SetStatus(codes.Error, "attempts exhausted")
	return nil, exhausted
}

func (o *Orchestrator) attempt(ctx context.Context, source TranscriptSource, datasetID string, n int) (*domain.ResponseBatch, domain.RetryAttempt, error) {
	attempt := domain.RetryAttempt{Number: n}

	transcript, err := source.Transcript(ctx, datasetID)
	attempt.Transcript = transcript
	if err == nil && strings.TrimSpace(transcript) == "" {
		err = domain.ErrEmptyTranscript
	}
	if err != nil {
		attempt.Err = err
		return nil, attempt, err
	}

	batch, err := o.extractor.Extract(transcript)
	if err != nil {
		attempt.Err = err
		return nil, attempt, err
	}
	return batch, attempt, nil
}

func (o *Orchestrator) observe(ctx context.Context, attempt domain.RetryAttempt) {
	if o.observer != nil {
		o.observer(ctx, attempt)
	}
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrEmptyTranscript) || extract.IsExtractionError(err)
}
