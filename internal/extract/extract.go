// Package extract turns the raw text returned by the advisory agent into a
// validated event batch.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/descriptor"
)

// Kind classifies extraction failures.
type Kind string

const (
	// KindNotJSON means the payload could not be parsed.
	KindNotJSON Kind = "not_json"
	// KindSchemaInvalid means the payload parsed but violated the batch schema.
	KindSchemaInvalid Kind = "schema_invalid"
)

// ExtractionError is returned by Extract. Both kinds are retryable by the
// orchestrator.
type ExtractionError struct {
	Kind Kind
	// Offset is the byte offset of a syntax error within the unfenced payload, or -1.
	Offset int64
	Err    error
}

func (e *ExtractionError) Error() string {
	switch e.Kind {
	case KindNotJSON:
		if e.Offset >= 0 {
			return fmt.Sprintf("response is not valid JSON (offset %d): %v", e.Offset, e.Err)
		}
		return fmt.Sprintf("response is not valid JSON: %v", e.Err)
	default:
		return fmt.Sprintf("response failed validation: %v", e.Err)
	}
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Reasons returns the schema violations for a KindSchemaInvalid error.
func (e *ExtractionError) Reasons() []string {
	var se *descriptor.SchemaError
	if errors.As(e.Err, &se) {
		return se.Reasons
	}
	return nil
}

// IsExtractionError reports whether err wraps an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

// IsNotJSON reports whether err is an extraction failure of kind KindNotJSON.
func IsNotJSON(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Kind == KindNotJSON
}

// IsSchemaInvalid reports whether err is an extraction failure of kind KindSchemaInvalid.
func IsSchemaInvalid(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee) && ee.Kind == KindSchemaInvalid
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLenientJSON tolerates comments and trailing commas in the payload.
func WithLenientJSON(enabled bool) Option {
	return func(e *Extractor) {
		e.lenient = enabled
	}
}

// WithLogger sets the logger used to report unit corrections.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// Extractor parses, repairs and validates advisory payloads. The zero value
// is not usable; use New.
type Extractor struct {
	lenient bool
	logger  *slog.Logger
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs the default Extractor over raw.
func Extract(raw string) (*domain.ResponseBatch, error) {
	return New().Extract(raw)
}

// Extract strips an optional code fence, parses the payload, corrects
// picosecond timestamps and validates the result. It never returns a partial
// batch.
func (e *Extractor) Extract(raw string) (*domain.ResponseBatch, error) {
	payload := StripCodeFence(raw)

	tree, err := e.parse(payload)
	if err != nil {
		return nil, err
	}

	tree, corrected := CorrectTimestampUnits(tree)
	if corrected > 0 {
		e.logger.Warn("corrected picosecond timestamps in advisory response",
			slog.Int("events", corrected),
		)
	}

	batch, err := descriptor.Validate(tree)
	if err != nil {
		return nil, &ExtractionError{Kind: KindSchemaInvalid, Offset: -1, Err: err}
	}
	return batch, nil
}

func (e *Extractor) parse(payload string) (any, error) {
	data := []byte(payload)
	if e.lenient {
		data = jsonc.ToJSON(data)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, notJSON(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("extra data after JSON document")
		}
		return nil, &ExtractionError{Kind: KindNotJSON, Offset: dec.InputOffset(), Err: err}
	}
	return tree, nil
}

func notJSON(err error) *ExtractionError {
	offset := int64(-1)
	var se *json.SyntaxError
	if errors.As(err, &se) {
		offset = se.Offset
	}
	if errors.Is(err, io.EOF) {
		err = errors.New("empty payload")
	}
	return &ExtractionError{Kind: KindNotJSON, Offset: offset, Err: err}
}

const fence = "```"

// StripCodeFence trims raw and removes a surrounding markdown code block. The
// opening fence line may carry a language tag; the closing line is removed
// only when it is a bare fence.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, fence) {
		return s
	}

	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == fence {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}
