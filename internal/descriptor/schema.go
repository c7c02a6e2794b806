// Package descriptor validates the generic structure decoded from an advisory
// transcript and materializes it into a domain.ResponseBatch.
//
// Validation collects every violation it finds instead of stopping at the
// first, so one failed attempt reports all problems at once.
package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
)

// SchemaError lists every field and cross-record violation found in a batch.
type SchemaError struct {
	Reasons []string
}

func (e *SchemaError) Error() string {
	if len(e.Reasons) == 1 {
		return "schema validation failed: " + e.Reasons[0]
	}
	return "schema validation failed:\n  - " + strings.Join(e.Reasons, "\n  - ")
}

// IsSchemaError reports whether err wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

type collector struct {
	reasons []string
}

func (c *collector) addf(format string, args ...any) {
	c.reasons = append(c.reasons, fmt.Sprintf(format, args...))
}

func (c *collector) err() error {
	if len(c.reasons) == 0 {
		return nil
	}
	return &SchemaError{Reasons: c.reasons}
}

// Validate checks raw against the event batch schema. raw is the tree produced
// by decoding JSON into `any` (objects as map[string]any, numbers preferably
// as json.Number).
func Validate(raw any) (*domain.ResponseBatch, error) {
	c := &collector{}

	root, ok := raw.(map[string]any)
	if !ok {
		c.addf("root: expected object, got %s", typeName(raw))
		return nil, c.err()
	}

	batch := &domain.ResponseBatch{}

	switch v := root["dataset_id"].(type) {
	case nil:
		c.addf("dataset_id: field required")
	case string:
		if strings.TrimSpace(v) == "" {
			c.addf("dataset_id: must be a non-empty string")
		}
		batch.DatasetID = v
	default:
		c.addf("dataset_id: expected string, got %s", typeName(v))
	}

	rawData, present := root["data"]
	items, isList := rawData.([]any)
	switch {
	case !present || rawData == nil:
		c.addf("data: field required")
	case !isList:
		c.addf("data: expected list, got %s", typeName(rawData))
	}

	// Only descriptors whose fields are individually valid take part in the
	// cross-record checks.
	valid := make([]domain.EventDescriptor, 0, len(items))
	for i, item := range items {
		if d, ok := validateDescriptor(c, i, item); ok {
			valid = append(valid, d)
		}
	}

	checkDurations(c, valid)

	if err := c.err(); err != nil {
		return nil, err
	}

	batch.Descriptors = valid
	return batch, nil
}

func validateDescriptor(c *collector, i int, item any) (domain.EventDescriptor, bool) {
	var d domain.EventDescriptor
	before := len(c.reasons)
	prefix := fmt.Sprintf("data[%d]", i)

	obj, ok := item.(map[string]any)
	if !ok {
		c.addf("%s: expected object, got %s", prefix, typeName(item))
		return d, false
	}

	start, startOK := timestampField(c, prefix, "start", obj)
	end, endOK := timestampField(c, prefix, "end", obj)
	if startOK && endOK && end <= start {
		c.addf("%s.end: end timestamp (%d) must be > start timestamp (%d); events must have a duration", prefix, end, start)
	}
	d.Start, d.End = start, end

	if name, ok := stringField(c, prefix, "name", obj); ok {
		if n := utf8.RuneCountInString(name); n > domain.MaxNameLength {
			c.addf("%s.name: must be at most %d characters, got %d", prefix, domain.MaxNameLength, n)
		}
		d.Name = name
	}

	if desc, ok := stringField(c, prefix, "description", obj); ok {
		d.Description = desc
	}

	if sev, ok := integerField(c, prefix, "severity", obj); ok {
		if !domain.Severity(sev).Valid() {
			c.addf("%s.severity: must be between 1 and 5, got %d", prefix, sev)
		}
		d.Severity = domain.Severity(sev)
	}

	d.MessagePathIDs = messagePathIDs(c, prefix, obj)

	return d, len(c.reasons) == before
}

func messagePathIDs(c *collector, prefix string, obj map[string]any) []string {
	raw, present := obj["message_path_ids"]
	if !present || raw == nil {
		c.addf("%s.message_path_ids: field required", prefix)
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		c.addf("%s.message_path_ids: expected list, got %s", prefix, typeName(raw))
		return nil
	}
	if len(list) == 0 {
		c.addf("%s.message_path_ids: must contain at least one message path id", prefix)
		return nil
	}
	ids := make([]string, 0, len(list))
	for j, v := range list {
		s, ok := v.(string)
		if !ok {
			c.addf("%s.message_path_ids[%d]: expected string, got %s", prefix, j, typeName(v))
			continue
		}
		if strings.TrimSpace(s) == "" {
			c.addf("%s.message_path_ids[%d]: message path ids cannot be empty", prefix, j)
			continue
		}
		ids = append(ids, s)
	}
	return ids
}

func checkDurations(c *collector, descriptors []domain.EventDescriptor) {
	if len(descriptors) == 0 {
		return
	}

	sorted := make([]domain.EventDescriptor, len(descriptors))
	copy(sorted, descriptors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	for _, d := range sorted {
		secs := d.DurationSeconds()
		switch {
		case secs > domain.MaxDurationSeconds:
			c.addf("event %q has suspiciously long duration (%.2fs); timestamps may be corrupted (start=%d, end=%d)",
				d.Name, secs, d.Start, d.End)
		case secs < domain.MinDurationSeconds:
			c.addf("event %q has near-zero duration (%.6fs); events must have measurable duration",
				d.Name, secs)
		}
	}
}

func timestampField(c *collector, prefix, key string, obj map[string]any) (int64, bool) {
	v, ok := integerField(c, prefix, key, obj)
	if !ok {
		return 0, false
	}
	if v < 0 {
		c.addf("%s.%s: timestamp must be non-negative, got %d", prefix, key, v)
		return v, false
	}
	return v, true
}

func stringField(c *collector, prefix, key string, obj map[string]any) (string, bool) {
	raw, present := obj[key]
	if !present || raw == nil {
		c.addf("%s.%s: field required", prefix, key)
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		c.addf("%s.%s: expected string, got %s", prefix, key, typeName(raw))
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		c.addf("%s.%s: must not be empty", prefix, key)
		return s, false
	}
	return s, true
}

func integerField(c *collector, prefix, key string, obj map[string]any) (int64, bool) {
	raw, present := obj[key]
	if !present || raw == nil {
		c.addf("%s.%s: field required", prefix, key)
		return 0, false
	}
	v, err := AsInt64(raw)
	if err != nil {
		c.addf("%s.%s: %v", prefix, key, err)
		return 0, false
	}
	return v, true
}

// AsInt64 converts a decoded JSON number to int64. Fractional values, values
// that overflow int64 and non-numbers are rejected.
func AsInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		s := n.String()
		if !IsIntegerLiteral(s) {
			return 0, fmt.Errorf("expected integer, got %s", s)
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("integer %s out of range", s)
		}
		return i, nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %s", typeName(v))
	}
}

// IsIntegerLiteral reports whether s is an optionally signed run of decimal digits.
func IsIntegerLiteral(s string) bool {
	if strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64, int, int64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
