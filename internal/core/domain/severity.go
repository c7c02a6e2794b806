package domain

import "strconv"

// Severity grades the operational impact of an event, from 1 (minor anomaly)
// to 5 (critical failure).
type Severity int

const (
	SeverityMinorAnomaly       Severity = 1
	SeverityNotableDeviation   Severity = 2
	SeverityRecoverableFailure Severity = 3
	SeverityOperationFailed    Severity = 4
	SeverityCritical           Severity = 5
)

// DefaultSeverityColor is used for severities outside the known range.
const DefaultSeverityColor = "#808080"

// Valid reports whether s is within [1,5].
func (s Severity) Valid() bool {
	return s >= SeverityMinorAnomaly && s <= SeverityCritical
}

// Color returns the display color for events of this severity.
func (s Severity) Color() string {
	switch s {
	case SeverityMinorAnomaly:
		return "#90EE90" // light green
	case SeverityNotableDeviation:
		return "#FFD700" // gold
	case SeverityRecoverableFailure:
		return "#FFA500" // orange
	case SeverityOperationFailed:
		return "#FF6347" // tomato
	case SeverityCritical:
		return "#DC143C" // crimson
	default:
		return DefaultSeverityColor
	}
}

// Tag returns the severity tag, e.g. "severity-3".
func (s Severity) Tag() string {
	return "severity-" + strconv.Itoa(int(s))
}

// Tags applied to every event created from an AI-generated descriptor.
const (
	TagAIGenerated  = "ai-generated"
	TagActionSource = "create-ai-events-action"
)

// Tags returns the full tag list for an event of this severity.
func (s Severity) Tags() []string {
	return []string{s.Tag(), TagAIGenerated, TagActionSource}
}

func (s Severity) String() string {
	switch s {
	case SeverityMinorAnomaly:
		return "minor_anomaly"
	case SeverityNotableDeviation:
		return "notable_deviation"
	case SeverityRecoverableFailure:
		return "recoverable_failure"
	case SeverityOperationFailed:
		return "operation_failed"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}
