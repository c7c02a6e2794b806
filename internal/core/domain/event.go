// Package domain provides the canonical types shared by the actions: event
// descriptors proposed by the advisory agent, the batches they arrive in, and
// the per-descriptor results of persisting them.
package domain

import "strconv"

// MaxNameLength bounds EventDescriptor.Name, counted in characters.
const MaxNameLength = 100

// Duration bounds outside of which a batch is treated as carrying corrupted
// timestamps. The 1-10s window requested from the agent is guidance only.
const (
	MinDurationSeconds = 0.001
	MaxDurationSeconds = 1000.0
)

// EventDescriptor is one proposed time interval.
type EventDescriptor struct {
	// Start and End are absolute epoch timestamps in nanoseconds.
	Start int64 `json:"start"`
	End   int64 `json:"end"`

	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`

	// MessagePathIDs lists the message paths that show relevant data for the interval.
	MessagePathIDs []string `json:"message_path_ids"`
}

// DurationNS returns End - Start.
func (d EventDescriptor) DurationNS() int64 {
	return d.End - d.Start
}

// DurationSeconds returns the interval length in seconds.
func (d EventDescriptor) DurationSeconds() float64 {
	return float64(d.DurationNS()) / 1e9
}

// Metadata returns the metadata attached to the created event.
func (d EventDescriptor) Metadata() map[string]any {
	return map[string]any{
		"severity":     int(d.Severity),
		"ai_generated": true,
	}
}

// ResponseBatch is the validated root object extracted from one transcript.
type ResponseBatch struct {
	DatasetID   string            `json:"dataset_id"`
	Descriptors []EventDescriptor `json:"data"`
}

// Len returns the number of descriptors in the batch.
func (b *ResponseBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Descriptors)
}

// PersistenceOutcome is the result of persisting a single descriptor.
// Exactly one of EventID and Err is set.
type PersistenceOutcome struct {
	// Index is the 1-based position of the descriptor in its batch.
	Index   int
	Name    string
	EventID string
	Err     error
}

// Succeeded reports whether the descriptor was stored.
func (o PersistenceOutcome) Succeeded() bool {
	return o.Err == nil
}

// OutcomeSummary counts the results of one persist call.
type OutcomeSummary struct {
	Attempted int `json:"attempted"`
	Created   int `json:"created"`
	Failed    int `json:"failed"`
}

// String renders the summary as "created/attempted".
func (s OutcomeSummary) String() string {
	return strconv.Itoa(s.Created) + "/" + strconv.Itoa(s.Attempted)
}

// Summarize counts created and failed outcomes.
func Summarize(outcomes []PersistenceOutcome) OutcomeSummary {
	s := OutcomeSummary{Attempted: len(outcomes)}
	for _, o := range outcomes {
		if o.Succeeded() {
			s.Created++
		} else {
			s.Failed++
		}
	}
	return s
}

// RetryAttempt describes one pass of the retry loop. It is handed to an
// attempt observer and not retained.
type RetryAttempt struct {
	Number     int
	Transcript string
	Err        error
}

// Failed reports whether the attempt did not produce a batch.
func (a RetryAttempt) Failed() bool {
	return a.Err != nil
}
