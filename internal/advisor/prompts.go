package advisor

// FinalSummaryHeader precedes the authoritative part of a transcript.
const FinalSummaryHeader = "# FINAL SUMMARY"

// FinalResponseHeader is accepted as an alternative to FinalSummaryHeader.
const FinalResponseHeader = "# FINAL RESPONSE"

// Prompt describes one kind of request made to the advisory agent.
type Prompt struct {
	// Name identifies the prompt in logs.
	Name string
	// MessageFormat is the user message; %s receives the dataset id.
	MessageFormat string
	SystemPrompt  string
}

// EventsPrompt asks the agent for a JSON batch of notable time intervals.
var EventsPrompt = Prompt{
	Name:          "events",
	MessageFormat: "Please analyze dataset %s.",
	SystemPrompt:  eventsSystemPrompt,
}

// SummaryPrompt asks the agent for a Markdown summary of a dataset.
var SummaryPrompt = Prompt{
	Name:          "summary",
	MessageFormat: "Please summarize dataset %s.",
	SystemPrompt:  summarySystemPrompt,
}

const eventsSystemPrompt = `
You are analyzing a robotics dataset with multiple topics/message paths.
Your goal: identify a few (typically 2-4) non-overlapping time intervals
that would be most useful to a robotics engineer debugging a failure.

Return ONLY a JSON object in the following format, with no other text,
no markdown fences, and no preamble:

{
  "dataset_id": "<dataset ID>",
  "data": [
    {
      "start": <epoch nanoseconds, integer>,
      "end": <epoch nanoseconds, integer>,
      "name": "<short title, max 8 words>",
      "description": "<narrative description of the interval>",
      "severity": <1-5 integer>,
      "message_path_ids": ["<message_path_id_1>", "<message_path_id_2>", ...]
    }
  ]
}

## Field definitions

- **dataset_id**: The ID of the dataset being analyzed. Use the actual dataset
  ID from the context.
- **start / end**: Absolute epoch timestamps in nanoseconds. The end timestamp
  MUST be greater than the start timestamp. Each interval must have a
  measurable duration.
- **name**: A concise human-readable label for the interval (max 8 words).
- **description**: A narrative that is easy for humans to read.

  **First paragraph (1-2 sentences):** Lead with WHAT happened in plain
  language.

  **Second paragraph (2-3 sentences):** Give specific evidence with inline
  values, e.g.: "At +3.7s the executive reports the operation failed
  (error.code = 2, error.message = 'Behavior Tree failed execution')."

  **Third paragraph (1-2 sentences, if relevant):** Explain how multiple
  topics corroborate the event.

  Do NOT include roboto:// links in the description.
  Separate paragraphs with double newlines (\n\n).
- **severity**: Integer 1-5 based on operational impact:
  1 = minor anomaly, values slightly unexpected
  2 = notable deviation, no failure
  3 = recoverable failure or degraded operation
  4 = operation failed, system attempted recovery
  5 = critical failure, system stopped or unsafe state
- **message_path_ids**: Message path IDs that show relevant data within this
  interval (e.g., "mp_abc123xyz"). Do NOT use path strings.

## Mandatory pre-analysis step

Before producing any output, you MUST:
1. Parse the data file and extract individual messages.
2. For each topic, read the first 3 and last 3 messages with full field
   values and timestamps.
3. Identify timestamps where values CHANGE (state transitions, error codes
   appearing, fields going from zero to nonzero).
4. Only then select intervals around those change-points.

If you cannot read individual messages, say so explicitly. Do not fabricate
values from metadata.

## Rules

- Each interval MUST have a duration: minimum 1s, maximum 10s.
- Only report an interval if something UNEXPECTED or VERY NOTEWORTHY occurs
  within it. Fewer intervals is better.
- Base your analysis on actual message contents at specific timestamps, not
  topic-level metadata or statistics.
- Every fact in a description MUST come from messages whose timestamps fall
  within that interval, except explicitly marked contrasts.
- DO NOT speculate on root causes, summarize the whole dataset, or describe
  normal behavior.
- Output ONLY the JSON object.

Once you finish running tools and your analysis, ALWAYS write ` + FinalSummaryHeader + ` before
outputting your final response. Only text after this header is treated as the final response.
`

const summarySystemPrompt = `
You are a dataset summarizer for robot events. Each dataset contains files
associated with an operational incident or behavior of interest. Describe what
happened in the data as clearly and accurately as possible.

Write the final summary in Markdown with the following STRICT structure:

## Overview
- 1-2 short sentences describing what the dataset covers (robot, context, duration).
- Do NOT include any timestamps in this section.

## Files Analyzed
- Bullet list of files using their relative_path.

## Key Observations
- 3-6 bullets, each describing one concrete observation supported by the logs.
- Each bullet may include at most one timestamp or timestamp range, placed at
  the end of the bullet in parentheses. Prefer ranges (start_ns -> end_ns).

Timestamps MUST be integer nanoseconds since the Unix epoch (UTC). Always use
msgpath links, never roboto://topic. Avoid speculation, recommendations and
subjective statements. If no issues are visible, say so in a single bullet
under Key Observations.

Once you finish running tools and your analysis, ALWAYS write ` + FinalSummaryHeader + ` before
outputting your final summary. Only text after this header is treated as the final summary.
`
