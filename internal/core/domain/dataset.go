package domain

import "time"

// Dataset is a recording collection hosted by the platform.
type Dataset struct {
	DatasetID   string            `json:"dataset_id"`
	OrgID       string            `json:"org_id,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	Labels      map[string]string `json:"-"`
}

// File is a single recording inside a dataset.
type File struct {
	FileID       string `json:"file_id"`
	DatasetID    string `json:"association_id,omitempty"`
	RelativePath string `json:"relative_path"`
	Size         int64  `json:"size,omitempty"`

	// LocalPath is set when the file has been downloaded into the action workspace.
	LocalPath string `json:"-"`
}

// FileIDs returns the ids of files in order.
func FileIDs(files []File) []string {
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.FileID)
	}
	return ids
}

// CreateEventRequest carries everything the store needs to create an event.
type CreateEventRequest struct {
	Name           string         `json:"name"`
	StartTime      int64          `json:"start_time"`
	EndTime        int64          `json:"end_time"`
	Description    string         `json:"description,omitempty"`
	DatasetIDs     []string       `json:"dataset_ids,omitempty"`
	MessagePathIDs []string       `json:"message_path_ids,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	DisplayOptions DisplayOptions `json:"display_options"`
}

// DisplayOptions are rendering hints for an event.
type DisplayOptions struct {
	Color string `json:"color,omitempty"`
}

// Event is an event as stored by the platform.
type Event struct {
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	StartTime int64     `json:"start_time"`
	EndTime   int64     `json:"end_time"`
	CreatedAt time.Time `json:"created,omitempty"`
}
