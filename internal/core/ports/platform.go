// Package ports defines the interfaces the actions need from the platform
// hosting the datasets and from local storage.
package ports

import (
	"context"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
)

// Catalog looks up datasets and the files they contain.
type Catalog interface {
	GetDataset(ctx context.Context, datasetID string) (*domain.Dataset, error)
	ListFiles(ctx context.Context, datasetID string) ([]domain.File, error)
}

// EventStore creates events. Implementations: platform API (default), SQLite, memory.
type EventStore interface {
	CreateEvent(ctx context.Context, req *domain.CreateEventRequest) (*domain.Event, error)
}

// DatasetWriter updates dataset-level annotations.
type DatasetWriter interface {
	SetDatasetSummary(ctx context.Context, datasetID, summary string) error
	PutDatasetTags(ctx context.Context, datasetID string, tags []string) error
}

// ChatStatus is the turn state of an advisory chat.
type ChatStatus string

const (
	// ChatStatusUserTurn means the agent finished and is waiting for the user.
	ChatStatusUserTurn ChatStatus = "user_turn"
	// ChatStatusAgentTurn means the agent is still working.
	ChatStatusAgentTurn ChatStatus = "roboto_turn"
	// ChatStatusFailed means the session ended with an error.
	ChatStatusFailed ChatStatus = "failed"
)

// LLMContext scopes what the agent may look at.
type LLMContext struct {
	DatasetIDs []string `json:"dataset_ids,omitempty"`
	FileIDs    []string `json:"file_ids,omitempty"`
}

// StartChatRequest opens an advisory chat.
type StartChatRequest struct {
	Message      string     `json:"message"`
	Context      LLMContext `json:"context"`
	SystemPrompt string     `json:"system_prompt,omitempty"`
}

// ChatSession is a snapshot of an advisory chat.
type ChatSession struct {
	ChatID     string     `json:"chat_id"`
	Status     ChatStatus `json:"status"`
	Transcript string     `json:"transcript"`
	Error      string     `json:"error,omitempty"`
}

// ChatService is the remote conversational agent.
type ChatService interface {
	StartChat(ctx context.Context, req *StartChatRequest) (*ChatSession, error)
	GetChat(ctx context.Context, chatID string) (*ChatSession, error)
}
