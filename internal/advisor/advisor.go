// Package advisor runs prompts against the platform's conversational agent and
// returns the final section of its transcript.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/ports"
	"github.com/tjfontaine/roboto-ai-actions/internal/tokens"
)

const (
	// DefaultTimeout bounds how long one chat turn may take.
	DefaultTimeout = 3 * time.Minute
	// DefaultPollInterval is how often the chat is polled while the agent works.
	DefaultPollInterval = time.Second
)

// ErrTurnTimeout is returned when the agent does not finish its turn in time.
var ErrTurnTimeout = errors.New("timed out waiting for advisory agent")

// ChatFailedError is returned when the platform reports the chat as failed.
type ChatFailedError struct {
	ChatID string
	Reason string
}

func (e *ChatFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("chat %s failed", e.ChatID)
	}
	return fmt.Sprintf("chat %s failed: %s", e.ChatID, e.Reason)
}

// Session is a started advisory chat.
type Session struct {
	chat         ports.ChatService
	pollInterval time.Duration
	snapshot     *ports.ChatSession
}

// Start opens a chat with the given message, context and system prompt.
func Start(ctx context.Context, chat ports.ChatService, req *ports.StartChatRequest, pollInterval time.Duration) (*Session, error) {
	snap, err := chat.StartChat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("start chat: %w", err)
	}
	if snap == nil {
		return nil, errors.New("start chat: empty response")
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Session{chat: chat, pollInterval: pollInterval, snapshot: snap}, nil
}

// ID returns the chat id.
func (s *Session) ID() string {
	return s.snapshot.ChatID
}

// AwaitTurn blocks until the agent hands the turn back to the user, the chat
// fails, ctx ends, or timeout elapses.
func (s *Session) AwaitTurn(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		switch s.snapshot.Status {
		case ports.ChatStatusUserTurn:
			return nil
		case ports.ChatStatusFailed:
			return &ChatFailedError{ChatID: s.snapshot.ChatID, Reason: s.snapshot.Error}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s (chat %s): %w", ErrTurnTimeout, timeout, s.snapshot.ChatID, ctx.Err())
			}
			return ctx.Err()
		case <-ticker.C:
		}

		snap, err := s.chat.GetChat(ctx, s.snapshot.ChatID)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return fmt.Errorf("poll chat %s: %w", s.snapshot.ChatID, err)
		}
		if snap != nil {
			s.snapshot = snap
		}
	}
}

// Transcript returns the full transcript as of the last poll.
func (s *Session) Transcript() string {
	return s.snapshot.Transcript
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithTimeout bounds each chat turn.
func WithTimeout(d time.Duration) Option {
	return func(a *Advisor) {
		a.timeout = d
	}
}

// WithPollInterval sets how often the chat is polled.
func WithPollInterval(d time.Duration) Option {
	return func(a *Advisor) {
		a.pollInterval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Advisor) {
		a.logger = logger
	}
}

// WithTokenCounter reports transcript sizes in tokens.
func WithTokenCounter(c *tokens.Counter) Option {
	return func(a *Advisor) {
		a.counter = c
	}
}

// Advisor asks the agent about datasets.
type Advisor struct {
	chat         ports.ChatService
	timeout      time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
	counter      *tokens.Counter
}

// New creates an Advisor backed by chat.
func New(chat ports.ChatService, opts ...Option) *Advisor {
	a := &Advisor{
		chat:         chat,
		timeout:      DefaultTimeout,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask runs prompt against datasetID, scoped to files, and returns the final
// section of the transcript. A blank transcript yields domain.ErrEmptyTranscript.
func (a *Advisor) Ask(ctx context.Context, prompt Prompt, datasetID string, files []domain.File) (string, error) {
	req := &ports.StartChatRequest{
		Message: fmt.Sprintf(prompt.MessageFormat, datasetID),
		Context: ports.LLMContext{
			DatasetIDs: []string{datasetID},
			FileIDs:    domain.FileIDs(files),
		},
		SystemPrompt: prompt.SystemPrompt,
	}

	session, err := Start(ctx, a.chat, req, a.pollInterval)
	if err != nil {
		return "", err
	}

	a.logger.Info("waiting for advisory agent",
		slog.String("prompt", prompt.Name),
		slog.String("dataset_id", datasetID),
		slog.String("chat_id", session.ID()),
		slog.Int("files", len(files)),
		slog.Duration("timeout", a.timeout),
	)

	if err := session.AwaitTurn(ctx, a.timeout); err != nil {
		return "", err
	}

	transcript := strings.TrimSpace(session.Transcript())
	if transcript == "" {
		return "", fmt.Errorf("dataset %s: %w", datasetID, domain.ErrEmptyTranscript)
	}

	final := FinalSection(transcript)
	attrs := []any{
		slog.String("chat_id", session.ID()),
		slog.Int("transcript_bytes", len(transcript)),
		slog.Int("final_bytes", len(final)),
	}
	if a.counter != nil {
		attrs = append(attrs, slog.Int("transcript_tokens", a.counter.Count(transcript)))
	}
	a.logger.Debug("advisory agent finished", attrs...)

	return final, nil
}

// Source returns a transcript source that asks prompt about a dataset using files as context.
func (a *Advisor) Source(prompt Prompt, files []domain.File) *Source {
	return &Source{advisor: a, prompt: prompt, files: files}
}

// Source adapts an Advisor to the orchestrator's transcript source.
type Source struct {
	advisor *Advisor
	prompt  Prompt
	files   []domain.File
}

// Transcript asks the agent again; every call starts a new chat.
func (s *Source) Transcript(ctx context.Context, datasetID string) (string, error) {
	return s.advisor.Ask(ctx, s.prompt, datasetID, s.files)
}

// FinalSection returns the text after the last final-section header, trimmed,
// or the whole transcript when no header is present.
func FinalSection(transcript string) string {
	idx, header := -1, ""
	for _, h := range []string{FinalSummaryHeader, FinalResponseHeader} {
		if i := strings.LastIndex(transcript, h); i > idx {
			idx, header = i, h
		}
	}
	if idx < 0 {
		return transcript
	}
	return strings.TrimSpace(transcript[idx+len(header):])
}
