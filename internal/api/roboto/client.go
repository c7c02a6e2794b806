// Package roboto is an HTTP client for the Roboto data platform: datasets,
// files, events and the AI chat service.
package roboto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/ports"
)

const (
	// DefaultBaseURL is the public platform endpoint.
	DefaultBaseURL = "https://api.roboto.ai"

	orgHeader = "X-Roboto-Org-Id"
	userAgent = "roboto-ai-actions/1.0"
)

var (
	_ ports.Catalog       = (*Client)(nil)
	_ ports.EventStore    = (*Client)(nil)
	_ ports.DatasetWriter = (*Client)(nil)
	_ ports.ChatService   = (*Client)(nil)
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithOrgID scopes every request to an organization.
func WithOrgID(orgID string) ClientOption {
	return func(c *Client) {
		c.orgID = orgID
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client talks to the platform REST API.
type Client struct {
	apiKey     string
	orgID      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a new platform API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c
}

// GetDataset fetches a dataset record.
func (c *Client) GetDataset(ctx context.Context, datasetID string) (*domain.Dataset, error) {
	var out envelope[domain.Dataset]
	if err := c.do(ctx, http.MethodGet, "/v1/datasets/"+url.PathEscape(datasetID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// ListFilesPage fetches one page of a dataset's files.
func (c *Client) ListFilesPage(ctx context.Context, datasetID, pageToken string) (*FilePage, error) {
	var query url.Values
	if pageToken != "" {
		query = url.Values{"page_token": {pageToken}}
	}
	var out envelope[FilePage]
	if err := c.do(ctx, http.MethodGet, "/v1/datasets/"+url.PathEscape(datasetID)+"/files", query, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// ListFiles returns every file in a dataset, following pagination.
func (c *Client) ListFiles(ctx context.Context, datasetID string) ([]domain.File, error) {
	var (
		files []domain.File
		token string
	)
	for {
		page, err := c.ListFilesPage(ctx, datasetID, token)
		if err != nil {
			return nil, err
		}
		files = append(files, page.Items...)
		if page.NextToken == "" || page.NextToken == token {
			return files, nil
		}
		token = page.NextToken
	}
}

// CreateEvent creates an event.
func (c *Client) CreateEvent(ctx context.Context, req *domain.CreateEventRequest) (*domain.Event, error) {
	var out envelope[domain.Event]
	if err := c.do(ctx, http.MethodPost, "/v1/events/create", nil, req, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// SetDatasetSummary replaces a dataset's summary text.
func (c *Client) SetDatasetSummary(ctx context.Context, datasetID, summary string) error {
	return c.do(ctx, http.MethodPut, "/v1/datasets/"+url.PathEscape(datasetID)+"/summary", nil, &summaryRequest{Summary: summary}, nil)
}

// PutDatasetTags adds tags to a dataset.
func (c *Client) PutDatasetTags(ctx context.Context, datasetID string, tags []string) error {
	req := &updateDatasetRequest{MetadataChangeset: MetadataChangeset{PutTags: tags}}
	return c.do(ctx, http.MethodPut, "/v1/datasets/"+url.PathEscape(datasetID), nil, req, nil)
}

// StartChat opens an AI chat session.
func (c *Client) StartChat(ctx context.Context, req *ports.StartChatRequest) (*ports.ChatSession, error) {
	var out envelope[ports.ChatSession]
	if err := c.do(ctx, http.MethodPost, "/v1/ai/chats/start", nil, req, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// GetChat fetches the current state of a chat session.
func (c *Client) GetChat(ctx context.Context, chatID string) (*ports.ChatSession, error) {
	var out envelope[ports.ChatSession]
	if err := c.do(ctx, http.MethodGet, "/v1/ai/chats/"+url.PathEscape(chatID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq, in != nil)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ParseErrorResponse(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.orgID != "" {
		req.Header.Set(orgHeader, c.orgID)
	}
}
