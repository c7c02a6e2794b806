package roboto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
)

// envelope wraps every successful platform response.
type envelope[T any] struct {
	Data T `json:"data"`
}

// FilePage is one page of a dataset file listing.
type FilePage struct {
	Items     []domain.File `json:"items"`
	NextToken string        `json:"next_token,omitempty"`
}

type summaryRequest struct {
	Summary string `json:"summary"`
}

// MetadataChangeset describes tag and metadata edits on a dataset.
type MetadataChangeset struct {
	PutTags    []string `json:"put_tags,omitempty"`
	RemoveTags []string `json:"remove_tags,omitempty"`
}

type updateDatasetRequest struct {
	MetadataChangeset MetadataChangeset `json:"metadata_changeset"`
}

// ErrorResponse is the platform's error body.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("roboto API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("roboto API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the platform.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsAPIError reports whether err came from a non-2xx platform response.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// ParseErrorResponse builds an APIError from a response body. Bodies that are
// not the platform's error shape are kept verbatim as the message.
func ParseErrorResponse(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: string(data)}
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != nil {
		apiErr.Code = errResp.Error.ErrorCode
		apiErr.Message = errResp.Error.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
