package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/roboto-ai-actions/internal/actions"
	"github.com/tjfontaine/roboto-ai-actions/internal/advisor"
	"github.com/tjfontaine/roboto-ai-actions/internal/api/roboto"
	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/orchestrator"
	"github.com/tjfontaine/roboto-ai-actions/internal/storage"
)

// maxBodyBytes bounds action request bodies.
const maxBodyBytes = 1 << 20

// Runner executes actions on behalf of HTTP callers.
type Runner interface {
	CreateAIEvents(ctx context.Context, inv actions.Invocation) (*actions.EventsReport, error)
	CreateAISummary(ctx context.Context, inv actions.Invocation) (*actions.SummaryReport, error)
}

var _ Runner = (*actions.Service)(nil)

// actionRequest is the optional body of an action request.
type actionRequest struct {
	InputFiles []domain.File     `json:"input_files,omitempty"`
	DryRun     bool              `json:"dry_run,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// errorResponse is the body written for failed requests.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	Attempts       int    `json:"attempts,omitempty"`
	LastTranscript string `json:"last_transcript,omitempty"`
}

type handlers struct {
	runner Runner
	logger *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) createAIEvents(w http.ResponseWriter, r *http.Request) {
	inv, err := decodeInvocation(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", err)
		return
	}
	AddLogField(r.Context(), "dataset_id", inv.DatasetID)

	report, err := h.runner.CreateAIEvents(r.Context(), inv)
	if err != nil {
		h.writeActionError(w, r, err)
		return
	}
	AddLogField(r.Context(), "run_id", report.RunID)
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) createAISummary(w http.ResponseWriter, r *http.Request) {
	inv, err := decodeInvocation(r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", err)
		return
	}
	AddLogField(r.Context(), "dataset_id", inv.DatasetID)

	report, err := h.runner.CreateAISummary(r.Context(), inv)
	if err != nil {
		h.writeActionError(w, r, err)
		return
	}
	AddLogField(r.Context(), "run_id", report.RunID)
	writeJSON(w, http.StatusOK, report)
}

// decodeInvocation builds an invocation from the path, the dry_run query
// parameter and an optional JSON body.
func decodeInvocation(r *http.Request) (actions.Invocation, error) {
	inv := actions.Invocation{DatasetID: chi.URLParam(r, "datasetID")}

	var req actionRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return inv, errors.New("invalid request body: " + err.Error())
	}
	inv.InputFiles = req.InputFiles
	inv.DryRun = req.DryRun
	inv.Parameters = req.Parameters

	if v := r.URL.Query().Get("dry_run"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			return inv, errors.New("invalid dry_run: " + v)
		}
		inv.DryRun = inv.DryRun || dryRun
	}
	return inv, nil
}

func (h *handlers) writeActionError(w http.ResponseWriter, r *http.Request, err error) {
	var exhausted *orchestrator.ExhaustedError
	switch {
	case errors.Is(err, domain.ErrNoDataset):
		h.writeError(w, r, http.StatusBadRequest, "no_dataset", err)
	case roboto.IsNotFound(err), errors.Is(err, storage.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "not_found", err)
	case errors.As(err, &exhausted):
		AddError(r.Context(), err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: errorBody{
			Code:           "attempts_exhausted",
			Message:        err.Error(),
			Attempts:       exhausted.Attempts,
			LastTranscript: exhausted.LastTranscript,
		}})
	case errors.Is(err, advisor.ErrTurnTimeout), errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, r, http.StatusGatewayTimeout, "timeout", err)
	default:
		h.writeError(w, r, http.StatusInternalServerError, "internal_error", err)
	}
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	AddError(r.Context(), err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("action failed",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
