package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/persona-chat/internal/model"
	"github.com/capitalize-ai/persona-chat/internal/runstore"
	"github.com/capitalize-ai/persona-chat/internal/service"
	"github.com/capitalize-ai/persona-chat/pkg/logger"
)

// RunEventSource replays recorded run events.
type RunEventSource interface {
	GetRunEvents(ctx context.Context, runID string) ([]model.RunEvent, uint64, error)
}

// RunHandler exposes conversation run progress.
type RunHandler struct {
	conversations *service.ConversationService
	events        RunEventSource
	logger        *logger.Logger
}

// NewRunHandler creates a new run handler. events may be nil.
func NewRunHandler(conversations *service.ConversationService, events RunEventSource, log *logger.Logger) *RunHandler {
	return &RunHandler{
		conversations: conversations,
		events:        events,
		logger:        log,
	}
}

// parseRunID returns the canonical run id from the URL. Run ids are UUIDs, so
// anything else cannot name a run.
func parseRunID(r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// Get handles GET /runs/{id}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID, ok := parseRunID(r)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "run not found")
		return
	}

	run, err := h.conversations.GetRun(r.Context(), runID)
	if errors.Is(err, runstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load run", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to load run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// Events handles GET /runs/{id}/events
func (h *RunHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "run event log is not configured")
		return
	}

	runID, ok := parseRunID(r)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "no events for run")
		return
	}

	events, lastSeq, err := h.events.GetRunEvents(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to replay run events", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to replay run events")
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusNotFound, codeNotFound, "no events for run")
		return
	}

	writeJSON(w, http.StatusOK, &model.RunEventsResponse{
		Events:       events,
		LastSequence: lastSeq,
	})
}
