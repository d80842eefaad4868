// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/persona-chat/internal/middleware"
	"github.com/capitalize-ai/persona-chat/internal/model"
	"github.com/capitalize-ai/persona-chat/internal/service"
	"github.com/capitalize-ai/persona-chat/pkg/logger"
)

const (
	welcomeMessage   = "Welcome to the Stream Chat API!"
	completedMessage = "AI conversation completed"
)

// ChatHandler handles the chat provisioning and AI conversation endpoints.
type ChatHandler struct {
	provisioning  *service.ProvisioningService
	conversations *service.ConversationService
	logger        *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(
	provisioning *service.ProvisioningService,
	conversations *service.ConversationService,
	log *logger.Logger,
) *ChatHandler {
	return &ChatHandler{
		provisioning:  provisioning,
		conversations: conversations,
		logger:        log,
	}
}

// Home handles GET /
func (h *ChatHandler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": welcomeMessage,
	})
}

// CreateUser handles POST /create_user
func (h *ChatHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBody, "invalid request body")
		return
	}

	if err := middleware.ValidateImageURL(req.Image); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBody, err.Error())
		return
	}

	resp, err := h.provisioning.CreateUser(r.Context(), &req)
	if err != nil {
		h.fail(w, r, "failed to create user", err, nil)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// CreateChat handles POST /create_chat
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req model.CreateChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBody, "invalid request body")
		return
	}

	resp, err := h.provisioning.CreateChat(r.Context(), &req)
	if err != nil {
		h.fail(w, r, "failed to create chat", err, nil)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// AIChat handles POST /ai_chat. The request blocks until every turn has been
// delivered or the run fails.
func (h *ChatHandler) AIChat(w http.ResponseWriter, r *http.Request) {
	var req model.AIChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBody, "invalid request body")
		return
	}

	if err := middleware.ValidatePrompt(req.Prompt); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidBody, err.Error())
		return
	}

	run, err := h.conversations.RunConversation(r.Context(), req.ChannelID, req.Prompt)
	if err != nil {
		h.fail(w, r, "AI conversation failed", err, run)
		return
	}

	writeJSON(w, http.StatusOK, &model.AIChatResponse{
		Message: completedMessage,
		RunID:   run.ID,
		Turns:   run.TurnsCompleted,
	})
}

func (h *ChatHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error, run *model.Run) {
	status, body := errorBody(err, run)

	log := h.logger.WithCorrelation(middleware.GetCorrelationID(r.Context()))
	if status >= http.StatusInternalServerError || status == http.StatusFailedDependency {
		log.Error(msg, zap.String("code", body.Code), zap.Error(err))
	} else {
		log.Info(msg, zap.String("code", body.Code), zap.Error(err))
	}

	writeJSON(w, status, body)
}
