package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ezlevup/supportdesk/internal/models"
	"github.com/ezlevup/supportdesk/internal/service"
	"github.com/ezlevup/supportdesk/pkg/logger"
)

type HTTPHandler struct {
	desk      service.DeskService
	users     service.UserService
	logger    logger.Logger
	validator *validator.Validate
}

func NewHTTPHandler(desk service.DeskService, users service.UserService, logger logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		desk:      desk,
		users:     users,
		logger:    logger,
		validator: validator.New(),
	}
}

// HealthCheck handles health check requests
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "supportdesk",
		"reaper":  h.desk.ReaperStatus(),
	}
	h.respondJSON(w, http.StatusOK, response)
}

type registerCustomerRequest struct {
	Nickname string `json:"nickname" validate:"required,max=100"`
}

// RegisterCustomer creates a customer identity with a generated username.
func (h *HTTPHandler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req registerCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	u, err := h.users.RegisterCustomer(r.Context(), req.Nickname)
	if err != nil {
		h.logger.Errorf(r.Context(), "Failed to register customer: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to register customer", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, u)
}

type registerOperatorRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Nickname string `json:"nickname" validate:"required,max=100"`
}

func (h *HTTPHandler) RegisterOperator(w http.ResponseWriter, r *http.Request) {
	var req registerOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	u, err := h.users.RegisterOperator(r.Context(), req.Username, req.Nickname)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			h.respondError(w, http.StatusConflict, "Username already exists", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to register operator: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to register operator", err)
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
}

// Login issues a bearer token for an operator.
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	u, err := h.users.Get(r.Context(), req.Username)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			h.respondError(w, http.StatusNotFound, "User not found", err)
		default:
			h.respondError(w, http.StatusInternalServerError, "Failed to log in", err)
		}
		return
	}
	if !u.IsOperator() {
		h.respondError(w, http.StatusForbidden, "Only operators can log in", nil)
		return
	}

	token, err := h.users.GenerateToken(r.Context(), u)
	if err != nil {
		h.logger.Errorf(r.Context(), "Failed to generate token: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to log in", err)
		return
	}

	if _, err := h.users.SetStatus(r.Context(), u.Username, models.UserStatusOnline); err != nil {
		h.logger.Errorf(r.Context(), "Failed to mark operator online: %v", err)
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":    token,
		"username": u.Username,
	})
}

// OpenSession creates a consultation session and places it in the
// admission queue.
func (h *HTTPHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req service.OpenSessionInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	out, err := h.desk.OpenSession(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			h.respondError(w, http.StatusNotFound, "Customer not found", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to open session: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to open session", err)
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, out)
}

func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ssID := chi.URLParam(r, "sessionId")
	if ssID == "" {
		h.respondError(w, http.StatusBadRequest, "Session ID is required", nil)
		return
	}

	out, err := h.desk.GetSession(r.Context(), ssID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			h.respondError(w, http.StatusNotFound, "Session not found", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to get session: session_id=%s: %v", ssID, err)
			h.respondError(w, http.StatusInternalServerError, "Failed to get session", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	ssID := chi.URLParam(r, "sessionId")
	if ssID == "" {
		h.respondError(w, http.StatusBadRequest, "Session ID is required", nil)
		return
	}

	ss, err := h.desk.EndSession(r.Context(), ssID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			h.respondError(w, http.StatusNotFound, "Session not found", err)
		case errors.Is(err, service.ErrStateConflict):
			h.respondError(w, http.StatusConflict, "Only active sessions can be ended", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to end session: session_id=%s: %v", ssID, err)
			h.respondError(w, http.StatusInternalServerError, "Failed to end session", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, ss)
}

func (h *HTTPHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	ssID := chi.URLParam(r, "sessionId")
	if ssID == "" {
		h.respondError(w, http.StatusBadRequest, "Session ID is required", nil)
		return
	}

	var req service.PostMessageInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	req.SessionID = ssID

	m, err := h.desk.PostMessage(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			h.respondError(w, http.StatusNotFound, "Session not found", err)
		case errors.Is(err, service.ErrSessionEnded):
			h.respondError(w, http.StatusConflict, "Session has ended", err)
		case errors.Is(err, service.ErrNotParticipant):
			h.respondError(w, http.StatusForbidden, "Sender is not a participant", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to post message: session_id=%s: %v", ssID, err)
			h.respondError(w, http.StatusInternalServerError, "Failed to post message", err)
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, m)
}

func (h *HTTPHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ssID := chi.URLParam(r, "sessionId")
	if ssID == "" {
		h.respondError(w, http.StatusBadRequest, "Session ID is required", nil)
		return
	}

	messages, err := h.desk.ListMessages(r.Context(), ssID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			h.respondError(w, http.StatusNotFound, "Session not found", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to list messages: session_id=%s: %v", ssID, err)
			h.respondError(w, http.StatusInternalServerError, "Failed to list messages", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

// ListWaiting returns the waiting sessions and the admission queue size.
func (h *HTTPHandler) ListWaiting(w http.ResponseWriter, r *http.Request) {
	out, err := h.desk.ListWaiting(r.Context())
	if err != nil {
		h.logger.Errorf(r.Context(), "Failed to list waiting sessions: %v", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to list waiting sessions", err)
		return
	}

	h.respondJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) ListOperatorSessions(w http.ResponseWriter, r *http.Request) {
	operator := chi.URLParam(r, "username")
	if operator == "" {
		h.respondError(w, http.StatusBadRequest, "Operator username is required", nil)
		return
	}

	sessions, err := h.desk.ListOperatorSessions(r.Context(), operator)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrOperatorNotFound):
			h.respondError(w, http.StatusBadRequest, "Unknown operator", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to list operator sessions: operator=%s: %v", operator, err)
			h.respondError(w, http.StatusInternalServerError, "Failed to list operator sessions", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

type assignRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Operator  string `json:"operator" validate:"required"`
}

// Assign routes a waiting session to a named operator.
func (h *HTTPHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	ss, err := h.desk.AssignOperator(r.Context(), req.SessionID, req.Operator)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			h.respondError(w, http.StatusNotFound, "Session not found", err)
		case errors.Is(err, service.ErrOperatorNotFound):
			h.respondError(w, http.StatusBadRequest, "Unknown operator", err)
		case errors.Is(err, service.ErrStateConflict):
			h.respondError(w, http.StatusConflict, "Only waiting sessions can be assigned", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to assign operator: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to assign operator", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, ss)
}

// ProcessNext pops the oldest waiting session and auto-assigns it to the
// least-loaded online operator.
func (h *HTTPHandler) ProcessNext(w http.ResponseWriter, r *http.Request) {
	out, err := h.desk.ProcessNextWaiting(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoOperatorAvailable):
			h.respondError(w, http.StatusServiceUnavailable, "No operator is currently available", err)
		case errors.Is(err, service.ErrSessionNotFound):
			h.respondError(w, http.StatusNotFound, "Session not found", err)
		case errors.Is(err, service.ErrStateConflict):
			h.respondError(w, http.StatusConflict, "Session was already assigned", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to process next session: %v", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to process next session", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, out)
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=online offline"`
}

func (h *HTTPHandler) SetOperatorStatus(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if username == "" {
		h.respondError(w, http.StatusBadRequest, "Username is required", nil)
		return
	}

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	u, err := h.users.SetStatus(r.Context(), username, models.UserStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			h.respondError(w, http.StatusNotFound, "User not found", err)
		default:
			h.logger.Errorf(r.Context(), "Failed to set status: username=%s: %v", username, err)
			h.respondError(w, http.StatusInternalServerError, "Failed to set status", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, u)
}

// Helper functions

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorf(context.Background(), "Failed to encode JSON response: %v", err)
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	response := map[string]interface{}{
		"error": message,
		"code":  statusCode,
	}

	if err != nil {
		h.logger.Debugf(context.Background(), "Error response: message=%s error=%v", message, err)
	}

	h.respondJSON(w, statusCode, response)
}
