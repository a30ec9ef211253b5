package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/sugarloaf/chat-server-go/internal/audit"
	apperrors "github.com/sugarloaf/chat-server-go/internal/errors"
	"github.com/sugarloaf/chat-server-go/internal/middleware"
	"github.com/sugarloaf/chat-server-go/internal/model"
	"github.com/sugarloaf/chat-server-go/internal/service"
	"github.com/sugarloaf/chat-server-go/internal/util"
)

type AdminHandler struct {
	adminService      *service.AdminService
	chatService       *service.ChatService
	eventsHandler     *EventsHandler
	sessionMiddleware func(http.Handler) http.Handler
	loginRateLimiter  *middleware.LoginRateLimiter
	isProduction      bool
}

func NewAdminHandler(
	adminService *service.AdminService,
	chatService *service.ChatService,
	eventsHandler *EventsHandler,
	sessionMiddleware func(http.Handler) http.Handler,
	isProduction bool,
) *AdminHandler {
	return &AdminHandler{
		adminService:      adminService,
		chatService:       chatService,
		eventsHandler:     eventsHandler,
		sessionMiddleware: sessionMiddleware,
		loginRateLimiter:  middleware.NewLoginRateLimiter(),
		isProduction:      isProduction,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.loginRateLimiter.Handler).Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.sessionMiddleware)
		r.Get("/api/stats", h.Stats)

		r.Get("/api/chat/sessions", h.ListSessions)
		r.Get("/api/chat/sessions/{id}/messages", h.SessionMessages)
		r.Post("/api/chat/sessions/{id}/reply", h.Reply)
		r.Post("/api/chat/sessions/{id}/status", h.UpdateStatus)

		r.Get("/api/chat/events", h.eventsHandler.ServeAdmin)
	})

	return r
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password is required"})
		return
	}

	token, err := h.adminService.Login(r.Context(), req.Password)
	if err != nil {
		log.Error().Err(err).Msg("admin login error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Login failed"})
		return
	}

	if token == "" {
		audit.Log(r.Context(), audit.Event{
			Type: audit.EventLoginFailure,
			IP:   r.RemoteAddr,
		})
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid password"})
		return
	}

	audit.Log(r.Context(), audit.Event{
		Type: audit.EventLoginSuccess,
		IP:   r.RemoteAddr,
	})

	middleware.SetSessionCookie(w, middleware.AdminSessionCookie, token, "/admin", h.isProduction)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.AdminSessionCookie)
	if err == nil && cookie.Value != "" {
		h.adminService.Logout(r.Context(), cookie.Value)
		audit.Log(r.Context(), audit.Event{
			Type: audit.EventLogout,
			IP:   r.RemoteAddr,
		})
	}

	middleware.ClearSessionCookie(w, middleware.AdminSessionCookie, "/admin")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.GetStats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get stats")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GET /admin/api/chat/sessions?status=waiting
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	var statusFilter *model.SessionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.SessionStatus(raw)
		if !status.IsValid() {
			writeError(w, apperrors.InvalidInput("status", "must be one of bot, waiting, human, resolved"))
			return
		}
		statusFilter = &status
	}

	pagination := ParsePagination(r)

	sessions, err := h.chatService.ListSessions(r.Context(), statusFilter, pagination.Limit, pagination.Offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// GET /admin/api/chat/sessions/{id}/messages
func (h *AdminHandler) SessionMessages(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	messages, err := h.chatService.SessionMessages(r.Context(), session.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"session":  session,
	})
}

// POST /admin/api/chat/sessions/{id}/reply
func (h *AdminHandler) Reply(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	msg, err := h.chatService.AppendAgentReply(r.Context(), session.ID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

// POST /admin/api/chat/sessions/{id}/status
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Status model.SessionStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	updated, err := h.chatService.UpdateStatus(r.Context(), session.ID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.Log(r.Context(), audit.Event{
		Type:      audit.EventStatusChange,
		SessionID: session.ID,
		IP:        r.RemoteAddr,
		Details: map[string]interface{}{
			"from": session.Status,
			"to":   req.Status,
		},
	})

	writeJSON(w, http.StatusOK, map[string]any{"session": updated})
}

func (h *AdminHandler) lookupSession(w http.ResponseWriter, r *http.Request) (*model.ChatSession, bool) {
	id := chi.URLParam(r, "id")
	if !util.IsValidUUID(id) {
		writeError(w, apperrors.InvalidInput("id", "malformed session id"))
		return nil, false
	}

	session, err := h.chatService.GetSessionByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if session == nil {
		writeError(w, apperrors.NotFound("Chat session"))
		return nil, false
	}

	return session, true
}
