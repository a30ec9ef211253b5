package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/sugarloaf/chat-server-go/internal/errors"
	"github.com/sugarloaf/chat-server-go/internal/model"
	"github.com/sugarloaf/chat-server-go/internal/service"
	"github.com/sugarloaf/chat-server-go/internal/util"
)

// ChatHandler is the customer widget surface. Identity is the client-held
// session token; there is no account behind it.
type ChatHandler struct {
	chatService   *service.ChatService
	eventsHandler *EventsHandler
}

func NewChatHandler(chatService *service.ChatService, eventsHandler *EventsHandler) *ChatHandler {
	return &ChatHandler{
		chatService:   chatService,
		eventsHandler: eventsHandler,
	}
}

func (h *ChatHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/messages", h.SendMessage)
	r.Get("/sessions/{sessionToken}", h.GetSession)
	r.Get("/sessions/{sessionToken}/messages", h.GetMessages)
	r.Get("/sessions/{sessionToken}/events", h.Events)

	return r
}

type sendMessageRequest struct {
	SessionToken  string  `json:"sessionToken"`
	Content       string  `json:"content"`
	CustomerName  *string `json:"customerName,omitempty"`
	CustomerEmail *string `json:"customerEmail,omitempty"`
}

// POST /v1/chat/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if !util.IsValidSessionToken(req.SessionToken) {
		writeError(w, apperrors.InvalidInput("sessionToken", "malformed token"))
		return
	}
	if req.CustomerEmail != nil && *req.CustomerEmail != "" && !util.IsValidEmail(*req.CustomerEmail) {
		writeError(w, apperrors.InvalidInput("customerEmail", "malformed address"))
		return
	}

	log.Debug().
		Str("sessionToken", util.MaskToken(req.SessionToken)).
		Str("content", truncate(req.Content, 50)).
		Msg("widget message received")

	result, err := h.chatService.SendCustomerMessage(r.Context(), service.SendMessageParams{
		SessionToken:  req.SessionToken,
		Content:       req.Content,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/chat/sessions/{sessionToken}
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}

// GET /v1/chat/sessions/{sessionToken}/messages
//
// Full-state fetch for the widget's poll loop: every message plus the
// current status, no deltas.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
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
		"status":   session.Status,
	})
}

// GET /v1/chat/sessions/{sessionToken}/events
func (h *ChatHandler) Events(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	h.eventsHandler.ServeSession(w, r, session)
}

func (h *ChatHandler) lookupSession(w http.ResponseWriter, r *http.Request) (*model.ChatSession, bool) {
	token := chi.URLParam(r, "sessionToken")
	if !util.IsValidSessionToken(token) {
		writeError(w, apperrors.InvalidInput("sessionToken", "malformed token"))
		return nil, false
	}

	session, err := h.chatService.GetSessionByToken(r.Context(), token)
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
