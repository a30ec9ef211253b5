package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sugarloaf/chat-server-go/internal/config"
	apperrors "github.com/sugarloaf/chat-server-go/internal/errors"
	"github.com/sugarloaf/chat-server-go/internal/model"
	redisclient "github.com/sugarloaf/chat-server-go/internal/redis"
	"github.com/sugarloaf/chat-server-go/internal/repository"
	"github.com/sugarloaf/chat-server-go/internal/sse"
	"github.com/sugarloaf/chat-server-go/internal/util"
)

type ChatService struct {
	sessionRepo     repository.ChatSessionRepository
	messageRepo     repository.ChatMessageRepository
	bot             BotResponder
	notifier        EscalationNotifier
	broker          *sse.Broker
	escalation      *EscalationMatcher
	botHistoryLimit int
}

func NewChatService(
	sessionRepo repository.ChatSessionRepository,
	messageRepo repository.ChatMessageRepository,
	bot BotResponder,
	notifier EscalationNotifier,
	broker *sse.Broker,
	escalation *EscalationMatcher,
	botHistoryLimit int,
) *ChatService {
	if botHistoryLimit <= 0 {
		botHistoryLimit = 50
	}
	return &ChatService{
		sessionRepo:     sessionRepo,
		messageRepo:     messageRepo,
		bot:             bot,
		notifier:        notifier,
		broker:          broker,
		escalation:      escalation,
		botHistoryLimit: botHistoryLimit,
	}
}

type SendMessageParams struct {
	SessionToken  string
	Content       string
	CustomerName  *string
	CustomerEmail *string
}

type SendMessageResult struct {
	Session  *model.ChatSession `json:"session"`
	Message  *model.ChatMessage `json:"message"`
	BotReply *model.ChatMessage `json:"botReply,omitempty"`
}

// SendCustomerMessage is the widget's write path: it lazily creates the
// session on first contact, durably appends the customer turn, and then runs
// the status controller — either escalating to a human or generating the bot
// reply synchronously so the response carries it.
func (s *ChatService) SendCustomerMessage(ctx context.Context, params SendMessageParams) (*SendMessageResult, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" {
		return nil, apperrors.MissingRequired("content")
	}
	if len([]rune(content)) > config.MaxMessageLength {
		return nil, apperrors.InvalidInput("content", fmt.Sprintf("must be at most %d characters", config.MaxMessageLength))
	}

	tokenHash := util.HashToken(params.SessionToken)

	session, err := s.sessionRepo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	created := session == nil
	if created {
		session, err = s.sessionRepo.Create(ctx, model.CreateChatSessionParams{
			SessionTokenHash: tokenHash,
			CustomerName:     params.CustomerName,
			CustomerEmail:    params.CustomerEmail,
		})
		if err != nil {
			return nil, apperrors.Database(err)
		}
		log.Info().
			Str("sessionId", session.ID).
			Msg("chat session created")
		s.publishSessionCreated(ctx, session)
	} else if params.CustomerName != nil || params.CustomerEmail != nil {
		if err := s.sessionRepo.SetCustomerInfo(ctx, session.ID, params.CustomerName, params.CustomerEmail); err != nil {
			log.Warn().Err(err).Str("sessionId", session.ID).Msg("failed to update customer info")
		}
	}

	if session.Status == model.StatusResolved {
		return nil, apperrors.SessionResolved()
	}

	msg, err := s.appendMessage(ctx, session.ID, model.RoleCustomer, content)
	if err != nil {
		return nil, err
	}

	result := &SendMessageResult{Session: session, Message: msg}

	if session.Status != model.StatusBot {
		// waiting or human: the agent side picks the message up via SSE/poll.
		return result, nil
	}

	if s.escalation != nil && s.escalation.Matches(content) {
		s.escalate(ctx, session, content)
		result.Session = s.refresh(ctx, session)
		return result, nil
	}

	reply := s.generateBotReply(ctx, session)
	if reply != nil {
		result.BotReply = reply
	}
	result.Session = s.refresh(ctx, session)
	return result, nil
}

// escalate moves a bot session to waiting and dispatches the one-time
// notification. The CAS loses quietly if an admin already took the session
// over; the claim on whatsapp_notified makes the notification idempotent
// even across repeated escalation phrases.
func (s *ChatService) escalate(ctx context.Context, session *model.ChatSession, preview string) {
	applied, err := s.sessionRepo.UpdateStatusFrom(ctx, session.ID, model.StatusBot, model.StatusWaiting)
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to escalate session")
		return
	}
	if applied {
		log.Info().Str("sessionId", session.ID).Msg("session escalated to waiting")
		s.publishStatus(ctx, session.ID, model.StatusWaiting)
	}

	claimed, err := s.sessionRepo.ClaimNotification(ctx, session.ID)
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to claim escalation notification")
		return
	}
	if !claimed {
		return
	}

	if err := s.notifier.NotifyEscalation(ctx, session, preview); err != nil {
		// The flag stays set: one best-effort dispatch per session.
		log.Error().Err(err).Str("sessionId", session.ID).Msg("escalation notification dispatch failed")
	}
}

// generateBotReply invokes the responder with the session history. On any
// failure the customer turn stays stored and no bot message is appended.
func (s *ChatService) generateBotReply(ctx context.Context, session *model.ChatSession) *model.ChatMessage {
	history, err := s.messageRepo.FindRecentBySessionID(ctx, session.ID, s.botHistoryLimit)
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to load history for bot")
		return nil
	}

	replyText, err := s.bot.Reply(ctx, history)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("bot reply unavailable for this turn")
		return nil
	}

	replyText = strings.TrimSpace(replyText)
	if replyText == "" {
		log.Warn().Str("sessionId", session.ID).Msg("bot returned empty reply, skipping")
		return nil
	}

	reply, err := s.appendMessage(ctx, session.ID, model.RoleBot, replyText)
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to store bot reply")
		return nil
	}
	return reply
}

// AppendAgentReply stores an admin-authored turn as human_agent.
func (s *ChatService) AppendAgentReply(ctx context.Context, sessionID, content string) (*model.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.MissingRequired("content")
	}
	if len([]rune(content)) > config.MaxMessageLength {
		return nil, apperrors.InvalidInput("content", fmt.Sprintf("must be at most %d characters", config.MaxMessageLength))
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Chat session")
	}

	return s.appendMessage(ctx, sessionID, model.RoleHumanAgent, content)
}

// UpdateStatus applies an admin-requested transition with a compare-and-swap
// against the status the session currently holds.
func (s *ChatService) UpdateStatus(ctx context.Context, sessionID string, next model.SessionStatus) (*model.ChatSession, error) {
	if !next.IsValid() {
		return nil, apperrors.InvalidInput("status", "must be one of bot, waiting, human, resolved")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Chat session")
	}

	if session.Status == next {
		return session, nil
	}

	if !CanAdminTransition(session.Status, next) {
		return nil, apperrors.InvalidTransition(string(session.Status), string(next))
	}

	applied, err := s.sessionRepo.UpdateStatusFrom(ctx, sessionID, session.Status, next)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if !applied {
		return nil, apperrors.StatusConflict()
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("from", string(session.Status)).
		Str("to", string(next)).
		Msg("session status updated")

	s.publishStatus(ctx, sessionID, next)

	updated, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return updated, nil
}

func (s *ChatService) GetSessionByToken(ctx context.Context, sessionToken string) (*model.ChatSession, error) {
	session, err := s.sessionRepo.FindByTokenHash(ctx, util.HashToken(sessionToken))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return session, nil
}

func (s *ChatService) GetSessionByID(ctx context.Context, id string) (*model.ChatSession, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return session, nil
}

// SessionMessages returns the full ordered transcript: every poll is a
// full-state fetch, there is no delta protocol.
func (s *ChatService) SessionMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	msgs, err := s.messageRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return msgs, nil
}

func (s *ChatService) ListSessions(ctx context.Context, status *model.SessionStatus, limit, offset int) ([]model.ChatSession, error) {
	sessions, err := s.sessionRepo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return sessions, nil
}

func (s *ChatService) appendMessage(ctx context.Context, sessionID string, role model.MessageRole, content string) (*model.ChatMessage, error) {
	msg, err := s.messageRepo.Create(ctx, model.CreateChatMessageParams{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if err := s.sessionRepo.Touch(ctx, sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to refresh session updated_at")
	}

	log.Info().
		Str("messageId", msg.ID).
		Str("sessionId", sessionID).
		Str("role", string(role)).
		Msg("chat message appended")

	s.publishMessage(ctx, msg)
	return msg, nil
}

func (s *ChatService) refresh(ctx context.Context, session *model.ChatSession) *model.ChatSession {
	updated, err := s.sessionRepo.FindByID(ctx, session.ID)
	if err != nil || updated == nil {
		return session
	}
	return updated
}

func (s *ChatService) publishMessage(ctx context.Context, msg *model.ChatMessage) {
	if s.broker == nil {
		return
	}
	event := sse.Event{Type: sse.EventMessage, Data: msg.ToSSEEventData()}
	if err := s.broker.Publish(ctx, redisclient.SessionChannel(msg.SessionID), event); err != nil {
		log.Warn().Err(err).Str("sessionId", msg.SessionID).Msg("failed to publish message event")
	}
	if err := s.broker.Publish(ctx, redisclient.AdminChannel, event); err != nil {
		log.Warn().Err(err).Msg("failed to publish message event to admin channel")
	}
}

func (s *ChatService) publishStatus(ctx context.Context, sessionID string, status model.SessionStatus) {
	if s.broker == nil {
		return
	}
	data, _ := json.Marshal(map[string]any{
		"sessionId": sessionID,
		"status":    status,
		"changedAt": time.Now(),
	})
	event := sse.Event{Type: sse.EventStatusChanged, Data: data}
	if err := s.broker.Publish(ctx, redisclient.SessionChannel(sessionID), event); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish status event")
	}
	if err := s.broker.Publish(ctx, redisclient.AdminChannel, event); err != nil {
		log.Warn().Err(err).Msg("failed to publish status event to admin channel")
	}
}

func (s *ChatService) publishSessionCreated(ctx context.Context, session *model.ChatSession) {
	if s.broker == nil {
		return
	}
	data, _ := json.Marshal(session)
	event := sse.Event{Type: sse.EventSessionNew, Data: data}
	if err := s.broker.Publish(ctx, redisclient.AdminChannel, event); err != nil {
		log.Warn().Err(err).Msg("failed to publish session created event")
	}
}
