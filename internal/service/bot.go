package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sugarloaf/chat-server-go/internal/model"
)

// ErrBotDisabled is returned when no bot backend is configured.
var ErrBotDisabled = errors.New("bot responder not configured")

// BotResponder produces the next bot reply for a conversation. It is an
// opaque external collaborator: given the ordered message history it returns
// reply text or an error, and must never be invoked with an empty history.
type BotResponder interface {
	Reply(ctx context.Context, history []model.ChatMessage) (string, error)
}

type BotConfig struct {
	APIURL       string
	APIKey       string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
}

// HTTPBotResponder calls an OpenAI-compatible chat completions endpoint.
type HTTPBotResponder struct {
	cfg    BotConfig
	client *http.Client
}

func NewHTTPBotResponder(cfg BotConfig) *HTTPBotResponder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &HTTPBotResponder{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type botChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type botChatRequest struct {
	Model    string           `json:"model"`
	Messages []botChatMessage `json:"messages"`
}

type botChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (b *HTTPBotResponder) Reply(ctx context.Context, history []model.ChatMessage) (string, error) {
	if b.cfg.APIURL == "" {
		return "", ErrBotDisabled
	}

	payload := botChatRequest{
		Model:    b.cfg.Model,
		Messages: buildBotMessages(b.cfg.SystemPrompt, history),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal bot request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create bot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Dur("elapsed", elapsed).
			Msg("bot responder request error")
		return "", fmt.Errorf("bot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("bot responder returned error status")
		return "", fmt.Errorf("bot request failed with status %d", resp.StatusCode)
	}

	var parsed botChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode bot response: %w", err)
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("bot response contained no reply")
	}

	log.Debug().
		Dur("elapsed", elapsed).
		Msg("bot reply generated")

	return parsed.Choices[0].Message.Content, nil
}

// buildBotMessages maps the chat history onto the completion API roles.
// Human agent turns are presented as assistant turns so the bot stays
// consistent with whatever the agent already told the customer.
func buildBotMessages(systemPrompt string, history []model.ChatMessage) []botChatMessage {
	messages := make([]botChatMessage, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, botChatMessage{Role: "system", Content: systemPrompt})
	}
	for _, msg := range history {
		role := "assistant"
		if msg.Role == model.RoleCustomer {
			role = "user"
		}
		messages = append(messages, botChatMessage{Role: role, Content: msg.Content})
	}
	return messages
}
