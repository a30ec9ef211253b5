package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sugarloaf/chat-server-go/internal/model"
)

const notifyTimeout = 5 * time.Second

// EscalationNotifier dispatches the one-time "customer wants a human"
// notification. Idempotency is enforced by the caller through the session's
// whatsapp_notified flag; implementations only deliver.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, session *model.ChatSession, preview string) error
}

// WhatsappNotifier posts the escalation to a messaging webhook.
type WhatsappNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewWhatsappNotifier(webhookURL string) *WhatsappNotifier {
	return &WhatsappNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: notifyTimeout,
		},
	}
}

func (n *WhatsappNotifier) NotifyEscalation(ctx context.Context, session *model.ChatSession, preview string) error {
	if !isValidWebhookURL(n.webhookURL) {
		log.Warn().Str("url", n.webhookURL).Msg("invalid whatsapp webhook URL rejected")
		return fmt.Errorf("invalid webhook URL")
	}

	customerName := "Website visitor"
	if session.CustomerName != nil && *session.CustomerName != "" {
		customerName = *session.CustomerName
	}

	body, err := json.Marshal(map[string]any{
		"sessionId":    session.ID,
		"customerName": customerName,
		"preview":      preview,
		"text":         fmt.Sprintf("%s is waiting for a human agent in the store chat", customerName),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := n.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("sessionId", session.ID).
			Dur("elapsed", elapsed).
			Msg("whatsapp notification error")
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Str("sessionId", session.ID).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("whatsapp notification failed")
		return fmt.Errorf("notification failed with status %d", resp.StatusCode)
	}

	log.Info().
		Str("sessionId", session.ID).
		Dur("elapsed", elapsed).
		Msg("whatsapp escalation notification sent")

	return nil
}

func isValidWebhookURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return parsed.Scheme == "https" && parsed.Host != ""
}

// LogNotifier is the fallback when no webhook is configured: the escalation
// is only visible in the logs and on the admin dashboard.
type LogNotifier struct{}

func (LogNotifier) NotifyEscalation(ctx context.Context, session *model.ChatSession, preview string) error {
	log.Info().
		Str("sessionId", session.ID).
		Str("preview", preview).
		Msg("escalation requested (no webhook configured)")
	return nil
}
