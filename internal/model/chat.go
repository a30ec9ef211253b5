package model

import (
	"encoding/json"
	"time"
)

type ChatSession struct {
	ID               string        `db:"id" json:"id"`
	SessionTokenHash string        `db:"session_token_hash" json:"-"`
	CustomerName     *string       `db:"customer_name" json:"customerName,omitempty"`
	CustomerEmail    *string       `db:"customer_email" json:"customerEmail,omitempty"`
	Status           SessionStatus `db:"status" json:"status"`
	WhatsappNotified bool          `db:"whatsapp_notified" json:"whatsappNotified"`
	CreatedAt        time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updatedAt"`
}

type CreateChatSessionParams struct {
	SessionTokenHash string
	CustomerName     *string
	CustomerEmail    *string
}

type ChatMessage struct {
	ID        string      `db:"id" json:"id"`
	SessionID string      `db:"session_id" json:"sessionId"`
	Role      MessageRole `db:"role" json:"role"`
	Content   string      `db:"content" json:"content"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}

// ToSSEEventData returns JSON data for SSE message events
func (m *ChatMessage) ToSSEEventData() json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"id":        m.ID,
		"sessionId": m.SessionID,
		"role":      m.Role,
		"content":   m.Content,
		"createdAt": m.CreatedAt,
	})
	return data
}

type CreateChatMessageParams struct {
	SessionID string
	Role      MessageRole
	Content   string
}
