package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sugarloaf/chat-server-go/internal/model"
)

type ChatMessageRepository interface {
	FindByID(ctx context.Context, id string) (*model.ChatMessage, error)
	FindBySessionID(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	FindRecentBySessionID(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error)
	Create(ctx context.Context, params model.CreateChatMessageParams) (*model.ChatMessage, error)
	CountBySessionID(ctx context.Context, sessionID string) (int, error)
	Count(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

type chatMessageRepo struct {
	db *sqlx.DB
}

func NewChatMessageRepository(db *sqlx.DB) ChatMessageRepository {
	return &chatMessageRepo{db: db}
}

func (r *chatMessageRepo) FindByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	err := r.db.GetContext(ctx, &msg, `SELECT * FROM chat_messages WHERE id = $1`, id)
	return HandleNotFound(&msg, err)
}

func (r *chatMessageRepo) FindBySessionID(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	return msgs, err
}

func (r *chatMessageRepo) FindRecentBySessionID(ctx context.Context, sessionID string, limit int) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM (
			SELECT * FROM chat_messages
			WHERE session_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`, sessionID, limit)
	return msgs, err
}

func (r *chatMessageRepo) Create(ctx context.Context, params model.CreateChatMessageParams) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO chat_messages (session_id, role, content)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.SessionID, params.Role, params.Content)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *chatMessageRepo) CountBySessionID(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM chat_messages WHERE session_id = $1
	`, sessionID)
	return count, err
}

func (r *chatMessageRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chat_messages`)
	return count, err
}

func (r *chatMessageRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM chat_messages WHERE created_at >= $1
	`, since)
	return count, err
}
