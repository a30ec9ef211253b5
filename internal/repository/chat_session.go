package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sugarloaf/chat-server-go/internal/model"
)

type ChatSessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.ChatSession, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.ChatSession, error)
	Create(ctx context.Context, params model.CreateChatSessionParams) (*model.ChatSession, error)
	List(ctx context.Context, status *model.SessionStatus, limit, offset int) ([]model.ChatSession, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status model.SessionStatus) (int, error)
	// UpdateStatusFrom flips the status only when the current value still
	// matches expected, and reports whether the write was applied.
	UpdateStatusFrom(ctx context.Context, id string, expected, next model.SessionStatus) (bool, error)
	// ClaimNotification sets whatsapp_notified exactly once per session and
	// reports whether this call won the claim.
	ClaimNotification(ctx context.Context, id string) (bool, error)
	SetCustomerInfo(ctx context.Context, id string, name, email *string) error
	Touch(ctx context.Context, id string) error
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type chatSessionRepo struct {
	db *sqlx.DB
}

func NewChatSessionRepository(db *sqlx.DB) ChatSessionRepository {
	return &chatSessionRepo{db: db}
}

func (r *chatSessionRepo) FindByID(ctx context.Context, id string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.GetContext(ctx, &session, `SELECT * FROM chat_sessions WHERE id = $1`, id)
	return HandleNotFound(&session, err)
}

func (r *chatSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM chat_sessions WHERE session_token_hash = $1
	`, tokenHash)
	return HandleNotFound(&session, err)
}

func (r *chatSessionRepo) Create(ctx context.Context, params model.CreateChatSessionParams) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO chat_sessions (session_token_hash, customer_name, customer_email)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_token_hash) DO UPDATE SET
			customer_name = COALESCE(chat_sessions.customer_name, EXCLUDED.customer_name),
			customer_email = COALESCE(chat_sessions.customer_email, EXCLUDED.customer_email)
		RETURNING *
	`, params.SessionTokenHash, params.CustomerName, params.CustomerEmail)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *chatSessionRepo) List(ctx context.Context, status *model.SessionStatus, limit, offset int) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	if status != nil {
		err := r.db.SelectContext(ctx, &sessions, `
			SELECT * FROM chat_sessions
			WHERE status = $1
			ORDER BY updated_at DESC
			LIMIT $2 OFFSET $3
		`, *status, limit, offset)
		return sessions, err
	}
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM chat_sessions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return sessions, err
}

func (r *chatSessionRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chat_sessions`)
	return count, err
}

func (r *chatSessionRepo) CountByStatus(ctx context.Context, status model.SessionStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM chat_sessions WHERE status = $1
	`, status)
	return count, err
}

func (r *chatSessionRepo) UpdateStatusFrom(ctx context.Context, id string, expected, next model.SessionStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE chat_sessions SET
			status = $3,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, expected, next)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *chatSessionRepo) ClaimNotification(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE chat_sessions SET
			whatsapp_notified = TRUE,
			updated_at = NOW()
		WHERE id = $1 AND whatsapp_notified = FALSE
	`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *chatSessionRepo) SetCustomerInfo(ctx context.Context, id string, name, email *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chat_sessions SET
			customer_name = COALESCE($2, customer_name),
			customer_email = COALESCE($3, customer_email),
			updated_at = NOW()
		WHERE id = $1
	`, id, name, email)
	return err
}

func (r *chatSessionRepo) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE chat_sessions SET updated_at = NOW() WHERE id = $1
	`, id)
	return err
}

func (r *chatSessionRepo) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM chat_sessions
		WHERE status = 'resolved' AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
