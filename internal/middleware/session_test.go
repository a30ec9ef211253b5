package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sugarloaf/chat-server-go/internal/model"
	"github.com/sugarloaf/chat-server-go/internal/util"
)

type mockAdminSessionRepo struct {
	findByTokenHashFunc func(ctx context.Context, tokenHash string) (*model.AdminSession, error)
}

func (m *mockAdminSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AdminSession, error) {
	if m.findByTokenHashFunc != nil {
		return m.findByTokenHashFunc(ctx, tokenHash)
	}
	return nil, nil
}

func (m *mockAdminSessionRepo) Create(ctx context.Context, params model.CreateAdminSessionParams) (*model.AdminSession, error) {
	return nil, nil
}

func (m *mockAdminSessionRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockAdminSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	return nil
}

func (m *mockAdminSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestAdminSessionMiddleware(t *testing.T) {
	const secret = "test-session-secret-0123456789abcdef"
	const passwordHash = "$2a$12$abcdefghijklmnopqrstuv"

	t.Run("returns 503 when admin is not configured", func(t *testing.T) {
		m := NewAdminSessionMiddleware(&mockAdminSessionRepo{}, "", secret)
		next, called := okHandler()

		req := httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
		rec := httptest.NewRecorder()

		m.Handler(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.False(t, *called)
	})

	t.Run("returns 401 without cookie", func(t *testing.T) {
		m := NewAdminSessionMiddleware(&mockAdminSessionRepo{}, passwordHash, secret)
		next, called := okHandler()

		req := httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
		rec := httptest.NewRecorder()

		m.Handler(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, *called)
	})

	t.Run("returns 401 for unknown session token", func(t *testing.T) {
		repo := &mockAdminSessionRepo{
			findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.AdminSession, error) {
				return nil, nil
			},
		}
		m := NewAdminSessionMiddleware(repo, passwordHash, secret)
		next, called := okHandler()

		req := httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
		req.AddCookie(&http.Cookie{Name: AdminSessionCookie, Value: "stale-token"})
		rec := httptest.NewRecorder()

		m.Handler(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, *called)
	})

	t.Run("returns 500 on database error", func(t *testing.T) {
		repo := &mockAdminSessionRepo{
			findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.AdminSession, error) {
				return nil, errors.New("connection refused")
			},
		}
		m := NewAdminSessionMiddleware(repo, passwordHash, secret)
		next, called := okHandler()

		req := httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
		req.AddCookie(&http.Cookie{Name: AdminSessionCookie, Value: "tok-1"})
		rec := httptest.NewRecorder()

		m.Handler(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.False(t, *called)
	})

	t.Run("looks up the HMAC of the cookie value and passes through", func(t *testing.T) {
		var lookedUp string
		adminSession := &model.AdminSession{ID: "as-1"}
		repo := &mockAdminSessionRepo{
			findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.AdminSession, error) {
				lookedUp = tokenHash
				return adminSession, nil
			},
		}
		m := NewAdminSessionMiddleware(repo, passwordHash, secret)

		var gotSession *model.AdminSession
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSession = GetAdminSession(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil)
		req.AddCookie(&http.Cookie{Name: AdminSessionCookie, Value: "tok-1"})
		rec := httptest.NewRecorder()

		m.Handler(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, util.HmacSHA256(secret, "tok-1"), lookedUp)
		assert.Equal(t, adminSession, gotSession)
	})
}

func TestSessionCookies(t *testing.T) {
	t.Run("SetSessionCookie marks cookie HttpOnly", func(t *testing.T) {
		rec := httptest.NewRecorder()

		SetSessionCookie(rec, AdminSessionCookie, "tok-1", "/admin", true)

		cookies := rec.Result().Cookies()
		assert.Len(t, cookies, 1)
		assert.Equal(t, "tok-1", cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
		assert.True(t, cookies[0].Secure)
		assert.Equal(t, "/admin", cookies[0].Path)
	})

	t.Run("ClearSessionCookie expires the cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()

		ClearSessionCookie(rec, AdminSessionCookie, "/admin")

		cookies := rec.Result().Cookies()
		assert.Len(t, cookies, 1)
		assert.Empty(t, cookies[0].Value)
		assert.Negative(t, cookies[0].MaxAge)
	})
}

func TestGetAdminSession(t *testing.T) {
	t.Run("returns nil for bare context", func(t *testing.T) {
		assert.Nil(t, GetAdminSession(context.Background()))
	})
}
