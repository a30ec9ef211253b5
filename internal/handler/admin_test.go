package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/sugarloaf/chat-server-go/internal/middleware"
	"github.com/sugarloaf/chat-server-go/internal/model"
	"github.com/sugarloaf/chat-server-go/internal/service"
)

type mockAdminSessionRepo struct {
	mock.Mock
}

func (m *mockAdminSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AdminSession, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminSession), args.Error(1)
}

func (m *mockAdminSessionRepo) Create(ctx context.Context, params model.CreateAdminSessionParams) (*model.AdminSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminSession), args.Error(1)
}

func (m *mockAdminSessionRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockAdminSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockAdminSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func passThroughMiddleware(next http.Handler) http.Handler {
	return next
}

type adminTestDeps struct {
	adminRepo *mockAdminSessionRepo
	sessions  *mockChatSessionRepo
	messages  *mockChatMessageRepo
	handler   *AdminHandler
}

func newTestAdminHandler(t *testing.T, password string) adminTestDeps {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.NoError(t, err)

	adminRepo := new(mockAdminSessionRepo)
	sessions := new(mockChatSessionRepo)
	messages := new(mockChatMessageRepo)

	matcher := service.NewEscalationMatcher(nil)
	chatService := service.NewChatService(sessions, messages, stubBot{}, stubNotifier{}, nil, matcher, 50)
	adminService := service.NewAdminService(adminRepo, sessions, messages, string(hash), "test-secret")

	h := NewAdminHandler(adminService, chatService, NewEventsHandler(nil), passThroughMiddleware, false)

	return adminTestDeps{
		adminRepo: adminRepo,
		sessions:  sessions,
		messages:  messages,
		handler:   h,
	}
}

const sessionID = "6b4a9c5e-2f71-4d3a-8a1f-0c9d8e7f6a5b"

func TestAdminHandler_Login(t *testing.T) {
	t.Run("sets session cookie for correct password", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		deps.adminRepo.On("Create", mock.Anything, mock.Anything).
			Return(&model.AdminSession{ID: "as-1"}, nil)

		body := bytes.NewBufferString(`{"password": "letmein"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/login", body)
		rec := httptest.NewRecorder()

		deps.handler.Login(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		cookies := rec.Result().Cookies()
		var found bool
		for _, c := range cookies {
			if c.Name == middleware.AdminSessionCookie && c.Value != "" {
				found = true
				assert.True(t, c.HttpOnly)
			}
		}
		assert.True(t, found, "expected admin session cookie")
	})

	t.Run("returns 401 for wrong password", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		body := bytes.NewBufferString(`{"password": "nope"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/login", body)
		rec := httptest.NewRecorder()

		deps.handler.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		deps.adminRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("returns 400 for missing password", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		body := bytes.NewBufferString(`{}`)
		req := httptest.NewRequest(http.MethodPost, "/api/login", body)
		rec := httptest.NewRecorder()

		deps.handler.Login(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminHandler_ListSessions(t *testing.T) {
	t.Run("lists sessions without filter", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		deps.sessions.On("List", mock.Anything, (*model.SessionStatus)(nil), DefaultLimit, 0).
			Return([]model.ChatSession{{ID: "sess-1"}, {ID: "sess-2"}}, nil)

		router := deps.handler.Routes()
		req := httptest.NewRequest(http.MethodGet, "/api/chat/sessions", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "sess-1")
		assert.Contains(t, rec.Body.String(), "sess-2")
	})

	t.Run("applies status filter", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		waiting := model.StatusWaiting
		deps.sessions.On("List", mock.Anything, &waiting, DefaultLimit, 0).
			Return([]model.ChatSession{{ID: "sess-1", Status: model.StatusWaiting}}, nil)

		router := deps.handler.Routes()
		req := httptest.NewRequest(http.MethodGet, "/api/chat/sessions?status=waiting", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		deps.sessions.AssertExpectations(t)
	})

	t.Run("rejects unknown status filter", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		router := deps.handler.Routes()
		req := httptest.NewRequest(http.MethodGet, "/api/chat/sessions?status=archived", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
	})
}

func TestAdminHandler_UpdateStatus(t *testing.T) {
	t.Run("applies admin takeover", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		current := &model.ChatSession{ID: sessionID, Status: model.StatusWaiting}
		updated := &model.ChatSession{ID: sessionID, Status: model.StatusHuman}

		deps.sessions.On("FindByID", mock.Anything, sessionID).Return(current, nil).Once()
		deps.sessions.On("UpdateStatusFrom", mock.Anything, sessionID, model.StatusWaiting, model.StatusHuman).Return(true, nil)
		deps.sessions.On("FindByID", mock.Anything, sessionID).Return(updated, nil).Once()

		router := deps.handler.Routes()
		body := bytes.NewBufferString(`{"status": "human"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/chat/sessions/"+sessionID+"/status", body)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"human"`)
	})

	t.Run("rejects invalid transition", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		current := &model.ChatSession{ID: sessionID, Status: model.StatusWaiting}
		deps.sessions.On("FindByID", mock.Anything, sessionID).Return(current, nil)

		router := deps.handler.Routes()
		body := bytes.NewBufferString(`{"status": "bot"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/chat/sessions/"+sessionID+"/status", body)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_TRANSITION")
	})

	t.Run("returns 409 on concurrent change", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		current := &model.ChatSession{ID: sessionID, Status: model.StatusWaiting}
		deps.sessions.On("FindByID", mock.Anything, sessionID).Return(current, nil)
		deps.sessions.On("UpdateStatusFrom", mock.Anything, sessionID, model.StatusWaiting, model.StatusResolved).Return(false, nil)

		router := deps.handler.Routes()
		body := bytes.NewBufferString(`{"status": "resolved"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/chat/sessions/"+sessionID+"/status", body)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "STATUS_CONFLICT")
	})

	t.Run("rejects malformed session id", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		router := deps.handler.Routes()
		body := bytes.NewBufferString(`{"status": "human"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/chat/sessions/not-a-uuid/status", body)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminHandler_Reply(t *testing.T) {
	t.Run("stores agent reply", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		session := &model.ChatSession{ID: sessionID, Status: model.StatusHuman}
		msg := &model.ChatMessage{ID: "msg-1", SessionID: sessionID, Role: model.RoleHumanAgent, Content: "Hi, agent here"}

		deps.sessions.On("FindByID", mock.Anything, sessionID).Return(session, nil)
		deps.messages.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateChatMessageParams) bool {
			return p.Role == model.RoleHumanAgent
		})).Return(msg, nil)
		deps.sessions.On("Touch", mock.Anything, sessionID).Return(nil)

		router := deps.handler.Routes()
		body := bytes.NewBufferString(`{"content": "Hi, agent here"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/chat/sessions/"+sessionID+"/reply", body)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "human_agent")
	})

	t.Run("rejects empty content", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		session := &model.ChatSession{ID: sessionID, Status: model.StatusHuman}
		deps.sessions.On("FindByID", mock.Anything, sessionID).Return(session, nil)

		router := deps.handler.Routes()
		body := bytes.NewBufferString(`{"content": "  "}`)
		req := httptest.NewRequest(http.MethodPost, "/api/chat/sessions/"+sessionID+"/reply", body)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminHandler_Stats(t *testing.T) {
	t.Run("returns aggregated stats", func(t *testing.T) {
		deps := newTestAdminHandler(t, "letmein")

		deps.sessions.On("Count", mock.Anything).Return(7, nil)
		deps.sessions.On("CountByStatus", mock.Anything, model.StatusBot).Return(3, nil)
		deps.sessions.On("CountByStatus", mock.Anything, model.StatusWaiting).Return(1, nil)
		deps.sessions.On("CountByStatus", mock.Anything, model.StatusHuman).Return(1, nil)
		deps.sessions.On("CountByStatus", mock.Anything, model.StatusResolved).Return(2, nil)
		deps.messages.On("Count", mock.Anything).Return(42, nil)
		deps.messages.On("CountSince", mock.Anything, mock.Anything).Return(5, nil)

		router := deps.handler.Routes()
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var stats service.Stats
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, 7, stats.Sessions.Total)
		assert.Equal(t, 42, stats.Messages.Total)
	})
}
