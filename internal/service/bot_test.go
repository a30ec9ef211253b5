package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sugarloaf/chat-server-go/internal/model"
)

func TestBuildBotMessages(t *testing.T) {
	history := []model.ChatMessage{
		{Role: model.RoleCustomer, Content: "hi"},
		{Role: model.RoleBot, Content: "hello, how can I help?"},
		{Role: model.RoleHumanAgent, Content: "your order shipped"},
		{Role: model.RoleCustomer, Content: "thanks"},
	}

	t.Run("maps roles onto completion API roles", func(t *testing.T) {
		messages := buildBotMessages("", history)

		assert.Len(t, messages, 4)
		assert.Equal(t, "user", messages[0].Role)
		assert.Equal(t, "assistant", messages[1].Role)
		assert.Equal(t, "assistant", messages[2].Role)
		assert.Equal(t, "user", messages[3].Role)
	})

	t.Run("prepends system prompt when configured", func(t *testing.T) {
		messages := buildBotMessages("You are a bakery assistant.", history)

		assert.Len(t, messages, 5)
		assert.Equal(t, "system", messages[0].Role)
		assert.Equal(t, "You are a bakery assistant.", messages[0].Content)
	})

	t.Run("omits system message when prompt is empty", func(t *testing.T) {
		messages := buildBotMessages("", history)

		assert.Equal(t, "user", messages[0].Role)
	})
}

func TestHTTPBotResponder_Reply(t *testing.T) {
	ctx := context.Background()
	history := []model.ChatMessage{{Role: model.RoleCustomer, Content: "do you have rye bread"}}

	t.Run("returns ErrBotDisabled without API URL", func(t *testing.T) {
		bot := NewHTTPBotResponder(BotConfig{})

		reply, err := bot.Reply(ctx, history)

		assert.ErrorIs(t, err, ErrBotDisabled)
		assert.Empty(t, reply)
	})

	t.Run("returns reply from completion endpoint", func(t *testing.T) {
		var gotAuth string
		var gotReq botChatRequest

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			json.NewDecoder(r.Body).Decode(&gotReq)

			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]string{"content": "Yes, fresh every morning."}},
				},
			})
		}))
		defer server.Close()

		bot := NewHTTPBotResponder(BotConfig{
			APIURL:       server.URL,
			APIKey:       "test-key",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a bakery assistant.",
		})

		reply, err := bot.Reply(ctx, history)

		assert.NoError(t, err)
		assert.Equal(t, "Yes, fresh every morning.", reply)
		assert.Equal(t, "Bearer test-key", gotAuth)
		assert.Equal(t, "gpt-4o-mini", gotReq.Model)
		assert.Len(t, gotReq.Messages, 2)
		assert.Equal(t, "system", gotReq.Messages[0].Role)
	})

	t.Run("returns error on non-2xx status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		bot := NewHTTPBotResponder(BotConfig{APIURL: server.URL})

		reply, err := bot.Reply(ctx, history)

		assert.Error(t, err)
		assert.Empty(t, reply)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("returns error on empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}))
		defer server.Close()

		bot := NewHTTPBotResponder(BotConfig{APIURL: server.URL})

		reply, err := bot.Reply(ctx, history)

		assert.Error(t, err)
		assert.Empty(t, reply)
	})
}
