package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoginRateLimiter(t *testing.T) {
	t.Run("allows attempts under the limit", func(t *testing.T) {
		limiter := NewLoginRateLimiter()

		for i := 0; i < loginMaxAttempts; i++ {
			assert.True(t, limiter.isAllowed("10.0.0.1"))
		}
	})

	t.Run("blocks attempts over the limit", func(t *testing.T) {
		limiter := NewLoginRateLimiter()

		for i := 0; i < loginMaxAttempts; i++ {
			limiter.isAllowed("10.0.0.2")
		}

		assert.False(t, limiter.isAllowed("10.0.0.2"))
	})

	t.Run("tracks addresses separately", func(t *testing.T) {
		limiter := NewLoginRateLimiter()

		for i := 0; i < loginMaxAttempts; i++ {
			limiter.isAllowed("10.0.0.3")
		}

		assert.True(t, limiter.isAllowed("10.0.0.4"))
	})
}

func TestLoginRateLimiterHandler(t *testing.T) {
	t.Run("returns 429 with Retry-After once exhausted", func(t *testing.T) {
		limiter := NewLoginRateLimiter()
		handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		var lastCode int
		for i := 0; i < loginMaxAttempts+1; i++ {
			req := httptest.NewRequest(http.MethodPost, "/admin/api/login", nil)
			req.RemoteAddr = "10.0.0.5:1234"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			lastCode = rec.Code
		}

		assert.Equal(t, http.StatusTooManyRequests, lastCode)
	})

	t.Run("keys on X-Forwarded-For when present", func(t *testing.T) {
		limiter := NewLoginRateLimiter()
		handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		for i := 0; i < loginMaxAttempts; i++ {
			req := httptest.NewRequest(http.MethodPost, "/admin/api/login", nil)
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
		}

		// Same proxy address, different forwarded client
		req := httptest.NewRequest(http.MethodPost, "/admin/api/login", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.10")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
