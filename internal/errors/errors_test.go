package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Chat session not found")
		assert.Equal(t, "NOT_FOUND: Chat session not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "status", "reason": "unknown value"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Unauthorized", func() *AppError { return Unauthorized("test") }, ErrCodeUnauthorized},
		{"Forbidden", func() *AppError { return Forbidden("test") }, ErrCodeForbidden},
		{"NotFound", func() *AppError { return NotFound("Chat session") }, ErrCodeNotFound},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("status", "unknown") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("content") }, ErrCodeMissingRequired},
		{"InvalidTransition", func() *AppError { return InvalidTransition("waiting", "bot") }, ErrCodeInvalidTransition},
		{"StatusConflict", func() *AppError { return StatusConflict() }, ErrCodeStatusConflict},
		{"SessionResolved", func() *AppError { return SessionResolved() }, ErrCodeSessionResolved},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"BotUnavailable", func() *AppError { return BotUnavailable(errors.New("down")) }, ErrCodeBotUnavailable},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
		{"Database", func() *AppError { return Database(errors.New("down")) }, ErrCodeDatabase},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedCode, tc.constructor().Code)
		})
	}
}

func TestInvalidTransitionMessage(t *testing.T) {
	err := InvalidTransition("waiting", "bot")
	assert.Contains(t, err.Message, "waiting")
	assert.Contains(t, err.Message, "bot")
}

func TestAsAppError(t *testing.T) {
	t.Run("unwraps AppError", func(t *testing.T) {
		original := NotFound("Chat session")
		appErr, ok := AsAppError(original)
		assert.True(t, ok)
		assert.Equal(t, ErrCodeNotFound, appErr.Code)
	})

	t.Run("rejects plain errors", func(t *testing.T) {
		_, ok := AsAppError(errors.New("plain"))
		assert.False(t, ok)
	})
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeStatusConflict, GetCode(StatusConflict()))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
}
