package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sugarloaf/chat-server-go/internal/model"
)

func TestCanAdminTransition(t *testing.T) {
	allowed := []struct {
		from, to model.SessionStatus
	}{
		{model.StatusBot, model.StatusHuman},
		{model.StatusBot, model.StatusResolved},
		{model.StatusWaiting, model.StatusHuman},
		{model.StatusWaiting, model.StatusResolved},
		{model.StatusHuman, model.StatusBot},
		{model.StatusHuman, model.StatusResolved},
		{model.StatusResolved, model.StatusBot},
		{model.StatusResolved, model.StatusHuman},
	}

	for _, tc := range allowed {
		t.Run(string(tc.from)+" to "+string(tc.to), func(t *testing.T) {
			assert.True(t, CanAdminTransition(tc.from, tc.to))
		})
	}

	blocked := []struct {
		from, to model.SessionStatus
	}{
		{model.StatusBot, model.StatusWaiting},
		{model.StatusWaiting, model.StatusBot},
		{model.StatusHuman, model.StatusWaiting},
		{model.StatusResolved, model.StatusWaiting},
	}

	for _, tc := range blocked {
		t.Run(string(tc.from)+" to "+string(tc.to)+" is blocked", func(t *testing.T) {
			assert.False(t, CanAdminTransition(tc.from, tc.to))
		})
	}

	t.Run("unknown status has no edges", func(t *testing.T) {
		assert.False(t, CanAdminTransition(model.SessionStatus("archived"), model.StatusHuman))
	})
}

func TestEscalationMatcher(t *testing.T) {
	matcher := NewEscalationMatcher([]string{"Speak to a Human", "  talk to a person  ", ""})

	t.Run("matches exact phrase", func(t *testing.T) {
		assert.True(t, matcher.Matches("speak to a human"))
	})

	t.Run("ignores case", func(t *testing.T) {
		assert.True(t, matcher.Matches("SPEAK TO A HUMAN"))
	})

	t.Run("ignores surrounding whitespace", func(t *testing.T) {
		assert.True(t, matcher.Matches("  talk to a person\n"))
	})

	t.Run("does not match substrings", func(t *testing.T) {
		assert.False(t, matcher.Matches("can I speak to a human please"))
	})

	t.Run("does not match unrelated messages", func(t *testing.T) {
		assert.False(t, matcher.Matches("do you sell sourdough"))
	})

	t.Run("empty configured phrases never match", func(t *testing.T) {
		assert.False(t, matcher.Matches(""))
	})
}
