package service

import (
	"strings"

	"github.com/sugarloaf/chat-server-go/internal/model"
)

// The session status state machine:
//
//	bot -> waiting        customer asks for a human
//	bot -> bot            plain customer message, bot replies
//	bot|waiting -> human  admin takes over silently
//	human -> bot          admin hands back to the AI
//	any -> resolved       admin closes the conversation
//	resolved -> bot|human admin reopens
//
// Customer messages never move a session out of waiting, human or resolved;
// only admin actions do. Every transition is applied with a compare-and-swap
// on the expected status, so concurrent takeover and auto-escalation resolve
// to whichever write lands first.

// adminTransitions lists the admin-triggered edges.
var adminTransitions = map[model.SessionStatus][]model.SessionStatus{
	model.StatusBot:      {model.StatusHuman, model.StatusResolved},
	model.StatusWaiting:  {model.StatusHuman, model.StatusResolved},
	model.StatusHuman:    {model.StatusBot, model.StatusResolved},
	model.StatusResolved: {model.StatusBot, model.StatusHuman},
}

// CanAdminTransition reports whether an admin may move a session from one
// status to another.
func CanAdminTransition(from, to model.SessionStatus) bool {
	for _, allowed := range adminTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// EscalationMatcher recognizes customer messages that request a human agent.
type EscalationMatcher struct {
	phrases []string
}

func NewEscalationMatcher(phrases []string) *EscalationMatcher {
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	return &EscalationMatcher{phrases: normalized}
}

// Matches does an exact comparison against the configured phrase list,
// ignoring case and surrounding whitespace.
func (m *EscalationMatcher) Matches(content string) bool {
	normalized := strings.ToLower(strings.TrimSpace(content))
	for _, p := range m.phrases {
		if normalized == p {
			return true
		}
	}
	return false
}
