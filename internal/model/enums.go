package model

type SessionStatus string

const (
	StatusBot      SessionStatus = "bot"
	StatusWaiting  SessionStatus = "waiting"
	StatusHuman    SessionStatus = "human"
	StatusResolved SessionStatus = "resolved"
)

func (s SessionStatus) IsValid() bool {
	switch s {
	case StatusBot, StatusWaiting, StatusHuman, StatusResolved:
		return true
	}
	return false
}

type MessageRole string

const (
	RoleCustomer   MessageRole = "customer"
	RoleBot        MessageRole = "bot"
	RoleHumanAgent MessageRole = "human_agent"
)

func (r MessageRole) IsValid() bool {
	switch r {
	case RoleCustomer, RoleBot, RoleHumanAgent:
		return true
	}
	return false
}
