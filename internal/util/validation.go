package util

import (
	"regexp"
	"strings"
)

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	return uuidRegex.MatchString(s)
}

func IsValidEnum(value string, validValues []string) bool {
	if value == "" {
		return true
	}
	for _, v := range validValues {
		if value == v {
			return true
		}
	}
	return false
}

// Session tokens are client-generated opaque strings; bound the shape so
// arbitrary payloads cannot be used as lookup keys.
const (
	minSessionTokenLen = 16
	maxSessionTokenLen = 128
)

var sessionTokenRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func IsValidSessionToken(token string) bool {
	if len(token) < minSessionTokenLen || len(token) > maxSessionTokenLen {
		return false
	}
	return sessionTokenRegex.MatchString(token)
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func IsValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(strings.TrimSpace(email))
}
