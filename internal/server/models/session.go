package models

import "time"

type Session struct {
	Token       string
	DisplayName string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
