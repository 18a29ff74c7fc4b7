// internal/models/session.go
package models

import "time"

// Session is an authenticated login, stored in Redis under its token.
type Session struct {
	Token        string    `json:"token"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// IsExpired checks if session has expired
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Touch slides the expiry forward by ttl.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	s.LastActivity = now
	s.ExpiresAt = now.Add(ttl)
}
