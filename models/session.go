package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record of an issued token. It stores only a
// one-way fingerprint of the token, never the bearer secret itself, so the
// registry can revoke or confirm liveness without retaining credentials at rest.
type Session struct {
	ID               uuid.UUID `json:"id" db:"id"`
	AccountID        uuid.UUID `json:"account_id" db:"account_id"`
	TokenFingerprint string    `json:"-" db:"token_fingerprint"`
	ExpiresAt        time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Session model
func (Session) TableName() string {
	return "sessions"
}

// NewSession creates a new Session instance
func NewSession(accountID uuid.UUID, fingerprint string, expiresAt time.Time) *Session {
	return &Session{
		ID:               uuid.New(),
		AccountID:        accountID,
		TokenFingerprint: fingerprint,
		ExpiresAt:        expiresAt,
		CreatedAt:        time.Now().UTC(),
	}
}

// Live reports whether the session is still valid at the given instant
func (s *Session) Live(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
