// Package auth holds the session providers and the process-wide token source
// that the API client draws bearer tokens from.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoSession is returned when the provider has no signed-in session.
	ErrNoSession = errors.New("no active session")

	// ErrNoRefreshToken is returned when a refresh is requested without a refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// Session is the auth provider's view of the signed-in user.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExpiresWithin reports whether the session expires within window of now.
// A session without an expiry never does.
func (s *Session) ExpiresWithin(now time.Time, window time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !s.ExpiresAt.Add(-window).After(now)
}

// SessionProvider is implemented by auth backends.
type SessionProvider interface {
	// Session returns the current session, or nil when signed out.
	Session(ctx context.Context) (*Session, error)
	// Refresh exchanges the refresh token for a new session and stores it.
	Refresh(ctx context.Context) (*Session, error)
}
