package auth

import (
	"context"
)

// StaticProvider serves a fixed access token, e.g. one passed on the command line.
type StaticProvider struct {
	session *Session
}

// NewStaticProvider wraps token. When token is a JWT its exp claim becomes the session expiry.
func NewStaticProvider(token string) *StaticProvider {
	if token == "" {
		return &StaticProvider{}
	}
	s := &Session{AccessToken: token}
	if exp, ok := ExpiryFromJWT(token); ok {
		s.ExpiresAt = exp
	}
	return &StaticProvider{session: s}
}

func (p *StaticProvider) Session(context.Context) (*Session, error) {
	if p.session == nil {
		return nil, nil
	}
	s := *p.session
	return &s, nil
}

// Refresh cannot mint a new token; it hands back the configured one.
func (p *StaticProvider) Refresh(ctx context.Context) (*Session, error) {
	if p.session == nil {
		return nil, ErrNoSession
	}
	return p.Session(ctx)
}
