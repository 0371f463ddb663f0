package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SupabaseProvider talks to a GoTrue-compatible auth server (Supabase Auth).
type SupabaseProvider struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client

	mu      sync.Mutex
	session *Session
}

// NewSupabaseProvider creates a provider seeded with an initial session. initial may carry only a
// refresh token, in which case the first Token call refreshes.
func NewSupabaseProvider(baseURL, anonKey string, initial *Session, httpClient *http.Client) *SupabaseProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	var s *Session
	if initial != nil {
		cp := *initial
		if cp.ExpiresAt.IsZero() {
			if exp, ok := ExpiryFromJWT(cp.AccessToken); ok {
				cp.ExpiresAt = exp
			}
		}
		s = &cp
	}
	return &SupabaseProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: httpClient,
		session:    s,
	}
}

func (p *SupabaseProvider) Session(context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil, nil
	}
	if p.session.AccessToken == "" && p.session.RefreshToken == "" {
		return nil, nil
	}
	s := *p.session
	return &s, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	TokenType    string `json:"token_type"`
}

func (p *SupabaseProvider) Refresh(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	var refreshToken string
	if p.session != nil {
		refreshToken = p.session.RefreshToken
	}
	p.mu.Unlock()
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/auth/v1/token?grant_type=refresh_token", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.anonKey != "" {
		req.Header.Set("apikey", p.anonKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("refresh rejected: %s, %s", resp.Status, string(errBody))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("refresh response carried no access token")
	}

	s := &Session{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	default:
		if exp, ok := ExpiryFromJWT(tr.AccessToken); ok {
			s.ExpiresAt = exp
		}
	}
	if s.RefreshToken == "" {
		s.RefreshToken = refreshToken
	}

	p.mu.Lock()
	p.session = s
	p.mu.Unlock()

	out := *s
	return &out, nil
}
