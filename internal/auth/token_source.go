package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"

	"github.com/intentscout/scoutctl/internal/logging"
	"github.com/intentscout/scoutctl/internal/telemetry"
)

// RefreshWindow is how close to expiry a token may get before it is refreshed proactively.
const RefreshWindow = 5 * time.Minute

const refreshKey = "refresh"

// TokenSource hands out access tokens, refreshing them at most once at a time.
type TokenSource struct {
	provider SessionProvider
	clock    clock.PassiveClock
	window   time.Duration
	logger   *slog.Logger
	metrics  *telemetry.Metrics

	group singleflight.Group

	mu    sync.Mutex
	stale bool
}

// TokenSourceOption configures a TokenSource.
type TokenSourceOption func(*TokenSource)

func WithClock(c clock.PassiveClock) TokenSourceOption {
	return func(ts *TokenSource) { ts.clock = c }
}

func WithRefreshWindow(d time.Duration) TokenSourceOption {
	return func(ts *TokenSource) { ts.window = d }
}

func WithLogger(l *slog.Logger) TokenSourceOption {
	return func(ts *TokenSource) { ts.logger = l }
}

func WithMetrics(m *telemetry.Metrics) TokenSourceOption {
	return func(ts *TokenSource) { ts.metrics = m }
}

// NewTokenSource creates a token source over provider.
func NewTokenSource(provider SessionProvider, opts ...TokenSourceOption) *TokenSource {
	ts := &TokenSource{
		provider: provider,
		clock:    clock.RealClock{},
		window:   RefreshWindow,
	}
	for _, opt := range opts {
		opt(ts)
	}
	ts.logger = logging.OrDiscard(ts.logger)
	return ts
}

// Token returns a usable access token. Callers racing on an expiring session
// all wait on the same refresh.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	sess, err := ts.provider.Session(ctx)
	if err != nil {
		ts.logger.Error("failed to read session", "error", err)
		return "", fmt.Errorf("failed to read session: %w", err)
	}
	if sess == nil {
		return "", ErrNoSession
	}
	if !ts.needsRefresh(sess) {
		return sess.AccessToken, nil
	}

	ts.logger.Debug("token expiring soon, refreshing", "expires_at", sess.ExpiresAt)
	ch := ts.group.DoChan(refreshKey, func() (any, error) {
		// Detached from the first caller so its cancellation does not fail everyone else.
		return ts.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops any in-flight refresh and forces the next Token call to refresh.
func (ts *TokenSource) Invalidate() {
	ts.group.Forget(refreshKey)
	ts.mu.Lock()
	ts.stale = true
	ts.mu.Unlock()
}

func (ts *TokenSource) needsRefresh(sess *Session) bool {
	ts.mu.Lock()
	stale := ts.stale
	ts.mu.Unlock()
	return stale || sess.AccessToken == "" || sess.ExpiresWithin(ts.clock.Now(), ts.window)
}

func (ts *TokenSource) refresh(ctx context.Context) (string, error) {
	// A caller that lost the race to join a finished flight lands here with a fresh session.
	if sess, err := ts.provider.Session(ctx); err == nil && sess != nil && !ts.needsRefresh(sess) {
		return sess.AccessToken, nil
	}

	sess, err := ts.provider.Refresh(ctx)
	if err == nil && (sess == nil || sess.AccessToken == "") {
		err = errors.New("refresh returned no session")
	}
	if err != nil {
		ts.metrics.RecordTokenRefresh(ctx, false)
		ts.logger.Error("failed to refresh token", "error", err)
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	ts.mu.Lock()
	ts.stale = false
	ts.mu.Unlock()
	ts.metrics.RecordTokenRefresh(ctx, true)
	ts.logger.Debug("token refreshed", "expires_at", sess.ExpiresAt)
	return sess.AccessToken, nil
}
