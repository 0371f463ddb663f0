// Package client is the HTTP request layer for the IntentScout API: bearer auth with
// proactive refresh, per-request timeouts, a single retry on 401 and uniform error
// reporting.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/intentscout/scoutctl/internal/auth"
	"github.com/intentscout/scoutctl/internal/config"
	"github.com/intentscout/scoutctl/internal/logging"
	"github.com/intentscout/scoutctl/internal/telemetry"
)

const (
	errAuthRequired = "Authentication required"
	errTimeout      = "Request timeout"
	errNetwork      = "Network error"
	errCancelled    = "Request cancelled"
)

// TokenSource supplies bearer tokens. *auth.TokenSource implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client is the request layer every backend call goes through.
type Client struct {
	BaseURL    string
	httpClient *http.Client
	tokens     TokenSource
	timeout    time.Duration
	logger     *slog.Logger
	debug      bool
	metrics    *telemetry.Metrics
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithDebugLogs logs every request and response at debug level.
func WithDebugLogs(enabled bool) Option {
	return func(c *Client) { c.debug = enabled }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient constructs a client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = config.DefaultBaseURL
	}
	c := &Client{
		BaseURL: baseURL,
		// Deadlines come from per-request contexts, not the transport.
		httpClient: &http.Client{},
		timeout:    config.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout <= 0 {
		c.timeout = config.DefaultTimeout
	}
	c.logger = logging.OrDiscard(c.logger)
	return c
}

// NewClientFromConfig wires a client and its token source from cfg. A Supabase session is
// used when a refresh token is configured, otherwise the static API token.
func NewClientFromConfig(cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) *Client {
	var provider auth.SessionProvider
	if cfg.RefreshToken != "" && cfg.SupabaseURL != "" {
		provider = auth.NewSupabaseProvider(cfg.SupabaseURL, cfg.SupabaseAnonKey,
			&auth.Session{AccessToken: cfg.Token, RefreshToken: cfg.RefreshToken}, nil)
	} else {
		provider = auth.NewStaticProvider(cfg.Token)
	}
	tokens := auth.NewTokenSource(provider, auth.WithLogger(logger), auth.WithMetrics(metrics))
	return NewClient(cfg.BaseURL,
		WithTokenSource(tokens),
		WithTimeout(cfg.Timeout),
		WithLogger(logger),
		WithDebugLogs(cfg.DebugLogs),
		WithMetrics(metrics),
	)
}

// RequestOptions describes one request. The zero value is an authenticated GET.
type RequestOptions struct {
	Method  string
	Body    any
	Headers map[string]string
	// NoAuth skips the bearer token and the 401 retry.
	NoAuth bool
	// Timeout overrides the client default when positive.
	Timeout time.Duration
}

// Response is the outcome of a request. Error is empty on success. Status is 0 when no
// HTTP response was received.
type Response struct {
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Status     int             `json:"status"`
	StatusText string          `json:"statusText,omitempty"`

	// Cause is the underlying transport error, if any.
	Cause error `json:"-"`
}

// OK reports whether the request succeeded.
func (r *Response) OK() bool {
	return r != nil && r.Error == ""
}

// Error is a failed Response as a Go error.
type Error struct {
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// Err returns nil on success and an *Error otherwise.
func (r *Response) Err() error {
	if r == nil {
		return &Error{Message: errNetwork}
	}
	if r.Error == "" {
		return nil
	}
	return &Error{Status: r.Status, Message: r.Error, Cause: r.Cause}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// Decode unmarshals the response data into T. Failed responses and empty bodies are errors.
func Decode[T any](resp *Response) (T, error) {
	var out T
	if resp == nil {
		return out, errors.New("nil response")
	}
	if resp.Error != "" {
		return out, fmt.Errorf("request failed (%d): %w", resp.Status, resp.Err())
	}
	if len(resp.Data) == 0 {
		return out, errors.New("response carried no data")
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return out, fmt.Errorf("failed to decode %T: %w", out, err)
	}
	return out, nil
}

// BuildURL joins base and endpoint with exactly one slash between them.
func BuildURL(base, endpoint string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return base + endpoint
}

// Request performs a call against endpoint. It never returns nil and never panics on
// request failures; all of them are reported through Response.Error.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) *Response {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	return c.do(ctx, endpoint, opts, false)
}

func (c *Client) do(ctx context.Context, endpoint string, opts RequestOptions, isRetry bool) *Response {
	start := time.Now()
	url := BuildURL(c.BaseURL, endpoint)
	if c.debug {
		c.logger.Debug("api request", "method", opts.Method, "url", url, "retry", isRetry)
	}

	var token string
	if !opts.NoAuth {
		token = c.token(ctx)
		if token == "" {
			c.logFailure(opts.Method, url, http.StatusUnauthorized, errAuthRequired)
			return &Response{Error: errAuthRequired, Status: http.StatusUnauthorized, StatusText: "Unauthorized"}
		}
	}

	var body io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return &Response{Error: fmt.Sprintf("failed to marshal %T: %v", opts.Body, err), Cause: err}
		}
		body = bytes.NewReader(payload)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, opts.Method, url, body)
	if err != nil {
		return &Response{Error: err.Error(), Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		out := c.transportFailure(ctx, reqCtx, err)
		c.metrics.RecordClientRequest(ctx, opts.Method, 0, isRetry, time.Since(start))
		c.logFailure(opts.Method, url, 0, out.Error)
		return out
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		out := c.transportFailure(ctx, reqCtx, err)
		c.metrics.RecordClientRequest(ctx, opts.Method, 0, isRetry, time.Since(start))
		c.logFailure(opts.Method, url, 0, out.Error)
		return out
	}
	c.metrics.RecordClientRequest(ctx, opts.Method, resp.StatusCode, isRetry, time.Since(start))

	var data json.RawMessage
	if len(bytes.TrimSpace(raw)) > 0 && json.Valid(raw) {
		data = raw
	}
	text := statusText(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractError(data, resp.StatusCode)
		c.logFailure(opts.Method, url, resp.StatusCode, msg)
		if c.debug && resp.StatusCode == http.StatusUnprocessableEntity && data != nil {
			c.logger.Debug("validation error details", "body", string(data))
		}

		if resp.StatusCode == http.StatusUnauthorized && !isRetry && !opts.NoAuth && c.tokens != nil {
			c.logger.Info("got 401, forcing token refresh and retrying", "url", url)
			c.tokens.Invalidate()
			return c.do(ctx, endpoint, opts, true)
		}
		return &Response{Error: msg, Status: resp.StatusCode, StatusText: text}
	}

	if c.debug {
		c.logger.Debug("api response", "method", opts.Method, "url", url, "status", resp.StatusCode,
			"retry", isRetry, "duration", time.Since(start))
	}
	return &Response{Data: data, Status: resp.StatusCode, StatusText: text}
}

func (c *Client) token(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Warn("failed to get auth token", "error", err)
		return ""
	}
	return tok
}

// transportFailure maps an error raised before a full response was read. A deadline
// that fires on the per-request context is a timeout; cancellation of the caller's own
// context is reported separately so owners tearing down do not see spurious timeouts.
func (c *Client) transportFailure(parent, reqCtx context.Context, err error) *Response {
	switch {
	case parent.Err() != nil && errors.Is(parent.Err(), context.Canceled):
		return &Response{Error: errCancelled, Cause: err}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded):
		return &Response{Error: errTimeout, Cause: err}
	}
	msg := err.Error()
	if strings.TrimSpace(msg) == "" {
		msg = errNetwork
	}
	return &Response{Error: msg, Cause: err}
}

func (c *Client) logFailure(method, url string, status int, msg string) {
	if !c.debug {
		return
	}
	c.logger.Debug("api error", "method", method, "url", url, "status", status, "error", msg)
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
}

// extractError picks the first non-empty of detail, error and message from a JSON error
// body. Non-string values (422 validation lists) are rendered as compact JSON.
func extractError(data json.RawMessage, status int) string {
	if data != nil {
		var body map[string]json.RawMessage
		if err := json.Unmarshal(data, &body); err == nil {
			for _, key := range []string{"detail", "error", "message"} {
				if msg := renderField(body[key]); msg != "" {
					return msg
				}
			}
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}

func renderField(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	switch string(raw) {
	case "false", "0", `""`, "[]", "{}":
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// IsAuthenticated reports whether a bearer token can currently be obtained.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	return c.token(ctx) != ""
}

func (c *Client) Get(ctx context.Context, endpoint string) *Response {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodGet})
}

// GetWithTimeout is Get with a per-call timeout, for long-running status endpoints.
func (c *Client) GetWithTimeout(ctx context.Context, endpoint string, timeout time.Duration) *Response {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodGet, Timeout: timeout})
}

// GetPublic performs an unauthenticated GET.
func (c *Client) GetPublic(ctx context.Context, endpoint string) *Response {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodGet, NoAuth: true})
}

func (c *Client) Post(ctx context.Context, endpoint string, body any) *Response {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodPost, Body: body})
}

func (c *Client) PostWithTimeout(ctx context.Context, endpoint string, body any, timeout time.Duration) *Response {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodPost, Body: body, Timeout: timeout})
}

func (c *Client) Put(ctx context.Context, endpoint string, body any) *Response {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodPut, Body: body})
}

func (c *Client) Patch(ctx context.Context, endpoint string, body any) *Response {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodPatch, Body: body})
}

func (c *Client) Delete(ctx context.Context, endpoint string) *Response {
	return c.Request(ctx, endpoint, RequestOptions{Method: http.MethodDelete})
}
