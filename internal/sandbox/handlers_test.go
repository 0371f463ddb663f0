package sandbox_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentscout/scoutctl/internal/config"
	"github.com/intentscout/scoutctl/internal/sandbox"
	"github.com/intentscout/scoutctl/internal/telemetry"
	"github.com/intentscout/scoutctl/pkg/models"
)

type testServer struct {
	*httptest.Server
	token string
}

func sandboxConfig() *config.SandboxConfig {
	return &config.SandboxConfig{
		ServerAddress:   ":0",
		JWTSecret:       "test-secret",
		TokenTTL:        time.Hour,
		Version:         "test",
		DevRefreshToken: "dev-refresh",
		DevUserEmail:    "dev@example.com",
		PollsToComplete: 2,
		ResultCount:     3,
		FailSignals:     "sig-fail",
		JobTTL:          time.Hour,
	}
}

func newTestServer(t *testing.T, cfg *config.SandboxConfig) *testServer {
	t.Helper()
	shutdown, metrics, err := telemetry.InitMetrics("test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	tokens := sandbox.NewTokenManager(cfg, nil)
	srv := sandbox.NewServer(sandbox.Deps{
		Config:  cfg,
		Jobs:    sandbox.NewManager(sandbox.NewMemoryStore(), cfg),
		Tokens:  tokens,
		Metrics: metrics,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	issued, err := tokens.Issue()
	require.NoError(t, err)
	return &testServer{Server: ts, token: issued.AccessToken}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func TestHealth_Public(t *testing.T) {
	s := newTestServer(t, sandboxConfig())
	s.token = ""

	status, body := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)
	h := decode[models.Health](t, body)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "test", h.Version)
}

func TestAuth_Required(t *testing.T) {
	s := newTestServer(t, sandboxConfig())

	tests := []struct {
		name   string
		header string
		detail string
	}{
		{"missing", "", "Missing bearer token"},
		{"wrong scheme", "Basic abc", "Missing bearer token"},
		{"garbage", "Bearer not-a-jwt", "Invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, s.URL+"/user/me", nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := s.Client().Do(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			var problem map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
			assert.Equal(t, tt.detail, problem["detail"])
		})
	}
}

func TestUserMe(t *testing.T) {
	s := newTestServer(t, sandboxConfig())
	status, body := s.do(t, http.MethodGet, "/user/me", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	u := decode[models.User](t, body)
	assert.Equal(t, "dev@example.com", u.Email)
	assert.NotEmpty(t, u.ID)
}

func TestTokenEndpoint(t *testing.T) {
	s := newTestServer(t, sandboxConfig())
	s.token = ""

	status, body := s.do(t, http.MethodPost, "/auth/v1/token?grant_type=refresh_token",
		map[string]string{"refresh_token": "dev-refresh"})
	require.Equal(t, http.StatusOK, status, string(body))
	tr := decode[sandbox.TokenResponse](t, body)
	assert.NotEmpty(t, tr.AccessToken)
	assert.Equal(t, "dev-refresh", tr.RefreshToken)
	assert.Equal(t, int64(3600), tr.ExpiresIn)

	status, body = s.do(t, http.MethodPost, "/auth/v1/token?grant_type=refresh_token",
		map[string]string{"refresh_token": "nope"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "invalid_grant")

	status, _ = s.do(t, http.MethodPost, "/auth/v1/token?grant_type=password",
		map[string]string{"refresh_token": "dev-refresh"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDecisionMakers_Flow(t *testing.T) {
	s := newTestServer(t, sandboxConfig())

	status, body := s.do(t, http.MethodGet, "/decision-makers/signal/sig-1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "not_found", decode[models.DecisionMakerSearchStatus](t, body).Status)

	status, body = s.do(t, http.MethodPost, "/decision-makers/start-search",
		models.DecisionMakerSearchRequest{SignalID: "sig-1", CustomGuidance: "engineering leaders"})
	require.Equal(t, http.StatusOK, status, string(body))
	started := decode[models.DecisionMakerSearchStatus](t, body)
	assert.Equal(t, "pending", started.Status)
	require.NotEmpty(t, started.SearchID)

	status, body = s.do(t, http.MethodPost, "/decision-makers/start-search",
		models.DecisionMakerSearchRequest{SignalID: "sig-1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), "already running")

	statusPath := "/decision-makers/search/" + started.SearchID + "/status"
	var seen []string
	var final models.DecisionMakerSearchStatus
	for range 3 {
		status, body = s.do(t, http.MethodGet, statusPath, nil)
		require.Equal(t, http.StatusOK, status)
		final = decode[models.DecisionMakerSearchStatus](t, body)
		seen = append(seen, final.Status)
	}
	assert.Equal(t, []string{"searching", "completed", "completed"}, seen)
	require.Len(t, final.DecisionMakers, 3)
	assert.NotEmpty(t, final.DecisionMakers[0].FullName())
	assert.NotEmpty(t, final.CompletedAt)

	status, body = s.do(t, http.MethodGet, "/decision-makers/signal/sig-1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, started.SearchID, decode[models.DecisionMakerSearchStatus](t, body).SearchID)

	status, body = s.do(t, http.MethodPost, "/decision-makers/search/"+started.SearchID+"/restart", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	restarted := decode[models.DecisionMakerSearchStatus](t, body)
	assert.Equal(t, "pending", restarted.Status)
	assert.Empty(t, restarted.DecisionMakers)
}

func TestDecisionMakers_UnknownSearch(t *testing.T) {
	s := newTestServer(t, sandboxConfig())

	status, body := s.do(t, http.MethodGet, "/decision-makers/search/missing/status", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "Search not found")

	// Ids of another resource do not resolve.
	_, body = s.do(t, http.MethodPost, "/email-finder/start-search", models.EmailFinderSearchRequest{SignalID: "sig-1"})
	email := decode[models.EmailFinderSearchStatus](t, body)
	status, _ = s.do(t, http.MethodGet, "/decision-makers/search/"+email.SearchID+"/status", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDecisionMakers_Validation(t *testing.T) {
	s := newTestServer(t, sandboxConfig())
	status, body := s.do(t, http.MethodPost, "/decision-makers/start-search", map[string]string{"custom_guidance": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(body), "signal_id")
}

func TestEmailFinder_FailureAndRestart(t *testing.T) {
	s := newTestServer(t, sandboxConfig())

	_, body := s.do(t, http.MethodPost, "/email-finder/start-search", models.EmailFinderSearchRequest{SignalID: "sig-fail"})
	started := decode[models.EmailFinderSearchStatus](t, body)
	assert.Len(t, started.ContactsToProcess, 3)

	statusPath := "/email-finder/search/" + started.SearchID + "/status"
	_, body = s.do(t, http.MethodGet, statusPath, nil)
	assert.Equal(t, "processing", decode[models.EmailFinderSearchStatus](t, body).Status)
	_, body = s.do(t, http.MethodGet, statusPath, nil)
	failed := decode[models.EmailFinderSearchStatus](t, body)
	assert.Equal(t, "failed", failed.Status)
	assert.Contains(t, failed.ErrorMessage, "sig-fail")

	status, _ := s.do(t, http.MethodPost, "/email-finder/search/"+started.SearchID+"/restart", nil)
	require.Equal(t, http.StatusOK, status)

	var last models.EmailFinderSearchStatus
	for range 3 {
		_, body = s.do(t, http.MethodGet, statusPath, nil)
		last = decode[models.EmailFinderSearchStatus](t, body)
	}
	assert.Equal(t, "completed", last.Status)
	require.Len(t, last.EmailResults, 3)
	assert.NotEmpty(t, last.EmailResults[0].EmailAddress)
	assert.Empty(t, last.EmailResults[2].EmailAddress)

	_, body = s.do(t, http.MethodGet, "/email-finder/signal/sig-fail", nil)
	assert.Equal(t, started.SearchID, decode[models.EmailFinderSearchStatus](t, body).SearchID)
}

func TestLinkedIn_StatusBySignal(t *testing.T) {
	s := newTestServer(t, sandboxConfig())

	_, body := s.do(t, http.MethodGet, "/linkedin-scraping/status/sig-1", nil)
	assert.Equal(t, "not_found", decode[models.ScrapingStatus](t, body).Status)

	status, body := s.do(t, http.MethodPost, "/linkedin-scraping/scrape", models.ScrapeRequest{
		SignalID: "sig-1",
		Contacts: []models.ScrapeContact{
			{ContactID: "c1", FirstName: "Ada", LastName: "Lovelace", LinkedInURL: "https://www.linkedin.com/in/ada"},
			{ContactID: "c2", FirstName: "Ken", LastName: "Thompson", LinkedInURL: "https://www.linkedin.com/in/ken"},
		},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	started := decode[models.ScrapingStatus](t, body)
	assert.Equal(t, "in_progress", started.Status)
	assert.Equal(t, 2, started.TotalContacts)

	// The signal id resolves to the latest scrape.
	_, body = s.do(t, http.MethodGet, "/linkedin-scraping/status/sig-1", nil)
	bySignal := decode[models.ScrapingStatus](t, body)
	assert.Equal(t, started.ScrapingID, bySignal.ScrapingID)
	assert.Equal(t, 1, bySignal.ContactsProcessed)

	var last models.ScrapingStatus
	for range 2 {
		_, body = s.do(t, http.MethodGet, "/linkedin-scraping/status/"+started.ScrapingID, nil)
		last = decode[models.ScrapingStatus](t, body)
	}
	assert.Equal(t, "completed", last.Status)
	assert.Equal(t, 2, last.ContactsProcessed)
	require.Len(t, last.ScrapedProfiles, 2)
	assert.Equal(t, "Ken Thompson", last.ScrapedProfiles[1].Name())
}

func TestLinkedIn_RequiresContacts(t *testing.T) {
	s := newTestServer(t, sandboxConfig())
	status, _ := s.do(t, http.MethodPost, "/linkedin-scraping/scrape", models.ScrapeRequest{SignalID: "sig-1", Contacts: []models.ScrapeContact{}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSignals(t *testing.T) {
	s := newTestServer(t, sandboxConfig())

	status, body := s.do(t, http.MethodGet, "/signals/intent-scores?date=2026-10-01&product_id=p1&min_score=0", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	scores := decode[[]models.IntentScore](t, body)
	require.Len(t, scores, 5)
	first := scores[0]
	assert.Equal(t, "2026-10-01", first.Date)
	assert.Empty(t, first.Decision)

	status, body = s.do(t, http.MethodGet, "/signals/companies?company_ids="+first.CompanyID+",co-999", nil)
	require.Equal(t, http.StatusOK, status)
	companies := decode[[]models.Company](t, body)
	require.Len(t, companies, 1)
	assert.Equal(t, first.CompanyID, companies[0].ID)

	status, body = s.do(t, http.MethodGet, "/signals/jobs?job_ids="+strings.Join(first.Citations, ","), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.JobPosting](t, body), len(first.Citations))

	status, _ = s.do(t, http.MethodPost, "/signals/update-decision",
		models.UpdateDecisionRequest{SignalID: first.ID, Action: models.DecisionApprove})
	require.Equal(t, http.StatusOK, status)
	_, body = s.do(t, http.MethodGet, "/signals/intent-scores?date=2026-10-01&product_id=p1", nil)
	assert.Equal(t, "approve", decode[[]models.IntentScore](t, body)[0].Decision)

	status, _ = s.do(t, http.MethodPost, "/signals/update-decision",
		models.UpdateDecisionRequest{SignalID: first.ID, Action: "maybe"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/signals/signal-counts?start_date=2026-10-01&end_date=2026-10-03&product_id=p1", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	counts := decode[[]models.SignalCount](t, body)
	require.Len(t, counts, 3)
	assert.Equal(t, "2026-10-03", counts[2].Date)
	assert.Equal(t, 5, counts[0].TotalSignals)
}

func TestNotFoundAndMetrics(t *testing.T) {
	s := newTestServer(t, sandboxConfig())

	status, body := s.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "/nope")

	_, _ = s.do(t, http.MethodGet, "/decision-makers/search/missing/status", nil)
	status, body = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "intentscout_http_requests_total")
	assert.Contains(t, string(body), `path="/decision-makers/search/{searchId}/status"`)
}

func TestTrailingSlashRedirect(t *testing.T) {
	s := newTestServer(t, sandboxConfig())
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(s.URL + "/health/")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)
	assert.Equal(t, "/health", resp.Header.Get("Location"))
}

func TestCORS_Preflight(t *testing.T) {
	s := newTestServer(t, sandboxConfig())
	req, err := http.NewRequest(http.MethodOptions, s.URL+"/decision-makers/start-search", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}
