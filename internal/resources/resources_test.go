package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/intentscout/scoutctl/internal/client"
	"github.com/intentscout/scoutctl/internal/jobs"
	"github.com/intentscout/scoutctl/internal/tracker"
	"github.com/intentscout/scoutctl/pkg/models"
)

type staticTokens struct{}

func (staticTokens) Token(context.Context) (string, error) { return "test-token", nil }
func (staticTokens) Invalidate()                           {}

func newAPI(t *testing.T, h http.Handler) *client.Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return client.NewClient(server.URL, client.WithTokenSource(staticTokens{}))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestDecisionMakers_SearchLifecycle(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /decision-makers/start-search", func(w http.ResponseWriter, r *http.Request) {
		var req models.DecisionMakerSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sig-1", req.SignalID)
		assert.Equal(t, "CTO only", req.CustomGuidance)
		writeJSON(w, map[string]string{"search_id": "abc", "status": "pending"})
	})
	mux.HandleFunc("GET /decision-makers/search/abc/status", func(w http.ResponseWriter, r *http.Request) {
		switch polls.Add(1) {
		case 1:
			writeJSON(w, models.DecisionMakerSearchStatus{SearchID: "abc", Status: "searching"})
		case 2:
			writeJSON(w, models.DecisionMakerSearchStatus{SearchID: "abc", Status: "completed"})
		default:
			writeJSON(w, models.DecisionMakerSearchStatus{
				SearchID: "abc",
				Status:   "completed",
				DecisionMakers: []models.DecisionMaker{
					{ID: "1", FirstName: "Ada", LastName: "Lovelace"},
					{ID: "2", FirstName: "Grace", LastName: "Hopper"},
					{ID: "3", FirstName: "Alan", LastName: "Turing"},
				},
				StartedAt:   "2024-05-01T10:00:00.123456",
				CompletedAt: "2024-05-01T10:01:00Z",
			})
		}
	})

	clk := clocktesting.NewFakeClock(time.Now())
	tr := NewDecisionMakerTracker(newAPI(t, mux), tracker.WithClock[models.DecisionMaker](clk))
	defer tr.Close()

	id := tr.Start(context.Background(), "sig-1", "  CTO only ")
	require.Equal(t, jobs.JobID("abc"), id)
	assert.Equal(t, jobs.JobStatusPending, tr.State().Job.Status)

	for i := 1; i <= 3; i++ {
		require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
		clk.Step(SearchPollInterval)
		require.Eventually(t, func() bool { return polls.Load() == int32(i) }, time.Second, time.Millisecond)
	}

	require.Eventually(t, func() bool { return tr.State().HasResults }, time.Second, time.Millisecond)
	s := tr.State()
	require.Len(t, s.Job.Results, 3)
	assert.Equal(t, "Ada Lovelace", s.Job.Results[0].FullName())
	assert.Equal(t, 2024, s.Job.StartedAt.Year())
	assert.False(t, s.Job.CompletedAt.IsZero())
}

func TestDecisionMakers_Existing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /decision-makers/signal/none", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "not_found"})
	})
	mux.HandleFunc("GET /decision-makers/signal/done", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.DecisionMakerSearchStatus{
			SearchID: "xyz", Status: "completed",
			DecisionMakers: []models.DecisionMaker{{ID: "1"}},
		})
	})
	mux.HandleFunc("GET /decision-makers/signal/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]string{"detail": "database unavailable"})
	})
	b := NewDecisionMakers(newAPI(t, mux))

	job, err := b.Existing(context.Background(), "none")
	require.NoError(t, err)
	assert.Nil(t, job)

	job, err = b.Existing(context.Background(), "done")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, jobs.JobID("xyz"), job.ID)
	assert.True(t, job.HasResults())

	_, err = b.Existing(context.Background(), "broken")
	require.Error(t, err)
	assert.Equal(t, "database unavailable", err.Error())
	assert.Equal(t, http.StatusInternalServerError, client.StatusOf(err))
}

func TestDecisionMakers_Restart(t *testing.T) {
	var restarted atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /decision-makers/search/abc/restart", func(w http.ResponseWriter, r *http.Request) {
		restarted.Store(true)
		writeJSON(w, map[string]string{"status": "pending"})
	})
	b := NewDecisionMakers(newAPI(t, mux))

	require.NoError(t, b.Restart(context.Background(), "abc"))
	assert.True(t, restarted.Load())

	err := b.Restart(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, client.StatusOf(err))
}

func TestEmailFinder_StatusAndProgress(t *testing.T) {
	score := 0.92
	mux := http.NewServeMux()
	mux.HandleFunc("POST /email-finder/start-search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"search_id": "em-1", "status": "pending"})
	})
	mux.HandleFunc("GET /email-finder/search/em-1/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.EmailFinderSearchStatus{
			SearchID: "em-1",
			Status:   "searching",
			ContactsToProcess: []models.ContactToProcess{
				{ContactID: "c1"}, {ContactID: "c2"},
			},
			EmailResults: []models.EmailResult{{ContactID: "c1", EmailAddress: "ada@example.com", ConfidenceScore: &score}},
			ErrorMessage: "ignored while running",
		})
	})
	b := NewEmailFinder(newAPI(t, mux))

	job, err := b.Start(context.Background(), "sig-1", struct{}{})
	require.NoError(t, err)
	assert.Equal(t, jobs.JobID("em-1"), job.ID)

	job, err = b.Status(context.Background(), "em-1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusRunning, job.Status)
	assert.Empty(t, job.Results, "results are only kept once completed")
	assert.Empty(t, job.ErrorMessage)
	require.NotNil(t, job.Progress)
	assert.Equal(t, 2, job.Progress.Total)
	assert.Equal(t, 1, job.Progress.Processed)
}

func TestLinkedIn_ScrapeAndExisting(t *testing.T) {
	var mu sync.Mutex
	var got models.ScrapeRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /linkedin-scraping/scrape", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, models.ScrapingStatus{ScrapingID: "scr-1", Status: "in_progress", TotalContacts: 2})
	})
	mux.HandleFunc("GET /linkedin-scraping/status/sig-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.ScrapingStatus{
			ScrapingID: "scr-1", Status: "completed", TotalContacts: 2, ContactsProcessed: 2,
			ScrapedProfiles: []models.ScrapedProfile{{ContactID: "c1", FullName: "Ada Lovelace", Status: models.ProfileScraped}},
		})
	})
	mux.HandleFunc("GET /linkedin-scraping/status/sig-none", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "not_found"})
	})
	b := NewLinkedIn(newAPI(t, mux))

	contacts := []models.ScrapeContact{{ContactID: "c1", LinkedInURL: "https://linkedin.com/in/ada"}}
	job, err := b.Start(context.Background(), "sig-1", contacts)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobID("scr-1"), job.ID)
	assert.Equal(t, jobs.JobStatusRunning, job.Status)
	assert.Equal(t, 2, job.Progress.Total)
	mu.Lock()
	assert.Equal(t, "sig-1", got.SignalID)
	assert.Equal(t, contacts, got.Contacts)
	mu.Unlock()

	job, err = b.Existing(context.Background(), "sig-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.True(t, job.HasResults())
	assert.Equal(t, "Ada Lovelace", job.Results[0].Name())

	job, err = b.Existing(context.Background(), "sig-none")
	require.NoError(t, err)
	assert.Nil(t, job)

	assert.ErrorIs(t, b.Restart(context.Background(), "scr-1"), tracker.ErrRestartUnsupported)
}

func TestLinkedIn_Schedule(t *testing.T) {
	s := NewLinkedIn(nil).Schedule()
	assert.Equal(t, 5*time.Second, s.Interval(0))
	assert.Equal(t, 5*time.Second, s.Interval(5))
	assert.Equal(t, 15*time.Second, s.Interval(6))
	assert.Equal(t, 3*time.Second, NewDecisionMakers(nil).Schedule().Interval(10))
}

func TestParseTimestamp(t *testing.T) {
	assert.True(t, parseTimestamp("").IsZero())
	assert.True(t, parseTimestamp("yesterday").IsZero())
	assert.Equal(t, 2024, parseTimestamp("2024-05-01T10:00:00+02:00").Year())
	assert.Equal(t, 123456000, parseTimestamp("2024-05-01T10:00:00.123456").Nanosecond())
	assert.Equal(t, 10, parseTimestamp("2024-05-01 10:00:00").Hour())
}
