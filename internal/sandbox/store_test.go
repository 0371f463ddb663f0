package sandbox

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentscout/scoutctl/internal/jobs"
)

func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	signal := "sig-" + uuid.NewString()

	_, err := s.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = s.LatestForSignal(ctx, ResourceDecisionMakers, signal)
	assert.ErrorIs(t, err, ErrJobNotFound)

	old := &Job{
		ID:        uuid.NewString(),
		Resource:  ResourceDecisionMakers,
		SignalID:  signal,
		Status:    jobs.JobStatusCompleted,
		Attempt:   1,
		Params:    json.RawMessage(`{"signal_id":"x"}`),
		Results:   json.RawMessage(`[{"id":"dm-1"}]`),
		CreatedAt: now.Add(-3 * time.Hour),
		UpdatedAt: now.Add(-2 * time.Hour),
	}
	require.NoError(t, s.Put(ctx, old))

	current := &Job{
		ID:        uuid.NewString(),
		Resource:  ResourceDecisionMakers,
		SignalID:  signal,
		Status:    jobs.JobStatusPending,
		Attempt:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.Put(ctx, current))

	got, err := s.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCompleted, got.Status)
	assert.JSONEq(t, `[{"id":"dm-1"}]`, string(got.Results))
	assert.True(t, got.CompletedAt.IsZero())

	latest, err := s.LatestForSignal(ctx, ResourceDecisionMakers, signal)
	require.NoError(t, err)
	assert.Equal(t, current.ID, latest.ID)

	_, err = s.LatestForSignal(ctx, ResourceEmailFinder, signal)
	assert.ErrorIs(t, err, ErrJobNotFound)

	current.Status = jobs.JobStatusRunning
	current.Reads = 2
	require.NoError(t, s.Put(ctx, current))
	got, err = s.Get(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusRunning, got.Status)
	assert.Equal(t, 2, got.Reads)
	assert.Empty(t, got.Results)

	n, err := s.DeleteTerminalBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
	_, err = s.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = s.Get(ctx, current.ID)
	assert.NoError(t, err)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	job := &Job{ID: "a", Resource: ResourceLinkedIn, SignalID: "sig", Status: jobs.JobStatusPending}
	require.NoError(t, s.Put(ctx, job))

	job.Status = jobs.JobStatusFailed
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status)

	got.Status = jobs.JobStatusCompleted
	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, again.Status)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("SCOUT_SANDBOX_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SCOUT_SANDBOX_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	storeContract(t, s)
}

func TestNewPostgresStore_BadURL(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}
