package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/intentscout/scoutctl/internal/config"
	"github.com/intentscout/scoutctl/internal/jobs"
	"github.com/intentscout/scoutctl/internal/logging"
	"github.com/intentscout/scoutctl/pkg/models"
)

// Resource names a kind of long-running job.
type Resource string

const (
	ResourceDecisionMakers Resource = "decision_makers"
	ResourceEmailFinder    Resource = "email_finder"
	ResourceLinkedIn       Resource = "linkedin_scraping"
)

const cleanupInterval = 10 * time.Minute

var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyRunning is returned when the signal already has an unsettled job.
	ErrJobAlreadyRunning = errors.New("job already running")
)

// Job is a simulated backend job. Results holds the resource's result records as JSON.
type Job struct {
	ID           string
	Resource     Resource
	SignalID     string
	Status       jobs.JobStatus
	Attempt      int
	Reads        int
	Total        int
	Params       json.RawMessage
	Results      json.RawMessage
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  time.Time
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status == jobs.JobStatusCompleted || j.Status == jobs.JobStatusFailed
}

// settled reports whether status reads can no longer change the job.
func (j *Job) settled() bool {
	return j.Status == jobs.JobStatusFailed || (j.Status == jobs.JobStatusCompleted && len(j.Results) > 0)
}

// Manager runs simulated jobs on top of a Store.
//
// A job reports running until it has been read PollsToComplete times. The read that reaches
// the threshold reports completed with no results yet, and the next read carries them. Jobs
// for signals in FailSignals fail instead on their first attempt; a restart succeeds.
type Manager struct {
	mu              sync.Mutex
	store           Store
	clock           clock.WithTicker
	logger          *slog.Logger
	pollsToComplete int
	resultCount     int
	failSignals     map[string]bool
	ttl             time.Duration
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithManagerClock(c clock.WithTicker) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a job manager with the simulation settings from cfg.
func NewManager(store Store, cfg *config.SandboxConfig, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:           store,
		clock:           clock.RealClock{},
		pollsToComplete: max(cfg.PollsToComplete, 1),
		resultCount:     max(cfg.ResultCount, 1),
		failSignals:     cfg.FailSignalSet(),
		ttl:             cfg.JobTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrDiscard(m.logger)
	return m
}

// CreateJob starts a job of the given resource for a signal.
// Returns ErrJobAlreadyRunning if the signal's latest job of that resource has not settled.
func (m *Manager) CreateJob(ctx context.Context, resource Resource, signalID string, params any) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.store.LatestForSignal(ctx, resource, signalID)
	if err != nil && !errors.Is(err, ErrJobNotFound) {
		return nil, err
	}
	if existing != nil && !existing.settled() {
		return nil, ErrJobAlreadyRunning
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job params: %w", err)
	}

	now := m.clock.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Resource:  resource,
		SignalID:  signalID,
		Status:    jobs.JobStatusPending,
		Attempt:   1,
		Total:     m.resultCount,
		Params:    raw,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if resource == ResourceLinkedIn {
		var req models.ScrapeRequest
		if err := json.Unmarshal(raw, &req); err == nil {
			job.Total = len(req.Contacts)
		}
	}

	if err := m.store.Put(ctx, job); err != nil {
		return nil, err
	}
	m.logger.Info("job created", "resource", resource, "signal_id", signalID, "job_id", job.ID)
	return job, nil
}

// GetJob retrieves a job by ID without advancing it.
func (m *Manager) GetJob(ctx context.Context, id string) (*Job, error) {
	return m.store.Get(ctx, id)
}

// LatestForSignal returns the signal's most recent job of the resource.
func (m *Manager) LatestForSignal(ctx context.Context, resource Resource, signalID string) (*Job, error) {
	return m.store.LatestForSignal(ctx, resource, signalID)
}

// Advance records a status read and moves the job along its simulated lifecycle.
func (m *Manager) Advance(ctx context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.settled() {
		return job, nil
	}

	from := job.Status
	job.Reads++
	now := m.clock.Now().UTC()
	switch {
	case job.Reads < m.pollsToComplete:
		job.Status = jobs.JobStatusRunning
	case job.Reads == m.pollsToComplete && m.failSignals[job.SignalID] && job.Attempt == 1:
		job.Status = jobs.JobStatusFailed
		job.ErrorMessage = fmt.Sprintf("simulated failure for signal %s", job.SignalID)
		job.CompletedAt = now
	case job.Reads == m.pollsToComplete:
		job.Status = jobs.JobStatusCompleted
		job.CompletedAt = now
	default:
		results, err := m.results(job)
		if err != nil {
			return nil, err
		}
		job.Results = results
	}
	job.UpdatedAt = now

	if err := m.store.Put(ctx, job); err != nil {
		return nil, err
	}
	if from != job.Status {
		m.logger.Debug("job advanced", "job_id", job.ID, "from", from, "to", job.Status)
	}
	return job, nil
}

// Processed is how many of the job's Total items the simulation has worked through.
func (m *Manager) Processed(job *Job) int {
	if job.settled() {
		return job.Total
	}
	return min(job.Total, job.Reads*job.Total/m.pollsToComplete)
}

// RestartJob puts a settled job back to pending for another attempt.
func (m *Manager) RestartJob(ctx context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.settled() {
		return nil, ErrJobAlreadyRunning
	}

	job.Status = jobs.JobStatusPending
	job.Attempt++
	job.Reads = 0
	job.Results = nil
	job.ErrorMessage = ""
	job.CompletedAt = time.Time{}
	job.UpdatedAt = m.clock.Now().UTC()

	if err := m.store.Put(ctx, job); err != nil {
		return nil, err
	}
	m.logger.Info("job restarted", "job_id", job.ID, "attempt", job.Attempt)
	return job, nil
}

// CleanupLoop periodically removes old completed/failed jobs until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context) {
	ticker := m.clock.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if _, err := m.Cleanup(ctx); err != nil {
				m.logger.Warn("job cleanup failed", "error", err)
			}
		}
	}
}

// Cleanup removes terminal jobs last updated more than the TTL ago.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.store.DeleteTerminalBefore(ctx, m.clock.Now().UTC().Add(-m.ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("removed expired jobs", "count", n)
	}
	return n, nil
}

func (m *Manager) results(job *Job) (json.RawMessage, error) {
	var out any
	switch job.Resource {
	case ResourceDecisionMakers:
		out = fakeDecisionMakers(job.SignalID, job.Total)
	case ResourceEmailFinder:
		out = fakeEmailResults(job.SignalID, job.Total)
	case ResourceLinkedIn:
		var req models.ScrapeRequest
		if err := json.Unmarshal(job.Params, &req); err != nil {
			return nil, fmt.Errorf("failed to decode scrape params: %w", err)
		}
		out = fakeProfiles(req.Contacts)
	default:
		return nil, fmt.Errorf("unknown resource %q", job.Resource)
	}
	return json.Marshal(out)
}

// decodeResults returns the job's results as T records; nil while there are none.
func decodeResults[T any](job *Job) ([]T, error) {
	if len(job.Results) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(job.Results, &out); err != nil {
		return nil, fmt.Errorf("failed to decode job results: %w", err)
	}
	return out, nil
}
