// Package tracker follows one long-running backend job per owner: it adopts an existing
// job, starts or restarts one, and polls it until it settles.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/intentscout/scoutctl/internal/jobs"
	"github.com/intentscout/scoutctl/internal/logging"
	"github.com/intentscout/scoutctl/internal/poll"
	"github.com/intentscout/scoutctl/internal/telemetry"
)

// ErrRestartUnsupported is returned by backends that have no restart endpoint.
var ErrRestartUnsupported = errors.New("restart is not supported for this resource")

// Backend talks to one resource type's job endpoints.
type Backend[R, P any] interface {
	// Name labels logs and metrics, e.g. "decision_makers".
	Name() string
	// Start launches a job for resourceID.
	Start(ctx context.Context, resourceID string, params P) (*jobs.Job[R], error)
	// Status fetches the full current state of a job.
	Status(ctx context.Context, id jobs.JobID) (*jobs.Job[R], error)
	// Existing returns the job already attached to resourceID, or nil when there is none.
	Existing(ctx context.Context, resourceID string) (*jobs.Job[R], error)
	// Restart asks the backend to rerun a job.
	Restart(ctx context.Context, id jobs.JobID) error
	// Schedule is the polling cadence for this resource.
	Schedule() poll.Schedule
}

// State is a point-in-time view of a tracker.
type State[R any] struct {
	Job          *jobs.Job[R]
	Err          error
	Loading      bool
	IsInProgress bool
	HasResults   bool
	HasFailed    bool
}

// Option configures a Tracker.
type Option[R any] func(*options[R])

type options[R any] struct {
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	onChange func(State[R])
}

func WithClock[R any](c clock.Clock) Option[R] {
	return func(o *options[R]) { o.clock = c }
}

func WithLogger[R any](l *slog.Logger) Option[R] {
	return func(o *options[R]) { o.logger = l }
}

func WithMetrics[R any](m *telemetry.Metrics) Option[R] {
	return func(o *options[R]) { o.metrics = m }
}

// OnChange registers a callback run after every state change. It runs on the goroutine
// that made the change and must not call back into the tracker.
func OnChange[R any](fn func(State[R])) Option[R] {
	return func(o *options[R]) { o.onChange = fn }
}

// Tracker owns the job state for a single resource and at most one poll loop.
type Tracker[R, P any] struct {
	backend  Backend[R, P]
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	onChange func(State[R])

	// loopMu serializes poll loop replacement. It is never held by the loop itself.
	loopMu     sync.Mutex
	baseCtx    context.Context
	baseCancel context.CancelFunc
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	mu      sync.Mutex
	job     *jobs.Job[R]
	err     error
	loading bool
	// gen is bumped whenever the job is replaced outside the poll loop. Poll results
	// carrying an older generation are dropped.
	gen uint64
}

// New creates a tracker over backend. Call Close when the owner goes away.
func New[R, P any](backend Backend[R, P], opts ...Option[R]) *Tracker[R, P] {
	o := options[R]{clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker[R, P]{
		backend:    backend,
		clock:      o.clock,
		logger:     logging.OrDiscard(o.logger).With("resource", backend.Name()),
		metrics:    o.metrics,
		onChange:   o.onChange,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// State returns a snapshot safe to read without further locking.
func (t *Tracker[R, P]) State() State[R] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker[R, P]) snapshotLocked() State[R] {
	return State[R]{
		Job:          t.job.Clone(),
		Err:          t.err,
		Loading:      t.loading,
		IsInProgress: t.job.IsInProgress(),
		HasResults:   t.job.HasResults(),
		HasFailed:    t.job.HasFailed(),
	}
}

// update applies fn under the state lock and notifies the OnChange callback.
func (t *Tracker[R, P]) update(fn func()) {
	t.mu.Lock()
	fn()
	s := t.snapshotLocked()
	t.mu.Unlock()
	if t.onChange != nil {
		t.onChange(s)
	}
}

// CheckExisting looks up the job already attached to resourceID and adopts it. It returns
// nil when there is none or the lookup failed; failures are available via State().Err.
func (t *Tracker[R, P]) CheckExisting(ctx context.Context, resourceID string) *jobs.Job[R] {
	if resourceID == "" {
		return nil
	}
	t.update(func() {
		t.loading = true
		t.err = nil
	})

	job, err := t.backend.Existing(ctx, resourceID)
	if err != nil {
		t.logger.Warn("failed to check existing job", "resource_id", resourceID, "error", err)
		t.update(func() {
			t.loading = false
			t.err = err
		})
		return nil
	}
	if job == nil {
		t.logger.Debug("no existing job", "resource_id", resourceID)
	}
	t.adopt(job)
	return job.Clone()
}

// Start launches a job for resourceID and begins polling it. It returns an empty ID when
// the backend rejected the request; the reason is available via State().Err.
func (t *Tracker[R, P]) Start(ctx context.Context, resourceID string, params P) jobs.JobID {
	if resourceID == "" {
		return ""
	}
	t.update(func() {
		t.loading = true
		t.err = nil
	})

	job, err := t.backend.Start(ctx, resourceID, params)
	if err == nil && (job == nil || job.ID == "") {
		err = errors.New("backend returned no job id")
	}
	if err != nil {
		t.logger.Warn("failed to start job", "resource_id", resourceID, "error", err)
		t.update(func() {
			t.loading = false
			t.err = err
		})
		return ""
	}

	// Results arrive through polling only.
	fresh := &jobs.Job[R]{ID: job.ID, Status: job.Status, Progress: job.Progress, StartedAt: job.StartedAt}
	t.logger.Info("job started", "resource_id", resourceID, "job_id", job.ID, "status", job.Status)
	t.adopt(fresh)
	return job.ID
}

// Restart asks the backend to rerun jobID, resets the local view to pending and resumes
// polling. Failures are available via State().Err.
func (t *Tracker[R, P]) Restart(ctx context.Context, jobID jobs.JobID) {
	if jobID == "" {
		return
	}
	t.update(func() {
		t.loading = true
		t.err = nil
	})

	if err := t.backend.Restart(ctx, jobID); err != nil {
		t.logger.Warn("failed to restart job", "job_id", jobID, "error", err)
		t.update(func() {
			t.loading = false
			t.err = err
		})
		return
	}

	t.mu.Lock()
	next := t.job.Clone()
	t.mu.Unlock()
	if next == nil || next.ID != jobID {
		next = &jobs.Job[R]{ID: jobID}
	}
	next.Status = jobs.JobStatusPending
	next.Results = nil
	next.ErrorMessage = ""
	next.CompletedAt = time.Time{}
	t.logger.Info("job restarted", "job_id", jobID)
	t.adopt(next)
}

// Reset stops polling and forgets the current job.
func (t *Tracker[R, P]) Reset() {
	t.loopMu.Lock()
	t.stopLoopLocked()
	t.update(func() {
		t.gen++
		t.job = nil
		t.err = nil
		t.loading = false
	})
	t.loopMu.Unlock()
}

// Close stops polling for good. The tracker keeps its last state.
func (t *Tracker[R, P]) Close() {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()
	t.baseCancel()
	t.stopLoopLocked()
}

// adopt replaces the current job, abandons any running poll loop and starts a new one
// when the job still needs polling.
func (t *Tracker[R, P]) adopt(job *jobs.Job[R]) {
	if job != nil {
		job.Normalize()
	}

	t.loopMu.Lock()
	defer t.loopMu.Unlock()
	t.stopLoopLocked()

	var gen uint64
	var prev jobs.JobStatus
	t.update(func() {
		t.gen++
		gen = t.gen
		if t.job != nil {
			prev = t.job.Status
		}
		t.job = job
		t.loading = false
	})
	if job != nil && prev != job.Status {
		t.metrics.RecordTransition(t.baseCtx, t.backend.Name(), string(prev), string(job.Status))
	}

	if job == nil || !job.IsInProgress() || t.baseCtx.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(t.baseCtx)
	done := make(chan struct{})
	t.loopCancel = cancel
	t.loopDone = done
	go func() {
		defer close(done)
		t.pollLoop(ctx, job.ID, gen)
	}()
}

func (t *Tracker[R, P]) stopLoopLocked() {
	if t.loopCancel == nil {
		return
	}
	t.loopCancel()
	<-t.loopDone
	t.loopCancel = nil
	t.loopDone = nil
}

func (t *Tracker[R, P]) pollLoop(ctx context.Context, id jobs.JobID, gen uint64) {
	name := t.backend.Name()
	p := &poll.Poller[*jobs.Job[R]]{
		Name:     name,
		Schedule: t.backend.Schedule(),
		Clock:    t.clock,
		Logger:   t.logger,
		Fetch: func(ctx context.Context) (*jobs.Job[R], error) {
			job, err := t.backend.Status(ctx, id)
			if err == nil && job == nil {
				err = errors.New("empty status response")
			}
			t.metrics.RecordPoll(ctx, name, err == nil)
			return job, err
		},
		IsTerminal: func(job *jobs.Job[R]) bool { return job.IsTerminal() },
		OnResult: func(_ int, job *jobs.Job[R]) {
			job.Normalize()
			t.mu.Lock()
			if t.gen != gen {
				t.mu.Unlock()
				t.logger.Debug("dropping stale poll result", "job_id", id)
				return
			}
			var prev jobs.JobStatus
			if t.job != nil {
				prev = t.job.Status
			}
			t.job = job
			t.err = nil
			s := t.snapshotLocked()
			t.mu.Unlock()

			if prev != job.Status {
				t.metrics.RecordTransition(ctx, name, string(prev), string(job.Status))
				t.logger.Debug("job status changed", "job_id", id, "from", prev, "to", job.Status)
			}
			if t.onChange != nil {
				t.onChange(s)
			}
		},
	}
	if _, err := p.Run(ctx); err != nil {
		t.logger.Debug("poll loop stopped", "job_id", id, "reason", err)
		return
	}
	t.logger.Info("job settled", "job_id", id)
}
