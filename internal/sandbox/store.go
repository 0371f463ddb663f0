package sandbox

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Store persists sandbox jobs.
type Store interface {
	// Put inserts or replaces a job.
	Put(ctx context.Context, job *Job) error
	// Get returns ErrJobNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Job, error)
	// LatestForSignal returns the most recently created job of resource for signalID,
	// or ErrJobNotFound.
	LatestForSignal(ctx context.Context, resource Resource, signalID string) (*Job, error)
	// DeleteTerminalBefore removes completed and failed jobs last updated before cutoff.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
	Close()
}

type signalKey struct {
	resource Resource
	signalID string
}

// MemoryStore keeps jobs in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	latest map[signalKey]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]*Job),
		latest: make(map[signalKey]string),
	}
}

func (s *MemoryStore) Put(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		s.latest[signalKey{job.Resource, job.SignalID}] = job.ID
	}
	s.jobs[job.ID] = copyJob(job)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return copyJob(job), nil
}

func (s *MemoryStore) LatestForSignal(_ context.Context, resource Resource, signalID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[s.latest[signalKey{resource, signalID}]]
	if !ok {
		return nil, ErrJobNotFound
	}
	return copyJob(job), nil
}

func (s *MemoryStore) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, job := range s.jobs {
		if job.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	for key, id := range s.latest {
		if _, ok := s.jobs[id]; !ok {
			delete(s.latest, key)
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() {}

func copyJob(job *Job) *Job {
	cp := *job
	cp.Params = slices.Clone(job.Params)
	cp.Results = slices.Clone(job.Results)
	return &cp
}
