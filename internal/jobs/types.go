// Package jobs models the long-running backend jobs (searches and scrapes) that the
// client starts and then polls until they settle.
package jobs

import (
	"slices"
	"strings"
	"time"

	"github.com/stoewer/go-strcase"
)

// JobID uniquely identifies a job on the backend.
type JobID string

// JobStatus is the normalized lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// StatusNotFound is what by-signal lookups report when no job exists for the signal.
const StatusNotFound = "not_found"

// NormalizeStatus maps the spellings used by the different backend resources onto the
// four job states. Anything unrecognised is treated as pending.
func NormalizeStatus(raw string) JobStatus {
	switch strcase.SnakeCase(strings.TrimSpace(raw)) {
	case "pending", "queued", "created":
		return JobStatusPending
	case "running", "searching", "in_progress", "processing", "scraping", "started":
		return JobStatusRunning
	case "completed", "complete", "done", "succeeded", "success":
		return JobStatusCompleted
	case "failed", "failure", "error", "errored", "cancelled", "canceled":
		return JobStatusFailed
	default:
		return JobStatusPending
	}
}

// IsNotFound reports whether raw is the by-signal "no job" sentinel.
func IsNotFound(raw string) bool {
	return strcase.SnakeCase(strings.TrimSpace(raw)) == StatusNotFound
}

// Progress counts processed items for jobs that report it.
type Progress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
}

// Percent returns processed/total in [0,1]. Zero totals report 0.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return min(float64(p.Processed)/float64(p.Total), 1)
}

// Job is one backend job and the records it produced so far.
type Job[R any] struct {
	ID           JobID     `json:"id"`
	Status       JobStatus `json:"status"`
	Results      []R       `json:"results"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	CompletedAt  time.Time `json:"completed_at,omitzero"`
	Progress     *Progress `json:"progress,omitempty"`
}

// Normalize drops fields that do not belong to the job's status: results are only kept
// once completed and the error message only once failed.
func (j *Job[R]) Normalize() {
	if j.Status != JobStatusCompleted {
		j.Results = nil
	}
	if j.Status != JobStatusFailed {
		j.ErrorMessage = ""
	}
}

// IsInProgress reports whether the job should still be polled. A completed job with no
// results counts as in progress because result rows can land after the status flips.
func (j *Job[R]) IsInProgress() bool {
	if j == nil {
		return false
	}
	switch j.Status {
	case JobStatusPending, JobStatusRunning:
		return true
	case JobStatusCompleted:
		return len(j.Results) == 0
	default:
		return false
	}
}

// HasResults reports whether the job completed with at least one result.
func (j *Job[R]) HasResults() bool {
	return j != nil && j.Status == JobStatusCompleted && len(j.Results) > 0
}

// HasFailed reports whether the job failed.
func (j *Job[R]) HasFailed() bool {
	return j != nil && j.Status == JobStatusFailed
}

// IsTerminal reports whether polling can stop.
func (j *Job[R]) IsTerminal() bool {
	return j.HasResults() || j.HasFailed()
}

// Clone returns a copy that shares no slices or pointers with j.
func (j *Job[R]) Clone() *Job[R] {
	if j == nil {
		return nil
	}
	out := *j
	out.Results = slices.Clone(j.Results)
	if j.Progress != nil {
		p := *j.Progress
		out.Progress = &p
	}
	return &out
}
