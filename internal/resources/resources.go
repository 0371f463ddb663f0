// Package resources adapts the backend's long-running job endpoints to tracker backends.
package resources

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/intentscout/scoutctl/internal/client"
	"github.com/intentscout/scoutctl/internal/jobs"
)

const (
	// StatusTimeout bounds status calls, which can block server side while a search runs.
	StatusTimeout = 200 * time.Second

	// SearchPollInterval is the cadence for decision-maker and email searches.
	SearchPollInterval = 3 * time.Second

	ScrapeInitialInterval = 5 * time.Second
	ScrapeSwitchAfter     = 6
	ScrapeLaterInterval   = 15 * time.Second
)

// Doer performs requests. *client.Client implements it.
type Doer interface {
	Request(ctx context.Context, endpoint string, opts client.RequestOptions) *client.Response
}

func get[T any](ctx context.Context, d Doer, endpoint string, timeout time.Duration) (T, error) {
	return call[T](ctx, d, endpoint, client.RequestOptions{Method: http.MethodGet, Timeout: timeout})
}

func post[T any](ctx context.Context, d Doer, endpoint string, body any) (T, error) {
	return call[T](ctx, d, endpoint, client.RequestOptions{Method: http.MethodPost, Body: body})
}

func call[T any](ctx context.Context, d Doer, endpoint string, opts client.RequestOptions) (T, error) {
	resp := d.Request(ctx, endpoint, opts)
	if err := resp.Err(); err != nil {
		var zero T
		return zero, err
	}
	return client.Decode[T](resp)
}

// lookup is get for by-signal endpoints: an empty body means there is no job.
func lookup[T any](ctx context.Context, d Doer, endpoint string) (*T, error) {
	resp := d.Request(ctx, endpoint, client.RequestOptions{Method: http.MethodGet})
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, nil
	}
	out, err := client.Decode[T](resp)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// timestampLayouts covers RFC 3339 and the zone-less ISO timestamps the backend emits.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp returns the zero time for empty or unparseable values.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func newJob[R any](id, status, errMsg, startedAt, completedAt string, results []R) *jobs.Job[R] {
	job := &jobs.Job[R]{
		ID:           jobs.JobID(id),
		Status:       jobs.NormalizeStatus(status),
		Results:      results,
		ErrorMessage: errMsg,
		StartedAt:    parseTimestamp(startedAt),
		CompletedAt:  parseTimestamp(completedAt),
	}
	job.Normalize()
	return job
}
