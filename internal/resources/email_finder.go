package resources

import (
	"context"
	"net/http"

	"github.com/intentscout/scoutctl/internal/client"
	"github.com/intentscout/scoutctl/internal/jobs"
	"github.com/intentscout/scoutctl/internal/poll"
	"github.com/intentscout/scoutctl/pkg/models"
)

// EmailFinder drives email searches over a signal's saved contacts.
type EmailFinder struct {
	api Doer
}

func NewEmailFinder(api Doer) *EmailFinder {
	return &EmailFinder{api: api}
}

func (b *EmailFinder) Name() string { return "email_finder" }

func (b *EmailFinder) Schedule() poll.Schedule { return poll.Fixed(SearchPollInterval) }

func (b *EmailFinder) Start(ctx context.Context, signalID string, _ struct{}) (*jobs.Job[models.EmailResult], error) {
	out, err := post[models.EmailFinderSearchStatus](ctx, b.api, client.EndpointEmailFinderStart,
		models.EmailFinderSearchRequest{SignalID: signalID})
	if err != nil {
		return nil, err
	}
	return emailJob(out), nil
}

func (b *EmailFinder) Status(ctx context.Context, id jobs.JobID) (*jobs.Job[models.EmailResult], error) {
	out, err := get[models.EmailFinderSearchStatus](ctx, b.api, client.EmailFinderSearchStatus(string(id)), StatusTimeout)
	if err != nil {
		return nil, err
	}
	return emailJob(out), nil
}

func (b *EmailFinder) Existing(ctx context.Context, signalID string) (*jobs.Job[models.EmailResult], error) {
	out, err := lookup[models.EmailFinderSearchStatus](ctx, b.api, client.EmailFinderBySignal(signalID))
	if err != nil || out == nil || jobs.IsNotFound(out.Status) {
		return nil, err
	}
	return emailJob(*out), nil
}

func (b *EmailFinder) Restart(ctx context.Context, id jobs.JobID) error {
	return b.api.Request(ctx, client.EmailFinderSearchRestart(string(id)),
		client.RequestOptions{Method: http.MethodPost}).Err()
}

func emailJob(s models.EmailFinderSearchStatus) *jobs.Job[models.EmailResult] {
	job := newJob(s.SearchID, s.Status, s.ErrorMessage, s.StartedAt, s.CompletedAt, s.EmailResults)
	if n := len(s.ContactsToProcess); n > 0 {
		job.Progress = &jobs.Progress{Total: n, Processed: len(s.EmailResults)}
	}
	return job
}
