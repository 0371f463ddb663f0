package resources

import (
	"context"

	"github.com/intentscout/scoutctl/internal/client"
	"github.com/intentscout/scoutctl/internal/jobs"
	"github.com/intentscout/scoutctl/internal/poll"
	"github.com/intentscout/scoutctl/internal/tracker"
	"github.com/intentscout/scoutctl/pkg/models"
)

// LinkedIn drives LinkedIn profile scrapes. Start params are the contacts to scrape.
type LinkedIn struct {
	api Doer
}

func NewLinkedIn(api Doer) *LinkedIn {
	return &LinkedIn{api: api}
}

func (b *LinkedIn) Name() string { return "linkedin_scraping" }

// Schedule polls quickly at first and backs off once a scrape has run for a while.
func (b *LinkedIn) Schedule() poll.Schedule {
	return poll.TwoTier{Initial: ScrapeInitialInterval, Switch: ScrapeSwitchAfter, Later: ScrapeLaterInterval}
}

func (b *LinkedIn) Start(ctx context.Context, signalID string, contacts []models.ScrapeContact) (*jobs.Job[models.ScrapedProfile], error) {
	out, err := post[models.ScrapingStatus](ctx, b.api, client.EndpointLinkedInScrape,
		models.ScrapeRequest{Contacts: contacts, SignalID: signalID})
	if err != nil {
		return nil, err
	}
	return scrapeJob(out), nil
}

func (b *LinkedIn) Status(ctx context.Context, id jobs.JobID) (*jobs.Job[models.ScrapedProfile], error) {
	out, err := get[models.ScrapingStatus](ctx, b.api, client.LinkedInScrapingStatus(string(id)), 0)
	if err != nil {
		return nil, err
	}
	return scrapeJob(out), nil
}

// Existing asks the status endpoint with the signal id, which the backend resolves to the
// signal's latest scrape.
func (b *LinkedIn) Existing(ctx context.Context, signalID string) (*jobs.Job[models.ScrapedProfile], error) {
	out, err := lookup[models.ScrapingStatus](ctx, b.api, client.LinkedInScrapingStatus(signalID))
	if err != nil || out == nil || jobs.IsNotFound(out.Status) {
		return nil, err
	}
	return scrapeJob(*out), nil
}

func (b *LinkedIn) Restart(context.Context, jobs.JobID) error {
	return tracker.ErrRestartUnsupported
}

func scrapeJob(s models.ScrapingStatus) *jobs.Job[models.ScrapedProfile] {
	job := newJob(s.ScrapingID, s.Status, s.ErrorMessage, "", "", s.ScrapedProfiles)
	if s.TotalContacts > 0 {
		job.Progress = &jobs.Progress{Total: s.TotalContacts, Processed: s.ContactsProcessed}
	}
	return job
}
