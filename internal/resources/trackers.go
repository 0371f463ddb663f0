package resources

import (
	"github.com/intentscout/scoutctl/internal/tracker"
	"github.com/intentscout/scoutctl/pkg/models"
)

type (
	DecisionMakerTracker = tracker.Tracker[models.DecisionMaker, string]
	EmailFinderTracker   = tracker.Tracker[models.EmailResult, struct{}]
	LinkedInTracker      = tracker.Tracker[models.ScrapedProfile, []models.ScrapeContact]
)

// NewDecisionMakerTracker returns a tracker for one signal's decision-maker search.
func NewDecisionMakerTracker(api Doer, opts ...tracker.Option[models.DecisionMaker]) *DecisionMakerTracker {
	return tracker.New[models.DecisionMaker, string](NewDecisionMakers(api), opts...)
}

// NewEmailFinderTracker returns a tracker for one signal's email search.
func NewEmailFinderTracker(api Doer, opts ...tracker.Option[models.EmailResult]) *EmailFinderTracker {
	return tracker.New[models.EmailResult, struct{}](NewEmailFinder(api), opts...)
}

// NewLinkedInTracker returns a tracker for one signal's LinkedIn scrape.
func NewLinkedInTracker(api Doer, opts ...tracker.Option[models.ScrapedProfile]) *LinkedInTracker {
	return tracker.New[models.ScrapedProfile, []models.ScrapeContact](NewLinkedIn(api), opts...)
}
