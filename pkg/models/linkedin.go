package models

// Per-profile scrape outcomes.
const (
	ProfileScraped = "scraped"
	ProfileTimeout = "timeout"
	ProfileError   = "error"
)

// ScrapeContact is a contact handed to the LinkedIn scraper.
type ScrapeContact struct {
	ContactID   string `json:"contact_id" yaml:"contact_id"`
	FirstName   string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	JobTitle    string `json:"job_title,omitempty" yaml:"job_title,omitempty"`
	LinkedInURL string `json:"linkedin_url" yaml:"linkedin_url"`
}

// ScrapeRequest starts a LinkedIn scrape.
type ScrapeRequest struct {
	Contacts []ScrapeContact `json:"contacts"`
	SignalID string          `json:"signal_id,omitempty"`
}

// ScrapedProfile is one scraped LinkedIn profile.
type ScrapedProfile struct {
	ContactID         string `json:"contact_id"`
	URL               string `json:"url"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	FullName          string `json:"full_name"`
	Headline          string `json:"headline"`
	CurrentPosition   string `json:"current_position"`
	Company           string `json:"company"`
	Location          string `json:"location"`
	Summary           string `json:"summary"`
	ProfilePictureURL string `json:"profile_picture_url"`
	Status            string `json:"status"`
}

// Name prefers the scraped full name.
func (p ScrapedProfile) Name() string {
	if p.FullName != "" {
		return p.FullName
	}
	return joinName(p.FirstName, p.LastName)
}

// ScrapingStatus is the backend view of a scrape. Status is "in_progress", "completed"
// or "failed", or "not_found" for by-signal lookups with no scrape.
type ScrapingStatus struct {
	ScrapingID        string           `json:"scraping_id"`
	TotalContacts     int              `json:"total_contacts"`
	ContactsProcessed int              `json:"contacts_processed"`
	ScrapedProfiles   []ScrapedProfile `json:"scraped_profiles"`
	Status            string           `json:"status"`
	ErrorMessage      string           `json:"error_message,omitempty"`
}
