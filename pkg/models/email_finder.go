package models

// ContactToProcess is a contact queued for email discovery.
type ContactToProcess struct {
	ContactID       string `json:"contact_id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	JobTitle        string `json:"job_title"`
	LinkedInContact string `json:"linkedin_contact"`
}

// EmailResult is the email finder's answer for one contact.
type EmailResult struct {
	ContactID       string   `json:"contact_id"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	JobTitle        string   `json:"job_title"`
	LinkedInContact string   `json:"linkedin_contact"`
	EmailAddress    string   `json:"email_address,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
}

func (e EmailResult) FullName() string {
	return joinName(e.FirstName, e.LastName)
}

// EmailFinderSearchRequest starts an email search for a signal's contacts.
type EmailFinderSearchRequest struct {
	SignalID string `json:"signal_id"`
}

// EmailFinderSearchStatus is the backend view of an email finder search.
type EmailFinderSearchStatus struct {
	SearchID          string             `json:"search_id"`
	Status            string             `json:"status"`
	ContactsToProcess []ContactToProcess `json:"contacts_to_process"`
	EmailResults      []EmailResult      `json:"email_results"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	StartedAt         string             `json:"started_at,omitempty"`
	CompletedAt       string             `json:"completed_at,omitempty"`
}
