package models

// DecisionMaker is a person the decision-maker search recommends contacting.
type DecisionMaker struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	JobTitle    string `json:"job_title"`
	LinkedInURL string `json:"linkedin_url"`
	WhyReachOut string `json:"why_reach_out"`
}

// FullName joins first and last name.
func (d DecisionMaker) FullName() string {
	return joinName(d.FirstName, d.LastName)
}

// DecisionMakerSearchRequest starts a decision-maker search for a signal.
type DecisionMakerSearchRequest struct {
	SignalID       string `json:"signal_id"`
	CustomGuidance string `json:"custom_guidance,omitempty"`
}

// DecisionMakerSearchStatus is the backend view of a decision-maker search. Status is
// "pending", "searching", "completed" or "failed", or "not_found" for by-signal lookups
// with no search.
type DecisionMakerSearchStatus struct {
	SearchID       string          `json:"search_id"`
	Status         string          `json:"status"`
	DecisionMakers []DecisionMaker `json:"decision_makers"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	StartedAt      string          `json:"started_at,omitempty"`
	CompletedAt    string          `json:"completed_at,omitempty"`
}
