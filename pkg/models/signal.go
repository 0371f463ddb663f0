package models

import "strings"

// Decision is a user's verdict on a signal.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionRemove  Decision = "remove"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionRemove:
		return true
	}
	return false
}

// IntentScore is one scored company for a product and date.
type IntentScore struct {
	ID                   string   `json:"id"`
	CompanyID            string   `json:"companyId"`
	ProductServiceID     string   `json:"productServiceId"`
	IntentScore          float64  `json:"intentScore"`
	Reasoning            string   `json:"reasoning"`
	Citations            []string `json:"citations"`
	Date                 string   `json:"date"`
	ModelUsed            string   `json:"modelUsed"`
	CalculationTimestamp string   `json:"calculationTimestamp"`
	JobsFoundCount       int      `json:"jobsFoundCount"`
	Decision             string   `json:"decision,omitempty"`
}

// Company is the firmographic record behind a signal.
type Company struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Industry          string `json:"industry,omitempty"`
	CompanySize       string `json:"companySize,omitempty"`
	Website           string `json:"website,omitempty"`
	LogoURL           string `json:"logoUrl,omitempty"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	BannerURL         string `json:"bannerUrl,omitempty"`
	AboutUs           string `json:"aboutUs,omitempty"`
	Headquarters      string `json:"headquarters,omitempty"`
	Type              string `json:"type,omitempty"`
	Founded           int    `json:"founded,omitempty"`
	Specialties       string `json:"specialties,omitempty"`
	Vertical          string `json:"vertical,omitempty"`
}

// JobPosting is a job listing cited as evidence for a signal.
type JobPosting struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	Company               string `json:"company"`
	Location              string `json:"location"`
	DatePosted            string `json:"datePosted"`
	JobURL                string `json:"jobUrl"`
	DescriptionMarkdown   string `json:"descriptionMarkdown"`
	IsRemote              bool   `json:"isRemote"`
	CompanyID             string `json:"companyId"`
	Site                  string `json:"site"`
	PageHTMLBackblazeUUID string `json:"pageHtmlBackblazeUuid,omitempty"`
}

// Signal is an intent score joined with its company and cited jobs.
type Signal struct {
	ID                   string       `json:"id"`
	Company              Company      `json:"company"`
	IntentScore          float64      `json:"intentScore"`
	Reasoning            string       `json:"reasoning"`
	Citations            []string     `json:"citations"`
	Date                 string       `json:"date"`
	ModelUsed            string       `json:"modelUsed"`
	CalculationTimestamp string       `json:"calculationTimestamp"`
	JobsFoundCount       int          `json:"jobsFoundCount"`
	Decision             string       `json:"decision,omitempty"`
	Jobs                 []JobPosting `json:"jobs"`
}

// UpdateDecisionRequest records a decision for a signal.
type UpdateDecisionRequest struct {
	SignalID string   `json:"signalId"`
	Action   Decision `json:"action"`
}

// SignalCount is the number of signals found on a date.
type SignalCount struct {
	Date         string `json:"date"`
	TotalSignals int    `json:"total_signals"`
}

// Health is the backend health payload.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// User is the signed-in user as reported by /user/me.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	Role           string `json:"role,omitempty"`
}

func joinName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
