package sandbox

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/intentscout/scoutctl/internal/jobs"
	"github.com/intentscout/scoutctl/pkg/models"
)

// Response is a generic wrapper for Huma responses
type Response[T any] struct {
	Body T
}

type handlers struct {
	deps    Deps
	signals *signalBook
}

type SearchPathInput struct {
	SearchID string `path:"searchId" doc:"Search ID"`
}

type SignalPathInput struct {
	SignalID string `path:"signalId" doc:"Signal ID"`
}

type StartDecisionMakersInput struct {
	Body models.DecisionMakerSearchRequest
}

type StartEmailFinderInput struct {
	Body models.EmailFinderSearchRequest
}

type ScrapeInput struct {
	Body models.ScrapeRequest
}

type ScrapeStatusInput struct {
	ID string `path:"id" doc:"Scraping ID or signal ID"`
}

type TokenInput struct {
	GrantType string `query:"grant_type" required:"true" doc:"Only refresh_token is supported"`
	APIKey    string `header:"apikey" doc:"Project anon key, accepted and ignored"`
	Body      struct {
		RefreshToken string `json:"refresh_token"`
	}
}

func (h *handlers) registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"health"},
	}, func(context.Context, *struct{}) (*Response[models.Health], error) {
		return &Response[models.Health]{Body: models.Health{Status: "healthy", Version: h.deps.Config.Version}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/user/me",
		Summary:     "Current user",
		Tags:        []string{"auth"},
		Security:    bearer,
	}, func(ctx context.Context, _ *struct{}) (*Response[models.User], error) {
		claims, ok := ClaimsFrom(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		return &Response[models.User]{Body: models.User{
			ID:       claims.Subject,
			Email:    claims.Email,
			FullName: "Sandbox User",
			Role:     claims.Role,
		}}, nil
	})
}

func (h *handlers) registerAuth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/auth/v1/token",
		Summary:     "Exchange a refresh token",
		Description: "Issues a new access token for the sandbox user. The refresh token is returned unchanged.",
		Tags:        []string{"auth"},
	}, func(_ context.Context, input *TokenInput) (*Response[TokenResponse], error) {
		if input.GrantType != "refresh_token" {
			return nil, huma.Error400BadRequest("unsupported_grant_type: " + input.GrantType)
		}
		tokens, err := h.deps.Tokens.Refresh(input.Body.RefreshToken)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid_grant: Invalid Refresh Token", err)
		}
		return &Response[TokenResponse]{Body: *tokens}, nil
	})
}

func (h *handlers) registerDecisionMakers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "start-decision-maker-search",
		Method:      http.MethodPost,
		Path:        "/decision-makers/start-search",
		Summary:     "Start a decision-maker search",
		Tags:        []string{"decision-makers"},
		Security:    bearer,
	}, func(ctx context.Context, input *StartDecisionMakersInput) (*Response[models.DecisionMakerSearchStatus], error) {
		job, err := h.deps.Jobs.CreateJob(ctx, ResourceDecisionMakers, input.Body.SignalID, input.Body)
		if err != nil {
			return nil, h.jobError(err, "search")
		}
		return h.decisionMakerStatus(job)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-decision-maker-search-status",
		Method:      http.MethodGet,
		Path:        "/decision-makers/search/{searchId}/status",
		Summary:     "Get decision-maker search status",
		Tags:        []string{"decision-makers"},
		Security:    bearer,
	}, func(ctx context.Context, input *SearchPathInput) (*Response[models.DecisionMakerSearchStatus], error) {
		job, err := h.advance(ctx, ResourceDecisionMakers, input.SearchID)
		if err != nil {
			return nil, h.jobError(err, "search")
		}
		return h.decisionMakerStatus(job)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-decision-makers-by-signal",
		Method:      http.MethodGet,
		Path:        "/decision-makers/signal/{signalId}",
		Summary:     "Get the latest decision-maker search for a signal",
		Tags:        []string{"decision-makers"},
		Security:    bearer,
	}, func(ctx context.Context, input *SignalPathInput) (*Response[models.DecisionMakerSearchStatus], error) {
		job, err := h.deps.Jobs.LatestForSignal(ctx, ResourceDecisionMakers, input.SignalID)
		if errors.Is(err, ErrJobNotFound) {
			return &Response[models.DecisionMakerSearchStatus]{Body: models.DecisionMakerSearchStatus{Status: jobs.StatusNotFound}}, nil
		}
		if err != nil {
			return nil, h.jobError(err, "search")
		}
		return h.decisionMakerStatus(job)
	})

	huma.Register(api, huma.Operation{
		OperationID: "restart-decision-maker-search",
		Method:      http.MethodPost,
		Path:        "/decision-makers/search/{searchId}/restart",
		Summary:     "Restart a decision-maker search",
		Tags:        []string{"decision-makers"},
		Security:    bearer,
	}, func(ctx context.Context, input *SearchPathInput) (*Response[models.DecisionMakerSearchStatus], error) {
		job, err := h.restart(ctx, ResourceDecisionMakers, input.SearchID)
		if err != nil {
			return nil, h.jobError(err, "search")
		}
		return h.decisionMakerStatus(job)
	})
}

func (h *handlers) registerEmailFinder(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "start-email-finder-search",
		Method:      http.MethodPost,
		Path:        "/email-finder/start-search",
		Summary:     "Start an email search",
		Tags:        []string{"email-finder"},
		Security:    bearer,
	}, func(ctx context.Context, input *StartEmailFinderInput) (*Response[models.EmailFinderSearchStatus], error) {
		job, err := h.deps.Jobs.CreateJob(ctx, ResourceEmailFinder, input.Body.SignalID, input.Body)
		if err != nil {
			return nil, h.jobError(err, "search")
		}
		return h.emailFinderStatus(job)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-email-finder-search-status",
		Method:      http.MethodGet,
		Path:        "/email-finder/search/{searchId}/status",
		Summary:     "Get email search status",
		Tags:        []string{"email-finder"},
		Security:    bearer,
	}, func(ctx context.Context, input *SearchPathInput) (*Response[models.EmailFinderSearchStatus], error) {
		job, err := h.advance(ctx, ResourceEmailFinder, input.SearchID)
		if err != nil {
			return nil, h.jobError(err, "search")
		}
		return h.emailFinderStatus(job)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-email-finder-by-signal",
		Method:      http.MethodGet,
		Path:        "/email-finder/signal/{signalId}",
		Summary:     "Get the latest email search for a signal",
		Tags:        []string{"email-finder"},
		Security:    bearer,
	}, func(ctx context.Context, input *SignalPathInput) (*Response[models.EmailFinderSearchStatus], error) {
		job, err := h.deps.Jobs.LatestForSignal(ctx, ResourceEmailFinder, input.SignalID)
		if errors.Is(err, ErrJobNotFound) {
			return &Response[models.EmailFinderSearchStatus]{Body: models.EmailFinderSearchStatus{Status: jobs.StatusNotFound}}, nil
		}
		if err != nil {
			return nil, h.jobError(err, "search")
		}
		return h.emailFinderStatus(job)
	})

	huma.Register(api, huma.Operation{
		OperationID: "restart-email-finder-search",
		Method:      http.MethodPost,
		Path:        "/email-finder/search/{searchId}/restart",
		Summary:     "Restart an email search",
		Tags:        []string{"email-finder"},
		Security:    bearer,
	}, func(ctx context.Context, input *SearchPathInput) (*Response[models.EmailFinderSearchStatus], error) {
		job, err := h.restart(ctx, ResourceEmailFinder, input.SearchID)
		if err != nil {
			return nil, h.jobError(err, "search")
		}
		return h.emailFinderStatus(job)
	})
}

func (h *handlers) registerLinkedIn(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "start-linkedin-scrape",
		Method:      http.MethodPost,
		Path:        "/linkedin-scraping/scrape",
		Summary:     "Scrape LinkedIn profiles",
		Tags:        []string{"linkedin-scraping"},
		Security:    bearer,
	}, func(ctx context.Context, input *ScrapeInput) (*Response[models.ScrapingStatus], error) {
		if len(input.Body.Contacts) == 0 {
			return nil, huma.Error400BadRequest("At least one contact is required")
		}
		job, err := h.deps.Jobs.CreateJob(ctx, ResourceLinkedIn, input.Body.SignalID, input.Body)
		if err != nil {
			return nil, h.jobError(err, "scrape")
		}
		return h.scrapingStatus(job)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-linkedin-scrape-status",
		Method:      http.MethodGet,
		Path:        "/linkedin-scraping/status/{id}",
		Summary:     "Get scrape status",
		Description: "Accepts a scraping ID, or a signal ID to look up the signal's latest scrape.",
		Tags:        []string{"linkedin-scraping"},
		Security:    bearer,
	}, func(ctx context.Context, input *ScrapeStatusInput) (*Response[models.ScrapingStatus], error) {
		id := input.ID
		if _, err := h.find(ctx, ResourceLinkedIn, id); errors.Is(err, ErrJobNotFound) {
			latest, err := h.deps.Jobs.LatestForSignal(ctx, ResourceLinkedIn, id)
			if errors.Is(err, ErrJobNotFound) {
				return &Response[models.ScrapingStatus]{Body: models.ScrapingStatus{Status: jobs.StatusNotFound}}, nil
			}
			if err != nil {
				return nil, h.jobError(err, "scrape")
			}
			id = latest.ID
		}
		job, err := h.deps.Jobs.Advance(ctx, id)
		if err != nil {
			return nil, h.jobError(err, "scrape")
		}
		return h.scrapingStatus(job)
	})
}

// find loads a job by id, treating jobs of another resource as missing.
func (h *handlers) find(ctx context.Context, resource Resource, id string) (*Job, error) {
	job, err := h.deps.Jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Resource != resource {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (h *handlers) advance(ctx context.Context, resource Resource, id string) (*Job, error) {
	if _, err := h.find(ctx, resource, id); err != nil {
		return nil, err
	}
	return h.deps.Jobs.Advance(ctx, id)
}

func (h *handlers) restart(ctx context.Context, resource Resource, id string) (*Job, error) {
	if _, err := h.find(ctx, resource, id); err != nil {
		return nil, err
	}
	return h.deps.Jobs.RestartJob(ctx, id)
}

func (h *handlers) decisionMakerStatus(job *Job) (*Response[models.DecisionMakerSearchStatus], error) {
	results, err := decodeResults[models.DecisionMaker](job)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load search results", err)
	}
	if results == nil {
		results = []models.DecisionMaker{}
	}
	return &Response[models.DecisionMakerSearchStatus]{Body: models.DecisionMakerSearchStatus{
		SearchID:       job.ID,
		Status:         wireStatus(job.Status, "searching"),
		DecisionMakers: results,
		ErrorMessage:   job.ErrorMessage,
		StartedAt:      timestamp(job.CreatedAt),
		CompletedAt:    timestamp(job.CompletedAt),
	}}, nil
}

func (h *handlers) emailFinderStatus(job *Job) (*Response[models.EmailFinderSearchStatus], error) {
	results, err := decodeResults[models.EmailResult](job)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load search results", err)
	}
	if results == nil {
		results = []models.EmailResult{}
	}
	return &Response[models.EmailFinderSearchStatus]{Body: models.EmailFinderSearchStatus{
		SearchID:          job.ID,
		Status:            wireStatus(job.Status, "processing"),
		ContactsToProcess: fakeContacts(job.SignalID, job.Total),
		EmailResults:      results,
		ErrorMessage:      job.ErrorMessage,
		StartedAt:         timestamp(job.CreatedAt),
		CompletedAt:       timestamp(job.CompletedAt),
	}}, nil
}

func (h *handlers) scrapingStatus(job *Job) (*Response[models.ScrapingStatus], error) {
	results, err := decodeResults[models.ScrapedProfile](job)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load scrape results", err)
	}
	if results == nil {
		results = []models.ScrapedProfile{}
	}
	status := wireStatus(job.Status, "in_progress")
	if job.Status == jobs.JobStatusPending {
		status = "in_progress"
	}
	return &Response[models.ScrapingStatus]{Body: models.ScrapingStatus{
		ScrapingID:        job.ID,
		TotalContacts:     job.Total,
		ContactsProcessed: h.deps.Jobs.Processed(job),
		ScrapedProfiles:   results,
		Status:            status,
		ErrorMessage:      job.ErrorMessage,
	}}, nil
}

// wireStatus spells the running state the way each backend resource does.
func wireStatus(s jobs.JobStatus, running string) string {
	if s == jobs.JobStatusRunning {
		return running
	}
	return string(s)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (h *handlers) jobError(err error, noun string) error {
	switch {
	case errors.Is(err, ErrJobNotFound):
		return huma.Error404NotFound(capitalize(noun) + " not found")
	case errors.Is(err, ErrJobAlreadyRunning):
		return huma.Error409Conflict("A " + noun + " is already running for this signal")
	default:
		h.deps.Logger.Error("job request failed", "error", err)
		return huma.Error500InternalServerError("Failed to process "+noun, err)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
