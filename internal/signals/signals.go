// Package signals lists intent signals with their companies and cited jobs, and records
// user decisions on them.
package signals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/intentscout/scoutctl/internal/cache"
	"github.com/intentscout/scoutctl/internal/client"
	"github.com/intentscout/scoutctl/internal/logging"
	"github.com/intentscout/scoutctl/pkg/models"
)

// UnknownCompany names signals whose company record could not be loaded.
const UnknownCompany = "Unknown Company"

// DefaultMinScore is the minimum intent score used when none is given.
const DefaultMinScore = 3.0

// Doer performs requests. *client.Client implements it.
type Doer interface {
	Request(ctx context.Context, endpoint string, opts client.RequestOptions) *client.Response
}

// Query selects the intent scores for one product and day.
type Query struct {
	Date      string
	ProductID string
	MinScore  float64
	// Vertical keeps only companies in this vertical, case-insensitively.
	Vertical string
	// HideApproved drops signals the user already approved.
	HideApproved bool
}

func (q Query) cacheKey() string {
	return fmt.Sprintf("%s%s-%s-%s-%t", keyPrefix, q.Date, q.ProductID, formatScore(q.MinScore), q.HideApproved)
}

const keyPrefix = "intent-scores-"

// CountsQuery selects per-day signal counts.
type CountsQuery struct {
	StartDate      string
	EndDate        string
	ProductID      string
	MinScore       float64
	DecisionFilter string
}

// Service is the signals API. It caches intent scores until a decision changes them.
type Service struct {
	api    Doer
	scores *cache.Cache[[]models.IntentScore]
	logger *slog.Logger
}

// NewService creates a service with its own intent score cache.
func NewService(api Doer, logger *slog.Logger) *Service {
	return &Service{
		api:    api,
		scores: cache.New[[]models.IntentScore](cache.KeepResolved),
		logger: logging.OrDiscard(logger),
	}
}

// ListIntentScores returns the intent scores for q, sharing concurrent and repeated calls.
func (s *Service) ListIntentScores(ctx context.Context, q Query) ([]models.IntentScore, error) {
	return s.scores.Get(ctx, q.cacheKey(), func(ctx context.Context) ([]models.IntentScore, error) {
		s.logger.Debug("loading intent scores", "date", q.Date, "product_id", q.ProductID)
		endpoint := client.WithQuery(client.EndpointIntentScores, url.Values{
			"date":       {q.Date},
			"product_id": {q.ProductID},
			"min_score":  {formatScore(q.MinScore)},
		})
		return fetch[[]models.IntentScore](ctx, s.api, endpoint)
	})
}

// List assembles full signals for q. Company and job lookups run concurrently; their
// failures are logged and leave the affected fields empty.
func (s *Service) List(ctx context.Context, q Query) ([]models.Signal, error) {
	scores, err := s.ListIntentScores(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return []models.Signal{}, nil
	}

	var companyIDs, jobIDs []string
	for _, sc := range scores {
		companyIDs = append(companyIDs, sc.CompanyID)
		jobIDs = append(jobIDs, sc.Citations...)
	}
	companyIDs = unique(companyIDs)
	jobIDs = unique(jobIDs)

	var companies []models.Company
	var postings []models.JobPosting
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(companyIDs) == 0 {
			return nil
		}
		out, err := fetch[[]models.Company](gctx, s.api, client.EndpointCompanies+"?company_ids="+joinIDs(companyIDs))
		if err != nil {
			s.logger.Warn("failed to fetch companies", "error", err)
			return nil
		}
		companies = out
		return nil
	})
	g.Go(func() error {
		if len(jobIDs) == 0 {
			return nil
		}
		out, err := fetch[[]models.JobPosting](gctx, s.api, client.EndpointJobs+"?job_ids="+joinIDs(jobIDs))
		if err != nil {
			s.logger.Warn("failed to fetch jobs", "error", err)
			return nil
		}
		postings = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assemble(scores, companies, postings, q), nil
}

func assemble(scores []models.IntentScore, companies []models.Company, postings []models.JobPosting, q Query) []models.Signal {
	companyByID := make(map[string]models.Company, len(companies))
	for _, c := range companies {
		companyByID[c.ID] = c
	}
	jobByID := make(map[string]models.JobPosting, len(postings))
	for _, j := range postings {
		jobByID[j.ID] = j
	}

	out := make([]models.Signal, 0, len(scores))
	for _, sc := range scores {
		if q.HideApproved && models.Decision(sc.Decision) == models.DecisionApprove {
			continue
		}
		company, ok := companyByID[sc.CompanyID]
		if !ok {
			company = models.Company{ID: sc.CompanyID, Name: UnknownCompany}
		}
		if q.Vertical != "" && !strings.EqualFold(company.Vertical, q.Vertical) {
			continue
		}
		if sc.IntentScore <= 0 {
			continue
		}
		cited := make([]models.JobPosting, 0, len(sc.Citations))
		for _, id := range sc.Citations {
			if j, ok := jobByID[id]; ok {
				cited = append(cited, j)
			}
		}
		out = append(out, models.Signal{
			ID:                   sc.ID,
			Company:              company,
			IntentScore:          sc.IntentScore,
			Reasoning:            sc.Reasoning,
			Citations:            sc.Citations,
			Date:                 sc.Date,
			ModelUsed:            sc.ModelUsed,
			CalculationTimestamp: sc.CalculationTimestamp,
			JobsFoundCount:       sc.JobsFoundCount,
			Decision:             sc.Decision,
			Jobs:                 cited,
		})
	}
	return out
}

// UpdateDecision records decision for signalID and drops the cached intent scores for
// date, the day the signal was listed under. An empty date drops every cached day.
func (s *Service) UpdateDecision(ctx context.Context, signalID string, decision models.Decision, date string) error {
	if !decision.Valid() {
		return fmt.Errorf("invalid decision %q", decision)
	}
	if signalID == "" {
		return errors.New("signal id is required")
	}
	resp := s.api.Request(ctx, client.EndpointUpdateDecision, client.RequestOptions{
		Method: http.MethodPost,
		Body:   models.UpdateDecisionRequest{SignalID: signalID, Action: decision},
	})
	if err := resp.Err(); err != nil {
		return err
	}
	if date != "" {
		s.scores.InvalidatePrefix(keyPrefix + date + "-")
	} else {
		s.scores.InvalidatePrefix(keyPrefix)
	}
	s.logger.Debug("decision recorded", "signal_id", signalID, "decision", decision)
	return nil
}

// Counts returns per-day signal counts.
func (s *Service) Counts(ctx context.Context, q CountsQuery) ([]models.SignalCount, error) {
	if q.StartDate == "" || q.EndDate == "" || q.ProductID == "" {
		return nil, errors.New("start date, end date and product are required")
	}
	endpoint := client.WithQuery(client.EndpointSignalCounts, url.Values{
		"start_date":      {q.StartDate},
		"end_date":        {q.EndDate},
		"product_id":      {q.ProductID},
		"min_score":       {formatScore(q.MinScore)},
		"decision_filter": {q.DecisionFilter},
	})
	return fetch[[]models.SignalCount](ctx, s.api, endpoint)
}

func fetch[T any](ctx context.Context, d Doer, endpoint string) (T, error) {
	resp := d.Request(ctx, endpoint, client.RequestOptions{Method: http.MethodGet})
	if err := resp.Err(); err != nil {
		var zero T
		return zero, err
	}
	if len(resp.Data) == 0 {
		var zero T
		return zero, nil
	}
	return client.Decode[T](resp)
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func joinIDs(ids []string) string {
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = url.QueryEscape(id)
	}
	return strings.Join(escaped, ",")
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return slices.Clip(out)
}
