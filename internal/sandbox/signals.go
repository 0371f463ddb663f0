package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/intentscout/scoutctl/pkg/models"
)

const signalsPerDay = 5

var (
	companyNames = []string{"Acme Robotics", "Globex", "Initech", "Umbrella Health", "Hooli", "Stark Logistics", "Wayne Fintech"}
	verticals    = []string{"manufacturing", "software", "healthcare", "finance"}
)

// signalBook serves generated intent signals and remembers decisions made on them.
type signalBook struct {
	mu        sync.RWMutex
	decisions map[string]models.Decision
}

func newSignalBook() *signalBook {
	return &signalBook{decisions: make(map[string]models.Decision)}
}

func (b *signalBook) decide(signalID string, d models.Decision) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d == models.DecisionRemove {
		delete(b.decisions, signalID)
		return
	}
	b.decisions[signalID] = d
}

func (b *signalBook) decision(signalID string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.decisions[signalID])
}

// scores returns the day's intent scores for a product at or above minScore.
func (b *signalBook) scores(date, productID string, minScore float64) []models.IntentScore {
	out := []models.IntentScore{}
	for i := range signalsPerDay {
		n := seed(date + "/" + productID + "/" + fmt.Sprint(i))
		score := float64(n%91+10) / 10
		if score < minScore {
			continue
		}
		id := fmt.Sprintf("sig-%s-%s-%d", date, productID, i+1)
		citations := []string{jobID(date, i, 1), jobID(date, i, 2)}
		out = append(out, models.IntentScore{
			ID:                   id,
			CompanyID:            companyID(n),
			ProductServiceID:     productID,
			IntentScore:          score,
			Reasoning:            fmt.Sprintf("%d open roles match the product's buyer profile.", len(citations)),
			Citations:            citations,
			Date:                 date,
			ModelUsed:            "sandbox",
			CalculationTimestamp: date + "T06:00:00Z",
			JobsFoundCount:       len(citations),
			Decision:             b.decision(id),
		})
	}
	return out
}

func (b *signalBook) counts(start, end, productID string, minScore float64) ([]models.SignalCount, error) {
	from, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return nil, fmt.Errorf("invalid start_date: %w", err)
	}
	to, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return nil, fmt.Errorf("invalid end_date: %w", err)
	}
	out := []models.SignalCount{}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := d.Format(time.DateOnly)
		out = append(out, models.SignalCount{Date: date, TotalSignals: len(b.scores(date, productID, minScore))})
	}
	return out, nil
}

func companyID(n int) string {
	return fmt.Sprintf("co-%d", n%len(companyNames)+1)
}

func jobID(date string, signal, n int) string {
	return fmt.Sprintf("job-%s-%d-%d", date, signal+1, n)
}

func fakeCompanies(ids []string) []models.Company {
	out := []models.Company{}
	for _, id := range ids {
		var n int
		if _, err := fmt.Sscanf(id, "co-%d", &n); err != nil || n < 1 || n > len(companyNames) {
			continue
		}
		name := companyNames[n-1]
		out = append(out, models.Company{
			ID:       id,
			Name:     name,
			Industry: pick(verticals, n),
			Vertical: pick(verticals, n),
			Website:  "https://" + strings.ToLower(strings.ReplaceAll(name, " ", "")) + ".example.com",
		})
	}
	return out
}

func fakeJobPostings(ids []string) []models.JobPosting {
	out := []models.JobPosting{}
	for _, id := range ids {
		if !strings.HasPrefix(id, "job-") {
			continue
		}
		n := seed(id)
		out = append(out, models.JobPosting{
			ID:         id,
			Title:      pick(titles, n),
			Location:   pick(cities, n),
			DatePosted: strings.TrimPrefix(id, "job-")[:min(10, len(id)-4)],
			JobURL:     "https://jobs.example.com/" + id,
			IsRemote:   n%2 == 0,
			Site:       "sandbox",
		})
	}
	return out
}

type IntentScoresInput struct {
	Date      string  `query:"date" required:"true" doc:"Day in YYYY-MM-DD form"`
	ProductID string  `query:"product_id" required:"true"`
	MinScore  float64 `query:"min_score" doc:"Lowest intent score to include"`
}

type CompaniesInput struct {
	CompanyIDs string `query:"company_ids" doc:"Comma separated company IDs"`
}

type JobPostingsInput struct {
	JobIDs string `query:"job_ids" doc:"Comma separated job IDs"`
}

type UpdateDecisionInput struct {
	Body models.UpdateDecisionRequest
}

type UpdateDecisionBody struct {
	Success  bool            `json:"success"`
	SignalID string          `json:"signalId"`
	Action   models.Decision `json:"action"`
}

type SignalCountsInput struct {
	StartDate      string  `query:"start_date" required:"true"`
	EndDate        string  `query:"end_date" required:"true"`
	ProductID      string  `query:"product_id" required:"true"`
	MinScore       float64 `query:"min_score"`
	DecisionFilter string  `query:"decision_filter"`
}

func (h *handlers) registerSignals(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-intent-scores",
		Method:      http.MethodGet,
		Path:        "/signals/intent-scores",
		Summary:     "List intent scores for a day",
		Tags:        []string{"signals"},
		Security:    bearer,
	}, func(_ context.Context, input *IntentScoresInput) (*Response[[]models.IntentScore], error) {
		if _, err := time.Parse(time.DateOnly, input.Date); err != nil {
			return nil, huma.Error400BadRequest("date must be YYYY-MM-DD", err)
		}
		return &Response[[]models.IntentScore]{Body: h.signals.scores(input.Date, input.ProductID, input.MinScore)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-companies",
		Method:      http.MethodGet,
		Path:        "/signals/companies",
		Summary:     "Look up companies by ID",
		Tags:        []string{"signals"},
		Security:    bearer,
	}, func(_ context.Context, input *CompaniesInput) (*Response[[]models.Company], error) {
		return &Response[[]models.Company]{Body: fakeCompanies(splitIDs(input.CompanyIDs))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-job-postings",
		Method:      http.MethodGet,
		Path:        "/signals/jobs",
		Summary:     "Look up job postings by ID",
		Tags:        []string{"signals"},
		Security:    bearer,
	}, func(_ context.Context, input *JobPostingsInput) (*Response[[]models.JobPosting], error) {
		return &Response[[]models.JobPosting]{Body: fakeJobPostings(splitIDs(input.JobIDs))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-decision",
		Method:      http.MethodPost,
		Path:        "/signals/update-decision",
		Summary:     "Approve, reject or clear the decision on a signal",
		Tags:        []string{"signals"},
		Security:    bearer,
	}, func(_ context.Context, input *UpdateDecisionInput) (*Response[UpdateDecisionBody], error) {
		if !input.Body.Action.Valid() {
			return nil, huma.Error400BadRequest(fmt.Sprintf("unknown action %q", input.Body.Action))
		}
		h.signals.decide(input.Body.SignalID, input.Body.Action)
		return &Response[UpdateDecisionBody]{Body: UpdateDecisionBody{
			Success:  true,
			SignalID: input.Body.SignalID,
			Action:   input.Body.Action,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "signal-counts",
		Method:      http.MethodGet,
		Path:        "/signals/signal-counts",
		Summary:     "Count signals per day",
		Tags:        []string{"signals"},
		Security:    bearer,
	}, func(_ context.Context, input *SignalCountsInput) (*Response[[]models.SignalCount], error) {
		counts, err := h.signals.counts(input.StartDate, input.EndDate, input.ProductID, input.MinScore)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		return &Response[[]models.SignalCount]{Body: counts}, nil
	})
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
