package resources

import (
	"context"
	"net/http"
	"strings"

	"github.com/intentscout/scoutctl/internal/client"
	"github.com/intentscout/scoutctl/internal/jobs"
	"github.com/intentscout/scoutctl/internal/poll"
	"github.com/intentscout/scoutctl/pkg/models"
)

// DecisionMakers drives decision-maker searches. Start params are the optional custom
// guidance for the search.
type DecisionMakers struct {
	api Doer
}

func NewDecisionMakers(api Doer) *DecisionMakers {
	return &DecisionMakers{api: api}
}

func (b *DecisionMakers) Name() string { return "decision_makers" }

func (b *DecisionMakers) Schedule() poll.Schedule { return poll.Fixed(SearchPollInterval) }

func (b *DecisionMakers) Start(ctx context.Context, signalID string, guidance string) (*jobs.Job[models.DecisionMaker], error) {
	req := models.DecisionMakerSearchRequest{SignalID: signalID, CustomGuidance: strings.TrimSpace(guidance)}
	out, err := post[models.DecisionMakerSearchStatus](ctx, b.api, client.EndpointDecisionMakersStart, req)
	if err != nil {
		return nil, err
	}
	return decisionMakerJob(out), nil
}

func (b *DecisionMakers) Status(ctx context.Context, id jobs.JobID) (*jobs.Job[models.DecisionMaker], error) {
	out, err := get[models.DecisionMakerSearchStatus](ctx, b.api, client.DecisionMakerSearchStatus(string(id)), StatusTimeout)
	if err != nil {
		return nil, err
	}
	return decisionMakerJob(out), nil
}

func (b *DecisionMakers) Existing(ctx context.Context, signalID string) (*jobs.Job[models.DecisionMaker], error) {
	out, err := lookup[models.DecisionMakerSearchStatus](ctx, b.api, client.DecisionMakersBySignal(signalID))
	if err != nil || out == nil || jobs.IsNotFound(out.Status) {
		return nil, err
	}
	return decisionMakerJob(*out), nil
}

func (b *DecisionMakers) Restart(ctx context.Context, id jobs.JobID) error {
	return b.api.Request(ctx, client.DecisionMakerSearchRestart(string(id)),
		client.RequestOptions{Method: http.MethodPost}).Err()
}

func decisionMakerJob(s models.DecisionMakerSearchStatus) *jobs.Job[models.DecisionMaker] {
	return newJob(s.SearchID, s.Status, s.ErrorMessage, s.StartedAt, s.CompletedAt, s.DecisionMakers)
}
