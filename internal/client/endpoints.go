package client

import (
	"net/url"
	"strings"
)

// Backend routes.
const (
	EndpointHealth = "/health"
	EndpointMe     = "/user/me"

	EndpointOrganization        = "/organization/current"
	EndpointOrganizationMembers = "/organization/members"

	EndpointIntentScores   = "/signals/intent-scores"
	EndpointCompanies      = "/signals/companies"
	EndpointJobs           = "/signals/jobs"
	EndpointUpdateDecision = "/signals/update-decision"
	EndpointSignalCounts   = "/signals/signal-counts"
	EndpointProducts       = "/signals/products"

	EndpointDecisionMakersStart = "/decision-makers/start-search"
	EndpointEmailFinderStart    = "/email-finder/start-search"
	EndpointLinkedInScrape      = "/linkedin-scraping/scrape"

	EndpointContacts = "/contacts"
)

func DecisionMakerSearchStatus(searchID string) string {
	return "/decision-makers/search/" + url.PathEscape(searchID) + "/status"
}

func DecisionMakersBySignal(signalID string) string {
	return "/decision-makers/signal/" + url.PathEscape(signalID)
}

func DecisionMakerSearchRestart(searchID string) string {
	return "/decision-makers/search/" + url.PathEscape(searchID) + "/restart"
}

func EmailFinderSearchStatus(searchID string) string {
	return "/email-finder/search/" + url.PathEscape(searchID) + "/status"
}

func EmailFinderBySignal(signalID string) string {
	return "/email-finder/signal/" + url.PathEscape(signalID)
}

func EmailFinderSearchRestart(searchID string) string {
	return "/email-finder/search/" + url.PathEscape(searchID) + "/restart"
}

// LinkedInScrapingStatus is keyed by scraping id, and also answers lookups by signal id.
func LinkedInScrapingStatus(id string) string {
	return "/linkedin-scraping/status/" + url.PathEscape(id)
}

func ContactsBySignal(signalID string) string {
	return "/contacts/signal/" + url.PathEscape(signalID)
}

// WithQuery appends encoded query parameters to endpoint, skipping empty values.
func WithQuery(endpoint string, params url.Values) string {
	for k, vs := range params {
		kept := vs[:0]
		for _, v := range vs {
			if v != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			params.Del(k)
		} else {
			params[k] = kept
		}
	}
	if len(params) == 0 {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + params.Encode()
}
