package sandbox

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/intentscout/scoutctl/pkg/models"
)

var (
	firstNames = []string{"Ada", "Grace", "Linus", "Margaret", "Ken", "Barbara", "Dennis", "Frances"}
	lastNames  = []string{"Lovelace", "Hopper", "Torvalds", "Hamilton", "Thompson", "Liskov", "Ritchie", "Allen"}
	titles     = []string{"VP of Engineering", "Head of Data", "CTO", "Director of Platform", "Chief Revenue Officer"}
	cities     = []string{"Berlin", "Austin", "London", "Toronto", "Lisbon"}
)

func seed(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() & 0x7fffffff)
}

func pick(list []string, n int) string {
	return list[n%len(list)]
}

// fakeContacts are the saved contacts the email finder works through for a signal.
func fakeContacts(signalID string, n int) []models.ContactToProcess {
	base := seed(signalID)
	out := make([]models.ContactToProcess, n)
	for i := range out {
		first, last := pick(firstNames, base+i), pick(lastNames, base+i*3)
		out[i] = models.ContactToProcess{
			ContactID:       fmt.Sprintf("%s-contact-%d", signalID, i+1),
			FirstName:       first,
			LastName:        last,
			JobTitle:        pick(titles, base+i),
			LinkedInContact: linkedInURL(first, last),
		}
	}
	return out
}

func fakeDecisionMakers(signalID string, n int) []models.DecisionMaker {
	out := make([]models.DecisionMaker, n)
	for i, c := range fakeContacts(signalID, n) {
		out[i] = models.DecisionMaker{
			ID:          fmt.Sprintf("%s-dm-%d", signalID, i+1),
			FirstName:   c.FirstName,
			LastName:    c.LastName,
			JobTitle:    c.JobTitle,
			LinkedInURL: c.LinkedInContact,
			WhyReachOut: fmt.Sprintf("As %s they own the budget behind the hiring surge in this signal.", c.JobTitle),
		}
	}
	return out
}

func fakeEmailResults(signalID string, n int) []models.EmailResult {
	out := make([]models.EmailResult, n)
	for i, c := range fakeContacts(signalID, n) {
		out[i] = models.EmailResult{
			ContactID:       c.ContactID,
			FirstName:       c.FirstName,
			LastName:        c.LastName,
			JobTitle:        c.JobTitle,
			LinkedInContact: c.LinkedInContact,
		}
		// Every third contact has no address, as real lookups miss.
		if i%3 == 2 {
			continue
		}
		score := 0.95 - float64(i)*0.1
		out[i].EmailAddress = strings.ToLower(c.FirstName + "." + c.LastName + "@example.com")
		out[i].ConfidenceScore = &score
	}
	return out
}

func fakeProfiles(contacts []models.ScrapeContact) []models.ScrapedProfile {
	out := make([]models.ScrapedProfile, len(contacts))
	for i, c := range contacts {
		p := models.ScrapedProfile{
			ContactID: c.ContactID,
			URL:       c.LinkedInURL,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Status:    models.ProfileScraped,
		}
		if c.LinkedInURL == "" {
			p.Status = models.ProfileError
			out[i] = p
			continue
		}
		n := seed(c.LinkedInURL)
		p.FullName = strings.TrimSpace(c.FirstName + " " + c.LastName)
		p.CurrentPosition = c.JobTitle
		p.Headline = c.JobTitle
		if p.Headline == "" {
			p.Headline = pick(titles, n)
		}
		p.Company = "Example Corp"
		p.Location = pick(cities, n)
		p.Summary = fmt.Sprintf("%s based in %s.", p.Headline, p.Location)
		out[i] = p
	}
	return out
}

func linkedInURL(first, last string) string {
	return "https://www.linkedin.com/in/" + strings.ToLower(first+"-"+last)
}
