package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/intentscout/scoutctl/internal/resources"
	"github.com/intentscout/scoutctl/internal/tracker"
	"github.com/intentscout/scoutctl/pkg/models"
	"github.com/intentscout/scoutctl/pkg/printer"
)

var linkedInKind = jobKind[models.ScrapedProfile, []models.ScrapeContact]{
	noun: "LinkedIn scrape",
	newBackend: func(d resources.Doer) tracker.Backend[models.ScrapedProfile, []models.ScrapeContact] {
		return resources.NewLinkedIn(d)
	},
	render: renderProfiles,
}

// NewLinkedInCmd groups the LinkedIn scraping commands. Scrapes cannot be restarted.
func NewLinkedInCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkedin",
		Short: "Scrape LinkedIn profiles for a signal's contacts",
	}

	var (
		contactsFile string
		wf           waitFlags
	)
	scrape := &cobra.Command{
		Use:   "scrape <signal-id>",
		Short: "Start scraping the LinkedIn profiles listed in a contacts file",
		Long: `Starts a LinkedIn scrape. The contacts file is JSON or YAML, either a list of
contacts or an object with a "contacts" list. Each contact needs a contact_id and a
linkedin_url. Use "-" to read the file from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contacts, err := loadContacts(cmd.InOrStdin(), contactsFile)
			if err != nil {
				return err
			}
			return linkedInKind.start(cmd, o, args[0], contacts, wf)
		},
	}
	scrape.Flags().StringVarP(&contactsFile, "contacts", "f", "", "Contacts file (JSON or YAML)")
	_ = scrape.MarkFlagRequired("contacts")
	wf.register(scrape)

	status := &cobra.Command{
		Use:   "status <scraping-id|signal-id>",
		Short: "Show a LinkedIn scrape by its id or by the signal it belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.ready(); err != nil {
				return err
			}
			job, err := resources.NewLinkedIn(o.Client).Existing(cmd.Context(), args[0])
			if err != nil {
				return apiErr("failed to get "+linkedInKind.noun, err)
			}
			return linkedInKind.print(o.Printer, job)
		},
	}

	cmd.AddCommand(scrape, status)
	return cmd
}

// loadContacts reads scrape contacts from path, or from stdin when path is "-".
func loadContacts(stdin io.Reader, path string) ([]models.ScrapeContact, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read contacts: %w", err)
	}

	var contacts []models.ScrapeContact
	if err := yaml.Unmarshal(raw, &contacts); err != nil {
		var wrapped struct {
			Contacts []models.ScrapeContact `yaml:"contacts"`
		}
		if err2 := yaml.Unmarshal(raw, &wrapped); err2 != nil {
			return nil, fmt.Errorf("failed to parse contacts: %w", err)
		}
		contacts = wrapped.Contacts
	}

	if len(contacts) == 0 {
		return nil, errors.New("contacts file lists no contacts")
	}
	for i, c := range contacts {
		if c.ContactID == "" {
			return nil, fmt.Errorf("contact %d: contact_id is required", i+1)
		}
		if c.LinkedInURL == "" {
			return nil, fmt.Errorf("contact %s: linkedin_url is required", c.ContactID)
		}
	}
	return contacts, nil
}

func renderProfiles(w io.Writer, profiles []models.ScrapedProfile) error {
	t := printer.NewTablePrinter(w)
	t.SetHeaders("Name", "Headline", "Company", "Location", "Status")
	for _, p := range profiles {
		t.AddRow(
			printer.TruncateString(printer.EmptyValueOrDefault(p.Name(), p.ContactID), 30),
			printer.TruncateString(printer.EmptyValueOrDefault(p.Headline, "<none>"), 40),
			printer.TruncateString(printer.EmptyValueOrDefault(p.Company, "<none>"), 30),
			printer.EmptyValueOrDefault(p.Location, "<none>"),
			printer.FormatStatus(p.Status),
		)
	}
	if err := t.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
