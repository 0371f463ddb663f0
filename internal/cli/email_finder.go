package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/intentscout/scoutctl/internal/resources"
	"github.com/intentscout/scoutctl/internal/tracker"
	"github.com/intentscout/scoutctl/pkg/models"
	"github.com/intentscout/scoutctl/pkg/printer"
)

var emailFinderKind = jobKind[models.EmailResult, struct{}]{
	noun: "email search",
	newBackend: func(d resources.Doer) tracker.Backend[models.EmailResult, struct{}] {
		return resources.NewEmailFinder(d)
	},
	render: renderEmailResults,
}

// NewEmailFinderCmd groups the email finder commands.
func NewEmailFinderCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "email-finder",
		Aliases: []string{"emails"},
		Short:   "Find email addresses for a signal's contacts",
	}

	var wf waitFlags
	search := &cobra.Command{
		Use:   "search <signal-id>",
		Short: "Start an email search for a signal's contacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return emailFinderKind.start(cmd, o, args[0], struct{}{}, wf)
		},
	}
	wf.register(search)

	cmd.AddCommand(search, emailFinderKind.statusCmd(o), emailFinderKind.restartCmd(o))
	return cmd
}

func renderEmailResults(w io.Writer, results []models.EmailResult) error {
	t := printer.NewTablePrinter(w)
	t.SetHeaders("Name", "Title", "Email", "Confidence")
	for _, r := range results {
		confidence := "-"
		if r.ConfidenceScore != nil {
			confidence = fmt.Sprintf("%.0f%%", *r.ConfidenceScore*100)
		}
		t.AddRow(
			printer.TruncateString(r.FullName(), 30),
			printer.TruncateString(printer.EmptyValueOrDefault(r.JobTitle, "<none>"), 40),
			printer.EmptyValueOrDefault(r.EmailAddress, "<not found>"),
			confidence,
		)
	}
	if err := t.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
