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

var decisionMakerKind = jobKind[models.DecisionMaker, string]{
	noun: "decision-maker search",
	newBackend: func(d resources.Doer) tracker.Backend[models.DecisionMaker, string] {
		return resources.NewDecisionMakers(d)
	},
	render: renderDecisionMakers,
}

// NewDecisionMakersCmd groups the decision-maker search commands.
func NewDecisionMakersCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decision-makers",
		Aliases: []string{"dm"},
		Short:   "Find the people to contact about a signal",
	}

	var (
		guidance string
		wf       waitFlags
	)
	search := &cobra.Command{
		Use:   "search <signal-id>",
		Short: "Start a decision-maker search for a signal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decisionMakerKind.start(cmd, o, args[0], guidance, wf)
		},
	}
	search.Flags().StringVar(&guidance, "guidance", "", "Custom guidance on who to look for")
	wf.register(search)

	cmd.AddCommand(search, decisionMakerKind.statusCmd(o), decisionMakerKind.restartCmd(o))
	return cmd
}

func renderDecisionMakers(w io.Writer, dms []models.DecisionMaker) error {
	t := printer.NewTablePrinter(w)
	t.SetHeaders("Name", "Title", "LinkedIn")
	for _, d := range dms {
		t.AddRow(
			printer.TruncateString(d.FullName(), 30),
			printer.TruncateString(printer.EmptyValueOrDefault(d.JobTitle, "<none>"), 40),
			printer.EmptyValueOrDefault(d.LinkedInURL, "<none>"),
		)
	}
	if err := t.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	for _, d := range dms {
		if d.WhyReachOut == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "\n%s:\n%s\n", d.FullName(), printer.Wrap(d.WhyReachOut, 76, 2)); err != nil {
			return err
		}
	}
	return nil
}
