package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/intentscout/scoutctl/internal/signals"
	"github.com/intentscout/scoutctl/pkg/models"
	"github.com/intentscout/scoutctl/pkg/printer"
)

const dateLayout = "2006-01-02"

// NewSignalsCmd groups the intent signal commands.
func NewSignalsCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "List intent signals and record decisions on them",
	}
	cmd.AddCommand(
		newSignalsListCmd(o),
		newDecisionCmd(o, models.DecisionApprove, "approve", "Approve a signal"),
		newDecisionCmd(o, models.DecisionReject, "reject", "Reject a signal"),
		newDecisionCmd(o, models.DecisionRemove, "remove", "Clear the decision on a signal"),
		newSignalCountsCmd(o),
	)
	return cmd
}

func newSignalsListCmd(o *Options) *cobra.Command {
	var (
		q       signals.Query
		details bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the signals for a product on a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.ready(); err != nil {
				return err
			}
			if q.Date == "" {
				q.Date = time.Now().UTC().Format(dateLayout)
			}
			list, err := o.signalService().List(cmd.Context(), q)
			if err != nil {
				return apiErr("failed to list signals", err)
			}
			return o.Printer.Print(list, func(w io.Writer) error {
				return renderSignals(w, list, details)
			})
		},
	}
	cmd.Flags().StringVar(&q.Date, "date", "", "Day to list, YYYY-MM-DD (default today, UTC)")
	cmd.Flags().StringVar(&q.ProductID, "product", "", "Product or service id")
	cmd.Flags().Float64Var(&q.MinScore, "min-score", signals.DefaultMinScore, "Minimum intent score")
	cmd.Flags().StringVar(&q.Vertical, "vertical", "", "Only show companies in this vertical")
	cmd.Flags().BoolVar(&q.HideApproved, "hide-approved", false, "Hide signals that were already approved")
	cmd.Flags().BoolVar(&details, "details", false, "Print each signal's reasoning below the table")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func newDecisionCmd(o *Options, decision models.Decision, use, short string) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   use + " <signal-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.ready(); err != nil {
				return err
			}
			if err := o.signalService().UpdateDecision(cmd.Context(), args[0], decision, date); err != nil {
				return apiErr(fmt.Sprintf("failed to %s signal %s", use, args[0]), err)
			}
			result := models.UpdateDecisionRequest{SignalID: args[0], Action: decision}
			return o.Printer.Print(result, func(w io.Writer) error {
				printer.PrintSuccess(w, fmt.Sprintf("Signal %s: %s", args[0], decision))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day the signal was listed under")
	return cmd
}

func newSignalCountsCmd(o *Options) *cobra.Command {
	var q signals.CountsQuery
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Show how many signals were found per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.ready(); err != nil {
				return err
			}
			counts, err := o.signalService().Counts(cmd.Context(), q)
			if err != nil {
				return apiErr("failed to get signal counts", err)
			}
			return o.Printer.Print(counts, func(w io.Writer) error {
				t := printer.NewTablePrinter(w)
				t.SetHeaders("Date", "Signals")
				for _, c := range counts {
					t.AddRow(c.Date, c.TotalSignals)
				}
				return t.Render()
			})
		},
	}
	cmd.Flags().StringVar(&q.StartDate, "from", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&q.EndDate, "to", "", "Last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&q.ProductID, "product", "", "Product or service id")
	cmd.Flags().Float64Var(&q.MinScore, "min-score", signals.DefaultMinScore, "Minimum intent score")
	cmd.Flags().StringVar(&q.DecisionFilter, "decision", "", "Only count signals with this decision")
	for _, name := range []string{"from", "to", "product"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func renderSignals(w io.Writer, list []models.Signal, details bool) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No signals found")
		return err
	}

	t := printer.NewTablePrinter(w)
	t.SetHeaders("Id", "Company", "Industry", "Score", "Jobs", "Decision")
	for _, s := range list {
		t.AddRow(
			s.ID,
			printer.TruncateString(s.Company.Name, 30),
			printer.TruncateString(printer.EmptyValueOrDefault(s.Company.Industry, "<none>"), 24),
			fmt.Sprintf("%.1f", s.IntentScore),
			s.JobsFoundCount,
			printer.FormatStatus(printer.EmptyValueOrDefault(s.Decision, "undecided")),
		)
	}
	if err := t.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if !details {
		return nil
	}
	for _, s := range list {
		if _, err := fmt.Fprintf(w, "\n%s (%s):\n%s\n", s.Company.Name, s.ID, printer.Wrap(s.Reasoning, 76, 2)); err != nil {
			return err
		}
	}
	return nil
}
