package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/intentscout/scoutctl/internal/jobs"
	"github.com/intentscout/scoutctl/internal/resources"
	"github.com/intentscout/scoutctl/internal/tracker"
	"github.com/intentscout/scoutctl/pkg/printer"
)

// jobKind describes one job resource to the shared search, status and restart commands.
type jobKind[R, P any] struct {
	noun       string
	newBackend func(resources.Doer) tracker.Backend[R, P]
	render     func(io.Writer, []R) error
}

func (k jobKind[R, P]) newTracker(o *Options, extra ...tracker.Option[R]) *tracker.Tracker[R, P] {
	return tracker.New[R, P](k.newBackend(o.Client), trackerOptions(o, extra...)...)
}

func (k jobKind[R, P]) start(cmd *cobra.Command, o *Options, signalID string, params P, wf waitFlags) error {
	if err := o.ready(); err != nil {
		return err
	}
	notify, changed := changeNotifier[R]()
	tr := k.newTracker(o, notify)
	defer tr.Close()

	if tr.Start(cmd.Context(), signalID, params) == "" {
		return stateErr("failed to start "+k.noun, tr.State().Err)
	}
	return k.finish(cmd, o, tr, changed, wf)
}

// finish optionally waits for the tracked job, prints it, and fails the command when the
// job failed.
func (k jobKind[R, P]) finish(cmd *cobra.Command, o *Options, tr *tracker.Tracker[R, P], changed <-chan struct{}, wf waitFlags) error {
	st := tr.State()
	if wf.wait {
		var err error
		st, err = waitForJob(cmd.Context(), tr, changed, o.stderr(cmd), "Waiting for "+k.noun, wf.timeout)
		if err != nil {
			return err
		}
	}
	if err := k.print(o.Printer, st.Job); err != nil {
		return err
	}
	if st.HasFailed {
		return fmt.Errorf("%s %s failed", k.noun, st.Job.ID)
	}
	return nil
}

func (k jobKind[R, P]) statusCmd(o *Options) *cobra.Command {
	var bySignal bool
	cmd := &cobra.Command{
		Use:   "status <search-id>",
		Short: "Show the state and results of a " + k.noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.ready(); err != nil {
				return err
			}
			backend := k.newBackend(o.Client)

			var (
				job *jobs.Job[R]
				err error
			)
			if bySignal {
				job, err = backend.Existing(cmd.Context(), args[0])
			} else {
				job, err = backend.Status(cmd.Context(), jobs.JobID(args[0]))
			}
			if err != nil {
				return apiErr("failed to get "+k.noun, err)
			}
			return k.print(o.Printer, job)
		},
	}
	cmd.Flags().BoolVar(&bySignal, "signal", false, "Treat the argument as a signal id and show that signal's latest "+k.noun)
	return cmd
}

func (k jobKind[R, P]) restartCmd(o *Options) *cobra.Command {
	var wf waitFlags
	cmd := &cobra.Command{
		Use:   "restart <search-id>",
		Short: "Rerun a finished " + k.noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.ready(); err != nil {
				return err
			}
			notify, changed := changeNotifier[R]()
			tr := k.newTracker(o, notify)
			defer tr.Close()

			tr.Restart(cmd.Context(), jobs.JobID(args[0]))
			if err := tr.State().Err; err != nil {
				return apiErr("failed to restart "+k.noun, err)
			}
			return k.finish(cmd, o, tr, changed, wf)
		},
	}
	wf.register(cmd)
	return cmd
}

func (k jobKind[R, P]) print(p *printer.Printer, job *jobs.Job[R]) error {
	return p.Print(job, func(w io.Writer) error {
		if job == nil {
			_, err := fmt.Fprintf(w, "No %s found\n", k.noun)
			return err
		}

		t := printer.NewTablePrinter(w)
		t.SetHeaders("Id", "Status", "Progress", "Results", "Started", "Completed")
		progress := "-"
		if job.Progress != nil {
			progress = fmt.Sprintf("%d/%d", job.Progress.Processed, job.Progress.Total)
		}
		t.AddRow(job.ID, printer.FormatStatus(string(job.Status)), progress, len(job.Results),
			printer.FormatTimestamp(job.StartedAt), printer.FormatTimestamp(job.CompletedAt))
		if err := t.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		if job.ErrorMessage != "" {
			if _, err := fmt.Fprintf(w, "\nError:\n%s\n", printer.Wrap(job.ErrorMessage, 76, 2)); err != nil {
				return err
			}
		}
		if len(job.Results) == 0 {
			return nil
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
		return k.render(w, job.Results)
	})
}
