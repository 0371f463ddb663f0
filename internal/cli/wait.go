package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/intentscout/scoutctl/internal/tracker"
)

type waitFlags struct {
	wait    bool
	timeout time.Duration
}

func (f *waitFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.wait, "wait", "w", false, "Wait until the job settles and print its results")
	cmd.Flags().DurationVar(&f.timeout, "wait-timeout", defaultWaitTimeout, "Give up waiting after this long")
}

// changeNotifier returns a tracker option that pings the returned channel on every state
// change. Pings coalesce; the waiter re-reads the state itself.
func changeNotifier[R any]() (tracker.Option[R], <-chan struct{}) {
	ch := make(chan struct{}, 1)
	return tracker.OnChange(func(tracker.State[R]) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}), ch
}

// waitForJob blocks until the tracker's job stops being in progress, drawing a spinner on w.
func waitForJob[R, P any](ctx context.Context, tr *tracker.Tracker[R, P], changed <-chan struct{}, w io.Writer, desc string, timeout time.Duration) (tracker.State[R], error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	defer func() { _ = bar.Finish() }()

	refresh := time.NewTicker(100 * time.Millisecond)
	defer refresh.Stop()

	for {
		st := tr.State()
		switch {
		case st.Job == nil && !st.Loading:
			return st, stateErr("no job to wait for", st.Err)
		case st.Job != nil && !st.IsInProgress:
			return st, nil
		}
		if st.Job != nil {
			label := fmt.Sprintf("%s (%s)", desc, st.Job.Status)
			if p := st.Job.Progress; p != nil && p.Total > 0 {
				label = fmt.Sprintf("%s %d/%d", label, p.Processed, p.Total)
			}
			bar.Describe(label)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return st, fmt.Errorf("gave up waiting after %s; the job is still running", timeout)
			}
			return st, ctx.Err()
		case <-changed:
		case <-refresh.C:
			_ = bar.Add(0)
		}
	}
}
