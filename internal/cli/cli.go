// Package cli holds the scoutctl subcommands. The root command in pkg/cli resolves the
// global flags into an Options value before any of them run.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/intentscout/scoutctl/internal/client"
	"github.com/intentscout/scoutctl/internal/logging"
	"github.com/intentscout/scoutctl/internal/signals"
	"github.com/intentscout/scoutctl/internal/telemetry"
	"github.com/intentscout/scoutctl/internal/tracker"
	"github.com/intentscout/scoutctl/pkg/printer"
)

const defaultWaitTimeout = 10 * time.Minute

// Options is shared by every subcommand. Client, Printer and Logger are set by the root
// command's PersistentPreRunE.
type Options struct {
	Client  *client.Client
	Printer *printer.Printer
	Logger  *slog.Logger
	// Stderr carries log lines and the --wait spinner. It must be safe for concurrent writes.
	Stderr io.Writer
	// Clock drives --wait polling. Nil means the real clock.
	Clock clock.Clock
	// Metrics is set when the run records client telemetry. Nil disables it.
	Metrics *telemetry.Metrics
	// Signals is shared so its intent score cache and the invalidation done by decisions
	// cover every command run through this Options. Created on first use when nil.
	Signals *signals.Service
}

func (o *Options) signalService() *signals.Service {
	if o.Signals == nil {
		o.Signals = signals.NewService(o.Client, o.Logger)
	}
	return o.Signals
}

func (o *Options) ready() error {
	if o == nil || o.Client == nil || o.Printer == nil {
		return errors.New("API client not initialized")
	}
	return nil
}

// Commands returns every top-level subcommand.
func Commands(o *Options) []*cobra.Command {
	return []*cobra.Command{
		NewDecisionMakersCmd(o),
		NewEmailFinderCmd(o),
		NewLinkedInCmd(o),
		NewSignalsCmd(o),
		NewHealthCmd(o),
		NewWhoAmICmd(o),
	}
}

func (o *Options) stderr(cmd *cobra.Command) io.Writer {
	if o.Stderr != nil {
		return o.Stderr
	}
	return logging.NewSyncWriter(cmd.ErrOrStderr())
}

func trackerOptions[R any](o *Options, extra ...tracker.Option[R]) []tracker.Option[R] {
	opts := []tracker.Option[R]{
		tracker.WithLogger[R](logging.OrDiscard(o.Logger)),
		tracker.WithMetrics[R](o.Metrics),
	}
	if o.Clock != nil {
		opts = append(opts, tracker.WithClock[R](o.Clock))
	}
	return append(opts, extra...)
}

// stateErr reports a tracker failure, or what without a cause.
func stateErr(what string, err error) error {
	if err == nil {
		return errors.New(what)
	}
	return apiErr(what, err)
}

// apiErr wraps an API failure. A 401 left after the client's retry becomes a sign-in prompt.
func apiErr(what string, err error) error {
	if client.StatusOf(err) == http.StatusUnauthorized {
		return fmt.Errorf("%s: %s", what, reloginHint)
	}
	return fmt.Errorf("%s: %w", what, err)
}

const reloginHint = "Authentication required; sign in again with --token or INTENTSCOUT_REFRESH_TOKEN"
