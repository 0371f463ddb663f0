package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/intentscout/scoutctl/internal/cli"
	"github.com/intentscout/scoutctl/internal/client"
	"github.com/intentscout/scoutctl/internal/config"
	"github.com/intentscout/scoutctl/internal/logging"
	"github.com/intentscout/scoutctl/internal/signals"
	"github.com/intentscout/scoutctl/internal/telemetry"
	"github.com/intentscout/scoutctl/pkg/printer"
)

// Version is reported in --metrics-file output. Set at build time with -ldflags.
var Version = "dev"

// CLIOptions configures the CLI behavior
type CLIOptions struct {
	// Clock drives job polling for --wait. If nil, uses the real clock.
	Clock clock.Clock
}

type globalFlags struct {
	apiURL      string
	token       string
	timeout     time.Duration
	output      string
	verbose     bool
	metricsFile string
}

// NewRootCmd builds a fresh scoutctl command tree.
func NewRootCmd(opts CLIOptions) *cobra.Command {
	var (
		flags           globalFlags
		shutdownMetrics telemetry.ShutdownFunc
	)
	shared := &cli.Options{Clock: opts.Clock}

	root := &cobra.Command{
		Use:   "scoutctl",
		Short: "IntentScout CLI",
		Long: `scoutctl talks to the IntentScout API: it lists intent signals and runs
decision-maker searches, email searches and LinkedIn scrapes for them.

Settings come from INTENTSCOUT_* environment variables (or a .env file); flags win.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			shutdownMetrics, err = setup(cmd, &flags, shared)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return writeMetrics(cmd.Context(), flags.metricsFile, shared.Metrics, shutdownMetrics)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api-url", "", "API base URL (overrides INTENTSCOUT_API_BASE_URL)")
	pf.StringVar(&flags.token, "token", "", "Bearer token (overrides INTENTSCOUT_API_TOKEN)")
	pf.DurationVar(&flags.timeout, "timeout", config.DefaultTimeout, "Per-request timeout (overrides INTENTSCOUT_API_TIMEOUT)")
	pf.StringVarP(&flags.output, "output", "o", string(printer.OutputTypeTable), "Output format (table, json, yaml)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log requests and job polling to stderr")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "Write request, token refresh and job poll metrics to this file in Prometheus text format")

	root.AddCommand(cli.Commands(shared)...)
	return root
}

// setup resolves configuration, flags and the API client for the command about to run.
// The returned shutdown is non-nil when --metrics-file enabled telemetry.
func setup(cmd *cobra.Command, flags *globalFlags, shared *cli.Options) (telemetry.ShutdownFunc, error) {
	outputType, err := printer.ParseOutputType(flags.output)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("api-url") {
		cfg.BaseURL = normalizeBaseURL(flags.apiURL)
	}
	if cmd.Flags().Changed("token") {
		cfg.Token = flags.token
		// An explicit token replaces any configured session.
		cfg.RefreshToken = ""
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = flags.timeout
	}
	if flags.verbose {
		cfg.Log.Level = "debug"
		cfg.DebugLogs = true
	}

	var shutdown telemetry.ShutdownFunc
	if flags.metricsFile != "" {
		var metrics *telemetry.Metrics
		shutdown, metrics, err = telemetry.InitMetrics(Version)
		if err != nil {
			return nil, err
		}
		shared.Metrics = metrics
	}

	stderr := logging.NewSyncWriter(cmd.ErrOrStderr())
	logger := logging.New(stderr, cfg.Log)
	shared.Stderr = stderr
	shared.Logger = logger
	shared.Client = client.NewClientFromConfig(cfg, logger, shared.Metrics)
	shared.Signals = signals.NewService(shared.Client, logger)
	shared.Printer = printer.New(outputType, cmd.OutOrStdout())
	return shutdown, nil
}

// writeMetrics dumps the run's client metrics to path.
func writeMetrics(ctx context.Context, path string, metrics *telemetry.Metrics, shutdown telemetry.ShutdownFunc) error {
	if path == "" || metrics == nil {
		return nil
	}
	if shutdown != nil {
		defer func() { _ = shutdown(ctx) }()
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	if err := metrics.WriteText(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func normalizeBaseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return config.DefaultBaseURL
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return "https://" + trimmed
}

var (
	rootOnce sync.Once
	rootCmd  *cobra.Command
)

// Root returns the process-wide command tree.
func Root() *cobra.Command {
	rootOnce.Do(func() {
		rootCmd = NewRootCmd(CLIOptions{})
	})
	return rootCmd
}

func Execute() {
	if err := Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Run 'scoutctl --help' for usage.")
		os.Exit(1)
	}
}
