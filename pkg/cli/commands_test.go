package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/intentscout/scoutctl/internal/config"
	"github.com/intentscout/scoutctl/internal/jobs"
	"github.com/intentscout/scoutctl/internal/sandbox"
	"github.com/intentscout/scoutctl/pkg/models"
)

// TestCommandTree verifies the CLI command hierarchy is correct.
func TestCommandTree(t *testing.T) {
	root := NewRootCmd(CLIOptions{})

	expectedTopLevel := []string{
		"decision-makers",
		"email-finder",
		"health",
		"linkedin",
		"signals",
		"whoami",
	}

	gotTopLevel := childNames(root)
	slices.Sort(gotTopLevel)
	require.Equal(t, expectedTopLevel, gotTopLevel)

	expectedSubcmds := map[string][]string{
		"decision-makers": {"restart", "search", "status"},
		"email-finder":    {"restart", "search", "status"},
		"linkedin":        {"scrape", "status"},
		"signals":         {"approve", "counts", "list", "reject", "remove"},
	}
	for _, cmd := range root.Commands() {
		expected, ok := expectedSubcmds[cmd.Name()]
		if !ok {
			continue
		}
		got := childNames(cmd)
		slices.Sort(got)
		assert.Equal(t, expected, got, cmd.Name())
	}
}

// TestCommandsHaveRequiredMetadata verifies every command has Use and Short fields set.
func TestCommandsHaveRequiredMetadata(t *testing.T) {
	root := NewRootCmd(CLIOptions{})

	var walk func(cmd *cobra.Command, path string)
	walk = func(cmd *cobra.Command, path string) {
		if cmd.Use == "" {
			t.Errorf("%s: Use field is empty", path)
		}
		if cmd.Short == "" {
			t.Errorf("%s: Short field is empty", path)
		}
		for _, child := range cmd.Commands() {
			walk(child, path+"/"+child.Name())
		}
	}

	for _, cmd := range root.Commands() {
		walk(cmd, "scoutctl/"+cmd.Name())
	}
}

func TestFlags(t *testing.T) {
	root := NewRootCmd(CLIOptions{})

	for _, name := range []string{"api-url", "token", "timeout", "output", "verbose"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "o", root.PersistentFlags().Lookup("output").Shorthand)
	assert.Equal(t, "v", root.PersistentFlags().Lookup("verbose").Shorthand)

	tests := []struct {
		path  []string
		flags []string
	}{
		{[]string{"decision-makers", "search"}, []string{"guidance", "wait", "wait-timeout"}},
		{[]string{"decision-makers", "status"}, []string{"signal"}},
		{[]string{"email-finder", "restart"}, []string{"wait", "wait-timeout"}},
		{[]string{"linkedin", "scrape"}, []string{"contacts", "wait"}},
		{[]string{"signals", "list"}, []string{"date", "product", "min-score", "vertical", "hide-approved", "details"}},
		{[]string{"signals", "counts"}, []string{"from", "to", "product", "min-score", "decision"}},
		{[]string{"signals", "approve"}, []string{"date"}},
	}
	for _, tt := range tests {
		cmd, _, err := root.Find(tt.path)
		require.NoError(t, err, tt.path)
		for _, f := range tt.flags {
			assert.NotNil(t, cmd.Flags().Lookup(f), "%v --%s", tt.path, f)
		}
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, config.DefaultBaseURL, normalizeBaseURL("  "))
	assert.Equal(t, "http://localhost:8787", normalizeBaseURL("http://localhost:8787"))
	assert.Equal(t, "https://api.example.com", normalizeBaseURL("api.example.com"))
}

type sandboxEnv struct {
	url   string
	token string
}

func startSandbox(t *testing.T) sandboxEnv {
	t.Helper()
	cfg := &config.SandboxConfig{
		JWTSecret:       "cli-secret",
		TokenTTL:        time.Hour,
		Version:         "test",
		DevRefreshToken: "dev-refresh",
		DevUserEmail:    "cli@example.com",
		PollsToComplete: 1,
		ResultCount:     2,
		FailSignals:     "sig-fail",
		JobTTL:          time.Hour,
	}
	tokens := sandbox.NewTokenManager(cfg, nil)
	srv := sandbox.NewServer(sandbox.Deps{
		Config: cfg,
		Jobs:   sandbox.NewManager(sandbox.NewMemoryStore(), cfg),
		Tokens: tokens,
	})
	issued, err := tokens.Issue()
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return sandboxEnv{url: ts.URL, token: issued.AccessToken}
}

func (e sandboxEnv) args(extra ...string) []string {
	return append([]string{"--api-url", e.url, "--token", e.token}, extra...)
}

// run executes one command line against a fresh command tree. With a fake clock the job
// pollers are stepped until the command returns.
func run(t *testing.T, clk *clocktesting.FakeClock, args ...string) (string, error) {
	t.Helper()
	t.Setenv("INTENTSCOUT_REFRESH_TOKEN", "")

	opts := CLIOptions{}
	if clk != nil {
		opts.Clock = clk
	}
	root := NewRootCmd(opts)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(context.Background()) }()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case err := <-done:
			return out.String(), err
		case <-deadline:
			t.Fatalf("scoutctl %v did not finish", args)
		case <-time.After(time.Millisecond):
			if clk != nil && clk.HasWaiters() {
				clk.Step(15 * time.Second)
			}
		}
	}
}

func TestHealthAndWhoAmI(t *testing.T) {
	env := startSandbox(t)

	out, err := run(t, nil, "--api-url", env.url, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Healthy")
	assert.Contains(t, out, "test")

	out, err = run(t, nil, env.args("whoami")...)
	require.NoError(t, err)
	assert.Contains(t, out, "cli@example.com")

	out, err = run(t, nil, env.args("whoami", "-o", "json")...)
	require.NoError(t, err)
	var user models.User
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.Equal(t, "cli@example.com", user.Email)

	_, err = run(t, nil, "--api-url", env.url, "--token", "not-a-jwt", "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication required")
}

func TestRejectedTokenAsksForSignIn(t *testing.T) {
	env := startSandbox(t)
	bad := []string{"--api-url", env.url, "--token", "not-a-jwt"}

	for _, args := range [][]string{
		{"decision-makers", "status", "some-search"},
		{"email-finder", "search", "sig-1"},
		{"linkedin", "status", "sig-1"},
		{"signals", "list", "--product", "p1"},
		{"signals", "approve", "s1"},
	} {
		_, err := run(t, nil, append(bad, args...)...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "Authentication required", args)
		assert.Contains(t, err.Error(), "sign in again", args)
	}
}

func TestMetricsFile(t *testing.T) {
	env := startSandbox(t)
	path := filepath.Join(t.TempDir(), "metrics.prom")

	_, err := run(t, clocktesting.NewFakeClock(time.Now()), env.args("decision-makers", "search", "sig-metrics", "--wait", "--metrics-file", path)...)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, "intentscout_client_requests_total")
	assert.Contains(t, out, `resource="decision_makers"`)
	assert.Contains(t, out, "intentscout_job_polls_total")
	assert.Contains(t, out, "intentscout_job_transitions_total")
}

func TestOutputFlagValidation(t *testing.T) {
	env := startSandbox(t)
	_, err := run(t, nil, env.args("health", "-o", "xml")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestDecisionMakers(t *testing.T) {
	env := startSandbox(t)

	out, err := run(t, nil, env.args("decision-makers", "search", "sig-1", "--guidance", "platform leads", "-o", "json")...)
	require.NoError(t, err)
	var started jobs.Job[models.DecisionMaker]
	require.NoError(t, json.Unmarshal([]byte(out), &started))
	require.NotEmpty(t, started.ID)
	assert.Empty(t, started.Results)

	_, err = run(t, nil, env.args("dm", "search", "sig-1")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	_, err = run(t, nil, env.args("dm", "restart", string(started.ID))...)
	require.Error(t, err, "running searches cannot be restarted")

	out, err = run(t, nil, env.args("dm", "status", "--signal", "sig-1")...)
	require.NoError(t, err)
	assert.Contains(t, out, string(started.ID))

	out, err = run(t, nil, env.args("dm", "status", "--signal", "sig-none")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No decision-maker search found")

	_, err = run(t, nil, env.args("dm", "status", "no-such-search")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Search not found")
}

func TestDecisionMakers_Wait(t *testing.T) {
	env := startSandbox(t)

	out, err := run(t, clocktesting.NewFakeClock(time.Now()), env.args("decision-makers", "search", "sig-wait", "--wait")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Completed")
	assert.Contains(t, out, "LINKEDIN")
	assert.Contains(t, out, "https://www.linkedin.com/in/")
}

func TestEmailFinder_FailThenRestart(t *testing.T) {
	env := startSandbox(t)

	out, err := run(t, clocktesting.NewFakeClock(time.Now()), env.args("email-finder", "search", "sig-fail", "--wait", "-o", "json")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
	var failed jobs.Job[models.EmailResult]
	require.NoError(t, json.Unmarshal([]byte(out), &failed))
	assert.Equal(t, jobs.JobStatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "sig-fail")

	out, err = run(t, clocktesting.NewFakeClock(time.Now()), env.args("email-finder", "restart", string(failed.ID), "--wait", "-o", "yaml")...)
	require.NoError(t, err)
	assert.Contains(t, out, "status: completed")
	assert.Contains(t, out, "email_address:")
}

func TestLinkedIn(t *testing.T) {
	env := startSandbox(t)
	contacts := filepath.Join(t.TempDir(), "contacts.yaml")
	require.NoError(t, os.WriteFile(contacts, []byte(`contacts:
  - contact_id: c1
    first_name: Ada
    last_name: Lovelace
    job_title: VP Engineering
    linkedin_url: https://www.linkedin.com/in/ada
`), 0o600))

	out, err := run(t, clocktesting.NewFakeClock(time.Now()), env.args("linkedin", "scrape", "sig-li", "--contacts", contacts, "--wait")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "Scraped")
	assert.Contains(t, out, "1/1")

	out, err = run(t, nil, env.args("linkedin", "status", "sig-li", "-o", "json")...)
	require.NoError(t, err)
	var job jobs.Job[models.ScrapedProfile]
	require.NoError(t, json.Unmarshal([]byte(out), &job))
	assert.Equal(t, jobs.JobStatusCompleted, job.Status)
	require.Len(t, job.Results, 1)

	out, err = run(t, nil, env.args("linkedin", "status", "sig-unknown")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No LinkedIn scrape found")

	_, err = run(t, nil, env.args("linkedin", "scrape", "sig-li")...)
	require.Error(t, err)
}

func TestSignals(t *testing.T) {
	env := startSandbox(t)

	out, err := run(t, nil, env.args("signals", "list", "--product", "p1", "--date", "2026-10-01", "-o", "json")...)
	require.NoError(t, err)
	var list []models.Signal
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.NotEmpty(t, list)

	out, err = run(t, nil, env.args("signals", "approve", list[0].ID, "--date", "2026-10-01")...)
	require.NoError(t, err)
	assert.Contains(t, out, "approve")

	out, err = run(t, nil, env.args("signals", "list", "--product", "p1", "--date", "2026-10-01", "--details")...)
	require.NoError(t, err)
	assert.Contains(t, out, "COMPANY")
	assert.Contains(t, out, "Approve")
	assert.Contains(t, out, list[0].ID)

	out, err = run(t, nil, env.args("signals", "list", "--product", "p1", "--date", "2026-10-01", "--hide-approved", "-o", "json")...)
	require.NoError(t, err)
	var visible []models.Signal
	require.NoError(t, json.Unmarshal([]byte(out), &visible))
	assert.Len(t, visible, len(list)-1)
	for _, s := range visible {
		assert.NotEqual(t, list[0].ID, s.ID)
	}

	out, err = run(t, nil, env.args("signals", "counts", "--from", "2026-10-01", "--to", "2026-10-03", "--product", "p1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "2026-10-02")

	_, err = run(t, nil, env.args("signals", "list")...)
	require.Error(t, err, "--product is required")
}

// Helper functions

func childNames(cmd *cobra.Command) []string {
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	return names
}
