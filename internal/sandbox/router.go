package sandbox

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/intentscout/scoutctl/internal/config"
	"github.com/intentscout/scoutctl/internal/logging"
	"github.com/intentscout/scoutctl/internal/telemetry"
)

const bearerScheme = "bearer"

var bearer = []map[string][]string{{bearerScheme: {}}}

// Deps are the collaborators the routes serve from.
type Deps struct {
	Config  *config.SandboxConfig
	Jobs    *Manager
	Tokens  *TokenManager
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

type middlewareConfig struct {
	skipPaths map[string]bool
}

type MiddlewareOption func(*middlewareConfig)

// WithSkipPaths allows skipping instrumentation for specific paths
func WithSkipPaths(paths ...string) MiddlewareOption {
	return func(c *middlewareConfig) {
		for _, path := range paths {
			c.skipPaths[path] = true
		}
	}
}

// routePath prefers the operation's route pattern so path parameters do not explode label
// cardinality.
func routePath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil && op.Path != "" {
		return op.Path
	}
	return ctx.URL().Path
}

// MetricTelemetryMiddleware records request count, errors and latency per route.
func MetricTelemetryMiddleware(metrics *telemetry.Metrics, options ...MiddlewareOption) func(huma.Context, func(huma.Context)) {
	cfg := &middlewareConfig{skipPaths: make(map[string]bool)}
	for _, opt := range options {
		opt(cfg)
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		path := ctx.URL().Path
		if cfg.skipPaths[path] || cfg.skipPaths["/"+path[strings.LastIndex(path, "/")+1:]] {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)
		metrics.RecordRequest(ctx.Context(), ctx.Method(), routePath(ctx), ctx.Status(), time.Since(start))
	}
}

func handle404(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusNotFound)

	body, err := json.Marshal(map[string]any{
		"title":  "Not Found",
		"status": http.StatusNotFound,
		"detail": "Endpoint " + r.URL.Path + " not found. See /docs for the API documentation.",
	})
	if err != nil {
		return
	}
	_, _ = w.Write(body)
}

// NewHumaAPI creates the sandbox API on mux with every route registered.
func NewHumaAPI(mux *http.ServeMux, deps Deps) huma.API {
	humaConfig := huma.DefaultConfig("IntentScout Sandbox", deps.Config.Version)
	humaConfig.Info.Description = "Local stand-in for the IntentScout backend's job, signal and auth endpoints."
	// Disable $schema property in responses
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		bearerScheme: {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}

	api := humago.New(mux, humaConfig)

	api.OpenAPI().Tags = []*huma.Tag{
		{Name: "decision-makers", Description: "Decision-maker searches for a signal"},
		{Name: "email-finder", Description: "Email discovery for a signal's contacts"},
		{Name: "linkedin-scraping", Description: "LinkedIn profile scrapes"},
		{Name: "signals", Description: "Intent signals and decisions"},
		{Name: "auth", Description: "Token refresh"},
		{Name: "health", Description: "Health check endpoint"},
	}

	api.UseMiddleware(MetricTelemetryMiddleware(deps.Metrics,
		WithSkipPaths("/health", "/metrics", "/docs"),
	))
	api.UseMiddleware(AuthnMiddleware(api, deps.Tokens))

	deps.Logger = logging.OrDiscard(deps.Logger)
	h := &handlers{deps: deps, signals: newSignalBook()}
	h.registerHealth(api)
	h.registerAuth(api)
	h.registerDecisionMakers(api)
	h.registerEmailFinder(api)
	h.registerLinkedIn(api)
	h.registerSignals(api)

	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics.PrometheusHandler())
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/docs", http.StatusTemporaryRedirect)
			return
		}
		handle404(w, r)
	})
	return api
}
