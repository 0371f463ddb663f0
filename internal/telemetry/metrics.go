// Package telemetry wires OpenTelemetry metrics to a Prometheus registry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	Namespace = "intentscout"
)

// ShutdownFunc flushes and stops the meter provider.
type ShutdownFunc func(ctx context.Context) error

// Metrics holds every instrument used across the client, the job trackers and the sandbox.
// All recording helpers are safe to call on a nil *Metrics.
type Metrics struct {
	// Server side (sandbox)
	Requests        metric.Int64Counter
	ErrorCount      metric.Int64Counter
	RequestDuration metric.Float64Histogram

	// Client side
	ClientRequests metric.Int64Counter
	ClientRetries  metric.Int64Counter
	ClientDuration metric.Float64Histogram
	TokenRefreshes metric.Int64Counter
	Polls          metric.Int64Counter
	JobTransitions metric.Int64Counter

	registry *prometheus.Registry
}

// InitMetrics creates a meter provider exporting to a dedicated Prometheus registry.
func InitMetrics(version string) (ShutdownFunc, *Metrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", "intentscout"),
		attribute.String("service.version", version),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	if err := runtime.Start(runtime.WithMeterProvider(provider)); err != nil {
		return nil, nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	meter := provider.Meter(Namespace)
	m := &Metrics{registry: registry}

	var errs []error
	record := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	m.Requests, err = meter.Int64Counter(Namespace+"_http_requests_total",
		metric.WithDescription("Total number of HTTP requests served"))
	record(err)
	m.ErrorCount, err = meter.Int64Counter(Namespace+"_http_errors_total",
		metric.WithDescription("Total number of HTTP responses with status >= 400"))
	record(err)
	m.RequestDuration, err = meter.Float64Histogram(Namespace+"_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s"))
	record(err)
	m.ClientRequests, err = meter.Int64Counter(Namespace+"_client_requests_total",
		metric.WithDescription("Outbound API requests by method and status"))
	record(err)
	m.ClientRetries, err = meter.Int64Counter(Namespace+"_client_retries_total",
		metric.WithDescription("Outbound API requests retried after a 401"))
	record(err)
	m.ClientDuration, err = meter.Float64Histogram(Namespace+"_client_request_duration_seconds",
		metric.WithDescription("Outbound API request latency"), metric.WithUnit("s"))
	record(err)
	m.TokenRefreshes, err = meter.Int64Counter(Namespace+"_token_refreshes_total",
		metric.WithDescription("Access token refreshes by outcome"))
	record(err)
	m.Polls, err = meter.Int64Counter(Namespace+"_job_polls_total",
		metric.WithDescription("Job status polls by resource and outcome"))
	record(err)
	m.JobTransitions, err = meter.Int64Counter(Namespace+"_job_transitions_total",
		metric.WithDescription("Observed job status transitions"))
	record(err)

	if len(errs) > 0 {
		_ = provider.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("failed to create instruments: %w", errors.Join(errs...))
	}

	shutdown := func(ctx context.Context) error {
		if ctx == nil {
			ctx = context.Background()
		}
		return provider.Shutdown(ctx)
	}
	return shutdown, m, nil
}

// PrometheusHandler serves the metrics registry in the Prometheus text format.
func (m *Metrics) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteText writes the current values of every metric in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// RecordClientRequest records one outbound API call.
func (m *Metrics) RecordClientRequest(ctx context.Context, method string, status int, retry bool, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Int("status_code", status),
	)
	m.ClientRequests.Add(ctx, 1, attrs)
	m.ClientDuration.Record(ctx, d.Seconds(), attrs)
	if retry {
		m.ClientRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
	}
}

// RecordTokenRefresh records a refresh attempt.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.TokenRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", ok)))
}

// RecordPoll records one status poll for a resource.
func (m *Metrics) RecordPoll(ctx context.Context, resource string, ok bool) {
	if m == nil {
		return
	}
	m.Polls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.Bool("success", ok),
	))
}

// RecordTransition records a job moving between statuses.
func (m *Metrics) RecordTransition(ctx context.Context, resource, from, to string) {
	if m == nil {
		return
	}
	m.JobTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource", resource),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordRequest records one served HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", status),
	)
	m.Requests.Add(ctx, 1, attrs)
	if status >= 400 {
		m.ErrorCount.Add(ctx, 1, attrs)
	}
	m.RequestDuration.Record(ctx, d.Seconds(), attrs)
}
