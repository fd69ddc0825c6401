package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for ggfleet.
type Metrics struct {
	config MetricsConfig

	// Deployment metrics
	deploymentsTotal   *prometheus.CounterVec
	deploymentPolls    *prometheus.HistogramVec
	deploymentDuration *prometheus.HistogramVec

	// Teardown metrics
	teardownsTotal *prometheus.CounterVec
	teardownSteps  *prometheus.CounterVec

	// Control-plane metrics
	controlPlaneCalls    *prometheus.CounterVec
	controlPlaneDuration *prometheus.HistogramVec
	controlPlaneErrors   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		deploymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_total",
				Help:      "Total number of deployments by observed outcome",
			},
			[]string{"outcome"},
		),
		deploymentPolls: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deployment_status_polls",
				Help:      "Number of status polls issued per deployment",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
			[]string{"outcome"},
		),
		deploymentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deployment_duration_seconds",
				Help:      "Time spent creating and observing a deployment",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),

		teardownsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "teardowns_total",
				Help:      "Total number of group teardowns by result",
			},
			[]string{"result"},
		),
		teardownSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "teardown_steps_total",
				Help:      "Total number of teardown steps by step and outcome",
			},
			[]string{"step", "outcome"},
		),

		controlPlaneCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "control_plane_calls_total",
				Help:      "Total number of control-plane API calls",
			},
			[]string{"operation"},
		),
		controlPlaneDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "control_plane_call_duration_seconds",
				Help:      "Duration of control-plane API calls in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		controlPlaneErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "control_plane_errors_total",
				Help:      "Total number of control-plane API errors by class",
			},
			[]string{"operation", "class"},
		),
	}

	registry.MustRegister(
		m.deploymentsTotal,
		m.deploymentPolls,
		m.deploymentDuration,
		m.teardownsTotal,
		m.teardownSteps,
		m.controlPlaneCalls,
		m.controlPlaneDuration,
		m.controlPlaneErrors,
	)

	return m, nil
}

// Deployment Metrics

// RecordDeployment records an observed deployment with its poll count and duration.
func (m *Metrics) RecordDeployment(outcome string, polls int, duration time.Duration) {
	if m.deploymentsTotal == nil {
		return
	}
	m.deploymentsTotal.WithLabelValues(outcome).Inc()
	m.deploymentPolls.WithLabelValues(outcome).Observe(float64(polls))
	m.deploymentDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// Teardown Metrics

// RecordTeardownStep records the outcome of a single teardown step.
func (m *Metrics) RecordTeardownStep(step, outcome string) {
	if m.teardownSteps == nil {
		return
	}
	m.teardownSteps.WithLabelValues(step, outcome).Inc()
}

// RecordTeardown records a finished teardown.
func (m *Metrics) RecordTeardown(result string) {
	if m.teardownsTotal == nil {
		return
	}
	m.teardownsTotal.WithLabelValues(result).Inc()
}

// Control-plane Metrics

// RecordCall records a control-plane call with its duration.
func (m *Metrics) RecordCall(operation string, duration time.Duration) {
	if m.controlPlaneCalls == nil {
		return
	}
	m.controlPlaneCalls.WithLabelValues(operation).Inc()
	m.controlPlaneDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCallError records a control-plane error by class.
func (m *Metrics) RecordCallError(operation, class string) {
	if m.controlPlaneErrors == nil {
		return
	}
	m.controlPlaneErrors.WithLabelValues(operation, class).Inc()
}

// Gatherer exposes the registry, or nil when metrics are disabled.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m.registry == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// WriteTextfile writes the registry to the configured textfile. It is a no-op
// when metrics are disabled or no textfile is configured.
func (m *Metrics) WriteTextfile() error {
	if m.registry == nil || m.config.Textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.config.Textfile, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
