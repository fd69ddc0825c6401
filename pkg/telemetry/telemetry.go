package telemetry

import (
	"context"
	"errors"
)

// Telemetry bundles logging, tracing and metrics for one process.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// NewNop returns telemetry that discards logs, never samples spans and
// keeps no metrics.
func NewNop() *Telemetry {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false
	tracer, _ := NewTracer(TracingConfig{}, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	metrics, _ := NewMetrics(cfg.Metrics)
	return &Telemetry{
		Logger:  NewNopLogger(),
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}
}

// Shutdown flushes pending spans and writes the metrics textfile.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Tracer.Shutdown(ctx),
		t.Metrics.WriteTextfile(),
	)
}

// ObserveCall runs fn inside a control-plane call span, recording duration
// and classified errors. classify maps an error to a metrics label.
func (t *Telemetry) ObserveCall(ctx context.Context, operation, resourceName string, classify func(error) string, fn func(context.Context) error) error {
	ctx, span := t.Tracer.StartCallSpan(ctx, operation, resourceName)
	defer span.End()

	timer := NewTimer()
	err := fn(ctx)
	t.Metrics.RecordCall(operation, timer.Duration())

	if err != nil {
		class := classify(err)
		t.Metrics.RecordCallError(operation, class)
		span.SetAttributes(AttrErrorClass.String(class))
		RecordError(span, err)
		return err
	}

	RecordSuccess(span)
	return nil
}
