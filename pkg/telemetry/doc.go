// Package telemetry provides observability instrumentation for ggfleet.
//
// It bundles structured logging (zerolog), distributed tracing
// (OpenTelemetry) and Prometheus metrics behind a single Telemetry value that
// the CLI builds once per process and hands to the deployer and the teardown
// coordinator.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Tests use NewNop, which discards logs, never samples and keeps no metrics.
//
// # Structured Logging
//
// Component loggers carry the fields the fleet code logs with:
//
//	logger := tel.Logger.NewComponentLogger("teardown")
//	logger.WithGroup("sensor-fleet").WithStep("principals").Info("2 principal(s) released")
//	logger.WithError(err).Error("Cannot delete sensor-fleet_Core")
//
// # Distributed Tracing
//
// One span is opened per deployment and per teardown, with a child span per
// teardown step and per control-plane call:
//
//	ctx, span := tel.Tracer.StartDeploySpan(ctx, group.Name, group.ID)
//	defer span.End()
//
// Exporters: otlp (gRPC), stdout (written to stderr) and none.
//
// # Metrics
//
// The registry is private to the process. ggfleet is a short-lived CLI, so
// metrics are usually written to a node_exporter textfile on Shutdown rather
// than scraped; Handler is available for long-running callers.
//
//	ggfleet_deployments_total{outcome}
//	ggfleet_deployment_status_polls{outcome}
//	ggfleet_deployment_duration_seconds{outcome}
//	ggfleet_teardowns_total{result}
//	ggfleet_teardown_steps_total{step,outcome}
//	ggfleet_control_plane_calls_total{operation}
//	ggfleet_control_plane_call_duration_seconds{operation}
//	ggfleet_control_plane_errors_total{operation,class}
package telemetry
