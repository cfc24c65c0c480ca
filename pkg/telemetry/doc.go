// Package telemetry groups the observability packages of strata:
//
//   - logging: slog construction from configuration, context fields
//   - metrics: the Prometheus registry and the /metrics handler
//   - tracing: OpenTelemetry tracer with OTLP gRPC export
//   - health: liveness and readiness checks
package telemetry
