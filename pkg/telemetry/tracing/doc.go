// Package tracing sets up OpenTelemetry tracing for strata.
//
// With tracing enabled, spans are batched to an OTLP gRPC collector:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: "otel-collector:4317"
//	    insecure: true
//	    service_name: "strata"
//	    sample_ratio: 0.1
//
// The archive engine opens one span per archived record (archive.record)
// with child spans for its steps: archive.dependents, archive.export,
// archive.stub and archive.delete. Requests to the admin server are traced
// by HTTPMiddleware, which continues any W3C trace context sent by the
// caller.
//
// When tracing is disabled New returns a noop tracer.
package tracing
