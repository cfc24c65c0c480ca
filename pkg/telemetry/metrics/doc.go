// Package metrics exposes the Prometheus registry of the strata process.
//
// The registry carries the Go runtime and process collectors, the archive
// engine metrics (strata_archive_*) and the admin server metrics
// (strata_http_*). Handler serves all of them at telemetry.metrics.path.
package metrics
