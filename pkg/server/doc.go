// Package server provides the admin HTTP server of strata.
//
// # Endpoints
//
//	GET  /healthz             liveness
//	GET  /readyz              readiness: store, queue, archive_config
//	GET  /version             build information
//	GET  /metrics             Prometheus metrics (telemetry.metrics.path)
//	GET  /archive/status      active flag, warning, retention period,
//	                          date criterion and earliest kept year
//	GET  /archive             confirmation details of an archive-now request
//	POST /archive             archive-now form
//	GET  /archive/items       stub search: q, type, limit, offset
//	GET  /archive/items/{id}  one stub
//
// # Archive now
//
// POST /archive takes the form fields of the archive-now page. Without
// submitted=1 the confirmation details are returned. With button_cancel the
// request is acknowledged with "Archiving of records cancelled". With
// button_confirm an archive pass is started: candidates are queued as a
// chunked task when the task queue is up, or archived before the response
// when it is not, and the response reads "Archiving of records has finished
// successfully". While the archive configuration is inactive the request is
// refused with 409 Conflict and the configuration warning.
//
// # Usage
//
//	srv := server.New(cfg.Server, server.Options{
//	    Engine:   engine,
//	    Runner:   chunked,
//	    Checker:  checker,
//	    Gatherer: registry,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
package server
