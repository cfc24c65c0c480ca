// Package health provides the liveness and readiness endpoints of the
// strata admin server.
//
// Readiness aggregates named checks. The run command registers three:
//
//   - store: the active store answers (ping or read)
//   - queue: the task queue accepts tasks
//   - archive_config: the archive base path is usable
//
// A check returns nil when healthy, a Warning when its component works in a
// reduced mode, or any other error when it is unhealthy. Only unhealthy
// checks make the process "degraded" and /readyz answer 503: an unusable
// archive base path disables archiving but is reported as a persistent
// warning, and an unavailable queue makes archive passes run synchronously.
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck(health.CheckStore, health.StoreCheck(st))
//	checker.RegisterCheck(health.CheckQueue, health.QueueCheck(q))
//	checker.RegisterCheck(health.CheckArchiveConfig, health.ArchiveConfigCheck(status))
package health
