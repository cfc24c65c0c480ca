// Package logging builds the process logger from the telemetry
// configuration.
//
// Loggers are plain *slog.Logger values. Components derive child loggers
// with slog.Default().With("component", ...) and log with the *Context
// methods where a context is at hand; the handler installed by New then
// adds the request, task, record and trace identifiers carried by the
// context.
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	ctx = logging.WithTaskID(ctx, task.ID)
//	logger.InfoContext(ctx, "archiving chunk", "size", len(task.UIDs))
package logging
