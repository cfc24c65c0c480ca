/*
Package cli provides the helpers shared by the strata commands.

Output Formatting:

Listing commands print results as text, JSON or CSV. Tabular results
implement Table so the text and CSV formatters can render them row by row:

	format, err := cli.ParseOutputFormat(outputFlag)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(os.Stdout, rows)

Progress Reporting:

A synchronous archive pass reports one increment per candidate:

	progress := cli.NewProgressReporter(os.Stderr, "Archiving")
	progress.Start(int64(len(candidates)))
	for _, rec := range candidates {
		// archive rec
		progress.Increment()
	}
	progress.Finish()

Signals and Exit Codes:

SignalContext cancels the command context on SIGINT or SIGTERM. ExitCode maps
the error a command returns to the process exit status, distinguishing
configuration problems and disabled archiving from other failures.
*/
package cli
