package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/strata/pkg/archive"
	"mercator-hq/strata/pkg/cli"
	"mercator-hq/strata/pkg/server"
)

var archiveFlags struct {
	yes   bool
	queue bool
	uids  []string
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive the records outside the retention period",
	Long: `Archive every record outside the retention period now.

The command reports how many records are outside the retention period and
asks for confirmation unless --yes is given.
By default the pass runs in this process, one transaction per record. With
--queue the candidates are submitted to the task queue instead and archived
by the workers of a running "strata run".

Examples:
  # Archive now, after confirming
  strata archive

  # Archive without asking
  strata archive --yes

  # Hand the pass to the queue workers
  strata archive --yes --queue

  # Archive specific records
  strata archive --yes --uid 7c9e6679 --uid 9b2d1f3a`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().BoolVarP(&archiveFlags.yes, "yes", "y", false, "archive without asking")
	archiveCmd.Flags().BoolVar(&archiveFlags.queue, "queue", false, "submit the pass to the task queue")
	archiveCmd.Flags().StringSliceVar(&archiveFlags.uids, "uid", nil, "archive only these records")
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if archiveFlags.queue && cfg.Queue.Backend != "sqlite" {
		return cli.NewConfigError(cfgFile, fmt.Errorf("--queue needs the sqlite queue backend, got %q", cfg.Queue.Backend))
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, archiveFlags.queue)
	if err != nil {
		return cli.NewCommandError("archive", err)
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if status := a.engine.Settings().Status; !status.Active {
		fmt.Fprintf(out, "⚠ %s\n", status.Warning)
		return cli.NewCommandError("archive", archive.ErrArchiveDisabled)
	}

	uids := archiveFlags.uids
	if len(uids) == 0 {
		candidates, err := a.engine.Candidates(ctx, 0)
		if err != nil {
			return cli.NewCommandError("archive", err)
		}
		for _, rec := range candidates {
			uids = append(uids, rec.UID)
		}
	}

	fmt.Fprintf(out, "%s: %d records.\n", server.MessageConfirm, len(uids))
	if year, ok := a.engine.EarliestYear(); ok {
		fmt.Fprintf(out, "Records from %d on are kept.\n", year)
	}
	if !archiveFlags.yes && !confirm(cmd, "Archive them? [y/N]: ") {
		fmt.Fprintln(out, server.MessageCancelled)
		return nil
	}

	if archiveFlags.queue {
		res, err := a.chunked.Run(ctx)
		if err != nil {
			return cli.NewCommandError("archive", err)
		}
		if res.Queued {
			fmt.Fprintf(out, "✓ Archive task queued (%d records)\n", res.Submitted)
		} else if res.Sync != nil {
			fmt.Fprintf(out, "✓ Queue unavailable, archived %d records (%d failed)\n", res.Sync.Archived, res.Sync.Failed)
		}
		return nil
	}

	archived, skipped, failed := 0, 0, 0
	progress := cli.NewProgressReporter(cmd.ErrOrStderr(), "Archiving")
	progress.Start(int64(len(uids)))
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			progress.Error(err)
			return cli.NewCommandError("archive", err)
		}
		err := a.engine.Archive(ctx, uid)
		switch {
		case err == nil:
			archived++
		case errors.Is(err, archive.ErrNotArchivable):
			skipped++
			slog.Info("record not archivable, skipped", "uid", uid)
		default:
			failed++
		}
		progress.Increment()
	}
	progress.Finish()

	fmt.Fprintf(out, "✓ Archived %d records", archived)
	if skipped > 0 {
		fmt.Fprintf(out, ", %d not archivable", skipped)
	}
	fmt.Fprintln(out)
	if failed > 0 {
		return cli.NewCommandError("archive", fmt.Errorf("%d records could not be archived", failed))
	}
	return nil
}

// confirm asks a yes/no question on the command's input. Anything but y or
// yes, including end of input, is a no.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		fmt.Fprintln(cmd.OutOrStdout())
		return false
	}
}
