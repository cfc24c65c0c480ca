package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/strata/pkg/archive/schedule"
	"mercator-hq/strata/pkg/cli"
	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/queue"
	"mercator-hq/strata/pkg/server"
	"mercator-hq/strata/pkg/telemetry/health"
	"mercator-hq/strata/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	noWatch       bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the archive scheduler, task workers and admin server",
	Long: `Run strata as a long-lived process.

The process runs archive passes on the configured cron schedule, consumes
archive tasks from the queue, and serves the admin API with health,
readiness and metrics endpoints. The configuration file is watched and
reloaded on change: the retention policy, archive base path, workflow states
and schedule follow the file without a restart.

Examples:
  # Start with the default config file (strata.yaml)
  strata run

  # Start with a custom config and listen address
  strata run --config /etc/strata/strata.yaml --listen 0.0.0.0:8090

  # Validate the setup without starting
  strata run --dry-run`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not reload the config file on change")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "open the store and queue, then exit")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	printBanner(cmd, a)
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	scheduler := schedule.NewScheduler(cfg.Archive.Schedule, func(ctx context.Context) error {
		_, err := a.chunked.Run(ctx)
		return err
	})

	checker := health.New(0)
	checker.RegisterCheck(health.CheckStore, health.StoreCheck(a.store))
	checker.RegisterCheck(health.CheckQueue, health.QueueCheck(a.queue))
	checker.RegisterCheck(health.CheckArchiveConfig, health.ArchiveConfigCheck(func() config.ArchiveStatus {
		return a.engine.Settings().Status
	}))

	opts := server.Options{
		Engine:    a.engine,
		Runner:    a.chunked,
		Checker:   checker,
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	}
	if cfg.Telemetry.Metrics.Enabled {
		opts.Gatherer = a.registry
		opts.MetricsPath = cfg.Telemetry.Metrics.Path
		opts.HTTPMetrics = metrics.NewHTTPMetrics(a.registry)
	}
	if a.tracer.Enabled() {
		opts.Tracer = a.tracer.Tracer()
	}
	srv := server.New(cfg.Server, opts)

	config.OnReload(func(next *config.Config) {
		if err := a.reconfigure(ctx, next); err != nil {
			slog.Error("failed to apply reloaded configuration", "error", err)
			return
		}
		if err := scheduler.Reschedule(ctx, next.Archive.Schedule); err != nil {
			slog.Error("failed to reschedule archive passes", "error", err)
		}
	})

	var watcher *config.Watcher
	if !runFlags.noWatch && !usingDefaults {
		watcher, err = config.NewWatcher(cfgFile, 0)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
	}

	if err := scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer scheduler.Stop()
	if next := scheduler.NextRun(); next != nil {
		fmt.Fprintf(out, "✓ Next archive pass at %s\n", next.Format("2006-01-02 15:04 MST"))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})

	if a.queue != nil {
		pool := queue.NewPool(a.queue, queue.PoolConfig{
			Workers:      cfg.Queue.Workers,
			PollInterval: cfg.Queue.PollInterval,
		})
		a.chunked.Register(pool)
		g.Go(func() error {
			return pool.Run(gctx)
		})
	}

	if watcher != nil {
		g.Go(func() error {
			return watcher.Watch(gctx)
		})
	}

	fmt.Fprintf(out, "✓ Admin server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Strata stopped")
	return nil
}

func printBanner(cmd *cobra.Command, a *app) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Strata v%s\n", Version)
	if usingDefaults {
		fmt.Fprintln(out, "✓ Using default configuration")
	} else {
		fmt.Fprintf(out, "✓ Configuration loaded from %s\n", cfgFile)
	}
	cfg := a.config()
	fmt.Fprintf(out, "✓ Store: %s\n", cfg.Store.Backend)

	if a.queue != nil {
		fmt.Fprintf(out, "✓ Task queue: %s (%d workers)\n", cfg.Queue.Backend, cfg.Queue.Workers)
	} else {
		fmt.Fprintln(out, "✓ Task queue disabled: archive passes run synchronously")
	}

	settings := a.engine.Settings()
	if year, ok := settings.Policy.EarliestYear(); ok {
		fmt.Fprintf(out, "✓ Keeping records from %d on\n", year)
	} else {
		fmt.Fprintln(out, "✓ No retention period: every record is kept")
	}
	if !settings.Status.Active {
		fmt.Fprintf(out, "⚠ %s\n", settings.Status.Warning)
	}
}
