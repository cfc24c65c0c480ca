package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/strata/pkg/cli"
	"mercator-hq/strata/pkg/config"
	"mercator-hq/strata/pkg/telemetry/logging"
)

const defaultConfigFile = "strata.yaml"

var (
	// Global flags
	cfgFile  string
	logLevel string

	// usingDefaults is set when no configuration file was found.
	usingDefaults bool
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Strata - retention based archiving of laboratory records",
	Long: `Strata moves laboratory records that are outside their retention period
out of the active store.

Samples, batches and worksheets in a final state are exported to the archive
base path, replaced by a searchable stub, and removed from the active store
together with everything they contain. Passes run on a schedule, spread over
a task queue one record at a time, or on demand.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// loadConfig loads the configuration file into the global configuration and
// installs the logger. A missing default file falls back to the built-in
// defaults; a missing file named with --config is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	usingDefaults = false
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.DefaultConfig()
		usingDefaults = true
	default:
		return nil, cli.NewConfigError(cfgFile, err)
	}

	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	if _, err := logging.Setup(cfg.Telemetry.Logging, cmd.ErrOrStderr()); err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	if usingDefaults {
		slog.Warn("configuration file not found, using defaults", "path", cfgFile)
	}

	config.SetConfig(cfg)
	return cfg, nil
}
