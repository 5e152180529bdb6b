package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/otakit/courier/internal/config"
	"github.com/otakit/courier/internal/logger"
	"github.com/otakit/courier/internal/service/agent"
	"github.com/otakit/courier/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel for the run.
	logLevel string
	// pollInterval between update cycles in daemon mode.
	pollInterval time.Duration

	// rootCmd represents the base command for the device update agent.
	rootCmd = &cobra.Command{
		Use:   "courier-agent",
		Short: "Keep the device's application unit on the published release",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
	}

	// applyCmd runs a single update cycle, for cron jobs and operator triggers.
	applyCmd = &cobra.Command{
		Use:   "apply",
		Short: "Run one update cycle and exit",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &agent.Options{
				ConfigPath: configPath,
			}

			return agent.Run(ctx, options)
		},
	}

	// daemonCmd polls the store on a fixed interval until terminated.
	daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Poll the store for releases until terminated",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &agent.DaemonOptions{
				ConfigPath: configPath,
				Interval:   pollInterval,
			}

			return agent.RunDaemon(ctx, options)
		},
	}
)

// Execute runs the courier-agent CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "logging level (debug, info, warn, error)")
	daemonCmd.Flags().
		DurationVarP(&pollInterval, "interval", "i", agent.DefaultPollInterval, "period between update cycles")

	rootCmd.AddCommand(applyCmd, daemonCmd)
}
