package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/otakit/courier/internal/config"
	"github.com/otakit/courier/internal/logger"
	"github.com/otakit/courier/internal/service/publisher"
	"github.com/otakit/courier/internal/signing"
	"github.com/otakit/courier/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel for the run.
	logLevel string
	// keyBits is the RSA modulus size for keygen.
	keyBits int

	// rootCmd represents the base command for the release publishing tooling.
	rootCmd = &cobra.Command{
		Use:   "courier-publisher",
		Short: "Sign and upload application releases to the artifact store",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
	}

	// publishCmd signs a bundle and uploads the release objects.
	publishCmd = &cobra.Command{
		Use:   "publish [bundle.tar]",
		Short: "Sign a bundle and upload it as the project's current release",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &publisher.Options{
				ConfigPath: configPath,
				BundlePath: args[0],
			}

			return publisher.Run(ctx, options)
		},
	}

	// keygenCmd generates the project signing keypair.
	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Generate the project signing keypair",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &publisher.KeygenOptions{
				ConfigPath: configPath,
				Bits:       keyBits,
			}

			return publisher.Keygen(ctx, options)
		},
	}
)

// Execute runs the courier-publisher CLI and exits with non-zero status on error.
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
	keygenCmd.Flags().IntVarP(&keyBits, "bits", "b", signing.DefaultKeyBits, "RSA modulus size in bits")

	rootCmd.AddCommand(publishCmd, keygenCmd)
}
