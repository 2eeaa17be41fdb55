package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/building-safety/internal/service/overseer"
	"github.com/oshokin/building-safety/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the overseer.
	rootCmd = &cobra.Command{
		Use:   "overseer",
		Short: "Run the overseer.",
		Long: `Runs the central authority. Devices announce themselves to it, card readers
ask it to authorise scans, and it cycles authorised doors and registers
fail-safe doors with the fire alarm unit.

Authorisations and reader connections are read from the policy file on every
decision. Events go to Redis pub/sub when events.redis_addr is set and to the
log otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return overseer.Run(ctx, &overseer.Options{
				ConfigPath: configPath,
				LogLevel:   logLevel,
			})
		},
	}
)

// Execute runs the overseer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "overseer.yaml", "path to configuration file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}
