package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/code-winstaller/internal/domain/installer"
	"github.com/oshokin/code-winstaller/internal/logger"
	"github.com/oshokin/code-winstaller/internal/service/bootstrap"
	"github.com/oshokin/code-winstaller/internal/version"
)

var (
	// configPath stores the optional path to the configuration YAML file.
	configPath string
	// archPackage overrides the architecture package detected from the build.
	archPackage string
	// quality selects the release channel.
	quality string
	// logLevel is the minimum level of printed messages.
	logLevel string

	// rootCmd represents the single bootstrap run.
	rootCmd = &cobra.Command{
		Use:   "code-winstaller",
		Short: "Download and silently install the latest VS Code for the current user.",
		Long: `Resolves the latest VS Code user installer for this machine's architecture,
streams it into a fresh temporary workspace while watching for stalled transfers,
checks its SHA-256 digest and runs it silently. The workspace is removed after
the installer exits.

The process exit code tells which step failed.`,
		Args: func(c *cobra.Command, args []string) error {
			if err := cobra.NoArgs(c, args); err != nil {
				logger.Error(context.Background(), err)

				return err
			}

			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				err := fmt.Errorf("unknown log level %q", logLevel)
				logger.Error(context.Background(), err)

				return err
			}

			logger.SetLevel(level)

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &bootstrap.Options{
				ConfigPath:  configPath,
				ArchPackage: archPackage,
				Quality:     quality,
			}

			return bootstrap.Run(ctx, options)
		},
	}
)

// Execute runs the code-winstaller CLI and exits with the status of the failed step.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.Execute()

	logger.Sync()

	if err != nil {
		os.Exit(installer.ExitCode(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to an optional configuration file")
	rootCmd.Flags().StringVarP(&archPackage, "arch", "a", "", "architecture package, e.g. x64-user, user or arm64-user")
	rootCmd.Flags().StringVarP(&quality, "quality", "q", "", "release channel, stable or insider")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "log level: debug, info, warn or error")

	// Errors are silenced, so usage mistakes are reported here. Bootstrap logs its own failures.
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		logger.Error(context.Background(), err)
		c.PrintErrln(c.UsageString())

		return err
	})
}
