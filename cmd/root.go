// Package cmd defines and implements the CLI commands for the slotwatcher
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kumzy/doctolib-watcher/internal/app"
	"github.com/Kumzy/doctolib-watcher/internal/config"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use.
// This allows injecting a mock app during tests.
type App interface {
	Close()
	Logger() *zap.Logger
	Run(ctx context.Context) error
}

// newApp is the application factory. It is a variable so tests can replace
// it with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("slotwatcher.yaml"); err == nil {
			path = "slotwatcher.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slotwatcher",
		Short: "Watches appointment availability and announces new slots.",
		Long: `slotwatcher polls booking availability endpoints for the configured
practitioners, extracts appointment slots from the responses, and notifies
the configured channel about slots it has not announced before. Dedup state
is durable, so restarts never replay old announcements.`,

		// Runs after flags are parsed but before the subcommand's RunE, so
		// every subcommand finds a fully initialized application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// Ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./slotwatcher.yaml)")

	cmd.AddCommand(newWatchCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "slotwatcher: %v\n", err)
		os.Exit(1)
	}
}
