package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newWatchCmd creates and configures the 'watch' subcommand, which runs the
// polling loop until interrupted.
func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Starts the availability watch loop",
		Long: `Runs the watcher: every poll interval it fans out over the configured
entities, fetches their availability windows, and announces slots that have
not been seen before. The loop runs until SIGINT or SIGTERM.`,

		RunE: runWatchCommand,
	}
	return cmd
}

func runWatchCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := appInstance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run watcher: %w", err)
	}

	appInstance.Logger().Info("watch command finished")
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
