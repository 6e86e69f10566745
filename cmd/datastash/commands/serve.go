package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datastash/datastash/internal/logger"
	"github.com/datastash/datastash/pkg/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the datastash service",
	Long: `Open the storage area, start the sync coordinator and serve the
control API until interrupted.

Examples:
  # Serve with defaults
  datastash serve

  # Serve with a custom config file
  datastash serve --config /etc/datastash/config.yaml

  # Override settings through the environment
  DATASTASH_LOGGING_LEVEL=DEBUG datastash serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, cfg, cleanup, err := openStash(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("datastash started",
		"version", Version,
		"root", cfg.Storage.Root,
	)

	if !cfg.API.Enabled {
		// Headless mode: sync runs in the background until a signal.
		<-ctx.Done()
		logger.Info("shutdown signal received")
		return nil
	}

	server := api.NewServer(cfg.API, s)
	return server.Start(ctx)
}
