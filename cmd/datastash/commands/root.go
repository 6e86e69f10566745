// Package commands implements the CLI commands for datastash.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datastash/datastash/internal/logger"
	"github.com/datastash/datastash/pkg/config"
	"github.com/datastash/datastash/pkg/metrics"
	"github.com/datastash/datastash/pkg/stash"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile      string
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "datastash",
	Short: "datastash - offline-capable client storage and cache",
	Long: `datastash manages a private, partitioned storage area for analytics
clients: downloaded datasets, cached query results and temporary files.
It keeps an in-memory metadata index over the files, enforces TTL and
quota policy on the cache, and reconciles local state with a remote
dataset origin in the background.

Use "datastash [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called by main.main().
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults + DATASTASH_* env)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(clearCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration from the global --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// openStash loads the config, initializes logging and metrics, and
// opens the stash. The returned cleanup must be called before exit.
func openStash(ctx context.Context) (*stash.Stash, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return nil, nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	s, err := stash.Open(ctx, cfg, stash.Options{})
	if err != nil {
		return nil, nil, nil, err
	}
	stash.SetDefault(s)

	cleanup := func() {
		stash.ResetDefault()
		if err := s.Close(); err != nil {
			logger.Error("close stash", "error", err)
		}
	}
	return s, cfg, cleanup, nil
}
