// Package cli defines the cobra command tree for the habinest API process.
package cli

import (
	"habinest-backend/bootstrap"
	"habinest-backend/internal/config"

	"github.com/spf13/cobra"
)

var flagDB string

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "habinest",
		Short:         "Listing discovery and engagement API",
		Long:          "Serve the habinest listing API, or run maintenance against its store: migrate, reindex, prune-orphans.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (overrides SQLITE_PATH; ignored when DATABASE_URL is set)")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newReindexCmd(),
		newPruneOrphansCmd(),
	)

	return root
}

// loadConfig reads configuration and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.SQLitePath = flagDB
	}
	bootstrap.SetupLogging(cfg)
	return cfg, nil
}
