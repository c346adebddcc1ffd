package cli

import (
	"fmt"

	"habinest-backend/bootstrap"
	"habinest-backend/internal/infrastructure/database"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DatabaseURL, cfg.SQLitePath)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the geo index from stored listings",
		Long:  "Rebuild the geo index from stored listings. Only meaningful for GEO_BACKEND=redis; the memory index lives in the serving process.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := bootstrap.New(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			n, err := app.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d listings\n", n)
			return nil
		},
	}
}

func newPruneOrphansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-orphans",
		Short: "Delete bookmarks and visits whose listing no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := bootstrap.New(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx := cmd.Context()
			bm, err := app.Bookmarks.PruneOrphans(ctx)
			if err != nil {
				return err
			}
			vs, err := app.Visits.PruneOrphans(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d bookmarks, %d visits\n", bm, vs)
			return nil
		},
	}
}
