package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rocksteady808/roolify-sub002/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Store.Backend != "postgres" {
				return fmt.Errorf("migrations only apply to the postgres store (STORE_BACKEND=%s)", cfg.Store.Backend)
			}

			version, err := database.RunMigrations(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}
