package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/rolebind/internal/cli"
	"github.com/solatis/rolebind/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the configuration store schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		applied, err := db.MigrateUp(database)
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		if len(applied) == 0 {
			logger.Info("schema up to date", "latest", db.LatestMigration)
			return nil
		}
		for _, id := range applied {
			logger.Info("applied migration", "migration_id", id)
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		database, _, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		statuses, err := db.MigrateStatus(database)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		return cli.PrintMigrations(cmd.OutOrStdout(), statuses, out)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}
