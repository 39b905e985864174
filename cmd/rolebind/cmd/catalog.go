package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/rolebind/internal/cli"
	"github.com/solatis/rolebind/internal/core/loader"
	"github.com/solatis/rolebind/internal/types"
)

var (
	importGuild string
	exportGuild string
	exportOut   string
)

var importCmd = &cobra.Command{
	Use:   "import <catalog-file>",
	Short: "Replace a guild's stored catalog with a file",
	Long: `Parse, validate and check a catalog file, then replace the stored catalog of
its guild in a single transaction. Every custom expression must parse.

Examples:
  rolebind import catalog.yaml --db-url sqlite://rolebind.db
  rolebind import catalog.jsonc --guild 555 --db-url sqlite://rolebind.db`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loader.ReadCatalog(args[0])
		if err != nil {
			return err
		}
		if importGuild != "" {
			id, err := parseGuildID(importGuild)
			if err != nil {
				return err
			}
			catalog.GuildID = id
		}
		if catalog.GuildID == 0 {
			return fmt.Errorf("%s: guild_id missing (set it in the file or pass --guild)", args[0])
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		if _, err := engine.CheckCatalog(catalog); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		database, queries, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		version, err := queries.ReplaceCatalog(context.Background(), catalog)
		if err != nil {
			return fmt.Errorf("failed to store catalog: %w", err)
		}
		logger.Info("catalog imported",
			"guild_id", catalog.GuildID, "version", version,
			"binds", len(catalog.Binds), "deny_list", len(catalog.DenyList))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a guild's stored catalog as YAML or JSON",
	Long: `Examples:
  rolebind export --guild 555 --db-url sqlite://rolebind.db
  rolebind export --guild 555 --output catalog.json --db-url sqlite://rolebind.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseGuildID(exportGuild)
		if err != nil {
			return err
		}
		fileFormat := loader.FormatYAML
		if exportOut != "" {
			if fileFormat, err = loader.FormatFromPath(exportOut); err != nil {
				return err
			}
		}

		database, queries, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		catalog, err := queries.LoadCatalog(context.Background(), id)
		if err != nil {
			return err
		}

		if exportOut == "" {
			return loader.WriteCatalog(cmd.OutOrStdout(), catalog, fileFormat)
		}
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if err := loader.WriteCatalog(f, catalog, fileFormat); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <catalog-file>",
	Short: "Validate a catalog file and parse its custom expressions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		catalog, err := loader.ReadCatalog(args[0])
		if err != nil {
			return err
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}
		checks, checkErr := engine.CheckCatalog(catalog)
		if len(checks) > 0 {
			if err := cli.PrintChecks(cmd.OutOrStdout(), checks, out); err != nil {
				return err
			}
		}
		if checkErr != nil {
			return fmt.Errorf("%s: %w", args[0], checkErr)
		}
		logger.Info("catalog ok", "path", args[0], "expressions", len(checks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd, exportCmd, checkCmd)

	importCmd.Flags().StringVar(&importGuild, "guild", "", "override the catalog's guild_id")

	exportCmd.Flags().StringVar(&exportGuild, "guild", "", "guild id to export (required)")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (.yaml, .yml, .json); stdout when empty")
	_ = exportCmd.MarkFlagRequired("guild")
}

func parseGuildID(s string) (types.GuildID, error) {
	id, err := types.ParseSnowflake(s)
	if err != nil {
		return 0, fmt.Errorf("guild: %w", err)
	}
	return types.GuildID(id), nil
}
