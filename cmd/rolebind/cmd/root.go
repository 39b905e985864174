package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/rolebind/internal/cli"
	"github.com/solatis/rolebind/internal/core/db"
	"github.com/solatis/rolebind/internal/core/logging"
)

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
	format     string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rolebind",
	Short: "Rolebind role and nickname resolution engine",
	Long: `Rolebind decides which Discord roles a member should gain or lose and which
nickname they should carry, from a guild's bind catalog and the member's
linked Roblox facts.

Examples:
  rolebind migrate up --db-url sqlite:///var/lib/rolebind.db
  rolebind import catalog.yaml --db-url sqlite:///var/lib/rolebind.db
  rolebind resolve catalog.yaml member.json
  rolebind serve --db-url postgres://rolebind@db/rolebind`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "output format (table, json, yaml)")
}

func Execute() error {
	return rootCmd.Execute()
}

// outputFormat validates the --format flag.
func outputFormat() (cli.OutputFormat, error) {
	return cli.ParseFormat(format)
}

// openStore opens --db-url and loads the named queries. Callers close the
// returned database.
func openStore() (*sqlx.DB, *db.Queries, error) {
	if dbURL == "" {
		return nil, nil, fmt.Errorf("--db-url required")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}
