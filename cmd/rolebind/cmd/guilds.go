package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/rolebind/internal/cli"
)

var guildsCmd = &cobra.Command{
	Use:   "guilds",
	Short: "List guilds with a stored catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		database, queries, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		guilds, err := queries.ListGuilds(context.Background())
		if err != nil {
			return err
		}
		if len(guilds) == 0 && out == cli.FormatTable {
			fmt.Fprintln(cmd.OutOrStdout(), "No guilds found")
			return nil
		}
		return cli.PrintGuilds(cmd.OutOrStdout(), guilds, out)
	},
}

func init() {
	rootCmd.AddCommand(guildsCmd)
}
