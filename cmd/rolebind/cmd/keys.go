package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/solatis/rolebind/internal/cli"
	"github.com/solatis/rolebind/internal/core/auth"
	"github.com/solatis/rolebind/internal/core/config"
	"github.com/solatis/rolebind/internal/core/db"
)

var (
	keyGuild    string
	keyName     string
	keySecretID string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage guild-scoped API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Mint an API key for a guild",
	Long: `Mint an API key under one of the configured HMAC secrets. The key is printed
once and only its HMAC is stored.

Examples:
  rolebind keys create --guild 555 --name bot --db-url sqlite://rolebind.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		guild, err := parseGuildID(keyGuild)
		if err != nil {
			return err
		}
		secrets, err := config.HMACSecrets()
		if err != nil {
			return fmt.Errorf("failed to load HMAC secrets: %w", err)
		}
		secretID, err := pickSecret(secrets, keySecretID)
		if err != nil {
			return err
		}

		key, keyHash, err := auth.GenerateAPIKey(secretID, secrets[secretID])
		if err != nil {
			return err
		}
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating key id: %w", err)
		}

		database, queries, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		record := db.APIKey{ID: id.String(), GuildID: guild, Name: keyName, SecretID: secretID}
		if err := queries.InsertAPIKey(context.Background(), record, keyHash); err != nil {
			return err
		}
		logger.Info("api key created", "api_key_id", record.ID, "guild_id", guild, "secret_id", secretID)
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a guild's API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		guild, err := parseGuildID(keyGuild)
		if err != nil {
			return err
		}
		database, queries, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		keys, err := queries.ListAPIKeys(context.Background(), guild)
		if err != nil {
			return err
		}
		if len(keys) == 0 && out == cli.FormatTable {
			fmt.Fprintln(cmd.OutOrStdout(), "No keys found")
			return nil
		}
		return cli.PrintAPIKeys(cmd.OutOrStdout(), keys, out)
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, queries, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := queries.RevokeAPIKey(context.Background(), args[0]); err != nil {
			return err
		}
		logger.Info("api key revoked", "api_key_id", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd)

	for _, c := range []*cobra.Command{keysCreateCmd, keysListCmd} {
		c.Flags().StringVar(&keyGuild, "guild", "", "guild id (required)")
		_ = c.MarkFlagRequired("guild")
	}
	keysCreateCmd.Flags().StringVar(&keyName, "name", "", "human-readable key name")
	keysCreateCmd.Flags().StringVar(&keySecretID, "secret-id", "", "HMAC secret to mint under; optional with a single secret")
}

// pickSecret returns want when configured, or the only secret when want is empty.
func pickSecret(secrets map[string][]byte, want string) (string, error) {
	if len(secrets) == 0 {
		return "", fmt.Errorf("no HMAC secrets configured (set %s_HMAC_SECRET environment variable)", config.EnvPrefix)
	}
	if want != "" {
		if _, ok := secrets[want]; !ok {
			return "", fmt.Errorf("secret id %q is not configured", want)
		}
		return want, nil
	}
	if len(secrets) > 1 {
		ids := make([]string, 0, len(secrets))
		for id := range secrets {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return "", fmt.Errorf("several HMAC secrets configured, pass --secret-id (one of %s)", strings.Join(ids, ", "))
	}
	for id := range secrets {
		return id, nil
	}
	return "", nil
}
