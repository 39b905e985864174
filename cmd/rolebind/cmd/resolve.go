package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/rolebind/internal/cli"
	"github.com/solatis/rolebind/internal/core/config"
	"github.com/solatis/rolebind/internal/core/loader"
	"github.com/solatis/rolebind/internal/resolve"
	"github.com/solatis/rolebind/internal/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <catalog-file> <member-file>",
	Short: "Resolve one member against a catalog file offline",
	Long: `Run the resolution engine over a catalog and a member facts snapshot without
touching the configuration store.

Examples:
  rolebind resolve catalog.yaml member.json
  rolebind resolve catalog.yaml member.yaml --format json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFormat()
		if err != nil {
			return err
		}
		catalog, err := loader.ReadCatalog(args[0])
		if err != nil {
			return err
		}
		facts, err := loader.ReadMemberFacts(args[1])
		if err != nil {
			return err
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		result, err := resolveMember(engine, catalog, facts)
		if err != nil {
			return err
		}
		return cli.PrintResolution(cmd.OutOrStdout(), result, out)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

// resolveMember mirrors the ResolveMember RPC: an "all" bypass short-circuits,
// a deny-list match is a result rather than a failure.
func resolveMember(engine *resolve.Engine, catalog *types.Catalog, facts *resolve.MemberFacts) (*cli.Resolution, error) {
	if resolve.HasBypass(catalog, facts, types.BypassAll) {
		return &cli.Resolution{Status: "bypassed"}, nil
	}

	outcome, err := engine.Resolve(catalog, facts)
	var denied *resolve.DeniedError
	if errors.As(err, &denied) {
		return &cli.Resolution{
			Status: "denied",
			Denied: &cli.DeniedEntry{
				EntryID: denied.Entry.ID,
				Action:  denied.Entry.Action,
				Reason:  denied.Entry.Reason,
			},
			Warnings: errorStrings(denied.Failures),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolution failed: %w", err)
	}
	return &cli.Resolution{
		Status:   "resolved",
		Outcome:  outcome,
		Warnings: errorStrings(outcome.ConfigErrors),
	}, nil
}

// newEngine builds an engine from the --config engine section, or from
// defaults when no file is given.
func newEngine() (*resolve.Engine, error) {
	engineCfg := config.DefaultEngineConfig()
	if configFile != "" {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		engineCfg = cfg.Engine
	}
	return resolve.NewEngine(engineCfg.ResolveConfig(), logger), nil
}

func errorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
