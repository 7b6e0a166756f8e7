package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"spxcore/fractal/pkg/cli"
	"spxcore/fractal/pkg/config"
	"spxcore/fractal/pkg/policy"
)

var policyFlags struct {
	symbol string
	limit  int
	format string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect stored scoring policies",
	Long: `Inspect the versioned scoring policies in the configured store.

Subcommands:
  show     - Show the active policy for a symbol
  history  - Show policy version history for a symbol

Examples:
  # Show the active policy
  fractal policy show --symbol BTC

  # Show the last 10 versions
  fractal policy history --symbol BTC --limit 10

  # Output as JSON
  fractal policy show --symbol BTC --format json`,
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active policy for a symbol",
	Long: `Show the active policy version for a symbol.

Displays the version number, content hash, last actor, and the scoring
weights currently in force.

Examples:
  # Show the active policy
  fractal policy show --symbol BTC

  # Output as JSON
  fractal policy show --symbol BTC --format json`,
	RunE: showPolicy,
}

var policyHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show policy version history",
	Long: `Show the policy version history for a symbol, newest first.

Each entry records the version, content hash, actor, reason, and
timestamp of the change. Rollbacks appear as new versions.

Examples:
  # Show the last 10 versions
  fractal policy history --symbol BTC --limit 10

  # Output as JSON
  fractal policy history --symbol BTC --format json`,
	RunE: showPolicyHistory,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyHistoryCmd)

	policyCmd.PersistentFlags().StringVarP(&policyFlags.symbol, "symbol", "s", "", "symbol to inspect (required)")
	policyCmd.PersistentFlags().StringVar(&policyFlags.format, "format", "text", "output format: text, json")
	policyHistoryCmd.Flags().IntVar(&policyFlags.limit, "limit", 10, "maximum versions to show")
}

// openPolicyStore opens the policy store named by the configuration for
// read-only inspection.
func openPolicyStore() (policy.Store, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	switch cfg.Storage.Backend {
	case "memory":
		return nil, cli.NewConfigError("storage.backend",
			"memory backend holds no data outside a running server; point --config at a sqlite deployment")
	case "sqlite":
		return policy.NewSQLiteStore(&policy.SQLiteConfig{
			Path:         cfg.Storage.PoliciesPath,
			MaxOpenConns: cfg.Storage.MaxOpenConns,
			WALMode:      cfg.Storage.WALMode,
			BusyTimeout:  cfg.Storage.BusyTimeout,
		})
	default:
		return nil, cli.NewConfigError("storage.backend", fmt.Sprintf("unknown backend %q", cfg.Storage.Backend)).
			WithHint("supported backends are memory and sqlite")
	}
}

func showPolicy(cmd *cobra.Command, args []string) error {
	if policyFlags.symbol == "" {
		return cli.NewConfigError("symbol", "required flag --symbol not set")
	}

	store, err := openPolicyStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	current, err := store.GetCurrent(ctx, policyFlags.symbol)
	if err != nil {
		return cli.NewCommandError("policy show", err)
	}

	if cli.OutputFormat(policyFlags.format) == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, current)
	}

	fmt.Printf("Symbol:   %s\n", current.Symbol)
	fmt.Printf("Version:  %d\n", current.Version)
	fmt.Printf("Hash:     %s\n", current.Hash)
	fmt.Printf("Actor:    %s\n", current.Actor)
	if current.Reason != "" {
		fmt.Printf("Reason:   %s\n", current.Reason)
	}
	fmt.Printf("Updated:  %s\n", current.UpdatedAt.Format(time.RFC3339))
	fmt.Println("Tier weights:")
	for _, tier := range []string{"STRUCTURE", "TACTICAL", "TIMING"} {
		fmt.Printf("  %-10s %.4f\n", tier, current.Content.TierWeights[tier])
	}
	fmt.Println("Horizon weights:")
	for _, horizon := range []string{"1d", "7d", "30d"} {
		fmt.Printf("  %-10s %.4f\n", horizon, current.Content.HorizonWeights[horizon])
	}
	return nil
}

func showPolicyHistory(cmd *cobra.Command, args []string) error {
	if policyFlags.symbol == "" {
		return cli.NewConfigError("symbol", "required flag --symbol not set")
	}

	store, err := openPolicyStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	versions, err := store.History(ctx, policyFlags.symbol, policyFlags.limit)
	if err != nil {
		return cli.NewCommandError("policy history", err)
	}

	if cli.OutputFormat(policyFlags.format) == cli.FormatJSON {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, versions)
	}

	if len(versions) == 0 {
		fmt.Printf("No policy history for %s\n", policyFlags.symbol)
		return nil
	}
	for _, p := range versions {
		reason := p.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Printf("v%-4d %s  %-12s  %s\n", p.Version, p.UpdatedAt.Format(time.RFC3339), p.Actor, reason)
	}
	return nil
}
