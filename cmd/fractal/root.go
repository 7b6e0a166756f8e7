package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fractal",
	Short: "Fractal - policy governance engine for forecast scoring",
	Long: `Fractal governs the evolution of forecast scoring policies.

It tracks forecast outcomes against realized price action, computes
learning vectors over resolved samples, and turns them into weight
proposals that pass through an explicit lifecycle:

  - Proposal creation gated on sample counts and calibration quality
  - Governance lock requiring live evidence before any apply
  - Shadow-replay simulation of candidate weights before activation
  - Append-only application ledger with hash-chained rollback`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
