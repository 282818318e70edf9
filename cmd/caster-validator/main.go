// Command caster-validator runs the decentralized agent-evaluation
// validator: the tool dispatch HTTP server candidates' sandboxed agents
// call back into, and the batch scheduler that drives candidates through a
// set of claims. Grounded on the teacher's cmd/nexus cobra command tree.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "caster-validator",
		Short: "Caster validator - sandboxed agent evaluation runtime",
		Long: `caster-validator runs a subnet validator's claim-evaluation pipeline:
it stages miner agent artifacts, launches one hardened sandbox per
candidate, dispatches the candidate's tool calls against a governed
budget, and scores the resulting verdicts against curated reference
answers.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildBatchRunCmd(),
		buildHealthcheckCmd(),
	)
	return rootCmd
}
