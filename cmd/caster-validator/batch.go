package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/app"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/domain"
	"github.com/haasonsaas/nexus/internal/scheduler"
)

// batchSpec is the on-disk shape a batch-run invocation reads: the set of
// candidates to evaluate and the claims to run each of them against.
type batchSpec struct {
	BatchID    string             `json:"batch_id"`
	Candidates []candidateSpec    `json:"candidates"`
	Claims     []domain.Claim     `json:"claims"`
}

type candidateSpec struct {
	UID            int    `json:"uid"`
	ArtifactSHA256 string `json:"artifact_sha256"`
	ArtifactPath   string `json:"artifact_path,omitempty"`
	Entrypoint     string `json:"entrypoint,omitempty"`
}

func buildBatchRunCmd() *cobra.Command {
	var (
		configPath       string
		batchPath        string
		hostContainerURL string
	)

	cmd := &cobra.Command{
		Use:   "batch-run",
		Short: "Run a batch of candidates against a set of claims",
		Long: `Read a batch specification (candidates + claims) from a JSON file,
stage any unstaged candidate artifacts, and run the batch scheduler:
one hardened sandbox per candidate, every claim in the batch evaluated
against it in turn.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runBatch(cmd.Context(), cfg, batchPath, hostContainerURL, cmd)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "caster-validator.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&batchPath, "batch", "b", "", "Path to a batch specification JSON file")
	cmd.Flags().StringVar(&hostContainerURL, "host-container-url", "", "Address sandboxed agents use to reach this server")
	_ = cmd.MarkFlagRequired("batch")
	return cmd
}

func runBatch(ctx context.Context, cfg *config.Config, batchPath, hostContainerURL string, cmd *cobra.Command) error {
	raw, err := os.ReadFile(batchPath)
	if err != nil {
		return fmt.Errorf("failed to read batch file: %w", err)
	}
	var spec batchSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("failed to parse batch file: %w", err)
	}

	application, err := app.Build(cfg, hostContainerURL)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	batch := scheduler.Batch{BatchID: spec.BatchID, Claims: spec.Claims}
	for _, c := range spec.Candidates {
		agentPath := c.ArtifactPath
		if agentPath == "" {
			resolved, err := application.Staging.Resolve(c.ArtifactSHA256)
			if err != nil {
				return fmt.Errorf("failed to resolve staged artifact for uid %d: %w", c.UID, err)
			}
			agentPath = resolved
		}
		entrypoint := c.Entrypoint
		if entrypoint == "" {
			entrypoint = cfg.Scheduler.Entrypoint
		}
		batch.Candidates = append(batch.Candidates, scheduler.Candidate{
			UID:        c.UID,
			AgentPath:  agentPath,
			StagingDir: application.Staging.Dir(),
			Entrypoint: entrypoint,
		})
	}

	result, err := application.Scheduler.Run(ctx, batch)
	if err != nil {
		return fmt.Errorf("batch run failed: %w", err)
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode batch result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
