package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/config"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "caster-validator.yaml")
	yaml := "version: 1\nstaging:\n  state_dir: " + filepath.Join(dir, "staging") + "\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestRunBatch_MissingFileErrors(t *testing.T) {
	cfg := loadTestConfig(t)
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := runBatch(context.Background(), cfg, filepath.Join(t.TempDir(), "missing.json"), "", cmd)
	if err == nil {
		t.Fatal("expected an error for a missing batch file")
	}
}

func TestRunBatch_InvalidJSONErrors(t *testing.T) {
	cfg := loadTestConfig(t)
	dir := t.TempDir()
	batchPath := filepath.Join(dir, "batch.json")
	if err := os.WriteFile(batchPath, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := runBatch(context.Background(), cfg, batchPath, "", cmd)
	if err == nil {
		t.Fatal("expected an error for a malformed batch file")
	}
}

// Without a reachable docker daemon, the scheduler synthesizes zero-score
// failures per claim rather than erroring the whole batch (see
// internal/scheduler's own tests) - runBatch should surface that result as
// JSON rather than failing.
func TestRunBatch_SynthesizesFailuresWithoutDocker(t *testing.T) {
	cfg := loadTestConfig(t)
	dir := t.TempDir()

	agentPath := filepath.Join(dir, "agent.py")
	if err := os.WriteFile(agentPath, []byte("# agent"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	spec := batchSpec{
		BatchID: "batch-1",
		Candidates: []candidateSpec{
			{UID: 1, ArtifactPath: agentPath, Entrypoint: "evaluate"},
		},
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	batchPath := filepath.Join(dir, "batch.json")
	if err := os.WriteFile(batchPath, raw, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	if err := runBatch(context.Background(), cfg, batchPath, "", cmd); err != nil {
		t.Fatalf("runBatch() error = %v, want nil (scheduler synthesizes per-claim failures)", err)
	}
	if out.Len() == 0 {
		t.Error("expected runBatch to write a JSON result to stdout")
	}
}
