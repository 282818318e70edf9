package app

import (
	"os"
	"path/filepath"
	"testing"

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

func TestBuild_WiresEveryCollaborator(t *testing.T) {
	cfg := loadTestConfig(t)

	application, err := Build(cfg, "http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	switch {
	case application.Sessions == nil:
		t.Error("Sessions is nil")
	case application.Tokens == nil:
		t.Error("Tokens is nil")
	case application.Receipts == nil:
		t.Error("Receipts is nil")
	case application.ToolRegistry == nil:
		t.Error("ToolRegistry is nil")
	case application.Tracker == nil:
		t.Error("Tracker is nil")
	case application.Dispatcher == nil:
		t.Error("Dispatcher is nil")
	case application.DispatchHTTP == nil:
		t.Error("DispatchHTTP is nil")
	case application.Staging == nil:
		t.Error("Staging is nil")
	case application.Sandboxes == nil:
		t.Error("Sandboxes is nil")
	case application.Invoker == nil:
		t.Error("Invoker is nil")
	case application.Scorer == nil:
		t.Error("Scorer is nil")
	case application.Orchestrator == nil:
		t.Error("Orchestrator is nil")
	case application.Scheduler == nil:
		t.Error("Scheduler is nil")
	}

	if application.Config != cfg {
		t.Error("Config field does not point back to the loaded config")
	}
}

func TestBuild_NoAPIKeyLeavesOpenAIClientNil(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.LLM.APIKey = ""

	if client := newOpenAIClient(cfg.LLM); client != nil {
		t.Error("newOpenAIClient() with no API key, want nil client")
	}
}

func TestBuild_APIKeyConstructsClient(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.LLM.APIKey = "test-key"

	if client := newOpenAIClient(cfg.LLM); client == nil {
		t.Error("newOpenAIClient() with an API key, want non-nil client")
	}
}
