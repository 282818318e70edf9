package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreDir(t *testing.T) {
	stateDir := t.TempDir()
	store := New(stateDir)

	want := filepath.Join(stateDir, "platform_agents")
	if got := store.Dir(); got != want {
		t.Errorf("Dir() = %q, want %q", got, want)
	}
}

func TestStoreResolve_Missing(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Resolve("deadbeef"); err == nil {
		t.Error("expected an error resolving a hash that was never staged")
	}
}

func TestStoreStage_HashMismatchRejected(t *testing.T) {
	store := New(t.TempDir())
	content := []byte("not a real plugin")

	if _, err := store.Stage(content, "0000000000000000000000000000000000000000000000000000000000000000"); err == nil {
		t.Error("expected Stage to reject a declared hash that does not match the content")
	}
}

// TestStoreStage_DedupesAlreadyStaged exercises the content-addressed
// dedup path: if agent.py already exists at the hash's directory, Stage
// returns it without re-running the plugin parse check, so this test does
// not need a real compiled Go plugin as its fixture content.
func TestStoreStage_DedupesAlreadyStaged(t *testing.T) {
	stateDir := t.TempDir()
	store := New(stateDir)
	content := []byte("fixture agent bytes")
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	dir := filepath.Join(store.Dir(), hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to seed staging dir: %v", err)
	}
	agentPath := filepath.Join(dir, "agent.py")
	if err := os.WriteFile(agentPath, content, 0o644); err != nil {
		t.Fatalf("failed to seed agent.py: %v", err)
	}

	got, err := store.Stage(content, hash)
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if got != agentPath {
		t.Errorf("Stage() = %q, want %q", got, agentPath)
	}

	resolved, err := store.Resolve(hash)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved != agentPath {
		t.Errorf("Resolve() = %q, want %q", resolved, agentPath)
	}
}

func TestStoreStage_EmptyDeclaredHashSkipsMatchCheck(t *testing.T) {
	stateDir := t.TempDir()
	store := New(stateDir)
	content := []byte("fixture agent bytes")
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	dir := filepath.Join(store.Dir(), hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to seed staging dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "agent.py"), content, 0o644); err != nil {
		t.Fatalf("failed to seed agent.py: %v", err)
	}

	if _, err := store.Stage(content, ""); err != nil {
		t.Errorf("Stage() with no declared hash = %v, want nil", err)
	}
}
