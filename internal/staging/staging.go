// Package staging atomically writes miner-submitted agent artifacts to a
// shared, content-addressed directory the Sandbox Manager mounts read-only
// into each candidate's container (spec §6, "Persisted state layout").
// Grounded on the teacher's config loader's temp-file-then-rename pattern
// (internal/config/loader.go's handling of included files) generalized
// here to binary artifact staging with content-hash deduplication.
package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"plugin"
)

// Store manages the on-disk layout {state_dir}/platform_agents/{sha256_hex}/agent.py
// plus a sibling agent.sha256 text file. The ".py" suffix is kept verbatim
// from the platform's artifact-naming convention even though content here
// is a compiled Go plugin (.so) in this runtime's redesign — see DESIGN.md.
type Store struct {
	root string
}

// New builds a Store rooted at {state_dir}/platform_agents.
func New(stateDir string) *Store {
	return &Store{root: filepath.Join(stateDir, "platform_agents")}
}

// ErrInvalidArtifact indicates the staged bytes failed the parse check
// (could not be opened as a Go plugin) before being committed.
var ErrInvalidArtifact = fmt.Errorf("staging: artifact failed parse check")

// Stage writes content to its content-addressed path, deduplicating on
// sha-256. It writes to a temp file in the same directory then renames,
// so concurrent stagers for the same hash never observe a partial file.
// It returns the final agent path and confirms the declared hash matches.
func (s *Store) Stage(content []byte, declaredSHA256 string) (agentPath string, err error) {
	sum := sha256.Sum256(content)
	actual := hex.EncodeToString(sum[:])
	if declaredSHA256 != "" && declaredSHA256 != actual {
		return "", fmt.Errorf("staging: content hash %s does not match declared hash %s", actual, declaredSHA256)
	}

	dir := filepath.Join(s.root, actual)
	agentPath = filepath.Join(dir, "agent.py")
	shaPath := filepath.Join(dir, "agent.sha256")

	if _, err := os.Stat(agentPath); err == nil {
		return agentPath, nil // already staged, deduplicated by content hash
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("staging: failed to create directory: %w", err)
	}

	if err := parseCheck(content); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}

	tmp, err := os.CreateTemp(dir, "agent-*.tmp")
	if err != nil {
		return "", fmt.Errorf("staging: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("staging: failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("staging: failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, agentPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("staging: failed to commit agent file: %w", err)
	}
	if err := os.WriteFile(shaPath, []byte(actual), 0o644); err != nil {
		return "", fmt.Errorf("staging: failed to write hash sidecar: %w", err)
	}

	return agentPath, nil
}

// Dir returns the root directory staged artifacts live under, the path the
// Sandbox Manager mounts read-only into each candidate's container.
func (s *Store) Dir() string {
	return s.root
}

// Resolve returns the staged agent path for a content hash without
// re-staging, erroring if it has not been staged yet.
func (s *Store) Resolve(sha256Hex string) (string, error) {
	agentPath := filepath.Join(s.root, sha256Hex, "agent.py")
	if _, err := os.Stat(agentPath); err != nil {
		return "", fmt.Errorf("staging: no staged agent for hash %s: %w", sha256Hex, err)
	}
	return agentPath, nil
}

// parseCheck validates content can at least be opened as a Go plugin
// before it is committed to the shared staging directory. It writes to a
// scratch file since plugin.Open requires a path.
func parseCheck(content []byte) error {
	scratch, err := os.CreateTemp("", "agent-check-*.so")
	if err != nil {
		return err
	}
	defer os.Remove(scratch.Name())
	if _, err := scratch.Write(content); err != nil {
		scratch.Close()
		return err
	}
	if err := scratch.Close(); err != nil {
		return err
	}
	_, err = plugin.Open(scratch.Name())
	return err
}
