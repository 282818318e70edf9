package tools

import (
	"context"
	"fmt"

	"github.com/haasonsaas/nexus/internal/domain"
)

// TestTool is a LOG_ONLY echo tool used by integration tests and by miner
// agents during development to confirm the dispatch path end-to-end.
type TestTool struct{}

func (TestTool) Name() string                      { return "test_tool" }
func (TestTool) ResultPolicy() domain.ResultPolicy { return domain.PolicyLogOnly }

func (TestTool) Invoke(_ context.Context, args map[string]any) (Output, error) {
	return Output{Payload: map[string]any{"echo": args}}, nil
}

// ToolingInfo reports the tool names and policies available to the caller,
// letting a miner agent introspect its own capability surface.
type ToolingInfo struct {
	registry *Registry
}

// NewToolingInfo builds a tooling_info handler that reports on registry.
func NewToolingInfo(registry *Registry) *ToolingInfo {
	return &ToolingInfo{registry: registry}
}

func (ToolingInfo) Name() string                      { return "tooling_info" }
func (ToolingInfo) ResultPolicy() domain.ResultPolicy { return domain.PolicyLogOnly }

func (t *ToolingInfo) Invoke(_ context.Context, _ map[string]any) (Output, error) {
	entries := make([]map[string]any, 0, len(domain.ToolNames))
	for name := range domain.ToolNames {
		policy := domain.PolicyLogOnly
		if domain.IsSearchTool(name) {
			policy = domain.PolicyReferenceable
		}
		entries = append(entries, map[string]any{
			"name":   name,
			"policy": string(policy),
		})
	}
	return Output{Payload: map[string]any{"tools": entries}}, nil
}

// requireStringArg extracts a required string argument, erroring with the
// tool's name for a clearer dispatcher-side log line.
func requireStringArg(tool string, args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s: missing required argument %q", tool, key)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%s: argument %q must be a non-empty string", tool, key)
	}
	return value, nil
}
