// Package tools implements the fixed set of tool handlers a sandboxed
// miner agent may invoke through the dispatcher (spec §4.4): test_tool,
// tooling_info, search_web, search_x, search_ai, llm_chat, search_repo,
// get_repo_file, and search_items. Each handler returns a normalized
// payload plus, for REFERENCEABLE tools, a list of citable results.
package tools

import (
	"context"

	"github.com/haasonsaas/nexus/internal/domain"
)

// Output is a handler's normalized result, ready for the dispatcher to
// hash, wrap into receipt results, and bill.
type Output struct {
	// Payload is the normalized JSON-safe response body.
	Payload any
	// Results is populated only for REFERENCEABLE tools (search_*).
	Results []domain.SearchToolResult
	// LLMUsage is populated only for llm_chat.
	LLMUsage *domain.LLMUsageTotals
	// LLMProvider/LLMModel identify the billed model for llm_chat.
	LLMProvider string
	LLMModel    string
}

// Handler implements one named tool.
type Handler interface {
	Name() string
	ResultPolicy() domain.ResultPolicy
	Invoke(ctx context.Context, args map[string]any) (Output, error)
}

// Registry maps tool names to their handler implementation.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a registry from the given handlers, keyed by Name().
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Name()] = h
	}
	return r
}

// Lookup returns the handler for name, or false if unregistered.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}
