// Package workerproc implements the Sandbox Worker (spec §4.7): the
// in-container process that forks a child per call, installs a seccomp
// filter denying task-creation syscalls in the child, loads the staged
// agent, and invokes its registered entrypoint with a host-bound tool
// proxy. Grounded on the teacher's internal/agent/tool_exec.go dispatch
// shape (lookup-by-name, typed error results) and internal/tools/sandbox's
// process-isolation conventions, redesigned from Python's os.fork +
// coroutine model to a self-re-exec child process plus an in-process Go
// plugin load, per spec §9's "context-local tool proxy" note for
// languages without thread-locals: the proxy is passed explicitly into
// the entrypoint call rather than resolved through ambient state.
package workerproc

import (
	"context"
	"fmt"
	"plugin"
)

// EntrypointFunc is the shape an agent plugin registers under a name. ctx
// carries the per-call wall-clock deadline; proxy is the child's bound
// connection back to the host's tool dispatcher.
type EntrypointFunc func(ctx context.Context, payload, feedContext map[string]any, proxy ToolProxy) (Verdict, error)

// Verdict is the structured result an entrypoint returns, matching the
// sandbox_result shape the Evaluation Orchestrator expects (spec §4.9).
type Verdict struct {
	Verdict       int        `json:"verdict"`
	Justification string     `json:"justification"`
	Citations     []Citation `json:"citations"`
}

// Citation is a miner-supplied reference to a previously recorded receipt
// result; the orchestrator hydrates or drops it.
type Citation struct {
	ReceiptID string `json:"receipt_id"`
	ResultID  string `json:"result_id"`
}

// AgentPlugin is the symbol every staged agent artifact must export: a
// function returning its named entrypoints.
type AgentPlugin func() map[string]EntrypointFunc

// ErrMissingEntrypoint is returned when the requested entrypoint name is
// not registered by the loaded agent.
type ErrMissingEntrypoint struct {
	Name string
}

func (e *ErrMissingEntrypoint) Error() string {
	return fmt.Sprintf("entrypoint %q is not registered by this agent", e.Name)
}

// LoadAgent opens the staged plugin at path and resolves its "Entrypoints"
// exported symbol. This doubles as the "preload hook" step of spec §4.7
// step 3.
func LoadAgent(path string) (map[string]EntrypointFunc, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("workerproc: failed to load agent plugin: %w", err)
	}
	sym, err := p.Lookup("Entrypoints")
	if err != nil {
		return nil, fmt.Errorf("workerproc: agent plugin does not export Entrypoints: %w", err)
	}
	factory, ok := sym.(func() map[string]EntrypointFunc)
	if !ok {
		return nil, fmt.Errorf("workerproc: agent plugin's Entrypoints has the wrong signature")
	}
	return factory(), nil
}

// Lookup finds name in entrypoints, or returns ErrMissingEntrypoint.
func Lookup(entrypoints map[string]EntrypointFunc, name string) (EntrypointFunc, error) {
	fn, ok := entrypoints[name]
	if !ok {
		return nil, &ErrMissingEntrypoint{Name: name}
	}
	return fn, nil
}
