package workerproc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// ChildArgEnv names the environment variable RunChild reads its job
// payload from, rather than os.Args, to avoid argument-length limits and
// secret-leakage via process listings.
const ChildArgEnv = "CASTER_WORKER_JOB"

// Job is everything the parent hands the child over the pipe: which
// entrypoint to run, the call payload/context, and the credentials the
// child's tool proxy authenticates with.
type Job struct {
	AgentPath string         `json:"agent_path"`
	Entry     string         `json:"entry"`
	Payload   map[string]any `json:"payload"`
	Context   map[string]any `json:"context"`
	HostURL   string         `json:"host_url"`
	SessionID uuid.UUID      `json:"session_id"`
	Token     string         `json:"token"`
}

// ChildResult is written by the child to stdout as a single JSON line:
// exactly one of Verdict or Error is populated.
type ChildResult struct {
	OK       bool     `json:"ok"`
	Verdict  *Verdict `json:"verdict,omitempty"`
	ErrCode  string   `json:"error_code,omitempty"`
	ErrorMsg string   `json:"error,omitempty"`
}

// RunChild is the entry point re-exec'd per call (spec §4.7 step 2-3): it
// reads its Job from ChildArgEnv, installs the seccomp filter so it can no
// longer fork/exec, loads the agent plugin, looks up the entrypoint, runs
// it, and writes exactly one ChildResult line to stdout before exiting.
func RunChild(ctx context.Context) int {
	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()

	raw := os.Getenv(ChildArgEnv)
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		writeResult(writer, ChildResult{ErrCode: "InvalidJob", ErrorMsg: err.Error()})
		return 1
	}

	if err := Install(); err != nil {
		writeResult(writer, ChildResult{ErrCode: "SeccompInstallFailed", ErrorMsg: err.Error()})
		return 1
	}

	entrypoints, err := LoadAgent(job.AgentPath)
	if err != nil {
		writeResult(writer, ChildResult{ErrCode: "PreloadFailed", ErrorMsg: err.Error()})
		return 1
	}

	fn, err := Lookup(entrypoints, job.Entry)
	if err != nil {
		writeResult(writer, ChildResult{ErrCode: "MissingEntrypoint", ErrorMsg: err.Error()})
		return 1
	}

	proxy := &HTTPToolProxy{HostURL: job.HostURL, SessionID: job.SessionID, Token: job.Token}
	verdict, err := fn(ctx, job.Payload, job.Context, proxy)
	if err != nil {
		writeResult(writer, ChildResult{ErrCode: "EntrypointError", ErrorMsg: err.Error()})
		return 1
	}

	writeResult(writer, ChildResult{OK: true, Verdict: &verdict})
	return 0
}

func writeResult(w *bufio.Writer, result ChildResult) {
	encoded, err := json.Marshal(result)
	if err != nil {
		fmt.Fprintf(w, `{"ok":false,"error_code":"EncodingFailed","error":%q}`+"\n", err.Error())
		return
	}
	w.Write(encoded)
	w.WriteString("\n")
}
