// Package invoker implements the Entrypoint Invoker (spec §4.8): the host
// side that validates a session/token pair, forwards a call to the
// sandbox's /entry/{name} endpoint, and collects the receipts the tool
// dispatcher recorded during that call. Grounded on the teacher's
// internal/agent/tool_exec.go request/response wrapping pattern, adapted
// from an in-process tool call to an HTTP round trip against a sandboxed
// container.
package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/domain"
	"github.com/haasonsaas/nexus/internal/sandbox"
	"github.com/haasonsaas/nexus/internal/sessionreg"
)

// Request is one invoke() call (spec §4.8).
type Request struct {
	SessionID  uuid.UUID
	Token      string
	UID        int
	Entrypoint string
	Payload    map[string]any
	Context    map[string]any
}

// SandboxInvocationError wraps any failure from the HTTP layer talking to
// the sandbox, carrying enough identity for debugging (spec §4.8).
type SandboxInvocationError struct {
	SessionID  uuid.UUID
	UID        int
	Entrypoint string
	Err        error
}

func (e *SandboxInvocationError) Error() string {
	return fmt.Sprintf("sandbox invocation failed for session %s uid %d entrypoint %q: %v", e.SessionID, e.UID, e.Entrypoint, e.Err)
}

func (e *SandboxInvocationError) Unwrap() error { return e.Err }

// ReceiptIndex is queried for all receipts recorded so far under one
// session, so the invoker can return them alongside the sandbox's result.
type ReceiptIndex interface {
	BySession(sessionID uuid.UUID) []domain.Receipt
}

// Result is the sandbox's decoded response plus the receipts accrued
// during this call.
type Result struct {
	SandboxResult map[string]any
	Receipts      []domain.Receipt
}

// Invoker forwards calls to a running sandbox deployment.
type Invoker struct {
	sessions *sessionreg.Registry
	tokens   *sessionreg.TokenRegistry
	receipts ReceiptIndex
}

// New builds an Invoker.
func New(sessions *sessionreg.Registry, tokens *sessionreg.TokenRegistry, receipts ReceiptIndex) *Invoker {
	return &Invoker{sessions: sessions, tokens: tokens, receipts: receipts}
}

// Invoke runs spec §4.8 steps 1-4 against deployment.
func (inv *Invoker) Invoke(ctx context.Context, deployment *sandbox.Deployment, req Request, hostContainerURL string) (Result, error) {
	session, ok := inv.sessions.Get(req.SessionID)
	if !ok {
		return Result{}, &domain.SessionValidationError{SessionID: req.SessionID, Reason: "session not found"}
	}
	if !session.IsActive(time.Now()) {
		return Result{}, &domain.SessionValidationError{SessionID: req.SessionID, Reason: "session is not active"}
	}
	if session.UID != req.UID {
		return Result{}, &domain.SessionValidationError{SessionID: req.SessionID, Reason: "uid does not match session"}
	}
	if !inv.tokens.Verify(req.SessionID, req.Token) {
		return Result{}, &domain.SessionValidationError{SessionID: req.SessionID, Reason: "token mismatch"}
	}

	body, err := json.Marshal(map[string]any{
		"payload": req.Payload,
		"context": req.Context,
	})
	if err != nil {
		return Result{}, &SandboxInvocationError{SessionID: req.SessionID, UID: req.UID, Entrypoint: req.Entrypoint, Err: err}
	}

	url := deployment.BaseURL + "/entry/" + req.Entrypoint
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, &SandboxInvocationError{SessionID: req.SessionID, UID: req.UID, Entrypoint: req.Entrypoint, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-caster-token", req.Token)
	httpReq.Header.Set("x-caster-session-id", req.SessionID.String())
	httpReq.Header.Set("x-caster-host-container-url", hostContainerURL)

	resp, err := deployment.Client().Do(httpReq)
	if err != nil {
		return Result{}, &SandboxInvocationError{SessionID: req.SessionID, UID: req.UID, Entrypoint: req.Entrypoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &SandboxInvocationError{SessionID: req.SessionID, UID: req.UID, Entrypoint: req.Entrypoint, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, &SandboxInvocationError{
			SessionID: req.SessionID, UID: req.UID, Entrypoint: req.Entrypoint,
			Err: fmt.Errorf("sandbox returned status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var decoded struct {
		OK     bool           `json:"ok"`
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, &SandboxInvocationError{SessionID: req.SessionID, UID: req.UID, Entrypoint: req.Entrypoint, Err: err}
	}

	var receipts []domain.Receipt
	if inv.receipts != nil {
		receipts = inv.receipts.BySession(req.SessionID)
	}

	return Result{SandboxResult: decoded.Result, Receipts: receipts}, nil
}
