package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/budget"
	"github.com/haasonsaas/nexus/internal/domain"
	"github.com/haasonsaas/nexus/internal/receiptlog"
	"github.com/haasonsaas/nexus/internal/sessionreg"
	"github.com/haasonsaas/nexus/internal/tools"
)

// fakeSearchTool is a minimal search_web-shaped handler for testing the
// dispatcher's pricing, receipt, and budget-rejection paths without pulling
// in a real HTTP-backed search tool.
type fakeSearchTool struct {
	resultCount int
	err         error
}

func (fakeSearchTool) Name() string                      { return "search_web" }
func (fakeSearchTool) ResultPolicy() domain.ResultPolicy { return domain.PolicyReferenceable }

func (f fakeSearchTool) Invoke(_ context.Context, _ map[string]any) (tools.Output, error) {
	if f.err != nil {
		return tools.Output{}, f.err
	}
	results := make([]domain.SearchToolResult, f.resultCount)
	for i := range results {
		results[i] = domain.SearchToolResult{
			ToolResult: domain.ToolResult{Index: i, ResultID: "result-" + string(rune('a'+i))},
			URL:        "https://example.com",
		}
	}
	return tools.Output{Payload: map[string]any{"ok": true}, Results: results}, nil
}

func newTestDispatcher(t *testing.T, handlers ...tools.Handler) (*Dispatcher, *sessionreg.Registry, *sessionreg.TokenRegistry, *receiptlog.Log) {
	t.Helper()
	sessions := sessionreg.NewRegistry()
	tokens := sessionreg.NewTokenRegistry()
	registry := tools.NewRegistry(handlers...)
	tracker := budget.NewTracker(nil)
	receipts := receiptlog.New()
	return New(sessions, tokens, registry, tracker, receipts), sessions, tokens, receipts
}

func issueSessionAndToken(t *testing.T, sessions *sessionreg.Registry, tokens *sessionreg.TokenRegistry, budgetUSD float64) (domain.Session, string) {
	t.Helper()
	now := time.Now()
	session, err := sessions.Issue(1, now, time.Minute, budgetUSD)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	const token = "test-token"
	tokens.Issue(session.ID, token, 4)
	return session, token
}

func TestExecute_UnknownSession(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t, tools.TestTool{})
	_, err := d.Execute(context.Background(), Invocation{SessionID: uuid.New(), Tool: "test_tool"})
	if err != ErrSessionNotFound {
		t.Errorf("Execute() error = %v, want ErrSessionNotFound", err)
	}
}

func TestExecute_TokenMismatch(t *testing.T) {
	d, sessions, tokens, _ := newTestDispatcher(t, tools.TestTool{})
	session, _ := issueSessionAndToken(t, sessions, tokens, 1.0)

	_, err := d.Execute(context.Background(), Invocation{SessionID: session.ID, Token: "wrong", Tool: "test_tool"})
	if err != ErrTokenMismatch {
		t.Errorf("Execute() error = %v, want ErrTokenMismatch", err)
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	d, sessions, tokens, _ := newTestDispatcher(t, tools.TestTool{})
	session, token := issueSessionAndToken(t, sessions, tokens, 1.0)

	_, err := d.Execute(context.Background(), Invocation{SessionID: session.ID, Token: token, Tool: "nonexistent"})
	if err != domain.ErrUnknownTool {
		t.Errorf("Execute() error = %v, want ErrUnknownTool", err)
	}
}

func TestExecute_Success_RecordsReceiptWithResults(t *testing.T) {
	d, sessions, tokens, receipts := newTestDispatcher(t, fakeSearchTool{resultCount: 2})
	session, token := issueSessionAndToken(t, sessions, tokens, 1.0)

	result, err := d.Execute(context.Background(), Invocation{SessionID: session.ID, Token: token, Tool: "search_web"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.ResultPolicy != domain.PolicyReferenceable {
		t.Errorf("ResultPolicy = %v, want referenceable", result.ResultPolicy)
	}
	if len(result.Results) != 2 {
		t.Fatalf("Results = %d, want 2", len(result.Results))
	}

	receipt, ok := receipts.Get(result.ReceiptID)
	if !ok {
		t.Fatal("expected receipt to be recorded")
	}
	if receipt.Outcome != domain.OutcomeOK {
		t.Errorf("receipt.Outcome = %v, want ok", receipt.Outcome)
	}
	if len(receipt.Metadata.Results) != 2 {
		t.Fatalf("receipt.Metadata.Results = %d, want 2 (citation hydration depends on this)", len(receipt.Metadata.Results))
	}
	if receipt.Metadata.Results[0].ResultID != "result-a" {
		t.Errorf("receipt.Metadata.Results[0].ResultID = %q, want result-a", receipt.Metadata.Results[0].ResultID)
	}
	if receipt.Metadata.ResultPolicy != domain.PolicyReferenceable {
		t.Errorf("receipt.Metadata.ResultPolicy = %v, want referenceable", receipt.Metadata.ResultPolicy)
	}

	// Budget should have been debited for a search_web call.
	updated, _ := sessions.Get(session.ID)
	if updated.Usage.SpentUSD <= 0 {
		t.Error("expected a nonzero charge to be applied to session usage")
	}
}

func TestExecute_ToolError_RecordsProviderErrorReceipt(t *testing.T) {
	d, sessions, tokens, receipts := newTestDispatcher(t, fakeSearchTool{err: errors.New("boom")})
	session, token := issueSessionAndToken(t, sessions, tokens, 1.0)

	_, err := d.Execute(context.Background(), Invocation{SessionID: session.ID, Token: token, Tool: "search_web"})
	if err == nil {
		t.Fatal("expected Execute to return an error when the handler fails")
	}

	sessionReceipts := receipts.BySession(session.ID)
	if len(sessionReceipts) != 1 {
		t.Fatalf("expected 1 receipt recorded, got %d", len(sessionReceipts))
	}
	if sessionReceipts[0].Outcome != domain.OutcomeProviderError {
		t.Errorf("Outcome = %v, want provider_error", sessionReceipts[0].Outcome)
	}
}

func TestExecute_BudgetExceeded(t *testing.T) {
	d, sessions, tokens, _ := newTestDispatcher(t, fakeSearchTool{resultCount: 1})
	session, token := issueSessionAndToken(t, sessions, tokens, 0.0001) // smaller than one search_web call

	_, err := d.Execute(context.Background(), Invocation{SessionID: session.ID, Token: token, Tool: "search_web"})
	if !errors.Is(err, budget.ErrBudgetExceeded) {
		t.Errorf("Execute() error = %v, want budget.ErrBudgetExceeded", err)
	}

	updated, _ := sessions.Get(session.ID)
	if updated.Usage.SpentUSD != 0 {
		t.Errorf("SpentUSD = %v, want 0 (rejected charge must not be applied)", updated.Usage.SpentUSD)
	}
}

func TestExecute_InactiveSessionRejected(t *testing.T) {
	d, sessions, tokens, _ := newTestDispatcher(t, tools.TestTool{})
	session, token := issueSessionAndToken(t, sessions, tokens, 1.0)
	sessions.Save(session.MarkCompleted())

	_, err := d.Execute(context.Background(), Invocation{SessionID: session.ID, Token: token, Tool: "test_tool"})
	if err == nil {
		t.Error("expected Execute to reject a completed session")
	}
}
