// Package dispatch implements the Tool Dispatcher (spec §4.3): it validates
// a session and token, acquires a concurrency permit, routes the named tool
// to its handler, prices and applies the call to the session's budget, and
// records a receipt — all as one observable transaction per invocation.
// Grounded on the teacher's internal/agent/tool_exec.go dispatch loop,
// adapted from an in-process agent tool call to an HTTP-exposed,
// session-scoped invocation.
package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/budget"
	"github.com/haasonsaas/nexus/internal/domain"
	"github.com/haasonsaas/nexus/internal/sessionreg"
	"github.com/haasonsaas/nexus/internal/tools"
)

// ErrSessionNotFound is returned when session_id names no known session.
var ErrSessionNotFound = errors.New("session not found")

// ErrTokenMismatch is returned when the presented token fails verification.
var ErrTokenMismatch = errors.New("token mismatch")

// ErrConcurrencyLimitExceeded is returned when a token-scoped permit cannot
// be acquired before ctx is done.
var ErrConcurrencyLimitExceeded = errors.New("concurrency limit exceeded")

// Invocation is one execute() request (spec §4.3).
type Invocation struct {
	SessionID uuid.UUID
	Token     string
	Tool      string
	Args      map[string]any
}

// Result is the dispatcher's response to a successful or budget-rejected
// invocation.
type Result struct {
	ReceiptID       string                     `json:"receipt_id"`
	ResponsePayload any                        `json:"response_payload"`
	Results         []domain.SearchToolResult  `json:"results,omitempty"`
	ResultPolicy    domain.ResultPolicy        `json:"result_policy"`
	BudgetSnapshot  budget.Snapshot            `json:"budget_snapshot"`
	UsageDetails    domain.LLMUsageTotals      `json:"usage_details,omitempty"`
}

// ReceiptSink persists a receipt once a dispatch transaction completes,
// independent of whether the tool call itself succeeded.
type ReceiptSink interface {
	Record(ctx context.Context, receipt domain.Receipt) error
}

// Dispatcher wires the session/token registries, the tool registry, and
// the budget tracker into the single execute() entry point.
type Dispatcher struct {
	sessions *sessionreg.Registry
	tokens   *sessionreg.TokenRegistry
	registry *tools.Registry
	tracker  *budget.Tracker
	receipts ReceiptSink
}

// New builds a Dispatcher.
func New(sessions *sessionreg.Registry, tokens *sessionreg.TokenRegistry, registry *tools.Registry, tracker *budget.Tracker, receipts ReceiptSink) *Dispatcher {
	return &Dispatcher{sessions: sessions, tokens: tokens, registry: registry, tracker: tracker, receipts: receipts}
}

// Execute runs the full dispatch transaction described in spec §4.3.
func (d *Dispatcher) Execute(ctx context.Context, inv Invocation) (Result, error) {
	session, ok := d.sessions.Get(inv.SessionID)
	if !ok {
		return Result{}, ErrSessionNotFound
	}
	if !session.IsActive(time.Now()) {
		return Result{}, &domain.SessionValidationError{SessionID: inv.SessionID, Reason: "session is not active"}
	}
	if !d.tokens.Verify(inv.SessionID, inv.Token) {
		return Result{}, ErrTokenMismatch
	}

	release, acquired := d.tokens.AcquirePermit(inv.SessionID)
	if !acquired {
		return Result{}, ErrConcurrencyLimitExceeded
	}
	defer release()

	handler, ok := d.registry.Lookup(inv.Tool)
	if !ok {
		return Result{}, domain.ErrUnknownTool
	}

	requestHash := hashArgs(inv.Args)
	out, invokeErr := handler.Invoke(ctx, inv.Args)

	outcome := domain.OutcomeOK
	var charge budget.Charge
	var chargeErr error
	if invokeErr != nil {
		outcome = domain.OutcomeProviderError
	} else {
		charge, chargeErr = d.priceCall(inv.Tool, out)
	}

	usage := session.Usage
	if invokeErr == nil && chargeErr == nil {
		updated, applyErr := d.tracker.Apply(usage, charge)
		if applyErr != nil {
			outcome = domain.OutcomeBudgetExceeded
		} else {
			usage = updated
		}
	}

	responseHash := hashPayload(out.Payload)
	costUSD := charge.CostUSD
	receipt := domain.Receipt{
		ReceiptID: uuid.New().String(),
		SessionID: inv.SessionID,
		UID:       session.UID,
		Tool:      inv.Tool,
		IssuedAt:  time.Now(),
		Outcome:   outcome,
		Metadata: domain.ReceiptMetadata{
			RequestHash:     requestHash,
			ResponseHash:    responseHash,
			ResponsePayload: out.Payload,
			Results:         toolResultsOf(out.Results),
			ResultPolicy:    handler.ResultPolicy(),
			CostUSD:         &costUSD,
		},
	}
	if d.receipts != nil {
		_ = d.receipts.Record(ctx, receipt)
	}

	session = session.WithUsage(usage)
	d.sessions.Save(session)

	if invokeErr != nil {
		return Result{}, fmt.Errorf("dispatch: tool %q failed: %w", inv.Tool, invokeErr)
	}
	if outcome == domain.OutcomeBudgetExceeded {
		return Result{
			ReceiptID:      receipt.ReceiptID,
			ResultPolicy:   handler.ResultPolicy(),
			BudgetSnapshot: budget.SnapshotFrom(usage),
		}, budget.ErrBudgetExceeded
	}

	result := Result{
		ReceiptID:       receipt.ReceiptID,
		ResponsePayload: out.Payload,
		Results:         out.Results,
		ResultPolicy:    handler.ResultPolicy(),
		BudgetSnapshot:  budget.SnapshotFrom(usage),
	}
	if out.LLMUsage != nil {
		result.UsageDetails = *out.LLMUsage
	}
	return result, nil
}

// priceCall derives the charge for a completed tool call, per spec §4.3
// step 5: LLM tools bill by token usage, search tools by the per-tool
// pricing entry (search_ai by referenceable result count), everything
// else is free.
func (d *Dispatcher) priceCall(tool string, out tools.Output) (budget.Charge, error) {
	switch {
	case domain.IsLLMTool(tool):
		if out.LLMUsage == nil {
			return budget.Charge{}, nil
		}
		return d.tracker.PriceLLMCall(out.LLMProvider, out.LLMModel, *out.LLMUsage)
	case tool == "search_ai":
		return d.tracker.PriceSearchAICall(len(out.Results)), nil
	case domain.IsSearchTool(tool):
		return d.tracker.PriceSearchCall(tool)
	default:
		return budget.Charge{}, nil
	}
}

// toolResultsOf strips a search tool's output down to the embedded
// ToolResult records a receipt persists for later citation hydration
// (spec §4.9 step 3), discarding the URL/Note/Title fields already
// captured in each result's Raw payload.
func toolResultsOf(results []domain.SearchToolResult) []domain.ToolResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]domain.ToolResult, len(results))
	for i, r := range results {
		out[i] = r.ToolResult
	}
	return out
}

// hashArgs computes the request hash: sha-256 of the sorted-key JSON
// encoding of the invocation's arguments.
func hashArgs(args map[string]any) string {
	return hashPayload(sortedKeysView(args))
}

// hashPayload computes sha-256 of payload's JSON encoding after
// normalizing it to a sorted-key form, so equal payloads hash identically
// regardless of map iteration order.
func hashPayload(payload any) string {
	normalized := normalize(payload)
	encoded, err := json.Marshal(normalized)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", payload))
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// normalize recursively converts payload into a JSON-safe shape per spec
// §4.3 step 7: primitives pass through, maps recurse with string keys,
// slices recurse, byte slices render as <bytes len=N>, everything else is
// stringified.
func normalize(v any) any {
	switch val := v.(type) {
	case nil, bool, string, float64, int, int64:
		return val
	case []byte:
		return fmt.Sprintf("<bytes len=%d>", len(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		encoded, err := json.Marshal(val)
		if err == nil {
			var generic any
			if json.Unmarshal(encoded, &generic) == nil {
				return normalize(generic)
			}
		}
		return fmt.Sprintf("%v", val)
	}
}

// sortedKeysView returns m re-encoded through a map with deterministically
// ordered keys, so hashArgs is stable across Go's randomized map iteration.
func sortedKeysView(m map[string]any) map[string]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]any, len(m))
	for _, k := range keys {
		ordered[k] = m[k]
	}
	return ordered
}
