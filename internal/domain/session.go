// Package domain holds the core value types shared across the validator
// runtime: sessions, tool-call receipts, claims, batches, and miner
// evaluation outcomes. Types here are immutable where the reference
// implementation treats them as immutable (copy-on-write updates via
// With*/Mark* methods), grounded on caster_commons.domain.session and
// caster_commons.domain.tool_call.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionExhausted SessionStatus = "exhausted"
	SessionTimedOut  SessionStatus = "timed_out"
	SessionError     SessionStatus = "error"
)

// LLMUsageTotals accumulates prompt/completion/reasoning token counts and
// call count for one (provider, model) pair.
type LLMUsageTotals struct {
	CallCount        int `json:"call_count"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	ReasoningTokens  int `json:"reasoning_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the fieldwise sum of two totals. A nil totals value behaves
// as the zero value, mirroring the Python "None + x = x" accumulation rule
// used when folding retry-attempt usage into a session.
func (t LLMUsageTotals) Add(other LLMUsageTotals) LLMUsageTotals {
	return LLMUsageTotals{
		CallCount:        t.CallCount + other.CallCount,
		PromptTokens:     t.PromptTokens + other.PromptTokens,
		CompletionTokens: t.CompletionTokens + other.CompletionTokens,
		ReasoningTokens:  t.ReasoningTokens + other.ReasoningTokens,
		TotalTokens:      t.TotalTokens + other.TotalTokens,
	}
}

// SessionUsage tracks spend and LLM token usage accrued against a session's
// budget. Updates always return a new value; callers replace the session's
// usage field rather than mutate it in place.
type SessionUsage struct {
	BudgetUSD        float64                              `json:"budget_usd"`
	SpentUSD         float64                               `json:"spent_usd"`
	ToolCallCount    int                                  `json:"tool_call_count"`
	LLMUsageTotals   map[string]map[string]LLMUsageTotals  `json:"llm_usage_totals"`
}

// NewSessionUsage returns a zeroed usage tracker for the given budget.
func NewSessionUsage(budgetUSD float64) SessionUsage {
	return SessionUsage{
		BudgetUSD:      budgetUSD,
		LLMUsageTotals: map[string]map[string]LLMUsageTotals{},
	}
}

// RemainingUSD is the budget headroom left in this session.
func (u SessionUsage) RemainingUSD() float64 {
	remaining := u.BudgetUSD - u.SpentUSD
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WouldExceed reports whether spending costUSD on top of the current spend
// would exceed the session budget.
func (u SessionUsage) WouldExceed(costUSD float64) bool {
	return u.SpentUSD+costUSD > u.BudgetUSD+1e-9
}

// WithToolSpend returns a copy of u with costUSD added to spend and the
// call counter incremented, and with provider/model LLM usage folded in
// when llmUsage is non-nil.
func (u SessionUsage) WithToolSpend(costUSD float64, provider, model string, llmUsage *LLMUsageTotals) SessionUsage {
	next := u.clone()
	next.SpentUSD += costUSD
	next.ToolCallCount++
	if llmUsage != nil && provider != "" && model != "" {
		models, ok := next.LLMUsageTotals[provider]
		if !ok {
			models = map[string]LLMUsageTotals{}
		}
		models[model] = models[model].Add(*llmUsage)
		next.LLMUsageTotals[provider] = models
	}
	return next
}

func (u SessionUsage) clone() SessionUsage {
	cloned := SessionUsage{
		BudgetUSD:      u.BudgetUSD,
		SpentUSD:       u.SpentUSD,
		ToolCallCount:  u.ToolCallCount,
		LLMUsageTotals: make(map[string]map[string]LLMUsageTotals, len(u.LLMUsageTotals)),
	}
	for provider, models := range u.LLMUsageTotals {
		copied := make(map[string]LLMUsageTotals, len(models))
		for model, totals := range models {
			copied[model] = totals
		}
		cloned.LLMUsageTotals[provider] = copied
	}
	return cloned
}

// Session is an active or closed tool-call session scoped to one
// (candidate uid, claim) evaluation. Transition methods (WithUsage,
// MarkCompleted, MarkExhausted, MarkTimedOut, MarkError) return a new
// Session value; the registry stores whichever copy callers commit.
type Session struct {
	ID        uuid.UUID     `json:"id"`
	UID       int           `json:"uid"`
	IssuedAt  time.Time     `json:"issued_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	Status    SessionStatus `json:"status"`
	Usage     SessionUsage  `json:"usage"`
}

var (
	ErrInvalidUID       = errors.New("session uid must be > 0")
	ErrInvalidExpiry    = errors.New("session expires_at must be after issued_at")
	ErrSessionNotActive = errors.New("session is not active")
)

// NewSession constructs a Session in the Active state, validating the
// invariants the reference implementation enforces at construction time:
// uid must be positive and expiry must be strictly after issuance.
func NewSession(uid int, issuedAt, expiresAt time.Time, budgetUSD float64) (Session, error) {
	if uid <= 0 {
		return Session{}, ErrInvalidUID
	}
	if !expiresAt.After(issuedAt) {
		return Session{}, ErrInvalidExpiry
	}
	return Session{
		ID:        uuid.New(),
		UID:       uid,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Status:    SessionActive,
		Usage:     NewSessionUsage(budgetUSD),
	}, nil
}

// IsActive reports whether the session can accept further tool calls as of
// now: status must be Active and now must not be past ExpiresAt.
func (s Session) IsActive(now time.Time) bool {
	return s.Status == SessionActive && !now.After(s.ExpiresAt)
}

// WithUsage returns a copy of s with Usage replaced.
func (s Session) WithUsage(usage SessionUsage) Session {
	s.Usage = usage
	return s
}

// MarkCompleted returns a copy of s transitioned to Completed.
func (s Session) MarkCompleted() Session {
	s.Status = SessionCompleted
	return s
}

// MarkExhausted returns a copy of s transitioned to Exhausted (budget used up).
func (s Session) MarkExhausted() Session {
	s.Status = SessionExhausted
	return s
}

// MarkTimedOut returns a copy of s transitioned to TimedOut.
func (s Session) MarkTimedOut() Session {
	s.Status = SessionTimedOut
	return s
}

// MarkError returns a copy of s transitioned to Error.
func (s Session) MarkError() Session {
	s.Status = SessionError
	return s
}

// Token is an opaque per-session credential handed to the sandboxed miner
// agent. Only its hash is stored by the registry; verification happens via
// constant-time comparison of the presented raw value against the hash.
type Token struct {
	SessionID uuid.UUID
	Hash      [32]byte
	// Concurrency is the number of tool calls this token may have in
	// flight simultaneously, enforced by a semaphore in the registry.
	Concurrency int
}

func (e *SessionValidationError) Error() string {
	return fmt.Sprintf("session %s: %s", e.SessionID, e.Reason)
}

// SessionValidationError reports why a session failed a precondition check
// (not found, expired, wrong status) during tool dispatch.
type SessionValidationError struct {
	SessionID uuid.UUID
	Reason    string
}
