package budget

import (
	"errors"

	"github.com/haasonsaas/nexus/internal/domain"
)

// ErrBudgetExceeded is returned when a priced tool call would push a
// session's spend past its budget ceiling; the dispatcher maps this to a
// BUDGET_EXCEEDED receipt outcome rather than executing the tool.
var ErrBudgetExceeded = errors.New("session budget exceeded")

// Charge describes one priced tool call awaiting application to a
// session's usage.
type Charge struct {
	CostUSD  float64
	Provider string
	Model    string
	LLMUsage *domain.LLMUsageTotals
}

// Tracker prices tool calls and applies them to session usage snapshots.
// It holds no state of its own; SessionUsage values carry the running
// totals, and Apply returns a new usage value rather than mutating one.
type Tracker struct {
	allowedToolModels []string
}

// NewTracker builds a Tracker that accepts the given allow-listed tool
// models (empty falls back to DefaultAllowedToolModels).
func NewTracker(allowedToolModels []string) *Tracker {
	return &Tracker{allowedToolModels: allowedToolModels}
}

// PriceSearchCall prices a search_web/search_x/search_items call.
func (t *Tracker) PriceSearchCall(tool string) (Charge, error) {
	cost, err := PriceSearch(tool)
	if err != nil {
		return Charge{}, err
	}
	return Charge{CostUSD: cost}, nil
}

// PriceSearchAICall prices a search_ai call from its referenceable result count.
func (t *Tracker) PriceSearchAICall(referenceableResults int) Charge {
	return Charge{CostUSD: PriceSearchAI(referenceableResults)}
}

// PriceLLMCall prices an llm_chat call, validating the model is allowed.
func (t *Tracker) PriceLLMCall(provider, model string, usage domain.LLMUsageTotals) (Charge, error) {
	validated, err := ParseToolModel(model, t.allowedToolModels)
	if err != nil {
		return Charge{}, err
	}
	cost, err := PriceLLM(validated, usage)
	if err != nil {
		return Charge{}, err
	}
	return Charge{CostUSD: cost, Provider: provider, Model: validated, LLMUsage: &usage}, nil
}

// Apply checks charge against the session's remaining budget and, if it
// fits, returns the updated usage. If it would exceed the budget, it
// returns ErrBudgetExceeded and the usage is left unchanged by the caller
// (the caller must not commit the returned zero value).
func (t *Tracker) Apply(usage domain.SessionUsage, charge Charge) (domain.SessionUsage, error) {
	if usage.WouldExceed(charge.CostUSD) {
		return domain.SessionUsage{}, ErrBudgetExceeded
	}
	return usage.WithToolSpend(charge.CostUSD, charge.Provider, charge.Model, charge.LLMUsage), nil
}

// Snapshot is the budget view returned alongside a tool result so the
// sandboxed agent can observe its remaining headroom.
type Snapshot struct {
	SessionBudgetUSD          float64 `json:"session_budget_usd"`
	SessionUsedBudgetUSD      float64 `json:"session_used_budget_usd"`
	SessionRemainingBudgetUSD float64 `json:"session_remaining_budget_usd"`
}

// SnapshotFrom builds a Snapshot from a session's current usage.
func SnapshotFrom(usage domain.SessionUsage) Snapshot {
	return Snapshot{
		SessionBudgetUSD:          usage.BudgetUSD,
		SessionUsedBudgetUSD:      usage.SpentUSD,
		SessionRemainingBudgetUSD: usage.RemainingUSD(),
	}
}
