package domain

import (
	"time"

	"github.com/google/uuid"
)

// MinerCitation is one citation a miner attached to its answer, referencing
// a prior tool-call receipt's result by ID. Hydrated fields (URL/Note) are
// populated from the receipt during orchestration, never trusted verbatim
// from the miner's submission.
type MinerCitation struct {
	URL       string  `json:"url,omitempty"`
	Note      *string `json:"note,omitempty"`
	ReceiptID string  `json:"receipt_id"`
	ResultID  string  `json:"result_id"`
}

// MinerAnswer is the miner agent's raw verdict submission.
type MinerAnswer struct {
	Verdict       int             `json:"verdict"`
	Justification string          `json:"justification"`
	Citations     []MinerCitation `json:"citations"`
}

// MinerEvaluation binds a miner's answer to the claim/session/candidate it
// was produced for.
type MinerEvaluation struct {
	EvaluationID uuid.UUID    `json:"evaluation_id"`
	SessionID    uuid.UUID    `json:"session_id"`
	UID          int          `json:"uid"`
	ClaimID      string       `json:"claim_id"`
	Rubric       Rubric       `json:"rubric"`
	MinerAnswer  MinerAnswer  `json:"miner_answer"`
	CompletedAt  time.Time    `json:"completed_at"`
}

// EvaluationScore is the additive scoring outcome: up to 0.5 for verdict
// match plus up to 0.5 for the grader's support judgment.
type EvaluationScore struct {
	VerdictScore      float64  `json:"verdict_score"`
	SupportScore      float64  `json:"support_score"`
	JustificationPass bool     `json:"justification_pass"`
	FailedCitationIDs []string `json:"failed_citation_ids,omitempty"`
	GraderRationale   string   `json:"grader_rationale"`
}

// Total is the sum of the two weighted component scores.
func (s EvaluationScore) Total() float64 {
	return s.VerdictScore + s.SupportScore
}

// TokenUsageSummary is the closeout summary of a session's LLM token spend,
// grounded on EntrypointInvocationResult / TokenUsageSummary in the
// reference evaluate_criterion.py.
type TokenUsageSummary struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FromUsage derives a TokenUsageSummary by summing LLM usage totals across
// every provider/model pair tracked in a session's usage.
func TokenUsageSummaryFromUsage(usage SessionUsage) TokenUsageSummary {
	var summary TokenUsageSummary
	for _, models := range usage.LLMUsageTotals {
		for _, totals := range models {
			summary.PromptTokens += totals.PromptTokens
			summary.CompletionTokens += totals.CompletionTokens
			summary.TotalTokens += totals.TotalTokens
		}
	}
	return summary
}

// ToolUsageSummary totals a session's priced tool-call receipts into the
// per-search and per-LLM dollar costs spec §4.9 step 5 requires alongside
// the token-count summary, plus a per-tool cost breakdown.
func ToolUsageSummary(receipts []Receipt) map[string]any {
	var searchCostUSD, llmCostUSD float64
	byTool := make(map[string]float64)

	for _, r := range receipts {
		if r.Metadata.CostUSD == nil {
			continue
		}
		cost := *r.Metadata.CostUSD
		byTool[r.Tool] += cost
		if IsLLMTool(r.Tool) {
			llmCostUSD += cost
		} else {
			searchCostUSD += cost
		}
	}

	return map[string]any{
		"search_cost_usd":  searchCostUSD,
		"llm_cost_usd":     llmCostUSD,
		"by_tool_cost_usd": byTool,
	}
}

// EvaluationOutcome is the full result of evaluating one (candidate, claim)
// pair: the miner's evaluation, its score, the tool-call receipts it
// produced, and usage summaries for the batch report.
type EvaluationOutcome struct {
	Evaluation     MinerEvaluation   `json:"evaluation"`
	Score          EvaluationScore   `json:"score"`
	ToolReceipts   []Receipt         `json:"tool_receipts"`
	Usage          TokenUsageSummary `json:"usage"`
	TotalToolUsage map[string]any    `json:"total_tool_usage"`
	// ErrorCode is set instead of Evaluation/Score when the candidate could
	// not be evaluated at all (agent_unavailable, sandbox_start_failed).
	ErrorCode string `json:"error_code,omitempty"`
}
