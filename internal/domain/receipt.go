package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReceiptOutcome is the terminal status of one tool invocation, grounded on
// caster_commons.domain.tool_call.ToolCallOutcome.
type ReceiptOutcome string

const (
	OutcomeOK             ReceiptOutcome = "ok"
	OutcomeProviderError  ReceiptOutcome = "provider_error"
	OutcomeBudgetExceeded ReceiptOutcome = "budget_exceeded"
	OutcomeTimeout        ReceiptOutcome = "timeout"
)

// ResultPolicy controls whether a tool result may later be cited by a miner
// answer (REFERENCEABLE, e.g. search results) or is retained purely for
// audit logging (LOG_ONLY, e.g. llm_chat).
type ResultPolicy string

const (
	PolicyReferenceable ResultPolicy = "referenceable"
	PolicyLogOnly       ResultPolicy = "log_only"
)

// ToolResult is one addressable unit of a tool's response. ResultID is a
// short content-derived handle a miner cites back in its evaluation.
type ToolResult struct {
	Index    int    `json:"index"`
	ResultID string `json:"result_id"`
	Raw      any    `json:"raw"`
}

// SearchToolResult is a ToolResult produced by a search_* tool; Note must be
// either unset or non-empty (an explicitly-empty note is rejected by the
// dispatcher same as the reference implementation rejects it).
type SearchToolResult struct {
	ToolResult
	URL   string  `json:"url"`
	Note  *string `json:"note,omitempty"`
	Title string  `json:"title,omitempty"`
}

// Validate enforces the citation-source invariants: URL is required and a
// supplied Note must not be the empty string.
func (r SearchToolResult) Validate() error {
	if r.URL == "" {
		return errors.New("search result url must not be empty")
	}
	if r.Note != nil && *r.Note == "" {
		return errors.New("search result note must not be an empty string when present")
	}
	return nil
}

// ReceiptMetadata records the inputs/outputs of a tool call for auditing
// and for citation hydration during scoring.
type ReceiptMetadata struct {
	RequestHash     string         `json:"request_hash"`
	ResponseHash    string         `json:"response_hash"`
	ResponsePayload any            `json:"response_payload,omitempty"`
	Results         []ToolResult   `json:"results,omitempty"`
	ResultPolicy    ResultPolicy   `json:"result_policy"`
	CostUSD         *float64       `json:"cost_usd,omitempty"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// Receipt is the durable record of one tool invocation within a session.
type Receipt struct {
	ReceiptID string         `json:"receipt_id"`
	SessionID uuid.UUID      `json:"session_id"`
	UID       int            `json:"uid"`
	Tool      string         `json:"tool"`
	IssuedAt  time.Time      `json:"issued_at"`
	Outcome   ReceiptOutcome `json:"outcome"`
	Metadata  ReceiptMetadata `json:"metadata"`
}

// ToolNames enumerates every tool a sandboxed agent may invoke through the
// dispatcher, grounded on spec §4.4.
var ToolNames = map[string]struct{}{
	"test_tool":     {},
	"tooling_info":  {},
	"search_web":    {},
	"search_x":      {},
	"search_ai":     {},
	"llm_chat":      {},
	"search_repo":   {},
	"get_repo_file": {},
	"search_items":  {},
}

// searchToolNames is the subset of ToolNames whose results are citation
// sources (REFERENCEABLE results the scoring service may hydrate).
var searchToolNames = map[string]struct{}{
	"search_web":    {},
	"search_x":      {},
	"search_ai":     {},
	"search_items":  {},
	"search_repo":   {},
	"get_repo_file": {},
}

// llmToolNames is the subset of ToolNames that bill against the session's
// LLM usage totals rather than the flat per-call search pricing.
var llmToolNames = map[string]struct{}{
	"llm_chat": {},
}

// IsSearchTool reports whether tool is one of the search_* tools.
func IsSearchTool(tool string) bool {
	_, ok := searchToolNames[tool]
	return ok
}

// IsLLMTool reports whether tool is billed via LLM token usage.
func IsLLMTool(tool string) bool {
	_, ok := llmToolNames[tool]
	return ok
}

// IsCitationSource reports whether receipts from tool may back a miner
// citation. Only REFERENCEABLE-producing search tools qualify.
func IsCitationSource(tool string) bool {
	return IsSearchTool(tool)
}

// ErrUnknownTool indicates a dispatch request named a tool outside ToolNames.
var ErrUnknownTool = errors.New("unknown tool name")

// ValidateToolName returns ErrUnknownTool if tool is not in ToolNames.
func ValidateToolName(tool string) error {
	if _, ok := ToolNames[tool]; !ok {
		return ErrUnknownTool
	}
	return nil
}
