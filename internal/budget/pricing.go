// Package budget prices tool calls and tracks per-session spend against a
// fixed budget ceiling. The pricing table is grounded verbatim on
// caster_commons.llm.pricing: a deterministic table of per-tool and
// per-model dollar costs, not something read from config.
package budget

import (
	"fmt"

	"github.com/haasonsaas/nexus/internal/domain"
)

// DefaultAllowedToolModels is the set of LLM models the llm_chat tool and
// the grader may bill against. Any other model name is rejected by
// ParseToolModel.
var DefaultAllowedToolModels = []string{
	"openai/gpt-oss-20b",
	"openai/gpt-oss-120b",
}

// searchPricingUSD is the flat per-call cost of a search_web/search_x/
// search_repo/get_repo_file call.
var searchPricingUSD = map[string]float64{
	"search_web":    0.0025,
	"search_x":      0.003,
	"search_repo":   0.002,
	"get_repo_file": 0.0015,
}

const (
	// searchAIPerReferenceableResultUSD prices search_ai by the number of
	// REFERENCEABLE results it returned, not as a flat per-call cost.
	searchAIPerReferenceableResultUSD = 0.004

	// searchItemsPerCallUSD prices search_items (similar feed items) flatly.
	searchItemsPerCallUSD = 0.0025
)

// ModelPricing is the per-million-token cost for one LLM model.
type ModelPricing struct {
	InputPerMillionUSD     float64
	OutputPerMillionUSD    float64
	ReasoningPerMillionUSD float64
}

var modelPricing = map[string]ModelPricing{
	"openai/gpt-oss-20b":  {InputPerMillionUSD: 0.25, OutputPerMillionUSD: 2.0, ReasoningPerMillionUSD: 2.0},
	"openai/gpt-oss-120b": {InputPerMillionUSD: 1.25, OutputPerMillionUSD: 10.0, ReasoningPerMillionUSD: 10.0},
}

// ErrUnknownToolModel indicates a model name outside the allowed tool-model set.
type ErrUnknownToolModel struct {
	Model string
}

func (e *ErrUnknownToolModel) Error() string {
	return fmt.Sprintf("model %q is not an allowed tool model", e.Model)
}

// ParseToolModel validates model against the allowed set and returns it
// unchanged (mirrors caster_commons.llm.pricing.parse_tool_model, which
// normalizes casing/whitespace before matching).
func ParseToolModel(model string, allowed []string) (string, error) {
	if len(allowed) == 0 {
		allowed = DefaultAllowedToolModels
	}
	for _, candidate := range allowed {
		if candidate == model {
			return model, nil
		}
	}
	return "", &ErrUnknownToolModel{Model: model}
}

// PriceLLM prices one llm_chat call given its token usage.
func PriceLLM(model string, usage domain.LLMUsageTotals) (float64, error) {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0, &ErrUnknownToolModel{Model: model}
	}
	cost := float64(usage.PromptTokens)/1_000_000*pricing.InputPerMillionUSD +
		float64(usage.CompletionTokens)/1_000_000*pricing.OutputPerMillionUSD +
		float64(usage.ReasoningTokens)/1_000_000*pricing.ReasoningPerMillionUSD
	return cost, nil
}

// PriceSearch prices a flat-rate search tool call. It must not be called
// for search_ai, which is priced per referenceable result instead.
func PriceSearch(tool string) (float64, error) {
	if tool == "search_ai" {
		return 0, fmt.Errorf("search_ai is priced per referenceable result, not per call")
	}
	if price, ok := searchPricingUSD[tool]; ok {
		return price, nil
	}
	if tool == "search_items" {
		return searchItemsPerCallUSD, nil
	}
	return 0, fmt.Errorf("no flat pricing defined for tool %q", tool)
}

// PriceSearchAI prices a search_ai call by its referenceable result count.
func PriceSearchAI(referenceableResults int) float64 {
	if referenceableResults < 0 {
		referenceableResults = 0
	}
	return float64(referenceableResults) * searchAIPerReferenceableResultUSD
}
