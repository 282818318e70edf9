package budget

import (
	"testing"

	"github.com/haasonsaas/nexus/internal/domain"
)

func TestParseToolModel(t *testing.T) {
	allowed := []string{"openai/gpt-oss-20b", "openai/gpt-oss-120b"}

	if got, err := ParseToolModel("openai/gpt-oss-20b", allowed); err != nil || got != "openai/gpt-oss-20b" {
		t.Errorf("ParseToolModel(allowed) = (%q, %v), want (openai/gpt-oss-20b, nil)", got, err)
	}

	if _, err := ParseToolModel("not-a-model", allowed); err == nil {
		t.Error("expected error for a model outside the allow-list")
	}

	// Empty allow-list falls back to DefaultAllowedToolModels.
	if _, err := ParseToolModel("openai/gpt-oss-20b", nil); err != nil {
		t.Errorf("ParseToolModel with nil allow-list = %v, want nil (falls back to default)", err)
	}
}

func TestPriceLLM(t *testing.T) {
	usage := domain.LLMUsageTotals{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}

	cost, err := PriceLLM("openai/gpt-oss-20b", usage)
	if err != nil {
		t.Fatalf("PriceLLM() error = %v", err)
	}
	want := 0.25 + 2.0
	if cost != want {
		t.Errorf("PriceLLM() = %v, want %v", cost, want)
	}

	if _, err := PriceLLM("unknown-model", usage); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestPriceSearch(t *testing.T) {
	tests := []struct {
		tool    string
		want    float64
		wantErr bool
	}{
		{"search_web", 0.0025, false},
		{"search_x", 0.003, false},
		{"search_items", 0.0025, false},
		{"search_repo", 0.002, false},
		{"get_repo_file", 0.0015, false},
		{"search_ai", 0, true},
		{"not_a_tool", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			got, err := PriceSearch(tt.tool)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PriceSearch(%q) error = %v, wantErr %v", tt.tool, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("PriceSearch(%q) = %v, want %v", tt.tool, got, tt.want)
			}
		})
	}
}

func TestPriceSearchAI(t *testing.T) {
	if got := PriceSearchAI(3); got != 0.012 {
		t.Errorf("PriceSearchAI(3) = %v, want 0.012", got)
	}
	if got := PriceSearchAI(-5); got != 0 {
		t.Errorf("PriceSearchAI(-5) = %v, want 0 (negative clamped)", got)
	}
}
