package config

// PricingConfig allows narrowing the set of billable tool models accepted
// by the budget tracker. The dollar-amount pricing table itself is a fixed
// constant in internal/budget (mirroring the reference pricing table), not
// something operators are expected to tune per deployment.
type PricingConfig struct {
	// AllowedToolModels restricts which LLM-tool models may be billed.
	// Empty means fall back to budget.DefaultAllowedToolModels.
	AllowedToolModels []string `yaml:"allowed_tool_models"`
}
