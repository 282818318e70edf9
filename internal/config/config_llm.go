package config

// LLMConfig configures the OpenAI-compatible chat completion client shared
// by the llm_chat tool handler and the scoring service's grader call.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// GraderModel is the model used by the scoring service to judge
	// support_ok. Must be one of pricing.AllowedToolModels.
	GraderModel string `yaml:"grader_model"`
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.GraderModel == "" {
		cfg.GraderModel = "openai/gpt-oss-120b"
	}
}
