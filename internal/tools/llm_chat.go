package tools

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus/internal/domain"
)

// LLMChatConfig configures the llm_chat tool's allowed models.
type LLMChatConfig struct {
	AllowedModels []string
}

// LLMChat implements the llm_chat LOG_ONLY tool: a single non-streaming
// completion call. Non-streaming (rather than the agent runtime's streaming
// provider) so resp.Usage is available directly for the budget tracker,
// grounded on the provider's CreateChatCompletion usage, adapted here for
// one-shot sandboxed tool calls instead of an agent conversation loop.
type LLMChat struct {
	cfg    LLMChatConfig
	client *openai.Client
}

// NewLLMChat builds an llm_chat handler.
func NewLLMChat(cfg LLMChatConfig, client *openai.Client) *LLMChat {
	return &LLMChat{cfg: cfg, client: client}
}

func (LLMChat) Name() string                      { return "llm_chat" }
func (LLMChat) ResultPolicy() domain.ResultPolicy { return domain.PolicyLogOnly }

func (c *LLMChat) Invoke(ctx context.Context, args map[string]any) (Output, error) {
	prompt, err := requireStringArg("llm_chat", args, "prompt")
	if err != nil {
		return Output{}, err
	}
	model, _ := args["model"].(string)
	if model == "" {
		return Output{}, fmt.Errorf("llm_chat: missing required argument %q", "model")
	}
	if !c.modelAllowed(model) {
		return Output{}, fmt.Errorf("llm_chat: model %q is not an allowed tool model", model)
	}

	systemPrompt, _ := args["system"].(string)
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return Output{}, fmt.Errorf("llm_chat: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Output{}, fmt.Errorf("llm_chat: provider returned no choices")
	}

	usage := &domain.LLMUsageTotals{
		CallCount:        1,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		ReasoningTokens:  reasoningTokens(resp.Usage),
		TotalTokens:      resp.Usage.TotalTokens,
	}

	return Output{
		Payload:     map[string]any{"content": resp.Choices[0].Message.Content},
		LLMUsage:    usage,
		LLMProvider: "openai",
		LLMModel:    model,
	}, nil
}

func (c *LLMChat) modelAllowed(model string) bool {
	for _, m := range c.cfg.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

// reasoningTokens extracts reasoning-token usage when the provider reports
// it via CompletionTokensDetails, mirroring how gpt-oss reasoning billing
// is broken out from ordinary completion tokens.
func reasoningTokens(usage openai.Usage) int {
	if usage.CompletionTokensDetails == nil {
		return 0
	}
	return usage.CompletionTokensDetails.ReasoningTokens
}
