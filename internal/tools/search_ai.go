package tools

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus/internal/domain"
)

// SearchAIConfig configures the search_ai backend: an underlying web search
// plus a synthesis model that summarizes the top results into one answer.
type SearchAIConfig struct {
	Model       string
	ResultLimit int
}

// SearchAI implements the search_ai REFERENCEABLE tool. It runs the
// underlying web search, then asks the configured LLM to synthesize a short
// answer grounded in the returned snippets. The search results it cites
// remain REFERENCEABLE; the synthesized prose itself is not separately
// citable.
type SearchAI struct {
	cfg    SearchAIConfig
	web    *SearchWeb
	client *openai.Client
}

// NewSearchAI builds a search_ai handler, delegating raw results to web.
func NewSearchAI(cfg SearchAIConfig, web *SearchWeb, client *openai.Client) *SearchAI {
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 5
	}
	return &SearchAI{cfg: cfg, web: web, client: client}
}

func (SearchAI) Name() string                      { return "search_ai" }
func (SearchAI) ResultPolicy() domain.ResultPolicy { return domain.PolicyReferenceable }

func (s *SearchAI) Invoke(ctx context.Context, args map[string]any) (Output, error) {
	query, err := requireStringArg("search_ai", args, "query")
	if err != nil {
		return Output{}, err
	}

	webOut, err := s.web.Invoke(ctx, args)
	if err != nil {
		return Output{}, fmt.Errorf("search_ai: underlying search failed: %w", err)
	}

	answer, err := s.synthesize(ctx, query, webOut.Results)
	if err != nil {
		return Output{}, fmt.Errorf("search_ai: synthesis failed: %w", err)
	}

	payload := map[string]any{
		"answer":  answer,
		"results": webOut.Payload,
	}
	return Output{Payload: payload, Results: webOut.Results}, nil
}

func (s *SearchAI) synthesize(ctx context.Context, query string, results []domain.SearchToolResult) (string, error) {
	if s.client == nil || len(results) == 0 {
		return "", nil
	}

	var context string
	for i, r := range results {
		if i >= s.cfg.ResultLimit {
			break
		}
		note := ""
		if r.Note != nil {
			note = *r.Note
		}
		context += fmt.Sprintf("[%s] %s: %s\n", r.ResultID, r.Title, note)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Answer the question in two sentences using only the supplied search snippets. Cite nothing directly; the caller attaches citations separately.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Question: %s\n\nSnippets:\n%s", query, context),
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
