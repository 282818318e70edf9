// Package scoring implements the Scoring Service (spec §4.10): binary
// additive scoring of a miner's verdict and justification against a
// claim's reference answer, with the justification's "support" half
// graded by an LLM routed through the retry runner. Grounded on the
// teacher's internal/agent/providers/openai.go completion call and
// internal/retry's classify/verify/postprocess loop.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus/internal/domain"
	"github.com/haasonsaas/nexus/internal/retry"
)

const graderSystemPrompt = "You are a strict grader. The miner must identify similar key facts and reach a conclusion consistent with the reference, without contradicting the reference's reasoning. Use only the text provided."

// GraderVerdict is the structured response the retry runner's postprocess
// step validates and returns. SupportOK is a pointer so verifyGraderVerdict
// can tell an absent field apart from an explicit false.
type GraderVerdict struct {
	SupportOK *bool  `json:"support_ok"`
	Rationale string `json:"rationale"`
}

// Score is the breakdown returned alongside the miner's evaluation
// outcome (spec §3 "Miner Evaluation Outcome").
type Score struct {
	VerdictComponent    float64
	SupportComponent    float64
	JustificationPass   bool
	GraderRationale     string
}

// Total sums the two additive components.
func (s Score) Total() float64 {
	return s.VerdictComponent + s.SupportComponent
}

// Service grades one miner answer against a claim's reference answer.
type Service struct {
	client       *openai.Client
	graderModel  string
	retryPolicy  retry.Policy
}

// New builds a scoring Service.
func New(client *openai.Client, graderModel string, retryPolicy retry.Policy) *Service {
	return &Service{client: client, graderModel: graderModel, retryPolicy: retryPolicy}
}

// Score implements spec §4.10: the verdict component short-circuits the
// grader call entirely when the miner's verdict does not match the
// reference's.
func (s *Service) Score(ctx context.Context, claim domain.Claim, answer domain.MinerAnswer) (Score, domain.LLMUsageTotals, error) {
	if answer.Verdict != claim.ReferenceAnswer.Verdict {
		return Score{
			VerdictComponent:  0,
			SupportComponent:  0,
			JustificationPass: false,
			GraderRationale:   "verdict diverges from reference answer",
		}, domain.LLMUsageTotals{}, nil
	}

	result, err := retry.Run(ctx, s.retryPolicy, classifyGraderError, verifyGraderVerdict, func(ctx context.Context, _ int) (GraderVerdict, domain.LLMUsageTotals, error) {
		return s.callGrader(ctx, claim, answer)
	})
	if err != nil {
		return Score{}, result.Usage, fmt.Errorf("scoring: grader call failed: %w", err)
	}

	supportOK := result.Value.SupportOK != nil && *result.Value.SupportOK
	score := Score{
		VerdictComponent:  0.5,
		JustificationPass: supportOK,
		GraderRationale:   result.Value.Rationale,
	}
	if supportOK {
		score.SupportComponent = 0.5
	}
	return score, result.Usage, nil
}

func (s *Service) callGrader(ctx context.Context, claim domain.Claim, answer domain.MinerAnswer) (GraderVerdict, domain.LLMUsageTotals, error) {
	citations := make([]map[string]string, 0, len(answer.Citations))
	for _, c := range answer.Citations {
		note := ""
		if c.Note != nil {
			note = *c.Note
		}
		citations = append(citations, map[string]string{
			"receipt_id": c.ReceiptID,
			"result_id":  c.ResultID,
			"url":        c.URL,
			"note":       note,
		})
	}
	citationsJSON, _ := json.Marshal(citations)

	referenceCitationsJSON, _ := json.Marshal(claim.ReferenceAnswer.Citations)

	userPrompt := fmt.Sprintf(
		"Claim: %s\n\nReference verdict: %d\nReference justification: %s\nReference citations: %s\n\nMiner verdict: %d\nMiner justification: %s\nMiner citations: %s\n\nRespond as JSON: {\"support_ok\": bool, \"rationale\": string}.",
		claim.Text, claim.ReferenceAnswer.Verdict, claim.ReferenceAnswer.Justification, string(referenceCitationsJSON),
		answer.Verdict, answer.Justification, string(citationsJSON),
	)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.graderModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: graderSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return GraderVerdict{}, domain.LLMUsageTotals{}, err
	}
	if len(resp.Choices) == 0 {
		return GraderVerdict{}, domain.LLMUsageTotals{}, fmt.Errorf("grader returned no choices")
	}

	usage := domain.LLMUsageTotals{
		CallCount:        1,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	var verdict GraderVerdict
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &verdict); err != nil {
		return GraderVerdict{}, usage, fmt.Errorf("grader returned non-JSON content: %w", err)
	}
	return verdict, usage, nil
}

// verifyGraderVerdict is the postprocess/validation gate spec §4.5 step 3
// describes for structured-JSON responses: a grader reply that fails to
// state support_ok is rejected and retried.
func verifyGraderVerdict(v GraderVerdict) error {
	if v.SupportOK == nil {
		return fmt.Errorf("grader response missing support_ok")
	}
	return nil
}

// classifyGraderError maps a grader call failure to a retry.Outcome using
// the same retryable-HTTP-status rule as the retry runner's documented
// contract (408/409/429/5xx retryable, other 4xx fatal, transport errors
// retryable by default).
func classifyGraderError(err error) retry.Outcome {
	var apiErr *openai.APIError
	if asAPIError(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 408 || apiErr.HTTPStatusCode == 409 || apiErr.HTTPStatusCode == 429:
			return retry.OutcomeRetryable
		case apiErr.HTTPStatusCode >= 500:
			return retry.OutcomeRetryable
		case apiErr.HTTPStatusCode >= 400:
			return retry.OutcomeFatal
		}
	}
	return retry.OutcomeRetryable
}

func asAPIError(err error, target **openai.APIError) bool {
	apiErr, ok := err.(*openai.APIError)
	if !ok {
		return false
	}
	*target = apiErr
	return true
}
