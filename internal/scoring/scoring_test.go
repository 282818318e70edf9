package scoring

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus/internal/domain"
	"github.com/haasonsaas/nexus/internal/retry"
)

func TestScore_VerdictMismatchShortCircuits(t *testing.T) {
	// No *openai.Client is configured; if the grader were actually called
	// this would panic on a nil client, so a clean result here proves the
	// verdict-mismatch path short-circuits before any LLM call.
	svc := New(nil, "openai/gpt-oss-20b", retry.Policy{MaxAttempts: 1})

	claim := domain.Claim{
		ReferenceAnswer: domain.ReferenceAnswer{Verdict: 1, Justification: "ref"},
	}
	answer := domain.MinerAnswer{Verdict: 2, Justification: "miner"}

	score, usage, err := svc.Score(context.Background(), claim, answer)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score.Total() != 0 {
		t.Errorf("Total() = %v, want 0", score.Total())
	}
	if score.JustificationPass {
		t.Error("expected JustificationPass = false on verdict mismatch")
	}
	if usage.CallCount != 0 {
		t.Errorf("usage.CallCount = %d, want 0 (no grader call made)", usage.CallCount)
	}
}

func TestScoreTotal(t *testing.T) {
	s := Score{VerdictComponent: 0.5, SupportComponent: 0.5}
	if s.Total() != 1.0 {
		t.Errorf("Total() = %v, want 1.0", s.Total())
	}
}

func TestClassifyGraderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Outcome
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, retry.OutcomeRetryable},
		{"conflict", &openai.APIError{HTTPStatusCode: 409}, retry.OutcomeRetryable},
		{"server error", &openai.APIError{HTTPStatusCode: 503}, retry.OutcomeRetryable},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, retry.OutcomeFatal},
		{"unauthorized", &openai.APIError{HTTPStatusCode: 401}, retry.OutcomeFatal},
		{"non-api error", errContext{}, retry.OutcomeRetryable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyGraderError(tt.err); got != tt.want {
				t.Errorf("classifyGraderError() = %v, want %v", got, tt.want)
			}
		})
	}
}

type errContext struct{}

func (errContext) Error() string { return "context deadline exceeded" }

func TestVerifyGraderVerdict_RejectsMissingSupportOK(t *testing.T) {
	if err := verifyGraderVerdict(GraderVerdict{Rationale: "looks fine"}); err == nil {
		t.Error("expected an error when support_ok is absent")
	}
}

func TestVerifyGraderVerdict_AcceptsExplicitValue(t *testing.T) {
	supportOK := false
	if err := verifyGraderVerdict(GraderVerdict{SupportOK: &supportOK}); err != nil {
		t.Errorf("verifyGraderVerdict() error = %v, want nil for an explicit false", err)
	}

	supportTrue := true
	if err := verifyGraderVerdict(GraderVerdict{SupportOK: &supportTrue}); err != nil {
		t.Errorf("verifyGraderVerdict() error = %v, want nil for an explicit true", err)
	}
}
