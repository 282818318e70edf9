package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus/internal/domain"
	"github.com/haasonsaas/nexus/internal/invoker"
	"github.com/haasonsaas/nexus/internal/receiptlog"
	"github.com/haasonsaas/nexus/internal/retry"
	"github.com/haasonsaas/nexus/internal/scoring"
	"github.com/haasonsaas/nexus/internal/sessionreg"
)

func newTestOpenAIClient(baseURL string) *openai.Client {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = baseURL
	return openai.NewClientWithConfig(cfg)
}

func rubricWithVerdicts() domain.Rubric {
	return domain.Rubric{
		Title:       "is this true",
		Description: "grade the claim",
		VerdictOptions: domain.VerdictOptions{
			Labels: map[int]string{1: "supported", 2: "refuted"},
		},
	}
}

func TestEvaluate_VerdictMismatchShortCircuitsScoring(t *testing.T) {
	sessions := sessionreg.NewRegistry()
	receipts := receiptlog.New()
	inv := invoker.New(sessions, sessionreg.NewTokenRegistry(), receipts)
	scorer := scoring.New(nil, "openai/gpt-oss-20b", retry.Policy{MaxAttempts: 1})
	o := New(inv, receipts, scorer, sessions)

	session, _ := sessions.Issue(1, time.Now(), time.Minute, 1.0)

	claim := domain.Claim{
		ClaimID:         "claim-1",
		Rubric:          rubricWithVerdicts(),
		ReferenceAnswer: domain.ReferenceAnswer{Verdict: 1},
	}

	invoke := func(_ context.Context, _ invoker.Request) (invoker.Result, error) {
		return invoker.Result{SandboxResult: map[string]any{
			"verdict":       float64(2),
			"justification": "I disagree",
		}}, nil
	}

	outcome, err := o.Evaluate(context.Background(), Request{
		SessionID: session.ID, UID: 1, Entrypoint: "evaluate", Claim: claim,
	}, invoke)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if outcome.Score.Total() != 0 {
		t.Errorf("Score.Total() = %v, want 0 on verdict mismatch", outcome.Score.Total())
	}
	if outcome.Evaluation.ClaimID != "claim-1" {
		t.Errorf("ClaimID = %q, want claim-1", outcome.Evaluation.ClaimID)
	}
}

func TestEvaluate_InvalidVerdictRejected(t *testing.T) {
	sessions := sessionreg.NewRegistry()
	receipts := receiptlog.New()
	inv := invoker.New(sessions, sessionreg.NewTokenRegistry(), receipts)
	scorer := scoring.New(nil, "openai/gpt-oss-20b", retry.Policy{MaxAttempts: 1})
	o := New(inv, receipts, scorer, sessions)

	session, _ := sessions.Issue(1, time.Now(), time.Minute, 1.0)
	claim := domain.Claim{ClaimID: "claim-1", Rubric: rubricWithVerdicts()}

	invoke := func(_ context.Context, _ invoker.Request) (invoker.Result, error) {
		return invoker.Result{SandboxResult: map[string]any{"verdict": float64(99)}}, nil
	}

	_, err := o.Evaluate(context.Background(), Request{SessionID: session.ID, UID: 1, Claim: claim}, invoke)
	if err == nil {
		t.Fatal("expected an error for a verdict outside the rubric's labeled options")
	}
}

func TestEvaluate_DeploymentInvokeError(t *testing.T) {
	sessions := sessionreg.NewRegistry()
	receipts := receiptlog.New()
	inv := invoker.New(sessions, sessionreg.NewTokenRegistry(), receipts)
	scorer := scoring.New(nil, "openai/gpt-oss-20b", retry.Policy{MaxAttempts: 1})
	o := New(inv, receipts, scorer, sessions)

	session, _ := sessions.Issue(1, time.Now(), time.Minute, 1.0)
	claim := domain.Claim{ClaimID: "claim-1", Rubric: rubricWithVerdicts()}

	invoke := func(_ context.Context, _ invoker.Request) (invoker.Result, error) {
		return invoker.Result{}, errors.New("sandbox unreachable")
	}

	_, err := o.Evaluate(context.Background(), Request{SessionID: session.ID, UID: 1, Claim: claim}, invoke)
	if err == nil {
		t.Fatal("expected the entrypoint invocation error to propagate")
	}
}

func TestEvaluate_HydratesValidCitationsAndDropsInvalidOnes(t *testing.T) {
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"1","object":"chat.completion","created":1,"model":"openai/gpt-oss-20b",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"support_ok\":true,\"rationale\":\"matches\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":5,"completion_tokens":5,"total_tokens":10}
		}`))
	}))
	defer llmSrv.Close()

	sessions := sessionreg.NewRegistry()
	receipts := receiptlog.New()
	inv := invoker.New(sessions, sessionreg.NewTokenRegistry(), receipts)
	scorer := scoring.New(newTestOpenAIClient(llmSrv.URL), "openai/gpt-oss-20b", retry.Policy{MaxAttempts: 1})
	o := New(inv, receipts, scorer, sessions)

	session, _ := sessions.Issue(1, time.Now(), time.Minute, 1.0)

	validReceipt := domain.Receipt{
		ReceiptID: "r-valid",
		SessionID: session.ID,
		Tool:      "search_web",
		Outcome:   domain.OutcomeOK,
		Metadata: domain.ReceiptMetadata{
			ResultPolicy: domain.PolicyReferenceable,
			Results: []domain.ToolResult{
				{Index: 0, ResultID: "result-a", Raw: map[string]any{"url": "https://a.example", "snippet": "a snippet"}},
			},
		},
	}
	logOnlyReceipt := domain.Receipt{
		ReceiptID: "r-logonly",
		SessionID: session.ID,
		Tool:      "llm_chat",
		Outcome:   domain.OutcomeOK,
		Metadata:  domain.ReceiptMetadata{ResultPolicy: domain.PolicyLogOnly},
	}
	if err := receipts.Record(context.Background(), validReceipt); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := receipts.Record(context.Background(), logOnlyReceipt); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	claim := domain.Claim{
		ClaimID:         "claim-1",
		Rubric:          rubricWithVerdicts(),
		ReferenceAnswer: domain.ReferenceAnswer{Verdict: 1, Justification: "ref"},
	}

	invoke := func(_ context.Context, _ invoker.Request) (invoker.Result, error) {
		return invoker.Result{SandboxResult: map[string]any{
			"verdict":       float64(1),
			"justification": "agrees",
			"citations": []any{
				map[string]any{"receipt_id": "r-valid", "result_id": "result-a"},
				map[string]any{"receipt_id": "r-logonly", "result_id": "anything"},
				map[string]any{"receipt_id": "r-missing", "result_id": "x"},
			},
		}}, nil
	}

	outcome, err := o.Evaluate(context.Background(), Request{
		SessionID: session.ID, UID: 1, Entrypoint: "evaluate", Claim: claim,
	}, invoke)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if len(outcome.Evaluation.MinerAnswer.Citations) != 1 {
		t.Fatalf("hydrated citations = %d, want 1", len(outcome.Evaluation.MinerAnswer.Citations))
	}
	cite := outcome.Evaluation.MinerAnswer.Citations[0]
	if cite.URL != "https://a.example" || cite.Note == nil || *cite.Note != "a snippet" {
		t.Errorf("citation = %+v, want hydrated url/note from the receipt", cite)
	}
	if len(outcome.Score.FailedCitationIDs) != 2 {
		t.Errorf("FailedCitationIDs = %+v, want 2 dropped citations", outcome.Score.FailedCitationIDs)
	}
	if !outcome.Score.JustificationPass {
		t.Error("expected JustificationPass = true when the grader returns support_ok")
	}

	// Evaluate clears the session's receipts at closeout.
	if len(receipts.BySession(session.ID)) != 0 {
		t.Error("expected Evaluate to clear the session's receipts after scoring")
	}
}

func TestDecodeSandboxResult_IgnoresMalformedCitationEntries(t *testing.T) {
	result, err := decodeSandboxResult(map[string]any{
		"verdict":       float64(1),
		"justification": "j",
		"citations": []any{
			map[string]any{"receipt_id": "r1", "result_id": "x1"},
			"not a map",
			42,
		},
	})
	if err != nil {
		t.Fatalf("decodeSandboxResult() error = %v", err)
	}
	if len(result.Citations) != 1 {
		t.Fatalf("len(Citations) = %d, want 1 (non-map entries skipped)", len(result.Citations))
	}
}

func TestExtractURLNote(t *testing.T) {
	url, note := extractURLNote(map[string]any{"url": "https://x.example", "snippet": "hi"})
	if url != "https://x.example" || note == nil || *note != "hi" {
		t.Errorf("extractURLNote() = (%q, %v), want (https://x.example, hi)", url, note)
	}

	url, note = extractURLNote(map[string]any{"url": "https://x.example"})
	if url != "https://x.example" || note != nil {
		t.Errorf("extractURLNote() with no snippet = (%q, %v), want note=nil", url, note)
	}

	url, note = extractURLNote("not a map")
	if url != "" || note != nil {
		t.Errorf("extractURLNote() on non-map = (%q, %v), want zero values", url, note)
	}
}
