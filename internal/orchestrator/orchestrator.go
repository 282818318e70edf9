// Package orchestrator implements the Evaluation Orchestrator (spec §4.9):
// it invokes the sandboxed agent's entrypoint, hydrates the miner's cited
// receipts against the session's own receipt log, scores the result, and
// summarizes usage into a persisted outcome. Grounded on the teacher's
// internal/agent/runtime.go single-turn orchestration pattern (invoke →
// validate → score → summarize), adapted from an agent conversation loop
// to one sandboxed entrypoint call per claim.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/domain"
	"github.com/haasonsaas/nexus/internal/invoker"
	"github.com/haasonsaas/nexus/internal/scoring"
	"github.com/haasonsaas/nexus/internal/sessionreg"
)

// ErrEntrypointInvocation wraps a failure to reach or run the sandboxed
// agent's entrypoint, as distinct from a failure to interpret or score an
// answer it did return. Callers can match it with errors.Is to apply the
// spec §4.11 step 3 sandbox_invocation_failed error-code family rather than
// the generic evaluation_failed one.
var ErrEntrypointInvocation = errors.New("entrypoint invocation failed")

// Request is one (candidate, claim) evaluation.
type Request struct {
	SessionID  uuid.UUID
	Token      string
	UID        int
	Entrypoint string
	Claim      domain.Claim
}

// ReceiptLog is the subset of receiptlog.Log the orchestrator needs: it
// both reads (for citation hydration) and clears (at closeout) a
// session's receipts.
type ReceiptLog interface {
	Get(id string) (domain.Receipt, bool)
	BySession(sessionID uuid.UUID) []domain.Receipt
	Clear(sessionID uuid.UUID)
}

// Orchestrator wires the invoker, receipt log, and scoring service
// together into one evaluate() call.
type Orchestrator struct {
	invoker  *invoker.Invoker
	receipts ReceiptLog
	scorer   *scoring.Service
	sessions *sessionreg.Registry
}

// New builds an Orchestrator.
func New(inv *invoker.Invoker, receipts ReceiptLog, scorer *scoring.Service, sessions *sessionreg.Registry) *Orchestrator {
	return &Orchestrator{invoker: inv, receipts: receipts, scorer: scorer, sessions: sessions}
}

type sandboxResultShape struct {
	Verdict       int                     `json:"verdict"`
	Justification string                  `json:"justification"`
	Citations     []sandboxCitationShape  `json:"citations"`
}

type sandboxCitationShape struct {
	ReceiptID string `json:"receipt_id"`
	ResultID  string `json:"result_id"`
}

// Evaluate runs spec §4.9 steps 1-5 for one claim.
func (o *Orchestrator) Evaluate(ctx context.Context, req Request, deploymentInvoke func(context.Context, invoker.Request) (invoker.Result, error)) (domain.EvaluationOutcome, error) {
	invReq := invoker.Request{
		SessionID:  req.SessionID,
		Token:      req.Token,
		UID:        req.UID,
		Entrypoint: req.Entrypoint,
		Payload: map[string]any{
			"claim_text":          req.Claim.Text,
			"rubric_title":        req.Claim.Rubric.Title,
			"rubric_description":  req.Claim.Rubric.Description,
			"verdict_options":     req.Claim.Rubric.VerdictOptions.Labels,
		},
		Context: map[string]any{"claim_id": req.Claim.ClaimID},
	}

	invResult, err := deploymentInvoke(ctx, invReq)
	if err != nil {
		return domain.EvaluationOutcome{}, fmt.Errorf("orchestrator: %w: %v", ErrEntrypointInvocation, err)
	}

	result, err := decodeSandboxResult(invResult.SandboxResult)
	if err != nil {
		return domain.EvaluationOutcome{}, fmt.Errorf("orchestrator: failed to parse sandbox result: %w", err)
	}
	if err := req.Claim.Rubric.VerdictOptions.Validate(result.Verdict); err != nil {
		return domain.EvaluationOutcome{}, fmt.Errorf("orchestrator: %w", err)
	}

	citations, dropped := o.hydrateCitations(req.SessionID, result.Citations)

	answer := domain.MinerAnswer{
		Verdict:       result.Verdict,
		Justification: result.Justification,
		Citations:     citations,
	}

	score, _, err := o.scorer.Score(ctx, req.Claim, answer)
	if err != nil {
		return domain.EvaluationOutcome{}, fmt.Errorf("orchestrator: scoring failed: %w", err)
	}

	session, _ := o.sessions.Get(req.SessionID)
	usage := domain.TokenUsageSummaryFromUsage(session.Usage)

	outcome := domain.EvaluationOutcome{
		Evaluation: domain.MinerEvaluation{
			EvaluationID: uuid.New(),
			SessionID:    req.SessionID,
			UID:          req.UID,
			ClaimID:      req.Claim.ClaimID,
			Rubric:       req.Claim.Rubric,
			MinerAnswer:  answer,
			CompletedAt:  time.Now(),
		},
		Score: domain.EvaluationScore{
			VerdictScore:      score.VerdictComponent,
			SupportScore:      score.SupportComponent,
			JustificationPass: score.JustificationPass,
			FailedCitationIDs: dropped,
			GraderRationale:   score.GraderRationale,
		},
		ToolReceipts:   invResult.Receipts,
		Usage:          usage,
		TotalToolUsage: domain.ToolUsageSummary(invResult.Receipts),
	}

	o.receipts.Clear(req.SessionID)
	return outcome, nil
}

// hydrateCitations validates each miner-supplied citation against this
// session's own receipts (spec §4.9 step 3): the receipt must exist, be a
// citation source, carry a REFERENCEABLE result policy, and the result id
// must match one of its results. Valid citations have url/note replaced
// by the receipt's canonical values; invalid ones are dropped and their
// ids returned for the score's failed_citation_ids.
func (o *Orchestrator) hydrateCitations(sessionID uuid.UUID, raw []sandboxCitationShape) ([]domain.MinerCitation, []string) {
	sessionReceipts := make(map[string]domain.Receipt, len(raw))
	for _, r := range o.receipts.BySession(sessionID) {
		sessionReceipts[r.ReceiptID] = r
	}

	hydrated := make([]domain.MinerCitation, 0, len(raw))
	var dropped []string

	for _, c := range raw {
		receipt, ok := sessionReceipts[c.ReceiptID]
		if !ok || !domain.IsCitationSource(receipt.Tool) || receipt.Metadata.ResultPolicy != domain.PolicyReferenceable {
			dropped = append(dropped, c.ReceiptID+"/"+c.ResultID)
			continue
		}
		var matched *domain.ToolResult
		for i := range receipt.Metadata.Results {
			if receipt.Metadata.Results[i].ResultID == c.ResultID {
				matched = &receipt.Metadata.Results[i]
				break
			}
		}
		if matched == nil {
			dropped = append(dropped, c.ReceiptID+"/"+c.ResultID)
			continue
		}

		url, note := extractURLNote(matched.Raw)
		hydrated = append(hydrated, domain.MinerCitation{
			URL:       url,
			Note:      note,
			ReceiptID: c.ReceiptID,
			ResultID:  c.ResultID,
		})
	}

	return hydrated, dropped
}

func extractURLNote(raw any) (string, *string) {
	m, ok := raw.(map[string]any)
	if !ok {
		return "", nil
	}
	url, _ := m["url"].(string)
	if snippet, ok := m["snippet"].(string); ok && snippet != "" {
		return url, &snippet
	}
	return url, nil
}

func decodeSandboxResult(raw map[string]any) (sandboxResultShape, error) {
	verdict, _ := raw["verdict"].(float64)
	justification, _ := raw["justification"].(string)

	var citations []sandboxCitationShape
	if rawCitations, ok := raw["citations"].([]any); ok {
		for _, item := range rawCitations {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			receiptID, _ := m["receipt_id"].(string)
			resultID, _ := m["result_id"].(string)
			citations = append(citations, sandboxCitationShape{ReceiptID: receiptID, ResultID: resultID})
		}
	}

	return sandboxResultShape{
		Verdict:       int(verdict),
		Justification: justification,
		Citations:     citations,
	}, nil
}
