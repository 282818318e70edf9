// Package scheduler implements the Batch Scheduler (spec §4.11): it runs
// one candidate at a time, starting that candidate's sandbox once and
// running every claim against it before tearing the sandbox down.
// Grounded on the teacher's internal/agent/batch.go sequential-worker
// batch loop, adapted from a fan-out-per-item scheduler to the spec's
// explicitly sequential per-candidate model (concurrency is bounded by
// one container at a time, not by claim).
package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/domain"
	"github.com/haasonsaas/nexus/internal/invoker"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/internal/sandbox"
	"github.com/haasonsaas/nexus/internal/sessionreg"
)

// Candidate is one miner agent entered into the batch.
type Candidate struct {
	UID        int    `json:"uid"`
	AgentPath  string `json:"agent_path"` // resolved staging path, e.g. from staging.Store.Resolve
	StagingDir string `json:"staging_dir"`
	Entrypoint string `json:"entrypoint"`
}

// Batch is the unit of work §4.11 schedules: a set of candidates evaluated
// against a shared set of claims.
type Batch struct {
	BatchID    string         `json:"batch_id"`
	Candidates []Candidate    `json:"candidates"`
	Claims     []domain.Claim `json:"claims"`
}

// Result is the batch-level outcome returned to the caller.
type Result struct {
	BatchID       string                     `json:"batch_id"`
	Claims        []domain.Claim             `json:"claims"`
	Evaluations   []domain.EvaluationOutcome `json:"evaluations"`
	CandidateUIDs []int                      `json:"candidate_uids"`
}

const (
	defaultSessionTTL       = 10 * time.Minute
	defaultSessionBudgetUSD = 2.00
	defaultTokenConcurrency = 4

	sandboxSetupFailureCode      = "sandbox_start_failed"
	sandboxInvocationFailureCode = "sandbox_invocation_failed"
	evaluationFailureCode        = "evaluation_failed"
)

// Scheduler runs batches sequentially per candidate (spec §4.11).
type Scheduler struct {
	sandboxes        *sandbox.Manager
	sessions         *sessionreg.Registry
	tokens           *sessionreg.TokenRegistry
	invoker          *invoker.Invoker
	orchestrator     *orchestrator.Orchestrator
	hostContainerURL string
	logger           *observability.Logger
}

// New builds a Scheduler. hostContainerURL is the address the sandboxed
// agent's tool-proxy calls back to reach the host's dispatch HTTP server
// (spec §4.8's x-caster-host-container-url header).
func New(sandboxes *sandbox.Manager, sessions *sessionreg.Registry, tokens *sessionreg.TokenRegistry, inv *invoker.Invoker, orch *orchestrator.Orchestrator, hostContainerURL string, logger *observability.Logger) *Scheduler {
	return &Scheduler{
		sandboxes:        sandboxes,
		sessions:         sessions,
		tokens:           tokens,
		invoker:          inv,
		orchestrator:     orch,
		hostContainerURL: hostContainerURL,
		logger:           logger,
	}
}

// Run executes spec §4.11: sequential per-candidate sandbox lifecycle, with
// every claim in the batch run against that candidate's single container.
func (s *Scheduler) Run(ctx context.Context, batch Batch) (Result, error) {
	result := Result{BatchID: batch.BatchID, Claims: batch.Claims}

	for _, candidate := range batch.Candidates {
		result.CandidateUIDs = append(result.CandidateUIDs, candidate.UID)

		deployment, err := s.sandboxes.Start(ctx, sandbox.StartOptions{
			CandidateUID: candidate.UID,
			AgentPath:    candidate.AgentPath,
			StagingDir:   candidate.StagingDir,
		})
		if err != nil {
			s.logger.Warn(ctx, "sandbox start failed, synthesizing failure outcomes", "uid", candidate.UID, "error", err)
			for _, claim := range batch.Claims {
				result.Evaluations = append(result.Evaluations, synthesizeFailure(candidate.UID, claim, sandboxSetupFailureCode, err))
			}
			continue
		}

		for _, claim := range batch.Claims {
			outcome, err := s.runClaim(ctx, deployment, candidate, claim)
			if err != nil {
				code := evaluationFailureCode
				if errors.Is(err, orchestrator.ErrEntrypointInvocation) {
					code = sandboxInvocationFailureCode
				}
				s.logger.Warn(ctx, "claim evaluation failed", "uid", candidate.UID, "claim_id", claim.ClaimID, "error", err)
				outcome = synthesizeFailure(candidate.UID, claim, code, err)
			}
			result.Evaluations = append(result.Evaluations, outcome)
		}

		if err := s.sandboxes.Stop(ctx, deployment); err != nil {
			s.logger.Warn(ctx, "sandbox stop failed", "uid", candidate.UID, "error", err)
		}
	}

	return result, nil
}

// runClaim issues a fresh session + token for one (candidate, claim) pair,
// invokes the entrypoint through the orchestrator, and revokes the session
// regardless of outcome (spec §4.11's per-claim issue/invoke/transition/
// revoke sequence).
func (s *Scheduler) runClaim(ctx context.Context, deployment *sandbox.Deployment, candidate Candidate, claim domain.Claim) (domain.EvaluationOutcome, error) {
	session, err := s.sessions.Issue(candidate.UID, time.Now(), defaultSessionTTL, defaultSessionBudgetUSD)
	if err != nil {
		return domain.EvaluationOutcome{}, fmt.Errorf("scheduler: failed to issue session: %w", err)
	}
	token, err := randomToken()
	if err != nil {
		return domain.EvaluationOutcome{}, fmt.Errorf("scheduler: failed to mint token: %w", err)
	}
	s.tokens.Issue(session.ID, token, defaultTokenConcurrency)

	defer func() {
		s.tokens.Revoke(session.ID)
		s.sessions.Delete(session.ID)
	}()

	deploymentInvoke := func(ctx context.Context, req invoker.Request) (invoker.Result, error) {
		return s.invoker.Invoke(ctx, deployment, req, s.hostContainerURL)
	}

	outcome, err := s.orchestrator.Evaluate(ctx, orchestrator.Request{
		SessionID:  session.ID,
		Token:      token,
		UID:        candidate.UID,
		Entrypoint: candidate.Entrypoint,
		Claim:      claim,
	}, deploymentInvoke)
	if err != nil {
		if finalSession, ok := s.sessions.Get(session.ID); ok {
			s.sessions.Save(finalSession.MarkError())
		}
		return domain.EvaluationOutcome{}, err
	}

	if finalSession, ok := s.sessions.Get(session.ID); ok {
		s.sessions.Save(finalSession.MarkCompleted())
	}

	return outcome, nil
}

// synthesizeFailure builds a zero-score evaluation outcome for a claim the
// candidate never got to attempt, per spec §4.11's setup-failure handling.
// The miner answer is left at the rubric's lowest verdict option rather
// than Go's zero value, since 0 is not necessarily a valid verdict code.
func synthesizeFailure(uid int, claim domain.Claim, code string, cause error) domain.EvaluationOutcome {
	msg := code
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", code, cause)
	}
	return domain.EvaluationOutcome{
		Evaluation: domain.MinerEvaluation{
			EvaluationID: uuid.New(),
			UID:          uid,
			ClaimID:      claim.ClaimID,
			Rubric:       claim.Rubric,
			MinerAnswer: domain.MinerAnswer{
				Verdict: claim.Rubric.VerdictOptions.Lowest(),
			},
			CompletedAt: time.Now(),
		},
		Score:     domain.EvaluationScore{},
		ErrorCode: msg,
	}
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
