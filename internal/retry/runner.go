// Package retry implements the classify/verify/postprocess/backoff loop the
// validator uses around a single tool call (spec §4.5), adapted from the
// generic internal/backoff.RetryWithBackoff runner: each attempt's outcome
// is classified as success/retryable/fatal, a verifier may additionally
// reject an apparently successful attempt, and usage from every attempt
// (including failed ones) accumulates onto the final result.
package retry

import (
	"context"
	"errors"

	"github.com/haasonsaas/nexus/internal/backoff"
	"github.com/haasonsaas/nexus/internal/domain"
)

// Outcome classifies one attempt's result.
type Outcome int

const (
	// OutcomeSuccess ends the loop and returns the attempt's value.
	OutcomeSuccess Outcome = iota
	// OutcomeRetryable sleeps (with backoff) and tries again, up to MaxAttempts.
	OutcomeRetryable
	// OutcomeFatal ends the loop immediately without further attempts.
	OutcomeFatal
)

// Classifier inspects an attempt's error (if any) and decides how to treat it.
type Classifier func(err error) Outcome

// Verifier runs after a seemingly-successful attempt and may still reject
// it (e.g. a response that parses but fails a schema or policy check).
type Verifier[T any] func(value T) error

// Attempt is a single call to retry, returning a value, its incurred usage
// (counted even on failure), and an error.
type Attempt[T any] func(ctx context.Context, attemptNum int) (T, domain.LLMUsageTotals, error)

// Policy bundles the backoff schedule and max attempt count.
type Policy struct {
	Backoff     backoff.BackoffPolicy
	MaxAttempts int
}

// ErrExhausted is returned when every attempt was retryable but none
// ultimately succeeded within Policy.MaxAttempts.
var ErrExhausted = errors.New("retry attempts exhausted")

// Result carries the winning value (if any), the accumulated usage across
// every attempt, and the number of attempts made.
type Result[T any] struct {
	Value    T
	Usage    domain.LLMUsageTotals
	Attempts int
}

// Run executes attempt up to policy.MaxAttempts times, classifying each
// failure via classify and verifying each apparent success via verify.
// Usage from every attempt (success or failure) is summed into the
// returned Result, mirroring the reference runner's "None + x = x"
// fold so retried LLM calls still bill their tokens.
func Run[T any](ctx context.Context, policy Policy, classify Classifier, verify Verifier[T], attempt Attempt[T]) (Result[T], error) {
	var total domain.LLMUsageTotals
	var lastErr error

	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return Result[T]{Usage: total, Attempts: n - 1}, err
		}

		value, usage, err := attempt(ctx, n)
		total = total.Add(usage)

		if err == nil {
			if verify != nil {
				if verr := verify(value); verr != nil {
					err = verr
				}
			}
		}

		if err == nil {
			return Result[T]{Value: value, Usage: total, Attempts: n}, nil
		}

		lastErr = err
		outcome := OutcomeFatal
		if classify != nil {
			outcome = classify(err)
		}

		if outcome == OutcomeFatal {
			return Result[T]{Usage: total, Attempts: n}, err
		}

		if n == maxAttempts {
			break
		}

		if sleepErr := backoff.SleepWithBackoff(ctx, policy.Backoff, n); sleepErr != nil {
			return Result[T]{Usage: total, Attempts: n}, sleepErr
		}
	}

	if lastErr != nil {
		return Result[T]{Usage: total, Attempts: maxAttempts}, errors.Join(ErrExhausted, lastErr)
	}
	return Result[T]{Usage: total, Attempts: maxAttempts}, ErrExhausted
}
