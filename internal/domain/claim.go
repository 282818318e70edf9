package domain

import "fmt"

// Rubric describes the verdict space and grading context for a claim.
type Rubric struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	VerdictOptions VerdictOptions `json:"verdict_options"`
}

// VerdictOptions is the closed set of integer verdict codes a miner may
// return, along with human-readable labels used by the grader prompt.
type VerdictOptions struct {
	Labels map[int]string `json:"labels"`
}

// ErrInvalidVerdict indicates a verdict value outside the rubric's option set.
type ErrInvalidVerdict struct {
	Verdict int
}

func (e *ErrInvalidVerdict) Error() string {
	return fmt.Sprintf("verdict %d is not a valid option for this rubric", e.Verdict)
}

// Validate checks that verdict is one of the rubric's labeled options.
func (o VerdictOptions) Validate(verdict int) error {
	if _, ok := o.Labels[verdict]; !ok {
		return &ErrInvalidVerdict{Verdict: verdict}
	}
	return nil
}

// Lowest returns the smallest verdict code in the option set, the
// conservative stand-in used for a synthesized failure outcome (spec
// §4.11 step 2) when a candidate never produced a real verdict. It
// returns 0 for an empty option set.
func (o VerdictOptions) Lowest() int {
	lowest := 0
	first := true
	for v := range o.Labels {
		if first || v < lowest {
			lowest = v
			first = false
		}
	}
	return lowest
}

// ReferenceAnswer is the curated ground-truth verdict and justification a
// miner's answer is scored against, plus optional citations the grader
// prompt may surface alongside the justification.
type ReferenceAnswer struct {
	Verdict       int       `json:"verdict"`
	Justification string    `json:"justification"`
	Citations     []Citation `json:"citations,omitempty"`
}

// Citation is a supporting source for a reference answer's justification.
type Citation struct {
	URL  string `json:"url"`
	Note string `json:"note,omitempty"`
}

// FeedContext carries source-feed material (e.g. the social post or article
// under evaluation) supplied to the miner agent's entrypoint payload.
type FeedContext struct {
	ItemID  string         `json:"item_id"`
	Payload map[string]any `json:"payload"`
}

// Claim is one unit of evaluable work: a natural-language claim, its
// rubric, the reference answer it is scored against, and any feed context
// the sandboxed agent needs.
type Claim struct {
	ClaimID         string          `json:"claim_id"`
	Text            string          `json:"text"`
	Rubric          Rubric          `json:"rubric"`
	ReferenceAnswer ReferenceAnswer `json:"reference_answer"`
	Context         FeedContext     `json:"context"`
}
