package tools

import (
	"crypto/sha256"
	"encoding/hex"
)

// shortHash derives a stable, human-readable content handle from seed, used
// to build citable result_id values deterministically across retries.
func shortHash(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:12]
}

// noteOrNil returns a pointer to text, or nil if text is empty, so callers
// never construct a SearchToolResult with an explicitly-empty note (which
// fails domain.SearchToolResult.Validate).
func noteOrNil(text string) *string {
	if text == "" {
		return nil
	}
	return &text
}
