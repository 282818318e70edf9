package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/domain"
)

// FeedItem is one item from the claim's surrounding feed context, made
// searchable by search_items so a miner agent can pull in nearby posts
// without re-fetching the whole feed.
type FeedItem struct {
	ID      string
	URL     string
	Title   string
	Snippet string
}

// FeedItemSource supplies the candidate items search_items may search over,
// scoped to the claim currently under evaluation.
type FeedItemSource interface {
	Items(claimID string) []FeedItem
}

// SearchItemsConfig configures the search_items tool.
type SearchItemsConfig struct {
	ResultLimit int
}

// SearchItems implements the search_items REFERENCEABLE tool: a keyword
// search over the feed items attached to the claim under evaluation,
// letting a miner agent cite nearby context without calling out to the
// open web.
type SearchItems struct {
	cfg    SearchItemsConfig
	source FeedItemSource
}

// NewSearchItems builds a search_items handler backed by source.
func NewSearchItems(cfg SearchItemsConfig, source FeedItemSource) *SearchItems {
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 5
	}
	return &SearchItems{cfg: cfg, source: source}
}

func (SearchItems) Name() string                      { return "search_items" }
func (SearchItems) ResultPolicy() domain.ResultPolicy { return domain.PolicyReferenceable }

func (s *SearchItems) Invoke(_ context.Context, args map[string]any) (Output, error) {
	query, err := requireStringArg("search_items", args, "query")
	if err != nil {
		return Output{}, err
	}
	claimID, err := requireStringArg("search_items", args, "claim_id")
	if err != nil {
		return Output{}, err
	}
	if s.source == nil {
		return Output{}, fmt.Errorf("search_items: no feed item source configured")
	}

	matched := make([]FeedItem, 0, s.cfg.ResultLimit)
	for _, item := range s.source.Items(claimID) {
		if len(matched) >= s.cfg.ResultLimit {
			break
		}
		if containsFold(item.Title, query) || containsFold(item.Snippet, query) {
			matched = append(matched, item)
		}
	}

	return buildSearchOutput(matched, func(item FeedItem) (link, snippet, title string) {
		return item.URL, item.Snippet, item.Title
	}), nil
}

// containsFold is a case-insensitive substring test, avoiding a dependency
// on full-text search for the small per-claim feed windows this tool scans.
func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
