package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/haasonsaas/nexus/internal/domain"
)

// SearchXConfig configures the X/Twitter search backend.
type SearchXConfig struct {
	BaseURL     string
	BearerToken string
	ResultLimit int
}

// SearchX implements the search_x REFERENCEABLE tool against an
// X-API-compatible recent-search endpoint.
type SearchX struct {
	cfg    SearchXConfig
	client *http.Client
}

// NewSearchX builds a search_x handler.
func NewSearchX(cfg SearchXConfig, client *http.Client) *SearchX {
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 5
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SearchX{cfg: cfg, client: client}
}

func (SearchX) Name() string                      { return "search_x" }
func (SearchX) ResultPolicy() domain.ResultPolicy { return domain.PolicyReferenceable }

type xPost struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (s *SearchX) Invoke(ctx context.Context, args map[string]any) (Output, error) {
	query, err := requireStringArg("search_x", args, "query")
	if err != nil {
		return Output{}, err
	}
	if s.cfg.BaseURL == "" {
		return Output{}, fmt.Errorf("search_x: no backend configured")
	}

	endpoint, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return Output{}, fmt.Errorf("search_x: invalid base url: %w", err)
	}
	q := endpoint.Query()
	q.Set("query", query)
	q.Set("max_results", fmt.Sprintf("%d", s.cfg.ResultLimit))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Output{}, err
	}
	if s.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.BearerToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("search_x: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Output{}, fmt.Errorf("search_x: backend returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, err
	}
	var parsed struct {
		Data []xPost `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Output{}, fmt.Errorf("search_x: failed to parse response: %w", err)
	}

	return buildSearchOutput(parsed.Data, func(post xPost) (link, text, title string) {
		return "https://x.com/i/web/status/" + post.ID, post.Text, ""
	}), nil
}
