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

// SearchRepoConfig configures the GitHub-code-search-backed search_repo tool.
type SearchRepoConfig struct {
	BaseURL     string // defaults to https://api.github.com
	Token       string
	ResultLimit int
}

// SearchRepo implements the search_repo REFERENCEABLE tool: code search
// across a GitHub-compatible source-code search API.
type SearchRepo struct {
	cfg    SearchRepoConfig
	client *http.Client
}

// NewSearchRepo builds a search_repo handler.
func NewSearchRepo(cfg SearchRepoConfig, client *http.Client) *SearchRepo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 5
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SearchRepo{cfg: cfg, client: client}
}

func (SearchRepo) Name() string                      { return "search_repo" }
func (SearchRepo) ResultPolicy() domain.ResultPolicy { return domain.PolicyReferenceable }

type repoCodeItem struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	HTMLURL    string `json:"html_url"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

func (s *SearchRepo) Invoke(ctx context.Context, args map[string]any) (Output, error) {
	query, err := requireStringArg("search_repo", args, "query")
	if err != nil {
		return Output{}, err
	}

	endpoint := s.cfg.BaseURL + "/search/code"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Output{}, err
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("per_page", fmt.Sprintf("%d", s.cfg.ResultLimit))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/vnd.github+json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("search_repo: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Output{}, fmt.Errorf("search_repo: backend returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, err
	}
	var parsed struct {
		Items []repoCodeItem `json:"items"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Output{}, fmt.Errorf("search_repo: failed to parse response: %w", err)
	}
	if len(parsed.Items) > s.cfg.ResultLimit {
		parsed.Items = parsed.Items[:s.cfg.ResultLimit]
	}

	return buildSearchOutput(parsed.Items, func(item repoCodeItem) (link, snippet, title string) {
		return item.HTMLURL, item.Path, item.Repository.FullName + "/" + item.Name
	}), nil
}
