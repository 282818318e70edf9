package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/haasonsaas/nexus/internal/domain"
)

// SearchWebConfig configures the search_web backend. Adapted from the
// multi-backend web search tool (SearXNG primary, DuckDuckGo fallback).
type SearchWebConfig struct {
	SearXNGURL  string
	BraveAPIKey string
	ResultLimit int
}

// SearchWeb implements the search_web REFERENCEABLE tool.
type SearchWeb struct {
	cfg    SearchWebConfig
	client *http.Client
}

// NewSearchWeb builds a search_web handler.
func NewSearchWeb(cfg SearchWebConfig, client *http.Client) *SearchWeb {
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = 5
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SearchWeb{cfg: cfg, client: client}
}

func (SearchWeb) Name() string                      { return "search_web" }
func (SearchWeb) ResultPolicy() domain.ResultPolicy { return domain.PolicyReferenceable }

func (s *SearchWeb) Invoke(ctx context.Context, args map[string]any) (Output, error) {
	query, err := requireStringArg("search_web", args, "query")
	if err != nil {
		return Output{}, err
	}

	var results []webSearchItem
	if s.cfg.SearXNGURL != "" {
		results, err = s.searchSearXNG(ctx, query)
	}
	if s.cfg.SearXNGURL == "" || err != nil {
		results, err = s.searchDuckDuckGo(ctx, query)
		if err != nil {
			return Output{}, fmt.Errorf("search_web: all backends failed: %w", err)
		}
	}

	return buildSearchOutput(results, func(item webSearchItem) (link, snippet, title string) {
		return item.URL, item.Snippet, item.Title
	}), nil
}

type webSearchItem struct {
	Title   string
	URL     string
	Snippet string
}

func (s *SearchWeb) searchSearXNG(ctx context.Context, query string) ([]webSearchItem, error) {
	base, err := url.Parse(s.cfg.SearXNGURL)
	if err != nil {
		return nil, fmt.Errorf("invalid searxng url: %w", err)
	}
	base.Path = "/search"
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("categories", "general")
	base.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	items := make([]webSearchItem, 0, s.cfg.ResultLimit)
	for i := 0; i < len(parsed.Results) && i < s.cfg.ResultLimit; i++ {
		r := parsed.Results[i]
		items = append(items, webSearchItem{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return items, nil
}

func (s *SearchWeb) searchDuckDuckGo(ctx context.Context, query string) ([]webSearchItem, error) {
	reqURL := "https://api.duckduckgo.com/?q=" + url.QueryEscape(query) + "&format=json&no_html=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; caster-validator/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		Heading       string `json:"Heading"`
		RelatedTopics []struct {
			FirstURL string `json:"FirstURL"`
			Text     string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	items := make([]webSearchItem, 0, s.cfg.ResultLimit)
	if parsed.AbstractText != "" && parsed.AbstractURL != "" {
		items = append(items, webSearchItem{Title: parsed.Heading, URL: parsed.AbstractURL, Snippet: parsed.AbstractText})
	}
	for i := 0; i < len(parsed.RelatedTopics) && len(items) < s.cfg.ResultLimit; i++ {
		topic := parsed.RelatedTopics[i]
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		items = append(items, webSearchItem{Title: topic.Text, URL: topic.FirstURL, Snippet: topic.Text})
	}
	return items, nil
}

// buildSearchOutput converts a slice of T into the normalized Output shape,
// assigning each result a stable, content-derived ResultID.
func buildSearchOutput[T any](items []T, fields func(T) (url, snippet, title string)) Output {
	results := make([]domain.SearchToolResult, 0, len(items))
	raw := make([]map[string]any, 0, len(items))
	for i, item := range items {
		link, snippet, title := fields(item)
		results = append(results, domain.SearchToolResult{
			ToolResult: domain.ToolResult{
				Index:    i,
				ResultID: resultID(link, i),
				Raw:      map[string]any{"url": link, "snippet": snippet, "title": title},
			},
			URL:   link,
			Note:  noteOrNil(snippet),
			Title: title,
		})
		raw = append(raw, map[string]any{"url": link, "snippet": snippet, "title": title})
	}
	return Output{Payload: map[string]any{"results": raw}, Results: results}
}

func resultID(seed string, index int) string {
	return "r" + strconv.Itoa(index) + "-" + shortHash(seed)
}
