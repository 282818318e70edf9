package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/haasonsaas/nexus/internal/domain"
)

// GetRepoFileConfig configures the get_repo_file backend.
type GetRepoFileConfig struct {
	BaseURL string // defaults to https://api.github.com
	Token   string
}

// GetRepoFile implements the get_repo_file REFERENCEABLE tool: it fetches
// one file's content from a result surfaced by search_repo, keyed by owner,
// repo, and path.
type GetRepoFile struct {
	cfg    GetRepoFileConfig
	client *http.Client
}

// NewGetRepoFile builds a get_repo_file handler.
func NewGetRepoFile(cfg GetRepoFileConfig, client *http.Client) *GetRepoFile {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GetRepoFile{cfg: cfg, client: client}
}

func (GetRepoFile) Name() string                      { return "get_repo_file" }
func (GetRepoFile) ResultPolicy() domain.ResultPolicy { return domain.PolicyReferenceable }

type repoContentResponse struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
	HTMLURL     string `json:"html_url"`
	DownloadURL string `json:"download_url"`
}

func (g *GetRepoFile) Invoke(ctx context.Context, args map[string]any) (Output, error) {
	owner, err := requireStringArg("get_repo_file", args, "owner")
	if err != nil {
		return Output{}, err
	}
	repo, err := requireStringArg("get_repo_file", args, "repo")
	if err != nil {
		return Output{}, err
	}
	path, err := requireStringArg("get_repo_file", args, "path")
	if err != nil {
		return Output{}, err
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.cfg.BaseURL, owner, repo, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Output{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("get_repo_file: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Output{}, fmt.Errorf("get_repo_file: backend returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, err
	}
	var parsed repoContentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Output{}, fmt.Errorf("get_repo_file: failed to parse response: %w", err)
	}

	content := parsed.Content
	if parsed.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(stripNewlines(parsed.Content))
		if err != nil {
			return Output{}, fmt.Errorf("get_repo_file: failed to decode content: %w", err)
		}
		content = string(decoded)
	}

	link := parsed.HTMLURL
	if link == "" {
		link = parsed.DownloadURL
	}
	result := domain.SearchToolResult{
		ToolResult: domain.ToolResult{
			Index:    0,
			ResultID: resultID(link, 0),
			Raw:      map[string]any{"owner": owner, "repo": repo, "path": path},
		},
		URL:   link,
		Note:  noteOrNil(truncate(content, 280)),
		Title: parsed.Name,
	}

	return Output{
		Payload: map[string]any{"path": parsed.Path, "content": content},
		Results: []domain.SearchToolResult{result},
	}, nil
}

func stripNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
