package tools

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetRepoFile_Invoke_DecodesBase64Content(t *testing.T) {
	content := base64.StdEncoding.EncodeToString([]byte("package main\n\nfunc main() {}\n"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/contents/main.go" {
			t.Errorf("path = %q, want /repos/owner/repo/contents/main.go", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"name":"main.go","path":"main.go","content":"` + content + `","encoding":"base64","html_url":"https://github.com/owner/repo/blob/main/main.go"}`))
	}))
	defer srv.Close()

	tool := NewGetRepoFile(GetRepoFileConfig{BaseURL: srv.URL}, srv.Client())
	out, err := tool.Invoke(context.Background(), map[string]any{"owner": "owner", "repo": "repo", "path": "main.go"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(out.Results))
	}
	if out.Results[0].URL != "https://github.com/owner/repo/blob/main/main.go" {
		t.Errorf("URL = %q", out.Results[0].URL)
	}
	payload := out.Payload.(map[string]any)
	if payload["content"] != "package main\n\nfunc main() {}\n" {
		t.Errorf("content = %q, want decoded source", payload["content"])
	}
}

func TestGetRepoFile_Invoke_MissingArgs(t *testing.T) {
	tool := NewGetRepoFile(GetRepoFileConfig{}, nil)
	if _, err := tool.Invoke(context.Background(), map[string]any{"repo": "r", "path": "p"}); err == nil {
		t.Error("expected an error for a missing owner argument")
	}
}

func TestStripNewlines(t *testing.T) {
	if got := stripNewlines("a\nb\r\nc"); got != "abc" {
		t.Errorf("stripNewlines() = %q, want abc", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate() = %q, want hello", got)
	}
	if got := truncate("hello world", 5); got != "hello" {
		t.Errorf("truncate() = %q, want hello", got)
	}
}
