package workerproc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestHTTPToolProxy_Invoke_Success(t *testing.T) {
	sessionID := uuid.New()
	var gotBody proxyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tools/execute" {
			t.Errorf("path = %q, want /v1/tools/execute", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"results":[{"url":"https://x.example"}]}`))
	}))
	defer srv.Close()

	proxy := &HTTPToolProxy{HostURL: srv.URL, SessionID: sessionID, Token: "tok"}
	result, err := proxy.Invoke(context.Background(), "search_web", map[string]any{"query": "hi"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result["ok"] != true {
		t.Errorf("result = %+v, want ok=true", result)
	}
	if gotBody.SessionID != sessionID || gotBody.Token != "tok" || gotBody.Tool != "search_web" {
		t.Errorf("request body = %+v, want matching session/token/tool", gotBody)
	}
}

func TestHTTPToolProxy_Invoke_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("denied"))
	}))
	defer srv.Close()

	proxy := &HTTPToolProxy{HostURL: srv.URL, SessionID: uuid.New(), Token: "tok"}
	if _, err := proxy.Invoke(context.Background(), "search_web", nil); err == nil {
		t.Error("expected an error for a non-2xx proxy response")
	}
}

func TestLookup(t *testing.T) {
	entrypoints := map[string]EntrypointFunc{
		"evaluate": func(ctx context.Context, payload, feedContext map[string]any, proxy ToolProxy) (Verdict, error) {
			return Verdict{Verdict: 1}, nil
		},
	}

	if _, err := Lookup(entrypoints, "evaluate"); err != nil {
		t.Errorf("Lookup() error = %v, want nil", err)
	}

	_, err := Lookup(entrypoints, "missing")
	if err == nil {
		t.Fatal("expected ErrMissingEntrypoint for an unregistered name")
	}
	var missErr *ErrMissingEntrypoint
	if e, ok := err.(*ErrMissingEntrypoint); ok {
		missErr = e
	}
	if missErr == nil || missErr.Name != "missing" {
		t.Errorf("err = %v, want *ErrMissingEntrypoint{Name: missing}", err)
	}
}
