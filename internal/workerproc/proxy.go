package workerproc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// ToolProxy is the entrypoint-facing surface for calling back into the
// host's tool dispatcher. An agent plugin receives one of these per call,
// bound to that call's session and token (spec §9's "context-local tool
// proxy", implemented here as an explicit argument rather than ambient
// thread-local state).
type ToolProxy interface {
	Invoke(ctx context.Context, tool string, args map[string]any) (map[string]any, error)
}

// HTTPToolProxy posts tool invocations to the host container's dispatcher
// at hostURL, authenticating with the session's token and id.
type HTTPToolProxy struct {
	HostURL   string
	SessionID uuid.UUID
	Token     string
	Client    *http.Client
}

type proxyRequest struct {
	SessionID uuid.UUID      `json:"session_id"`
	Token     string         `json:"token"`
	Tool      string         `json:"tool"`
	Kwargs    map[string]any `json:"kwargs"`
}

// Invoke POSTs {session_id, token, tool, kwargs} to the host's
// /v1/tools/execute endpoint and returns the decoded response payload.
func (p *HTTPToolProxy) Invoke(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	body, err := json.Marshal(proxyRequest{
		SessionID: p.SessionID,
		Token:     p.Token,
		Tool:      tool,
		Kwargs:    args,
	})
	if err != nil {
		return nil, fmt.Errorf("workerproc: failed to encode tool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.HostURL+"/v1/tools/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workerproc: tool proxy request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("workerproc: tool %q call failed with status %d: %s", tool, resp.StatusCode, string(raw))
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("workerproc: failed to decode tool response: %w", err)
	}
	return decoded, nil
}
