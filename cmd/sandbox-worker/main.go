// Command sandbox-worker is the process run inside each candidate's
// hardened container (spec §4.7). It serves GET /healthz and
// POST /entry/{name}, forking a child process per call; re-exec'd with
// the workerproc.ChildSubcommand argument, it instead runs as that child.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/workerproc"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == workerproc.ChildSubcommand {
		os.Exit(workerproc.RunChild(context.Background()))
	}

	agentPath := os.Getenv("CASTER_AGENT_PATH")
	port := os.Getenv("SANDBOX_PORT")
	if port == "" {
		port = "8181"
	}
	host := os.Getenv("SANDBOX_HOST")
	if host == "" {
		host = "0.0.0.0"
	}
	tokenHeader := os.Getenv("CASTER_TOKEN_HEADER")
	if tokenHeader == "" {
		tokenHeader = "x-caster-token"
	}

	srv := &server{agentPath: agentPath, tokenHeader: tokenHeader}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/entry/", srv.handleEntry)

	addr := fmt.Sprintf("%s:%s", host, port)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintln(os.Stderr, "sandbox-worker: server exited:", err)
		os.Exit(1)
	}
}

type server struct {
	agentPath   string
	tokenHeader string
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type entryRequest struct {
	Payload map[string]any `json:"payload"`
	Context map[string]any `json:"context"`
}

func (s *server) handleEntry(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/entry/")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	token := r.Header.Get(s.tokenHeader)
	if token == "" {
		writeJSONStatus(w, http.StatusUnauthorized, map[string]string{"error": "missing token header"})
		return
	}
	sessionIDRaw := r.Header.Get("x-caster-session-id")
	sessionID, err := uuid.Parse(sessionIDRaw)
	if err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "missing or invalid session id header"})
		return
	}
	hostURL := r.Header.Get("x-caster-host-container-url")

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	var req entryRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	job := workerproc.Job{
		AgentPath: s.agentPath,
		Entry:     name,
		Payload:   req.Payload,
		Context:   req.Context,
		HostURL:   hostURL,
		SessionID: sessionID,
		Token:     token,
	}

	result, err := workerproc.Dispatch(r.Context(), job, workerproc.DefaultEntrypointTimeout)
	if err != nil {
		if errors.Is(err, workerproc.ErrEntrypointTimeout) {
			writeJSONStatus(w, http.StatusGatewayTimeout, map[string]string{"error": "entrypoint timed out"})
			return
		}
		writeJSONStatus(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if !result.OK {
		if result.ErrCode == "MissingEntrypoint" {
			writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": result.ErrorMsg})
			return
		}
		writeJSONStatus(w, http.StatusInternalServerError, map[string]any{
			"error":     result.ErrorMsg,
			"exception": result.ErrCode,
		})
		return
	}

	writeJSONStatus(w, http.StatusOK, map[string]any{"ok": true, "result": result.Verdict})
}

func writeJSONStatus(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
