package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/bittensor"
	"github.com/haasonsaas/nexus/internal/budget"
	"github.com/haasonsaas/nexus/internal/domain"
	"github.com/haasonsaas/nexus/internal/observability"
)

// Server exposes the dispatcher over the POST /v1/tools/execute surface
// spec §3 names. Every request must carry a valid Bittensor signature from
// an allow-listed ss58 address.
type Server struct {
	dispatcher *Dispatcher
	allowed    bittensor.AllowList
	logger     *observability.Logger
}

// NewServer builds an HTTP server wrapping dispatcher, gated by allowed.
func NewServer(dispatcher *Dispatcher, allowed bittensor.AllowList, logger *observability.Logger) *Server {
	return &Server{dispatcher: dispatcher, allowed: allowed, logger: logger}
}

// Routes registers this server's handlers onto mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/tools/execute", s.handleExecute)
}

type executeRequest struct {
	SessionID uuid.UUID      `json:"session_id"`
	Token     string         `json:"token"`
	Tool      string         `json:"tool"`
	Args      []any          `json:"args"`
	Kwargs    map[string]any `json:"kwargs"`
}

type executeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to read request body")
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	ss58, err := bittensor.VerifySignedRequest(r.Header.Get("Authorization"), r.Method, r.URL.RequestURI(), body, s.allowed)
	if err != nil {
		var verr *bittensor.VerificationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnauthorized, verr.Code, verr.Message)
			return
		}
		writeError(w, http.StatusUnauthorized, "verification_error", err.Error())
		return
	}
	if s.logger != nil {
		s.logger.Debug(r.Context(), "dispatch request authenticated", "ss58", ss58)
	}

	var req executeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "failed to parse request body")
		return
	}

	args := req.Kwargs
	if args == nil {
		args = map[string]any{}
	}
	if len(req.Args) > 0 {
		args["_positional"] = req.Args
	}

	result, err := s.dispatcher.Execute(r.Context(), Invocation{
		SessionID: req.SessionID,
		Token:     req.Token,
		Tool:      req.Tool,
		Args:      args,
	})
	if err != nil {
		s.writeDispatchError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeDispatchError maps a dispatch error to its response. Per spec §6,
// session-not-found, token-mismatch, concurrency-limit-exceeded,
// budget-exceeded, and session-not-active are all reported as HTTP 400 -
// the client-facing distinction lives in the "code" field, not the status
// line.
func (s *Server) writeDispatchError(w http.ResponseWriter, partial Result, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusBadRequest, "session_not_found", err.Error())
	case errors.Is(err, ErrTokenMismatch):
		writeError(w, http.StatusBadRequest, "permission_error", err.Error())
	case errors.Is(err, ErrConcurrencyLimitExceeded):
		writeError(w, http.StatusBadRequest, "concurrency_limit_exceeded", err.Error())
	case errors.Is(err, domain.ErrUnknownTool):
		writeError(w, http.StatusBadRequest, "unknown_tool", err.Error())
	case errors.Is(err, budget.ErrBudgetExceeded):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":            "budget_exceeded",
			"message":         err.Error(),
			"receipt_id":      partial.ReceiptID,
			"budget_snapshot": partial.BudgetSnapshot,
		})
	default:
		var sessErr *domain.SessionValidationError
		if errors.As(err, &sessErr) {
			writeError(w, http.StatusBadRequest, "session_not_active", sessErr.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "provider_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, executeError{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
