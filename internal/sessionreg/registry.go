// Package sessionreg implements the in-memory Session and Token registries
// the tool dispatcher consults on every request: session lookup/update and
// constant-time token verification, grounded on the concurrency-safe map
// patterns in the teacher's internal/auth and internal/agent/tool_exec.go.
package sessionreg

import (
	"crypto/sha256"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/domain"
)

// Registry stores Sessions keyed by ID, safe for concurrent use from the
// HTTP dispatcher's goroutine-per-request handlers.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]domain.Session
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]domain.Session)}
}

// Issue creates and stores a new Active session for uid.
func (r *Registry) Issue(uid int, now time.Time, ttl time.Duration, budgetUSD float64) (domain.Session, error) {
	session, err := domain.NewSession(uid, now, now.Add(ttl), budgetUSD)
	if err != nil {
		return domain.Session{}, err
	}
	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()
	return session, nil
}

// Get returns the session for id, or false if it is not present.
func (r *Registry) Get(id uuid.UUID) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Save replaces the stored copy of session. Callers pass the new value
// returned by a domain.Session transition method (WithUsage, MarkX).
func (r *Registry) Save(session domain.Session) {
	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()
}

// Delete removes a session from the registry, e.g. after evaluation closeout.
func (r *Registry) Delete(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// TokenRegistry maps session IDs to their issued token hash and a
// concurrency semaphore bounding in-flight tool calls for that token.
type TokenRegistry struct {
	mu      sync.Mutex
	tokens  map[uuid.UUID]tokenEntry
}

type tokenEntry struct {
	hash  [32]byte
	permits chan struct{}
}

// NewTokenRegistry returns an empty token registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{tokens: make(map[uuid.UUID]tokenEntry)}
}

// Issue mints a new random-looking token (derived from the session ID and
// a per-issuance nonce by the caller) for sessionID and returns the raw
// token string to hand to the sandboxed agent. concurrency bounds how many
// tool calls using this token may run simultaneously.
func (tr *TokenRegistry) Issue(sessionID uuid.UUID, raw string, concurrency int) {
	hash := sha256.Sum256([]byte(raw))
	if concurrency <= 0 {
		concurrency = 1
	}
	tr.mu.Lock()
	tr.tokens[sessionID] = tokenEntry{hash: hash, permits: make(chan struct{}, concurrency)}
	tr.mu.Unlock()
}

// Revoke removes a session's token, e.g. at evaluation closeout.
func (tr *TokenRegistry) Revoke(sessionID uuid.UUID) {
	tr.mu.Lock()
	delete(tr.tokens, sessionID)
	tr.mu.Unlock()
}

// Verify reports whether raw is the token issued for sessionID, using a
// constant-time comparison so token-guessing cannot be timed.
func (tr *TokenRegistry) Verify(sessionID uuid.UUID, raw string) bool {
	tr.mu.Lock()
	entry, ok := tr.tokens[sessionID]
	tr.mu.Unlock()
	if !ok {
		return false
	}
	candidate := sha256.Sum256([]byte(raw))
	return subtle.ConstantTimeCompare(entry.hash[:], candidate[:]) == 1
}

// AcquirePermit tries to take a concurrency slot for sessionID's token,
// returning immediately rather than waiting for one to free: spec §4.3
// step 3 treats non-immediate contention as CONCURRENCY_LIMIT_EXCEEDED,
// not something to queue behind. ok is false if the session has no issued
// token or every permit is already held.
func (tr *TokenRegistry) AcquirePermit(sessionID uuid.UUID) (release func(), ok bool) {
	tr.mu.Lock()
	entry, found := tr.tokens[sessionID]
	tr.mu.Unlock()
	if !found {
		return nil, false
	}
	select {
	case entry.permits <- struct{}{}:
		return func() { <-entry.permits }, true
	default:
		return nil, false
	}
}
