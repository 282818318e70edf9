// Package receiptlog implements the Receipt Log (spec §2): an append-only,
// per-session-indexed store of tool call receipts, consulted by the
// Entrypoint Invoker (collect receipts) and the Evaluation Orchestrator
// (citation hydration). Grounded on sessionreg.Registry's concurrency-safe
// map pattern.
package receiptlog

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/domain"
)

// Log stores receipts keyed by receipt id, with a secondary index by
// session id for the invoker's "collect receipts" step and the
// orchestrator's citation hydration.
type Log struct {
	mu        sync.RWMutex
	byReceipt map[string]domain.Receipt
	bySession map[uuid.UUID][]string
}

// New returns an empty receipt log.
func New() *Log {
	return &Log{
		byReceipt: make(map[string]domain.Receipt),
		bySession: make(map[uuid.UUID][]string),
	}
}

// Record appends receipt, satisfying dispatch.ReceiptSink.
func (l *Log) Record(_ context.Context, receipt domain.Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byReceipt[receipt.ReceiptID] = receipt
	l.bySession[receipt.SessionID] = append(l.bySession[receipt.SessionID], receipt.ReceiptID)
	return nil
}

// Get returns the receipt for id, or false if absent.
func (l *Log) Get(id string) (domain.Receipt, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.byReceipt[id]
	return r, ok
}

// BySession returns every receipt recorded for sessionID, in the order
// they were recorded, satisfying invoker.ReceiptIndex.
func (l *Log) BySession(sessionID uuid.UUID) []domain.Receipt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := l.bySession[sessionID]
	out := make([]domain.Receipt, 0, len(ids))
	for _, id := range ids {
		if r, ok := l.byReceipt[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Clear drops every receipt for sessionID, matching spec §4.9 step 5's
// "clear the session's receipts from the log" and the token registry's
// revoke-time cleanup.
func (l *Log) Clear(sessionID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.bySession[sessionID]
	for _, id := range ids {
		delete(l.byReceipt, id)
	}
	delete(l.bySession, sessionID)
}
