// Package guard enforces once-per-order dispensing. Square delivers
// webhooks at least once, so the same payment notification can arrive twice;
// admission is the gate that keeps a redelivery from vending the order again.
package guard

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrEmptyOrderID reports an admission attempt without an order id.
var ErrEmptyOrderID = errors.New("order id is required")

// Store records orders as they are admitted for dispensing. Admit is an
// atomic check-and-insert: across any number of calls and concurrent callers
// it returns true exactly once per order id. Admission is never reverted,
// even when processing the order later fails.
type Store interface {
	Admit(ctx context.Context, orderID string) (bool, error)
}

// Memory tracks admitted orders in process memory. Entries are never
// evicted: an order stays admitted until the daemon restarts.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemory returns an empty in-memory admission store.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

// Admit records orderID and reports whether this call was the first to do so.
func (m *Memory) Admit(ctx context.Context, orderID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return false, ErrEmptyOrderID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.seen[orderID]; dup {
		return false, nil
	}
	m.seen[orderID] = struct{}{}
	return true, nil
}

var _ Store = (*Memory)(nil)
