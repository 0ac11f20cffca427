package gpio

import (
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-memory Lines implementation for dry runs and tests. It
// records a snapshot of the active set after every state change so tests can
// assert actuation bracketing: which relays were active, in what order, and
// that nothing was left active at the end.
type Memory struct {
	mu       sync.Mutex
	active   map[Relay]bool
	timeline [][]Relay
	closed   bool

	// ActivateErr, when set, is returned by Activate without changing any
	// relay state. Tests use it to simulate a hardware write fault.
	ActivateErr error
	// DeactivateErr, when set, is returned by Deactivate after the state
	// change is recorded, mimicking a fault on the restore path.
	DeactivateErr error
}

// NewMemory returns relay lines with every channel inactive.
func NewMemory() *Memory {
	return &Memory{active: make(map[Relay]bool)}
}

// Activate marks every listed relay active.
func (m *Memory) Activate(relays ...Relay) error {
	if err := checkRelays(relays); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("relay lines are closed")
	}
	if m.ActivateErr != nil {
		return m.ActivateErr
	}
	for _, relay := range relays {
		m.active[relay] = true
	}
	m.record()
	return nil
}

// Deactivate marks every listed relay inactive.
func (m *Memory) Deactivate(relays ...Relay) error {
	if err := checkRelays(relays); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("relay lines are closed")
	}
	for _, relay := range relays {
		delete(m.active, relay)
	}
	m.record()
	if m.DeactivateErr != nil {
		return m.DeactivateErr
	}
	return nil
}

// DeactivateAll marks every wired relay inactive.
func (m *Memory) DeactivateAll() error {
	return m.Deactivate(AllRelays()...)
}

// Close marks every relay inactive and rejects further use.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.active = make(map[Relay]bool)
	m.record()
	m.closed = true
	return nil
}

// Active returns the currently active relays in ascending order.
func (m *Memory) Active() []Relay {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

// Timeline returns a snapshot of the active set after each state change.
func (m *Memory) Timeline() [][]Relay {
	m.mu.Lock()
	defer m.mu.Unlock()
	timeline := make([][]Relay, len(m.timeline))
	for i, snapshot := range m.timeline {
		timeline[i] = append([]Relay(nil), snapshot...)
	}
	return timeline
}

func (m *Memory) record() {
	m.timeline = append(m.timeline, m.activeLocked())
}

func (m *Memory) activeLocked() []Relay {
	relays := make([]Relay, 0, len(m.active))
	for relay := range m.active {
		relays = append(relays, relay)
	}
	sort.Slice(relays, func(i, j int) bool { return relays[i] < relays[j] })
	return relays
}

var _ Lines = (*Memory)(nil)
