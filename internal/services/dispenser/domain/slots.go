package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ieee-uottawa/vending-machine/internal/platform/gpio"
)

// SlotMap maps slot labels to the ordered relay set that releases the slot.
// It is immutable after construction; the daemon builds one at startup and
// shares it across every event.
type SlotMap struct {
	relays map[string][]gpio.Relay
}

// NewSlotMap validates a layout and returns an immutable slot map. Labels
// are normalized to upper case; every slot must name at least one wired
// relay.
func NewSlotMap(layout map[string][]gpio.Relay) (*SlotMap, error) {
	if len(layout) == 0 {
		return nil, fmt.Errorf("slot layout is empty")
	}
	relays := make(map[string][]gpio.Relay, len(layout))
	for label, slotRelays := range layout {
		normalized := strings.ToUpper(strings.TrimSpace(label))
		if normalized == "" {
			return nil, fmt.Errorf("slot layout contains an empty label")
		}
		if len(slotRelays) == 0 {
			return nil, fmt.Errorf("slot %s has no relays", normalized)
		}
		for _, relay := range slotRelays {
			if !relay.Valid() {
				return nil, fmt.Errorf("slot %s names unwired relay %d", normalized, relay)
			}
		}
		if _, exists := relays[normalized]; exists {
			return nil, fmt.Errorf("slot %s is defined twice", normalized)
		}
		relays[normalized] = append([]gpio.Relay(nil), slotRelays...)
	}
	return &SlotMap{relays: relays}, nil
}

// Relays returns the ordered relay set for a slot label. Lookup is
// case-insensitive; ok is false for labels not in the map.
func (m *SlotMap) Relays(label string) ([]gpio.Relay, bool) {
	slotRelays, ok := m.relays[strings.ToUpper(strings.TrimSpace(label))]
	if !ok {
		return nil, false
	}
	return append([]gpio.Relay(nil), slotRelays...), true
}

// Labels returns every slot label in ascending order.
func (m *SlotMap) Labels() []string {
	labels := make([]string, 0, len(m.relays))
	for label := range m.relays {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Len returns the number of slots in the map.
func (m *SlotMap) Len() int {
	return len(m.relays)
}

// DefaultSlotMap returns the layout of the deployed machine: rows A-C and F
// hold four spiral slots driven by four relays, rows D and E hold eight can
// columns driven by eight relays.
func DefaultSlotMap() *SlotMap {
	slots, err := NewSlotMap(map[string][]gpio.Relay{
		"A1": {3, 12, 13, 14},
		"A2": {3, 7, 13, 14},
		"A3": {3, 7, 12, 14},
		"A4": {3, 7, 12, 13},

		"B1": {2, 12, 13, 14},
		"B2": {2, 7, 13, 14},
		"B3": {2, 7, 12, 14},
		"B4": {2, 7, 12, 13},

		"C1": {5, 12, 13, 14},
		"C2": {5, 7, 13, 14},
		"C3": {5, 7, 12, 14},
		"C4": {5, 7, 12, 13},

		"D1": {4, 16, 15, 14, 13, 12, 10, 8},
		"D2": {4, 16, 15, 14, 13, 10, 8, 7},
		"D3": {4, 16, 15, 14, 12, 10, 8, 7},
		"D4": {4, 16, 15, 13, 12, 10, 8, 7},
		"D5": {4, 16, 14, 13, 12, 7, 8, 10},
		"D6": {4, 16, 14, 13, 12, 7, 8, 15},
		"D7": {4, 15, 14, 13, 12, 10, 8, 7},
		"D8": {4, 16, 15, 14, 13, 12, 10, 7},

		"E1": {1, 16, 15, 14, 13, 12, 10, 8},
		"E2": {1, 16, 15, 14, 13, 10, 8, 7},
		"E3": {1, 16, 15, 14, 12, 10, 8, 7},
		"E4": {1, 16, 15, 13, 12, 10, 8, 7},
		"E5": {1, 16, 14, 13, 12, 7, 8, 10},
		"E6": {1, 16, 14, 13, 12, 7, 8, 15},
		"E7": {1, 15, 14, 13, 12, 10, 8, 7},
		"E8": {1, 16, 15, 14, 13, 12, 10, 7},

		"F1": {6, 12, 13, 14},
		"F2": {6, 7, 13, 14},
		"F3": {6, 7, 12, 14},
		"F4": {6, 7, 12, 13},
	})
	if err != nil {
		// The built-in table is static; a validation failure here is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return slots
}
