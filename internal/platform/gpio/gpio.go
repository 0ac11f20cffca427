// Package gpio drives the relay board behind the dispense hardware.
//
// The relay driver is active-low: pulling a BCM pin low closes the relay and
// powers the slot motor. This package inverts that convention so callers only
// reason about active and inactive relays, never voltage levels. Every
// implementation guarantees that all relays are inactive after construction
// and again after Close, whatever happened in between.
package gpio

import (
	"fmt"
	"sort"
)

// Relay identifies one relay channel on the driver board.
type Relay int

// Relay channels are numbered 1 through 16 to match the silkscreen on the
// driver board.
const (
	MinRelay Relay = 1
	MaxRelay Relay = 16
)

// relayPins maps relay channels to the BCM pins wired to the driver board.
// The harness is soldered; this table never changes at runtime.
var relayPins = map[Relay]int{
	1:  2,
	2:  3,
	3:  4,
	4:  17,
	5:  27,
	6:  22,
	7:  10,
	8:  9,
	9:  11,
	10: 5,
	11: 6,
	12: 13,
	13: 19,
	14: 26,
	15: 14,
	16: 15,
}

// Valid reports whether r names a wired relay channel.
func (r Relay) Valid() bool {
	_, ok := relayPins[r]
	return ok
}

// AllRelays returns every wired relay channel in ascending order.
func AllRelays() []Relay {
	relays := make([]Relay, 0, len(relayPins))
	for relay := range relayPins {
		relays = append(relays, relay)
	}
	sort.Slice(relays, func(i, j int) bool { return relays[i] < relays[j] })
	return relays
}

// Lines drives a set of relay channels. Implementations are safe for use
// from a single goroutine at a time; serialization across callers is the
// actuator lane's job, not this layer's.
type Lines interface {
	// Activate closes every listed relay. Unknown channels are an error and
	// no channel is touched.
	Activate(relays ...Relay) error
	// Deactivate opens every listed relay.
	Deactivate(relays ...Relay) error
	// DeactivateAll opens every wired relay.
	DeactivateAll() error
	// Close restores every relay to inactive and releases the hardware.
	Close() error
}

// Open returns relay lines backed by the Pi's GPIO, or an in-memory fake
// when dryRun is set. Dry-run mode lets the daemon and the bench tools run
// on a workstation with no relay board attached.
func Open(dryRun bool) (Lines, error) {
	if dryRun {
		return NewMemory(), nil
	}
	return OpenBoard()
}

func checkRelays(relays []Relay) error {
	for _, relay := range relays {
		if !relay.Valid() {
			return fmt.Errorf("relay %d is not wired (valid range %d-%d)", relay, MinRelay, MaxRelay)
		}
	}
	return nil
}
