package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// Board drives the physical relay channels through the Pi's memory-mapped
// GPIO. Construction claims the GPIO device, configures every relay pin as
// an output, and drives it inactive before returning.
type Board struct {
	mu     sync.Mutex
	pins   map[Relay]rpio.Pin
	closed bool
}

// OpenBoard claims the GPIO device and parks every relay inactive.
func OpenBoard() (*Board, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio device: %w", err)
	}

	pins := make(map[Relay]rpio.Pin, len(relayPins))
	for relay, bcm := range relayPins {
		pin := rpio.Pin(bcm)
		pin.Output()
		pin.High()
		pins[relay] = pin
	}
	return &Board{pins: pins}, nil
}

// Activate closes every listed relay by driving its pin low.
func (b *Board) Activate(relays ...Relay) error {
	if err := checkRelays(relays); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("relay board is closed")
	}
	for _, relay := range relays {
		b.pins[relay].Low()
	}
	return nil
}

// Deactivate opens every listed relay by driving its pin high.
func (b *Board) Deactivate(relays ...Relay) error {
	if err := checkRelays(relays); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("relay board is closed")
	}
	for _, relay := range relays {
		b.pins[relay].High()
	}
	return nil
}

// DeactivateAll opens every wired relay.
func (b *Board) DeactivateAll() error {
	return b.Deactivate(AllRelays()...)
}

// Close parks every relay inactive and releases the GPIO device. It is safe
// to call more than once.
func (b *Board) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	for _, pin := range b.pins {
		pin.High()
	}
	b.closed = true
	b.mu.Unlock()
	return rpio.Close()
}

var _ Lines = (*Board)(nil)
