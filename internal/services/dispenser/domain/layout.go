package domain

import (
	"fmt"
	"os"

	"github.com/ieee-uottawa/vending-machine/internal/platform/gpio"
	"gopkg.in/yaml.v3"
)

// LoadSlotLayout reads a YAML slot layout and returns the validated slot
// map. The file maps slot labels to relay lists:
//
//	A1: [3, 12, 13, 14]
//	A2: [3, 7, 13, 14]
//
// Machines with a different shelf arrangement override the built-in table
// this way instead of patching the binary.
func LoadSlotLayout(path string) (*SlotMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read slot layout: %w", err)
	}

	var layout map[string][]int
	if err := yaml.Unmarshal(raw, &layout); err != nil {
		return nil, fmt.Errorf("parse slot layout: %w", err)
	}

	converted := make(map[string][]gpio.Relay, len(layout))
	for label, relayNumbers := range layout {
		relays := make([]gpio.Relay, len(relayNumbers))
		for i, number := range relayNumbers {
			relays[i] = gpio.Relay(number)
		}
		converted[label] = relays
	}

	slots, err := NewSlotMap(converted)
	if err != nil {
		return nil, fmt.Errorf("invalid slot layout %s: %w", path, err)
	}
	return slots, nil
}
