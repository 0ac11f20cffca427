// Package slottest actuates whole slots from a terminal: the operator types
// a slot code and the tool pulses that slot's relay set, exercising the same
// lookup and actuation path the dispenser uses.
package slottest

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ieee-uottawa/vending-machine/internal/platform/gpio"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/actuator"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/domain"
)

// DefaultDwell is how long a slot's relays stay on per test pulse. Shorter
// than the dispense dwell: the point is seeing the motor start, not
// completing a vend.
const DefaultDwell = 2 * time.Second

// Config holds slot tester configuration.
type Config struct {
	Dwell      time.Duration
	DryRun     bool
	LayoutPath string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Dwell: DefaultDwell}
	fs.DurationVar(&cfg.Dwell, "dwell", cfg.Dwell, "how long a slot's relays stay on per pulse")
	fs.BoolVar(&cfg.DryRun, "gpio-dry-run", cfg.DryRun, "simulate relay activity instead of driving GPIO")
	fs.StringVar(&cfg.LayoutPath, "slot-layout", cfg.LayoutPath, "YAML slot layout path (empty uses the built-in table)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run opens the relay lines and drives the prompt loop until the input ends,
// the operator types "end", or ctx is cancelled. Every relay is inactive
// again by the time Run returns.
func Run(ctx context.Context, cfg Config, out io.Writer, in io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if in == nil {
		return errors.New("input is required")
	}

	slots := domain.DefaultSlotMap()
	if path := strings.TrimSpace(cfg.LayoutPath); path != "" {
		loaded, err := domain.LoadSlotLayout(path)
		if err != nil {
			return err
		}
		slots = loaded
	}

	lines, err := gpio.Open(cfg.DryRun)
	if err != nil {
		return fmt.Errorf("open relay lines: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = lines.Close() })
	defer stop()
	defer func() { _ = lines.Close() }()

	return run(ctx, cfg, out, in, lines, slots)
}

func run(ctx context.Context, cfg Config, out io.Writer, in io.Reader, lines gpio.Lines, slots *domain.SlotMap) error {
	dwell := cfg.Dwell
	if dwell <= 0 {
		dwell = DefaultDwell
	}
	lane := actuator.NewLane(lines, func(format string, args ...any) {
		fmt.Fprintf(out, format+"\n", args...)
	})

	scanner := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			fmt.Fprintln(out, "\nInterrupted by user.")
			return nil
		}
		fmt.Fprint(out, "\nEnter slot code (A1 to F4) or 'end' to quit: ")
		if !scanner.Scan() {
			break
		}
		slot := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if slot == "END" {
			fmt.Fprintln(out, "Exiting...")
			return nil
		}

		relays, ok := slots.Relays(slot)
		if !ok {
			fmt.Fprintln(out, "Invalid slot. Try A1 to F4.")
			continue
		}
		fmt.Fprintf(out, "Activating %s: relays %v\n", slot, relays)
		for _, relay := range relays {
			fmt.Fprintf(out, "Relay %d ON\n", relay)
		}

		if err := lane.Pulse(ctx, relays, dwell); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, "\nInterrupted by user.")
				return nil
			}
			fmt.Fprintf(out, "pulse failed: %v\n", err)
			continue
		}
		for _, relay := range relays {
			fmt.Fprintf(out, "Relay %d OFF\n", relay)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
