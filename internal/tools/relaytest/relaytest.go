// Package relaytest drives individual relay channels from a terminal. It is
// a bench tool for checking driver board wiring before a machine goes out.
package relaytest

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ieee-uottawa/vending-machine/internal/platform/gpio"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/actuator"
)

// DefaultDwell is how long relays stay on per test pulse. Longer than the
// dispense dwell so a meter probe has time to settle.
const DefaultDwell = 5 * time.Second

// Config holds relay tester configuration.
type Config struct {
	Dwell  time.Duration
	DryRun bool
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Dwell: DefaultDwell}
	fs.DurationVar(&cfg.Dwell, "dwell", cfg.Dwell, "how long relays stay on per pulse")
	fs.BoolVar(&cfg.DryRun, "gpio-dry-run", cfg.DryRun, "simulate relay activity instead of driving GPIO")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run opens the relay lines and drives the prompt loop until the input ends,
// the operator types "end", or ctx is cancelled. Every relay is inactive
// again by the time Run returns, including after a signal mid-pulse.
func Run(ctx context.Context, cfg Config, out io.Writer, in io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if in == nil {
		return errors.New("input is required")
	}

	lines, err := gpio.Open(cfg.DryRun)
	if err != nil {
		return fmt.Errorf("open relay lines: %w", err)
	}
	// A signal can arrive while the loop is blocked reading input; closing
	// the lines right away parks every relay instead of waiting for the
	// read to return.
	stop := context.AfterFunc(ctx, func() { _ = lines.Close() })
	defer stop()
	defer func() { _ = lines.Close() }()

	return run(ctx, cfg, out, in, lines)
}

func run(ctx context.Context, cfg Config, out io.Writer, in io.Reader, lines gpio.Lines) error {
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
		fmt.Fprint(out, "\nEnter relay numbers (1-16) to turn ON (or type 'end' to quit): ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(input, "end") {
			fmt.Fprintln(out, "Exiting...")
			return nil
		}

		numbers, err := parseRelayNumbers(input)
		if err != nil {
			fmt.Fprintln(out, "Invalid input. Please enter numbers like: 1 2 5 12")
			continue
		}

		relays := make([]gpio.Relay, 0, len(numbers))
		for _, number := range numbers {
			relay := gpio.Relay(number)
			if !relay.Valid() {
				fmt.Fprintf(out, "Relay %d is out of range (1-16)\n", number)
				continue
			}
			fmt.Fprintf(out, "Relay %d ON\n", relay)
			relays = append(relays, relay)
		}
		if len(relays) == 0 {
			continue
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

func parseRelayNumbers(input string) ([]int, error) {
	fields := strings.Fields(input)
	numbers := make([]int, 0, len(fields))
	for _, field := range fields {
		number, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		numbers = append(numbers, number)
	}
	return numbers, nil
}
