// Package actuator pulses relay sets to release products. All pulses in the
// process go through one Lane: the harness shares bus wiring and the supply
// cannot drive two unrelated slots at once, so overlapping activations are a
// hardware correctness problem, not a throughput knob.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ieee-uottawa/vending-machine/internal/platform/gpio"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultDwell is how long relays stay active per dispense on the deployed
// machine. The motors need the full window to complete one spiral turn.
const DefaultDwell = 3300 * time.Millisecond

// ErrNoRelays reports a pulse request with an empty relay set.
var ErrNoRelays = errors.New("no relays to pulse")

var tracer = otel.Tracer("vending-machine/actuator")

// Lane drives relay pulses one at a time. A pulse is all-on, hold for the
// dwell, all-off; the listed relays are deactivated on every exit path,
// including cancellation mid-dwell and activation failure. Callers waiting
// on a busy lane are served in arrival order.
type Lane struct {
	mu    sync.Mutex
	lines gpio.Lines
	logf  func(string, ...any)
}

// NewLane returns a lane over the given relay lines. logf may be nil.
func NewLane(lines gpio.Lines, logf func(string, ...any)) *Lane {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Lane{lines: lines, logf: logf}
}

// Pulse activates every listed relay, holds them for dwell, then deactivates
// them. It blocks while another pulse is in flight. A cancelled context cuts
// the hold short; the relays are still deactivated before returning.
func (l *Lane) Pulse(ctx context.Context, relays []gpio.Relay, dwell time.Duration) error {
	if l == nil || l.lines == nil {
		return errors.New("relay lines are not configured")
	}
	if len(relays) == 0 {
		return ErrNoRelays
	}
	if dwell <= 0 {
		dwell = DefaultDwell
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, span := tracer.Start(ctx, "actuator.pulse", trace.WithAttributes(
		attribute.Int("relay.count", len(relays)),
		attribute.String("relay.dwell", dwell.String()),
	))
	defer span.End()

	if err := l.lines.Activate(relays...); err != nil {
		// The write may have partially applied; park the relays regardless.
		if offErr := l.lines.Deactivate(relays...); offErr != nil {
			l.logf("deactivate relays after failed activation: %v", offErr)
		}
		span.SetStatus(codes.Error, "activate failed")
		span.RecordError(err)
		return fmt.Errorf("activate relays: %w", err)
	}

	var waitErr error
	timer := time.NewTimer(dwell)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		waitErr = ctx.Err()
	}

	if err := l.lines.Deactivate(relays...); err != nil {
		span.SetStatus(codes.Error, "deactivate failed")
		span.RecordError(err)
		return fmt.Errorf("deactivate relays: %w", err)
	}
	if waitErr != nil {
		span.SetStatus(codes.Error, "dwell interrupted")
		return fmt.Errorf("pulse interrupted: %w", waitErr)
	}
	return nil
}
