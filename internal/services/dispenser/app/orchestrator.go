package server

import (
	"context"
	"time"

	"github.com/ieee-uottawa/vending-machine/internal/platform/gpio"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/actuator"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("vending-machine/dispenser")

// AdmissionStore gates each order to a single dispense. guard.Memory and the
// sqlite ledger satisfy it.
type AdmissionStore interface {
	Admit(ctx context.Context, orderID string) (bool, error)
}

// OrderFetcher loads an order's line items from the payment platform.
type OrderFetcher interface {
	GetOrder(ctx context.Context, orderID string) ([]domain.LineItem, error)
}

// SlotResolver maps a line item's catalog reference to a slot label.
type SlotResolver interface {
	ResolveSlot(ctx context.Context, reference string) (string, error)
}

// RelayPulser actuates a relay set for a dwell. *actuator.Lane satisfies it.
type RelayPulser interface {
	Pulse(ctx context.Context, relays []gpio.Relay, dwell time.Duration) error
}

// OrchestratorDeps collects the collaborators an Orchestrator drives.
type OrchestratorDeps struct {
	Admissions AdmissionStore
	Orders     OrderFetcher
	Resolver   SlotResolver
	Pulser     RelayPulser
	Slots      *domain.SlotMap
	// Dwell is the per-slot activation window. Defaults to
	// actuator.DefaultDwell when zero.
	Dwell time.Duration
	Logf  func(string, ...any)
}

// Orchestrator runs one webhook event through validation, admission, order
// lookup, per-item slot resolution, and actuation. Every event reaches
// exactly one terminal outcome; failures never propagate to the webhook
// endpoint, which acknowledged the delivery before processing began.
type Orchestrator struct {
	admissions AdmissionStore
	orders     OrderFetcher
	resolver   SlotResolver
	pulser     RelayPulser
	slots      *domain.SlotMap
	dwell      time.Duration
	logf       func(string, ...any)
}

// NewOrchestrator returns an orchestrator over the given collaborators.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	dwell := deps.Dwell
	if dwell <= 0 {
		dwell = actuator.DefaultDwell
	}
	logf := deps.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Orchestrator{
		admissions: deps.Admissions,
		orders:     deps.Orders,
		resolver:   deps.Resolver,
		pulser:     deps.Pulser,
		slots:      deps.Slots,
		dwell:      dwell,
		logf:       logf,
	}
}

// Process handles one webhook event to completion and reports what happened.
//
// Events that are not completed payments are ignored without side effects.
// A duplicate order is ignored after the admission check. An order-fetch
// failure is ignored too, and the admission is kept: Square redelivers
// webhooks, and a redelivery of an admitted order must not vend again, so
// the failed order is forfeited rather than retried.
func (o *Orchestrator) Process(ctx context.Context, event domain.PaymentEvent) domain.Report {
	ctx, span := tracer.Start(ctx, "dispenser.process_event", trace.WithAttributes(
		attribute.String("event.type", event.Type),
	))
	defer span.End()

	orderID, err := event.DispenseOrderID()
	if err != nil {
		return o.finish(span, domain.Report{
			Outcome:      domain.OutcomeIgnored,
			IgnoreReason: domain.IgnoreReasonNotDispenseEvent,
		})
	}
	span.SetAttributes(attribute.String("order.id", orderID))

	admitted, err := o.admissions.Admit(ctx, orderID)
	if err != nil {
		o.logf("admit order %s: %v", orderID, err)
		return o.finish(span, domain.Report{
			OrderID:      orderID,
			Outcome:      domain.OutcomeIgnored,
			IgnoreReason: domain.IgnoreReasonGuardFailed,
		})
	}
	if !admitted {
		o.logf("ignoring duplicate webhook for order %s", orderID)
		return o.finish(span, domain.Report{
			OrderID:      orderID,
			Outcome:      domain.OutcomeIgnored,
			IgnoreReason: domain.IgnoreReasonDuplicateOrder,
		})
	}

	o.logf("processing order %s", orderID)
	items, err := o.orders.GetOrder(ctx, orderID)
	if err != nil {
		o.logf("fetch order %s: %v (order forfeited)", orderID, err)
		return o.finish(span, domain.Report{
			OrderID:      orderID,
			Outcome:      domain.OutcomeIgnored,
			IgnoreReason: domain.IgnoreReasonOrderFetchFailed,
		})
	}

	report := domain.Report{OrderID: orderID}
	for _, item := range items {
		reference := item.Reference()
		if reference == "" {
			o.logf("order %s: line item has no catalog reference", orderID)
			report.FailedItems++
			continue
		}
		label, err := o.resolver.ResolveSlot(ctx, reference)
		if err != nil {
			o.logf("order %s: %v", orderID, err)
			report.FailedItems++
			continue
		}
		relays, ok := o.slots.Relays(label)
		if !ok {
			o.logf("order %s: unknown slot label %s", orderID, label)
			report.FailedItems++
			continue
		}
		o.logf("dispensing slot %s for order %s", label, orderID)
		if err := o.pulser.Pulse(ctx, relays, o.dwell); err != nil {
			o.logf("order %s: pulse slot %s: %v", orderID, label, err)
			report.FailedItems++
			continue
		}
		report.Dispensed = append(report.Dispensed, label)
	}

	if report.FailedItems > 0 {
		report.Outcome = domain.OutcomePartiallyCompleted
	} else {
		report.Outcome = domain.OutcomeCompleted
	}
	o.logf("order %s %s: dispensed=%d failed=%d",
		orderID, report.Outcome, len(report.Dispensed), report.FailedItems)
	return o.finish(span, report)
}

func (o *Orchestrator) finish(span trace.Span, report domain.Report) domain.Report {
	span.SetAttributes(
		attribute.String("dispense.outcome", string(report.Outcome)),
		attribute.Int("dispense.slots", len(report.Dispensed)),
		attribute.Int("dispense.failed_items", report.FailedItems),
	)
	if report.IgnoreReason != "" {
		span.SetAttributes(attribute.String("dispense.ignore_reason", report.IgnoreReason))
	}
	return report
}
