package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ieee-uottawa/vending-machine/internal/platform/gpio"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/domain"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/guard"
)

type stubAdmissions struct {
	admitted bool
	err      error
	calls    []string
}

func (s *stubAdmissions) Admit(_ context.Context, orderID string) (bool, error) {
	s.calls = append(s.calls, orderID)
	if s.err != nil {
		return false, s.err
	}
	return s.admitted, nil
}

type stubOrders struct {
	items []domain.LineItem
	err   error
	calls int
}

func (s *stubOrders) GetOrder(_ context.Context, _ string) ([]domain.LineItem, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

type stubResolver struct {
	labels map[string]string
	errs   map[string]error
}

func (s *stubResolver) ResolveSlot(_ context.Context, reference string) (string, error) {
	if err := s.errs[reference]; err != nil {
		return "", err
	}
	if label, ok := s.labels[reference]; ok {
		return label, nil
	}
	return "", errors.New("unexpected reference " + reference)
}

type stubPulser struct {
	pulses [][]gpio.Relay
	dwells []time.Duration
	err    error
	failOn int // 1-based call number the error applies to; 0 means every call
}

func (s *stubPulser) Pulse(_ context.Context, relays []gpio.Relay, dwell time.Duration) error {
	s.pulses = append(s.pulses, append([]gpio.Relay(nil), relays...))
	s.dwells = append(s.dwells, dwell)
	if s.err != nil && (s.failOn == 0 || s.failOn == len(s.pulses)) {
		return s.err
	}
	return nil
}

func newTestOrchestrator(t *testing.T, deps OrchestratorDeps) *Orchestrator {
	t.Helper()
	if deps.Admissions == nil {
		deps.Admissions = &stubAdmissions{admitted: true}
	}
	if deps.Orders == nil {
		deps.Orders = &stubOrders{}
	}
	if deps.Resolver == nil {
		deps.Resolver = &stubResolver{}
	}
	if deps.Pulser == nil {
		deps.Pulser = &stubPulser{}
	}
	if deps.Slots == nil {
		deps.Slots = domain.DefaultSlotMap()
	}
	if deps.Logf == nil {
		deps.Logf = t.Logf
	}
	return NewOrchestrator(deps)
}

func completedPayment(orderID string) domain.PaymentEvent {
	var event domain.PaymentEvent
	event.Type = domain.EventTypePaymentUpdated
	event.ID = "evt-" + orderID
	event.Data.Object.Payment.Status = domain.PaymentStatusCompleted
	event.Data.Object.Payment.OrderID = orderID
	return event
}

func TestProcessDispensesEveryItemInOrder(t *testing.T) {
	pulser := &stubPulser{}
	orchestrator := newTestOrchestrator(t, OrchestratorDeps{
		Orders: &stubOrders{items: []domain.LineItem{
			{UID: "li-1", CatalogObjectID: "cat-a"},
			{UID: "li-2", CatalogObjectID: "cat-b"},
		}},
		Resolver: &stubResolver{labels: map[string]string{"cat-a": "A1", "cat-b": "B2"}},
		Pulser:   pulser,
		Dwell:    50 * time.Millisecond,
	})

	report := orchestrator.Process(context.Background(), completedPayment("order-1"))

	if report.Outcome != domain.OutcomeCompleted {
		t.Fatalf("outcome = %q, want %q", report.Outcome, domain.OutcomeCompleted)
	}
	if len(report.Dispensed) != 2 || report.Dispensed[0] != "A1" || report.Dispensed[1] != "B2" {
		t.Fatalf("dispensed = %v, want [A1 B2]", report.Dispensed)
	}
	if report.FailedItems != 0 {
		t.Fatalf("failed items = %d, want 0", report.FailedItems)
	}
	if len(pulser.pulses) != 2 {
		t.Fatalf("pulses = %d, want 2", len(pulser.pulses))
	}
	slots := domain.DefaultSlotMap()
	wantA1, _ := slots.Relays("A1")
	if len(pulser.pulses[0]) != len(wantA1) {
		t.Fatalf("first pulse relays = %v, want %v", pulser.pulses[0], wantA1)
	}
	for i, relay := range wantA1 {
		if pulser.pulses[0][i] != relay {
			t.Fatalf("first pulse relays = %v, want %v", pulser.pulses[0], wantA1)
		}
	}
	if pulser.dwells[0] != 50*time.Millisecond {
		t.Fatalf("dwell = %v, want 50ms", pulser.dwells[0])
	}
}

func TestProcessIgnoresNonDispenseEvents(t *testing.T) {
	tests := []struct {
		name  string
		event domain.PaymentEvent
	}{
		{name: "wrong type", event: func() domain.PaymentEvent {
			event := completedPayment("order-1")
			event.Type = "invoice.created"
			return event
		}()},
		{name: "payment not completed", event: func() domain.PaymentEvent {
			event := completedPayment("order-1")
			event.Data.Object.Payment.Status = "APPROVED"
			return event
		}()},
		{name: "missing order id", event: func() domain.PaymentEvent {
			event := completedPayment("")
			return event
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admissions := &stubAdmissions{admitted: true}
			orders := &stubOrders{}
			pulser := &stubPulser{}
			orchestrator := newTestOrchestrator(t, OrchestratorDeps{
				Admissions: admissions,
				Orders:     orders,
				Pulser:     pulser,
			})

			report := orchestrator.Process(context.Background(), tt.event)

			if report.Outcome != domain.OutcomeIgnored {
				t.Fatalf("outcome = %q, want %q", report.Outcome, domain.OutcomeIgnored)
			}
			if report.IgnoreReason != domain.IgnoreReasonNotDispenseEvent {
				t.Fatalf("ignore reason = %q, want %q", report.IgnoreReason, domain.IgnoreReasonNotDispenseEvent)
			}
			if len(admissions.calls) != 0 {
				t.Fatalf("admission calls = %v, want none", admissions.calls)
			}
			if orders.calls != 0 || len(pulser.pulses) != 0 {
				t.Fatalf("fetches = %d, pulses = %d, want no side effects", orders.calls, len(pulser.pulses))
			}
		})
	}
}

func TestProcessIgnoresDuplicateOrders(t *testing.T) {
	orders := &stubOrders{}
	pulser := &stubPulser{}
	orchestrator := newTestOrchestrator(t, OrchestratorDeps{
		Admissions: &stubAdmissions{admitted: false},
		Orders:     orders,
		Pulser:     pulser,
	})

	report := orchestrator.Process(context.Background(), completedPayment("order-1"))

	if report.Outcome != domain.OutcomeIgnored {
		t.Fatalf("outcome = %q, want %q", report.Outcome, domain.OutcomeIgnored)
	}
	if report.IgnoreReason != domain.IgnoreReasonDuplicateOrder {
		t.Fatalf("ignore reason = %q, want %q", report.IgnoreReason, domain.IgnoreReasonDuplicateOrder)
	}
	if orders.calls != 0 {
		t.Fatalf("order fetches = %d, want 0", orders.calls)
	}
	if len(pulser.pulses) != 0 {
		t.Fatalf("pulses = %d, want 0", len(pulser.pulses))
	}
}

func TestProcessIgnoresOnGuardError(t *testing.T) {
	orders := &stubOrders{}
	orchestrator := newTestOrchestrator(t, OrchestratorDeps{
		Admissions: &stubAdmissions{err: errors.New("ledger unavailable")},
		Orders:     orders,
	})

	report := orchestrator.Process(context.Background(), completedPayment("order-1"))

	if report.Outcome != domain.OutcomeIgnored {
		t.Fatalf("outcome = %q, want %q", report.Outcome, domain.OutcomeIgnored)
	}
	if report.IgnoreReason != domain.IgnoreReasonGuardFailed {
		t.Fatalf("ignore reason = %q, want %q", report.IgnoreReason, domain.IgnoreReasonGuardFailed)
	}
	if orders.calls != 0 {
		t.Fatalf("order fetches = %d, want 0", orders.calls)
	}
}

func TestProcessKeepsAdmissionWhenOrderFetchFails(t *testing.T) {
	admissions := guard.NewMemory()
	pulser := &stubPulser{}
	orchestrator := newTestOrchestrator(t, OrchestratorDeps{
		Admissions: admissions,
		Orders:     &stubOrders{err: errors.New("square is down")},
		Pulser:     pulser,
	})

	report := orchestrator.Process(context.Background(), completedPayment("order-1"))

	if report.Outcome != domain.OutcomeIgnored {
		t.Fatalf("outcome = %q, want %q", report.Outcome, domain.OutcomeIgnored)
	}
	if report.IgnoreReason != domain.IgnoreReasonOrderFetchFailed {
		t.Fatalf("ignore reason = %q, want %q", report.IgnoreReason, domain.IgnoreReasonOrderFetchFailed)
	}
	if len(pulser.pulses) != 0 {
		t.Fatalf("pulses = %d, want 0", len(pulser.pulses))
	}

	// The order stays admitted: a redelivery after the failed fetch is a
	// duplicate, not a second chance.
	admitted, err := admissions.Admit(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if admitted {
		t.Fatal("order-1 re-admitted after fetch failure, want it kept admitted")
	}
}

func TestProcessPartialCompletion(t *testing.T) {
	pulser := &stubPulser{}
	orchestrator := newTestOrchestrator(t, OrchestratorDeps{
		Orders: &stubOrders{items: []domain.LineItem{
			{UID: "li-1", CatalogObjectID: "cat-good"},
			{UID: "li-2", CatalogObjectID: "cat-broken"},
			{UID: "li-3", CatalogObjectID: "cat-ghost"},
		}},
		Resolver: &stubResolver{
			labels: map[string]string{
				"cat-good":  "C3",
				"cat-ghost": "Z9", // resolves, but no such slot on this machine
			},
			errs: map[string]error{
				"cat-broken": errors.New("no attributes"),
			},
		},
		Pulser: pulser,
	})

	report := orchestrator.Process(context.Background(), completedPayment("order-1"))

	if report.Outcome != domain.OutcomePartiallyCompleted {
		t.Fatalf("outcome = %q, want %q", report.Outcome, domain.OutcomePartiallyCompleted)
	}
	if len(report.Dispensed) != 1 || report.Dispensed[0] != "C3" {
		t.Fatalf("dispensed = %v, want [C3]", report.Dispensed)
	}
	if report.FailedItems != 2 {
		t.Fatalf("failed items = %d, want 2", report.FailedItems)
	}
	if len(pulser.pulses) != 1 {
		t.Fatalf("pulses = %d, want 1", len(pulser.pulses))
	}
}

func TestProcessPulseFailureCountsItem(t *testing.T) {
	orchestrator := newTestOrchestrator(t, OrchestratorDeps{
		Orders: &stubOrders{items: []domain.LineItem{
			{UID: "li-1", CatalogObjectID: "cat-a"},
		}},
		Resolver: &stubResolver{labels: map[string]string{"cat-a": "A1"}},
		Pulser:   &stubPulser{err: errors.New("relay board fault")},
	})

	report := orchestrator.Process(context.Background(), completedPayment("order-1"))

	if report.Outcome != domain.OutcomePartiallyCompleted {
		t.Fatalf("outcome = %q, want %q", report.Outcome, domain.OutcomePartiallyCompleted)
	}
	if len(report.Dispensed) != 0 {
		t.Fatalf("dispensed = %v, want none", report.Dispensed)
	}
	if report.FailedItems != 1 {
		t.Fatalf("failed items = %d, want 1", report.FailedItems)
	}
}

func TestProcessSkipsItemsWithoutReference(t *testing.T) {
	pulser := &stubPulser{}
	orchestrator := newTestOrchestrator(t, OrchestratorDeps{
		Orders: &stubOrders{items: []domain.LineItem{
			{},
			{UID: "li-2", CatalogObjectID: "cat-a"},
		}},
		Resolver: &stubResolver{labels: map[string]string{"cat-a": "F4"}},
		Pulser:   pulser,
	})

	report := orchestrator.Process(context.Background(), completedPayment("order-1"))

	if report.Outcome != domain.OutcomePartiallyCompleted {
		t.Fatalf("outcome = %q, want %q", report.Outcome, domain.OutcomePartiallyCompleted)
	}
	if len(report.Dispensed) != 1 || report.Dispensed[0] != "F4" {
		t.Fatalf("dispensed = %v, want [F4]", report.Dispensed)
	}
	if report.FailedItems != 1 {
		t.Fatalf("failed items = %d, want 1", report.FailedItems)
	}
}

func TestProcessEmptyOrderCompletes(t *testing.T) {
	pulser := &stubPulser{}
	orchestrator := newTestOrchestrator(t, OrchestratorDeps{
		Orders: &stubOrders{},
		Pulser: pulser,
	})

	report := orchestrator.Process(context.Background(), completedPayment("order-1"))

	if report.Outcome != domain.OutcomeCompleted {
		t.Fatalf("outcome = %q, want %q", report.Outcome, domain.OutcomeCompleted)
	}
	if len(report.Dispensed) != 0 || report.FailedItems != 0 {
		t.Fatalf("report = %+v, want no activity", report)
	}
}

func TestProcessSameOrderTwiceActuatesOnce(t *testing.T) {
	pulser := &stubPulser{}
	orchestrator := newTestOrchestrator(t, OrchestratorDeps{
		Admissions: guard.NewMemory(),
		Orders: &stubOrders{items: []domain.LineItem{
			{UID: "li-1", CatalogObjectID: "cat-a"},
		}},
		Resolver: &stubResolver{labels: map[string]string{"cat-a": "D5"}},
		Pulser:   pulser,
	})

	event := completedPayment("order-1")
	first := orchestrator.Process(context.Background(), event)
	second := orchestrator.Process(context.Background(), event)

	if first.Outcome != domain.OutcomeCompleted {
		t.Fatalf("first outcome = %q, want %q", first.Outcome, domain.OutcomeCompleted)
	}
	if second.Outcome != domain.OutcomeIgnored || second.IgnoreReason != domain.IgnoreReasonDuplicateOrder {
		t.Fatalf("second outcome = %q (%q), want ignored duplicate", second.Outcome, second.IgnoreReason)
	}
	if len(pulser.pulses) != 1 {
		t.Fatalf("pulses = %d, want exactly 1", len(pulser.pulses))
	}
}
