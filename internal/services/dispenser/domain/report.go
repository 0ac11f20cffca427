package domain

// Outcome is the terminal state of one webhook event. Every event finishes
// in exactly one of these; no state is re-entered.
type Outcome string

const (
	// OutcomeIgnored means no dispensing happened: the event failed
	// validation, duplicated an admitted order, or the order fetch failed.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeCompleted means every line item resolved and its slot was
	// actuated.
	OutcomeCompleted Outcome = "completed"
	// OutcomePartiallyCompleted means at least one line item failed
	// resolution while the rest were dispensed.
	OutcomePartiallyCompleted Outcome = "partially_completed"
)

// Ignore reasons carried on reports for logging and tests.
const (
	IgnoreReasonNotDispenseEvent = "not_dispense_event"
	IgnoreReasonDuplicateOrder   = "duplicate_order"
	IgnoreReasonGuardFailed      = "guard_failed"
	IgnoreReasonOrderFetchFailed = "order_fetch_failed"
)

// Report summarizes how one webhook event was handled. Reports are
// ephemeral: they feed the log and the tests, never storage.
type Report struct {
	OrderID string
	Outcome Outcome
	// IgnoreReason is set only when Outcome is OutcomeIgnored.
	IgnoreReason string
	// Dispensed lists the slot labels actuated, in line-item order.
	Dispensed []string
	// FailedItems counts line items skipped for resolution or actuation
	// failures.
	FailedItems int
}
