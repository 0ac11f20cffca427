// Package domain holds the dispenser's core types: the inbound payment
// event, order line items, the slot map, and per-event outcome reporting.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Square event shape the dispenser acts on. Any other event type or payment
// status is acknowledged and ignored.
const (
	EventTypePaymentUpdated = "payment.updated"
	PaymentStatusCompleted  = "COMPLETED"
)

// ErrNotDispenseEvent reports an event that is well-formed but not a
// completed payment carrying an order id. Such events are ignored with no
// side effects.
var ErrNotDispenseEvent = errors.New("event is not a completed payment")

// PaymentEvent is the Square webhook payload for payment updates.
type PaymentEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Data struct {
		Object struct {
			Payment struct {
				Status  string `json:"status"`
				OrderID string `json:"order_id"`
			} `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

// ParsePaymentEvent decodes a webhook body. A decode error here is the only
// condition the webhook endpoint rejects with a 4xx; everything else is
// acknowledged first and inspected later.
func ParsePaymentEvent(body []byte) (PaymentEvent, error) {
	var event PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return PaymentEvent{}, fmt.Errorf("decode payment event: %w", err)
	}
	return event, nil
}

// DispenseOrderID returns the order to dispense for, or ErrNotDispenseEvent
// when the event is not a completed payment with an order id.
func (e PaymentEvent) DispenseOrderID() (string, error) {
	payment := e.Data.Object.Payment
	orderID := strings.TrimSpace(payment.OrderID)
	if e.Type != EventTypePaymentUpdated || payment.Status != PaymentStatusCompleted || orderID == "" {
		return "", ErrNotDispenseEvent
	}
	return orderID, nil
}
