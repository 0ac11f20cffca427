// Package http exposes the dispenser's HTTP surface: the Square webhook
// endpoint and a liveness probe.
package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/domain"
)

// maxBodyBytes caps webhook request bodies. Square payment events are a few
// kilobytes; anything near the cap is not a webhook.
const maxBodyBytes = 1 << 20

// EventEnqueuer hands a decoded event to the processing pipeline. Enqueue
// reports whether the event was accepted; a full queue is not the webhook
// caller's problem.
type EventEnqueuer interface {
	Enqueue(event domain.PaymentEvent) bool
}

type webhookResponse struct {
	Message string `json:"message"`
}

// HandleSquareWebhook returns the handler for Square payment notifications.
//
// The contract is acknowledge-first: any structurally valid JSON body gets a
// 200 immediately and the event is inspected out of band. Square retries
// non-2xx deliveries, and a retried completed payment must not vend twice,
// so application outcomes never surface as HTTP errors here.
func HandleSquareWebhook(events EventEnqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "read request body", http.StatusBadRequest)
			return
		}
		event, err := domain.ParsePaymentEvent(body)
		if err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}

		events.Enqueue(event)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(webhookResponse{
			Message: "Webhook received and processing started",
		})
	}
}
