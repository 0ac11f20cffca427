package http

import (
	"log"
	"net/http"
)

// Routes assembles the webhook server's handler tree.
func Routes(events EventEnqueuer, logger *log.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/webhook/square", HandleSquareWebhook(events))
	mux.HandleFunc("/", HandleHealth)
	return RequestLogger(mux, logger)
}
