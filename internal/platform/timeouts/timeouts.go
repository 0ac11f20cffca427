// Package timeouts defines shared timeout constants used across commands.
// Centralizing these values prevents drift between the daemon and the
// bench tools and makes the durations discoverable.
package timeouts

import "time"

// SquareRequest caps the wait for a single Square API call. A timed-out
// fetch is treated the same as a failed fetch and is never retried.
const SquareRequest = 30 * time.Second

// ReadHeader limits how long the webhook server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the webhook server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
