package server

import (
	"context"
	"sync"

	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/domain"
)

const (
	defaultQueueSize = 64
	defaultWorkers   = 4
)

// Processor runs one webhook event to a terminal outcome. *Orchestrator
// satisfies it.
type Processor interface {
	Process(ctx context.Context, event domain.PaymentEvent) domain.Report
}

// Dispatcher hands webhook events to a fixed pool of workers over a bounded
// queue. The webhook endpoint acknowledges a delivery before processing
// starts, so Enqueue never blocks: when the queue is full the event is
// dropped and logged instead of stalling the endpoint.
type Dispatcher struct {
	processor Processor
	queue     chan domain.PaymentEvent
	workers   int
	logf      func(string, ...any)
	wg        sync.WaitGroup
}

// NewDispatcher returns a dispatcher over processor. Non-positive queueSize
// and workers fall back to the defaults.
func NewDispatcher(processor Processor, queueSize, workers int, logf func(string, ...any)) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Dispatcher{
		processor: processor,
		queue:     make(chan domain.PaymentEvent, queueSize),
		workers:   workers,
		logf:      logf,
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled; call
// Wait to block until they have exited.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case event := <-d.queue:
					d.processor.Process(ctx, event)
				}
			}
		}()
	}
}

// Enqueue queues an event for processing without blocking. It reports false
// when the queue is full and the event was dropped.
func (d *Dispatcher) Enqueue(event domain.PaymentEvent) bool {
	select {
	case d.queue <- event:
		return true
	default:
		d.logf("event queue full, dropping event %s", event.ID)
		return false
	}
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
