package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Process-wide counters for the order fulfillment flow.
var (
	OrdersCreated    Counter
	OrdersRejected   Counter
	OrdersCancelled  Counter
	WebhookProcessed Counter
	WebhookRejected  Counter
	WebhookDropped   Counter
)

// Snapshot returns the current counter values for the stats endpoint.
func Snapshot() map[string]uint64 {
	return map[string]uint64{
		"orders_created":    OrdersCreated.Load(),
		"orders_rejected":   OrdersRejected.Load(),
		"orders_cancelled":  OrdersCancelled.Load(),
		"webhook_processed": WebhookProcessed.Load(),
		"webhook_rejected":  WebhookRejected.Load(),
		"webhook_dropped":   WebhookDropped.Load(),
	}
}
