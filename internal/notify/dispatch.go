package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bugmaker2/Inspector/internal/metrics"
)

// Deliverer pushes an event to an external system.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// Multi fans every event out to all sinks in order.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Notify(ctx, ev)
	}
}

// Async runs a Deliverer on its own goroutine so Notify returns immediately.
type Async struct {
	d       Deliverer
	timeout time.Duration
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewAsync(d Deliverer, timeout time.Duration, m *metrics.Metrics) *Async {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Async{d: d, timeout: timeout, metrics: metrics.OrDiscard(m)}
}

func (a *Async) Notify(_ context.Context, ev Event) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		// Delivery outlives the request that triggered it.
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.d.Deliver(ctx, ev); err != nil {
			logrus.WithFields(logrus.Fields{
				"sink":       a.d.Name(),
				"event_id":   ev.ID,
				"event_type": ev.Type,
			}).Warnf("Failed to deliver notification: %v", err)
			a.metrics.NotificationsDropped.WithLabelValues(a.d.Name()).Inc()
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (a *Async) Wait() {
	a.wg.Wait()
}
