package alerts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ozxc44/queue-monitor-dev/internal/logger"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

// ResultFunc observes the outcome of each dispatch (metrics hook).
type ResultFunc func(event AlertEvent, err error)

// Dispatcher sends events in the background so a slow webhook never holds up
// the polling loop. Failed sends are logged and never retried.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	onResult ResultFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(notifier Notifier, timeout time.Duration, onResult ResultFunc) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		timeout:  timeout,
		onResult: onResult,
	}
}

// Dispatch starts delivery of one event and returns immediately.
func (d *Dispatcher) Dispatch(event AlertEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := d.notifier.Notify(ctx, event)
		if err != nil {
			logger.Warn("DISPATCH", "Failed to send %s alert for queue %s: %v", event.Kind, event.Queue, err)
		}
		if d.onResult != nil {
			d.onResult(event, err)
		}
	}()
	return nil
}

// Close stops accepting events and waits for in-flight sends until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
