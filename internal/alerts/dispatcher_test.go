package alerts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type blockingNotifier struct {
	release chan struct{}
	started chan struct{}
}

func (b *blockingNotifier) Notify(ctx context.Context, _ AlertEvent) error {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestDispatcher_DoesNotBlockCaller(t *testing.T) {
	defer goleak.VerifyNone(t)

	n := &blockingNotifier{release: make(chan struct{}), started: make(chan struct{}, 4)}
	d := NewDispatcher(n, time.Minute, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Dispatch(depthEvent()))
	}
	for i := 0; i < 3; i++ {
		<-n.started
	}

	close(n.release)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_ReportsResults(t *testing.T) {
	defer goleak.VerifyNone(t)

	var (
		mu      sync.Mutex
		results []error
	)
	sentinel := errors.New("boom")
	n := &captureNotifier{err: sentinel}
	d := NewDispatcher(n, time.Second, func(_ AlertEvent, err error) {
		mu.Lock()
		results = append(results, err)
		mu.Unlock()
	})

	require.NoError(t, d.Dispatch(depthEvent()))
	require.NoError(t, d.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0], sentinel)
	assert.Len(t, n.Events(), 1)
}

func TestDispatcher_TimeoutCancelsSend(t *testing.T) {
	defer goleak.VerifyNone(t)

	var got atomic.Value
	n := &blockingNotifier{release: make(chan struct{}), started: make(chan struct{}, 1)}
	d := NewDispatcher(n, 20*time.Millisecond, func(_ AlertEvent, err error) { got.Store(err) })

	require.NoError(t, d.Dispatch(depthEvent()))
	require.NoError(t, d.Close(context.Background()))
	assert.ErrorIs(t, got.Load().(error), context.DeadlineExceeded)
}

func TestDispatcher_CloseIsBoundedAndRejectsNewEvents(t *testing.T) {
	n := &blockingNotifier{release: make(chan struct{}), started: make(chan struct{}, 1)}
	d := NewDispatcher(n, time.Minute, nil)

	require.NoError(t, d.Dispatch(depthEvent()))
	<-n.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	assert.ErrorIs(t, d.Dispatch(depthEvent()), ErrDispatcherClosed)

	close(n.release)
	require.NoError(t, d.Close(context.Background()))
}
