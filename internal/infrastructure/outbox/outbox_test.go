package outbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/inventory-ledger/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func newTestBus() *Bus {
	bus := NewBus(nil, nil)
	bus.minBackoff = time.Millisecond
	bus.maxBackoff = 5 * time.Millisecond
	return bus
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestBus_DeliversToSubscriber(t *testing.T) {
	bus := newTestBus()
	defer bus.Stop(context.Background())

	var delivered atomic.Int64
	bus.Subscribe("test.event", func(_ context.Context, e domoutbox.Event) error {
		assert.Equal(t, "test.event", e.EventName())
		delivered.Add(1)
		return nil
	})

	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "test.event"}))

	waitFor(t, func() bool { return delivered.Load() == 1 })
}

func TestBus_RetriesTransientFailure(t *testing.T) {
	bus := newTestBus()
	defer bus.Stop(context.Background())

	var attempts atomic.Int64
	bus.Subscribe("test.event", func(context.Context, domoutbox.Event) error {
		if attempts.Add(1) < 3 {
			return errors.New("store unreachable")
		}
		return nil
	})

	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "test.event"}))

	waitFor(t, func() bool { return attempts.Load() == 3 })
}

func TestBus_PermanentFailureNotRetried(t *testing.T) {
	bus := newTestBus()
	defer bus.Stop(context.Background())

	var attempts atomic.Int64
	done := make(chan struct{})
	bus.Subscribe("test.event", func(context.Context, domoutbox.Event) error {
		attempts.Add(1)
		close(done)
		return domoutbox.Permanent(errors.New("unknown item"))
	})

	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "test.event"}))

	<-done
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), attempts.Load())
}

func TestBus_RetryBudgetExhausted(t *testing.T) {
	bus := newTestBus()
	defer bus.Stop(context.Background())

	var attempts atomic.Int64
	bus.Subscribe("test.event", func(context.Context, domoutbox.Event) error {
		attempts.Add(1)
		return errors.New("still broken")
	})

	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "test.event"}))

	waitFor(t, func() bool { return attempts.Load() == int64(bus.maxAttempts) })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(bus.maxAttempts), attempts.Load())
}

func TestBus_FanoutToAllSubscribers(t *testing.T) {
	bus := newTestBus()
	defer bus.Stop(context.Background())

	var first, second atomic.Int64
	bus.Subscribe("test.event", func(context.Context, domoutbox.Event) error {
		first.Add(1)
		return nil
	})
	bus.Subscribe("test.event", func(context.Context, domoutbox.Event) error {
		second.Add(1)
		return nil
	})

	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "test.event"}))

	waitFor(t, func() bool { return first.Load() == 1 && second.Load() == 1 })
}

func TestBus_HandlerPanicDoesNotKillDispatch(t *testing.T) {
	bus := newTestBus()
	defer bus.Stop(context.Background())

	var delivered atomic.Int64
	bus.Subscribe("boom.event", func(context.Context, domoutbox.Event) error {
		panic("handler bug")
	})
	bus.Subscribe("ok.event", func(context.Context, domoutbox.Event) error {
		delivered.Add(1)
		return nil
	})

	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "boom.event"}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "ok.event"}))

	waitFor(t, func() bool { return delivered.Load() == 1 })
}
