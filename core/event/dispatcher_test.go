package event_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mainsync/core/event"
	"github.com/dmitrymomot/mainsync/pkg/safe"
)

func counter(n *atomic.Int32) event.Listener {
	return event.NewListener(func(ctx context.Context, e *event.Event) error {
		n.Add(1)
		return nil
	})
}

func TestDispatcher_DispatchValidation(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()
	assert.ErrorIs(t, d.Dispatch(nil), event.ErrNilEvent)
	assert.ErrorIs(t, d.Dispatch(&event.Event{}), event.ErrInvalidEventType)
}

func TestDispatcher_DropsEventsWithoutListeners(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()
	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))

	stats := d.Stats()
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, uint64(0), stats.Dispatched)

	// A listener added afterwards does not see the dropped event.
	var n atomic.Int32
	require.NoError(t, d.Subscribe(PlayerJoined, counter(&n)))
	require.NoError(t, d.Synchronize(context.Background()))
	assert.Equal(t, int32(0), n.Load())
}

func TestDispatcher_NothingRunsBeforeSynchronize(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()
	var n atomic.Int32
	require.NoError(t, d.Subscribe(PlayerJoined, counter(&n)))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	assert.Equal(t, int32(0), n.Load())
	assert.Equal(t, 1, d.Stats().Pending)

	require.NoError(t, d.Synchronize(context.Background()))
	assert.Equal(t, int32(1), n.Load())
	assert.Equal(t, 0, d.Stats().Pending)

	// The queue is empty now.
	require.NoError(t, d.Synchronize(context.Background()))
	assert.Equal(t, int32(1), n.Load())
}

func TestDispatcher_DeliversInSubscriptionOrder(t *testing.T) {
	t.Parallel()

	const listeners = 5

	d := event.NewDispatcher()
	var order []int
	for i := range listeners {
		require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
			order = append(order, i)
			return nil
		})))
	}

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, uint64(listeners), d.Stats().Delivered)
}

func TestDispatcher_EventsInFIFOOrder(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()
	var got []any
	require.NoError(t, d.Subscribe(ScoreChanged, event.NewListener(func(ctx context.Context, e *event.Event) error {
		got = append(got, e.Payload)
		return nil
	})))

	for i := range 10 {
		require.NoError(t, d.Dispatch(event.New(ScoreChanged, i)))
	}
	require.NoError(t, d.Synchronize(context.Background()))

	assert.Equal(t, []any{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestDispatcher_OnlyMatchingTypeReceives(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()
	var joined, left atomic.Int32
	require.NoError(t, d.Subscribe(PlayerJoined, counter(&joined)))
	require.NoError(t, d.Subscribe(PlayerLeft, counter(&left)))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Dispatch(event.New(PlayerLeft, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	assert.Equal(t, int32(2), joined.Load())
	assert.Equal(t, int32(1), left.Load())
}

func TestDispatcher_SubscribeDuringDrainStartsNextDrain(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()

	var aCalls, bCalls atomic.Int32
	var stagedVisible bool
	b := counter(&bCalls)
	a := event.NewListener(func(ctx context.Context, e *event.Event) error {
		aCalls.Add(1)
		require.NoError(t, d.Subscribe(PlayerJoined, b))
		stagedVisible = d.HasListener(PlayerJoined, b)
		return nil
	})
	require.NoError(t, d.Subscribe(PlayerJoined, a))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	assert.Equal(t, int32(2), aCalls.Load())
	assert.Equal(t, int32(0), bCalls.Load(), "no same-drain delivery")
	assert.True(t, stagedVisible, "staged additions count for queries")

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	assert.Equal(t, int32(3), aCalls.Load())
	assert.Equal(t, int32(1), bCalls.Load())
}

func TestDispatcher_SubscribeFromOtherGoroutineDuringDrain(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()

	var late atomic.Int32
	lateListener := counter(&late)

	require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = d.Subscribe(PlayerJoined, lateListener)
		}()
		<-done
		return nil
	})))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))
	assert.Equal(t, int32(0), late.Load())

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))
	assert.Equal(t, int32(1), late.Load())
}

func TestDispatcher_UnsubscribeDuringDrainTakesEffectImmediately(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()

	var victimCalls atomic.Int32
	victim := counter(&victimCalls)

	remover := event.NewListener(func(ctx context.Context, e *event.Event) error {
		return d.Unsubscribe(PlayerJoined, victim)
	})

	require.NoError(t, d.Subscribe(PlayerJoined, remover))
	require.NoError(t, d.Subscribe(PlayerJoined, victim))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	assert.Equal(t, int32(0), victimCalls.Load())
	assert.False(t, d.HasListener(PlayerJoined, victim))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))
	assert.Equal(t, int32(0), victimCalls.Load())
}

func TestDispatcher_UnsubscribeLaterEventSameDrain(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()

	var victimCalls atomic.Int32
	victim := counter(&victimCalls)

	require.NoError(t, d.Subscribe(PlayerJoined, victim))
	require.NoError(t, d.Subscribe(PlayerLeft, event.NewListener(func(ctx context.Context, e *event.Event) error {
		return d.Unsubscribe(PlayerJoined, victim)
	})))

	// joined, left (removes victim), joined
	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Dispatch(event.New(PlayerLeft, nil)))
	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	assert.Equal(t, int32(1), victimCalls.Load())
	assert.False(t, d.HasListeners(PlayerJoined))
}

func TestDispatcher_ResubscribeDuringDrain(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()

	var calls atomic.Int32
	target := counter(&calls)

	var once sync.Once
	require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
		once.Do(func() {
			require.NoError(t, d.Unsubscribe(PlayerJoined, target))
			require.NoError(t, d.Subscribe(PlayerJoined, target))
		})
		return nil
	})))
	require.NoError(t, d.Subscribe(PlayerJoined, target))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))
	assert.Equal(t, int32(0), calls.Load(), "removed entry skipped, re-added one staged")
	assert.True(t, d.HasListener(PlayerJoined, target))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcher_StagedAddThenRemove(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()

	var calls atomic.Int32
	target := counter(&calls)

	require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
		require.NoError(t, d.Subscribe(PlayerLeft, target))
		require.NoError(t, d.Unsubscribe(PlayerLeft, target))
		return nil
	})))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	assert.False(t, d.HasListeners(PlayerLeft))
}

func TestDispatcher_ClearDuringDrain(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()

	var after atomic.Int32
	require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
		d.Clear()
		return nil
	})))
	require.NoError(t, d.Subscribe(PlayerJoined, counter(&after)))
	require.NoError(t, d.Subscribe(PlayerLeft, counter(&after)))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Dispatch(event.New(PlayerLeft, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	assert.Equal(t, int32(0), after.Load())
	assert.False(t, d.HasListeners(PlayerJoined))
	assert.False(t, d.HasListeners(PlayerLeft))
}

func TestDispatcher_UnsubscribeAllDuringDrain(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()

	var calls atomic.Int32
	require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
		return d.UnsubscribeAll(PlayerJoined)
	})))
	require.NoError(t, d.Subscribe(PlayerJoined, counter(&calls)))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, d.HasListeners(PlayerJoined))
}

func TestDispatcher_DispatchDuringDrainDefersToNextDrain(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()

	var calls atomic.Int32
	require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
		calls.Add(1)
		return d.Dispatch(event.New(PlayerJoined, nil))
	})))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))

	for i := 1; i <= 3; i++ {
		require.NoError(t, d.Synchronize(context.Background()))
		assert.Equal(t, int32(i), calls.Load(), "one delivery per drain")
		assert.Equal(t, 1, d.Stats().Pending)
	}
}

func TestDispatcher_ListenerFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		reported []error
	)
	d := event.NewDispatcher(event.WithErrorHandler(func(ctx context.Context, e *event.Event, l event.Listener, err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))

	failure := errors.New("listener failed")
	var okCalls atomic.Int32

	require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
		panic("boom")
	})))
	require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
		return failure
	})))
	require.NoError(t, d.Subscribe(PlayerJoined, counter(&okCalls)))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	assert.Equal(t, int32(2), okCalls.Load())

	stats := d.Stats()
	assert.Equal(t, uint64(2), stats.Panicked)
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, uint64(2), stats.Delivered)

	require.Len(t, reported, 4)
	var pe *safe.PanicError
	require.ErrorAs(t, reported[0], &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.ErrorIs(t, reported[1], failure)
}

func TestDispatcher_PanickingErrorHandlerDoesNotStopDrain(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher(event.WithErrorHandler(func(context.Context, *event.Event, event.Listener, error) {
		panic("sink exploded")
	}))

	var calls atomic.Int32
	require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
		return errors.New("fail")
	})))
	require.NoError(t, d.Subscribe(PlayerJoined, counter(&calls)))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcher_DefaultErrorHandlerLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	d := event.NewDispatcher(event.WithLogger(log))

	require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
		panic("kaboom")
	})))
	require.NoError(t, d.Subscribe(PlayerLeft, event.NewListener(func(ctx context.Context, e *event.Event) error {
		return errors.New("nope")
	})))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Dispatch(event.New(PlayerLeft, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "event listener panicked")
	assert.Contains(t, out, "panic=kaboom")
	assert.Contains(t, out, "event listener failed")
	assert.Contains(t, out, "event_type=player.left")
}

func TestDispatcher_ReentrantSynchronizeFails(t *testing.T) {
	t.Parallel()

	d := event.NewDispatcher()

	var inner error
	require.NoError(t, d.Subscribe(PlayerJoined, event.NewListener(func(ctx context.Context, e *event.Event) error {
		inner = d.Synchronize(ctx)
		return nil
	})))

	require.NoError(t, d.Dispatch(event.New(PlayerJoined, nil)))
	require.NoError(t, d.Synchronize(context.Background()))

	assert.ErrorIs(t, inner, event.ErrReentrantSynchronize)
	assert.False(t, d.Stats().Draining)
}

func TestDispatcher_BoundToFirstGoroutine(t *testing.T) {
	t.Parallel()

	t.Run("default rejects other goroutines", func(t *testing.T) {
		t.Parallel()

		d := event.NewDispatcher()
		require.NoError(t, d.Synchronize(context.Background()))

		errCh := make(chan error, 1)
		go func() { errCh <- d.Synchronize(context.Background()) }()
		assert.ErrorIs(t, <-errCh, event.ErrWrongGoroutine)
	})

	t.Run("check disabled", func(t *testing.T) {
		t.Parallel()

		d := event.NewDispatcher(event.WithGoroutineCheck(false))
		require.NoError(t, d.Synchronize(context.Background()))

		errCh := make(chan error, 1)
		go func() { errCh <- d.Synchronize(context.Background()) }()
		assert.NoError(t, <-errCh)
	})

	t.Run("rebind lets another goroutine take over", func(t *testing.T) {
		t.Parallel()

		d := event.NewDispatcher()
		require.NoError(t, d.Synchronize(context.Background()))
		d.Rebind()

		errCh := make(chan error, 1)
		go func() { errCh <- d.Synchronize(context.Background()) }()
		require.NoError(t, <-errCh)

		assert.ErrorIs(t, d.Synchronize(context.Background()), event.ErrWrongGoroutine,
			"the new goroutine now owns the dispatcher")
	})
}

func TestDispatcher_ConcurrentProducers(t *testing.T) {
	t.Parallel()

	const producers, perProducer = 8, 250

	d := event.NewDispatcher()
	var calls atomic.Int32
	require.NoError(t, d.Subscribe(ScoreChanged, counter(&calls)))

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				_ = d.Dispatch(event.New(ScoreChanged, p*perProducer+i))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, d.Synchronize(context.Background()))
	assert.Equal(t, int32(producers*perProducer), calls.Load())
	assert.Equal(t, uint64(producers*perProducer), d.Stats().Dispatched)
}

func TestDispatcher_ProducersRacingWithDrains(t *testing.T) {
	t.Parallel()

	const producers, perProducer = 4, 500

	d := event.NewDispatcher()
	seen := make(map[int]int)
	require.NoError(t, d.Subscribe(ScoreChanged, event.NewListener(func(ctx context.Context, e *event.Event) error {
		seen[e.Payload.(int)]++
		return nil
	})))

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				_ = d.Dispatch(event.New(ScoreChanged, p*perProducer+i))
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	ctx := context.Background()
loop:
	for {
		select {
		case <-done:
			break loop
		default:
			require.NoError(t, d.Synchronize(ctx))
		}
	}
	require.NoError(t, d.Synchronize(ctx))

	require.Len(t, seen, producers*perProducer)
	for v, n := range seen {
		require.Equal(t, 1, n, "value %d delivered %d times", v, n)
	}
}
