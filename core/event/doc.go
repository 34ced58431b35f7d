// Package event delivers typed events from any goroutine to a single main goroutine.
//
// Producers call Dispatch from wherever they run. Nothing executes at that point:
// the event is queued, or dropped when its type has no listeners. Once per tick the
// main goroutine calls Synchronize, which runs the queued events' listeners
// sequentially, in FIFO order and subscription order.
//
// # Core Components
//
// Event carries a Type key, an arbitrary Payload, a UUID and a creation time.
// Declare types as constants so misspelled keys fail to compile.
//
// Listener receives events. Listeners are compared by identity; NewListener wraps a
// func in a fresh pointer, and NewTypedListener additionally converts the payload.
//
// Registry holds listeners per type and stages changes requested while a drain runs.
//
// Dispatcher combines a Registry with a FIFO queue and exposes the producer API and
// Synchronize. It satisfies the participant interface of the synchronizer package,
// so a Synchronizer can drive it every tick.
//
// # Basic Usage
//
//	const (
//		PlayerJoined event.Type = "player.joined"
//		PlayerLeft   event.Type = "player.left"
//	)
//
//	d := event.NewDispatcher(event.WithLogger(log))
//
//	onJoin := event.NewTypedListener(func(ctx context.Context, p Player) error {
//		return world.Spawn(ctx, p)
//	})
//	if err := d.Subscribe(PlayerJoined, onJoin); err != nil {
//		return err
//	}
//
//	// network goroutine
//	go func() {
//		for p := range joins {
//			_ = d.Dispatch(event.New(PlayerJoined, p))
//		}
//	}()
//
//	// main loop
//	for range ticker.C {
//		if err := d.Synchronize(ctx); err != nil {
//			log.Error("drain failed", logger.Error(err))
//		}
//	}
//
// # Drain Semantics
//
// While Synchronize runs:
//
//   - listeners subscribed (from a listener or another goroutine) are staged and
//     receive events from the next drain on
//   - listeners unsubscribed stop immediately, even for events of the current drain
//     that have not been delivered yet
//   - events dispatched are queued for the next drain
//
// HasListeners and HasListener report the effective view: staged additions count,
// staged removals do not.
//
// # Decorators
//
// Decorate wraps a listener with Retry, Filter, WarnSlow or custom decorators.
// The result is a new listener identity.
//
// # Error Handling
//
// Invalid arguments are returned synchronously: ErrNilEvent, ErrNilListener,
// ErrInvalidEventType, ErrListenerNotComparable. A listener that returns an error or
// panics does not stop the drain; the failure goes to the ErrorHandler (by default the
// configured logger) and panics arrive as *safe.PanicError.
//
// Synchronize fails fast with ErrReentrantSynchronize when called from a listener and
// with ErrWrongGoroutine when called from a goroutine other than the first caller's.
// Disable the second check with WithGoroutineCheck(false).
package event
