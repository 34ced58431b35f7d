package event

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/mainsync/core/logger"
	"github.com/dmitrymomot/mainsync/internal/guard"
	"github.com/dmitrymomot/mainsync/pkg/fifo"
	"github.com/dmitrymomot/mainsync/pkg/safe"
)

// ErrorHandler receives failures of listeners during a drain. err is either the
// error the listener returned or a *safe.PanicError.
type ErrorHandler func(ctx context.Context, e *Event, l Listener, err error)

// Dispatcher accepts events from any goroutine and delivers them on the goroutine
// that calls Synchronize, once per tick.
type Dispatcher struct {
	registry     *Registry
	queue        *fifo.Queue[*Event]
	guard        *guard.Guard
	logger       *slog.Logger
	errorHandler ErrorHandler

	dispatched atomic.Uint64
	dropped    atomic.Uint64
	delivered  atomic.Uint64
	failed     atomic.Uint64
	panicked   atomic.Uint64
	drains     atomic.Uint64
}

// Stats provides observability counters for a dispatcher.
type Stats struct {
	Dispatched uint64 // Events accepted into the queue
	Dropped    uint64 // Events discarded because no listener was registered
	Delivered  uint64 // Successful listener invocations
	Failed     uint64 // Listener invocations that returned an error
	Panicked   uint64 // Listener invocations that panicked
	Drains     uint64 // Completed Synchronize calls
	Pending    int    // Events waiting for the next drain
	Draining   bool   // Whether a drain is running right now
}

// NewDispatcher creates a dispatcher.
//
// Example:
//
//	d := event.NewDispatcher(event.WithLogger(log))
//	d.Subscribe(PlayerJoined, onJoin)
//
//	// any goroutine
//	d.Dispatch(event.New(PlayerJoined, info))
//
//	// main goroutine, once per tick
//	d.Synchronize(ctx)
func NewDispatcher(opts ...Option) *Dispatcher {
	o := &options{
		logger:         logger.Discard(),
		checkGoroutine: true,
	}
	for _, opt := range opts {
		opt(o)
	}

	d := &Dispatcher{
		registry: NewRegistry(),
		queue:    fifo.New[*Event](),
		guard:    guard.New(o.checkGoroutine),
		logger:   o.logger,
	}
	d.errorHandler = o.errorHandler
	if d.errorHandler == nil {
		d.errorHandler = d.logFailure
	}
	return d
}

// Subscribe registers l for events of type t. See Registry.Subscribe.
func (d *Dispatcher) Subscribe(t Type, l Listener) error {
	return d.registry.Subscribe(t, l)
}

// Unsubscribe removes l from events of type t. See Registry.Unsubscribe.
func (d *Dispatcher) Unsubscribe(t Type, l Listener) error {
	return d.registry.Unsubscribe(t, l)
}

// UnsubscribeAll removes every listener of t.
func (d *Dispatcher) UnsubscribeAll(t Type) error {
	return d.registry.UnsubscribeAll(t)
}

// Clear removes every listener.
func (d *Dispatcher) Clear() {
	d.registry.Clear()
}

// HasListeners reports whether t has listeners, staged additions included.
func (d *Dispatcher) HasListeners(t Type) bool {
	return d.registry.HasListeners(t)
}

// HasListener reports whether l is registered for t, staged additions included.
func (d *Dispatcher) HasListener(t Type, l Listener) bool {
	return d.registry.HasListener(t, l)
}

// Dispatch queues e for the next drain. It never runs listeners and never blocks on them.
// Events of a type without listeners are dropped without being queued.
func (d *Dispatcher) Dispatch(e *Event) error {
	if e == nil {
		return ErrNilEvent
	}
	if !e.Type.Valid() {
		return ErrInvalidEventType
	}

	if !d.registry.HasListeners(e.Type) {
		d.dropped.Add(1)
		return nil
	}

	d.queue.Enqueue(e)
	d.dispatched.Add(1)
	return nil
}

// Synchronize delivers every event queued before the call, in FIFO order, to the
// listeners active at that moment, in subscription order. Events dispatched and
// listeners subscribed while it runs wait for the next call.
//
// It must always be called from the same goroutine and never from a listener.
// Listener failures are reported to the error handler and do not stop the drain.
func (d *Dispatcher) Synchronize(ctx context.Context) error {
	if err := d.guard.Enter(); err != nil {
		return err
	}
	defer d.guard.Exit()

	d.registry.beginDrain()
	defer d.registry.endDrain()

	events := d.queue.DrainAll()
	for _, e := range events {
		entries := d.registry.snapshot(e.Type)
		if len(entries) == 0 {
			d.dropped.Add(1)
			continue
		}
		for _, en := range entries {
			if !d.registry.live(en) {
				continue
			}
			d.invoke(ctx, e, en.listener)
		}
	}

	d.drains.Add(1)
	return nil
}

func (d *Dispatcher) invoke(ctx context.Context, e *Event, l Listener) {
	err := safe.Call(func() error {
		return l.HandleEvent(ctx, e)
	})
	if err == nil {
		d.delivered.Add(1)
		return
	}

	var pe *safe.PanicError
	if errors.As(err, &pe) {
		d.panicked.Add(1)
	} else {
		d.failed.Add(1)
	}

	// The error sink is user code too.
	_ = safe.Call(func() error {
		d.errorHandler(ctx, e, l, err)
		return nil
	})
}

func (d *Dispatcher) logFailure(ctx context.Context, e *Event, l Listener, err error) {
	attrs := []any{
		logger.Component("dispatcher"),
		logger.EventType(e.Type.String()),
		logger.EventID(e.ID),
		slog.Duration("age", time.Since(e.CreatedAt)),
	}

	var pe *safe.PanicError
	if errors.As(err, &pe) {
		d.logger.ErrorContext(ctx, "event listener panicked",
			append(attrs, logger.Panic(pe.Value), logger.StackTrace(pe.Stack))...)
		return
	}

	d.logger.ErrorContext(ctx, "event listener failed", append(attrs, logger.Error(err))...)
}

// Rebind releases the goroutine binding, so the next Synchronize binds to
// whichever goroutine calls it. The synchronizer calls it when a tick loop starts.
// Do not call it while a drain is running.
func (d *Dispatcher) Rebind() {
	d.guard.Release()
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched: d.dispatched.Load(),
		Dropped:    d.dropped.Load(),
		Delivered:  d.delivered.Load(),
		Failed:     d.failed.Load(),
		Panicked:   d.panicked.Load(),
		Drains:     d.drains.Load(),
		Pending:    d.queue.Len(),
		Draining:   d.guard.Active(),
	}
}
