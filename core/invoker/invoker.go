package invoker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/mainsync/core/logger"
	"github.com/dmitrymomot/mainsync/internal/guard"
	"github.com/dmitrymomot/mainsync/pkg/async"
	"github.com/dmitrymomot/mainsync/pkg/fifo"
	"github.com/dmitrymomot/mainsync/pkg/safe"
)

// Func is a parameterless call executed on the draining goroutine.
type Func func(ctx context.Context) error

// Deferred is a handle to a call that takes arguments. The handle is the identity
// used to coalesce submissions, so create it once and reuse it.
type Deferred struct {
	name string
	fn   func(ctx context.Context, args []any) error
}

// NewDeferred creates a handle for fn. name only shows up in logs and may be empty.
// Returns nil for a nil fn.
func NewDeferred(name string, fn func(ctx context.Context, args []any) error) *Deferred {
	if fn == nil {
		return nil
	}
	return &Deferred{name: name, fn: fn}
}

// Name returns the name given to NewDeferred.
func (d *Deferred) Name() string {
	return d.name
}

// ErrorHandler receives failures of deferred calls. d is nil for parameterless calls.
// err is either the returned error or a *safe.PanicError.
type ErrorHandler func(ctx context.Context, d *Deferred, err error)

type call struct {
	fn     Func
	future *async.Future
}

// Invoker queues calls from any goroutine and runs them on the goroutine that
// calls Synchronize, at most one call per queue per tick.
type Invoker struct {
	calls    *fifo.Queue[call]
	deferred *fifo.Queue[*Deferred]

	mu   sync.Mutex
	args map[*Deferred][]any // pending handles and their latest arguments

	guard        *guard.Guard
	logger       *slog.Logger
	errorHandler ErrorHandler

	submitted atomic.Uint64
	coalesced atomic.Uint64
	executed  atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
	ticks     atomic.Uint64
}

// Stats provides observability counters for an invoker.
type Stats struct {
	Submitted uint64 // Calls accepted into a queue
	Coalesced uint64 // InvokeWith calls that replaced the arguments of a pending handle
	Executed  uint64 // Calls that completed without error
	Failed    uint64 // Calls that returned an error
	Panicked  uint64 // Calls that panicked
	Ticks     uint64 // Completed Synchronize calls
	Pending   int    // Calls waiting in both queues
}

// New creates an invoker.
func New(opts ...Option) *Invoker {
	o := &options{
		logger:         logger.Discard(),
		checkGoroutine: true,
	}
	for _, opt := range opts {
		opt(o)
	}

	inv := &Invoker{
		calls:    fifo.New[call](),
		deferred: fifo.New[*Deferred](),
		args:     make(map[*Deferred][]any),
		guard:    guard.New(o.checkGoroutine),
		logger:   o.logger,
	}
	inv.errorHandler = o.errorHandler
	if inv.errorHandler == nil {
		inv.errorHandler = inv.logFailure
	}
	return inv
}

// Invoke queues fn to run on a later tick.
func (inv *Invoker) Invoke(fn Func) error {
	if fn == nil {
		return ErrNilCallable
	}
	inv.calls.Enqueue(call{fn: fn})
	inv.submitted.Add(1)
	return nil
}

// Call queues fn like Invoke and returns a future resolved with the call's result.
// A panic resolves the future with a *safe.PanicError.
//
// Example:
//
//	// worker goroutine
//	err := inv.Call(func(ctx context.Context) error {
//	    return world.Despawn(id)
//	}).AwaitContext(ctx)
func (inv *Invoker) Call(fn Func) *async.Future {
	f := async.NewFuture()
	if fn == nil {
		f.Resolve(ErrNilCallable)
		return f
	}
	inv.calls.Enqueue(call{fn: fn, future: f})
	inv.submitted.Add(1)
	return f
}

// InvokeWith queues d with args. While d is still pending a new call only replaces
// the arguments, so the handle runs once, with the latest arguments.
func (inv *Invoker) InvokeWith(d *Deferred, args ...any) error {
	if d == nil {
		return ErrNilCallable
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, pending := inv.args[d]; pending {
		inv.args[d] = args
		inv.coalesced.Add(1)
		return nil
	}

	inv.args[d] = args
	inv.deferred.Enqueue(d)
	inv.submitted.Add(1)
	return nil
}

// Synchronize runs at most one parameterless call and then at most one deferred
// call. Failures go to the error handler; the call is consumed either way.
// It must always be called from the same goroutine and never from a queued call.
func (inv *Invoker) Synchronize(ctx context.Context) error {
	if err := inv.guard.Enter(); err != nil {
		return err
	}
	defer inv.guard.Exit()

	if c, ok := inv.calls.TryDequeue(); ok {
		err := inv.run(ctx, nil, func() error { return c.fn(ctx) })
		if c.future != nil {
			c.future.Resolve(err)
		}
	}

	if d, ok := inv.deferred.TryDequeue(); ok {
		inv.mu.Lock()
		args := inv.args[d]
		delete(inv.args, d)
		inv.mu.Unlock()

		inv.run(ctx, d, func() error { return d.fn(ctx, args) })
	}

	inv.ticks.Add(1)
	return nil
}

func (inv *Invoker) run(ctx context.Context, d *Deferred, fn func() error) error {
	err := safe.Call(fn)
	if err == nil {
		inv.executed.Add(1)
		return nil
	}

	var pe *safe.PanicError
	if errors.As(err, &pe) {
		inv.panicked.Add(1)
	} else {
		inv.failed.Add(1)
	}

	_ = safe.Call(func() error {
		inv.errorHandler(ctx, d, err)
		return nil
	})
	return err
}

func (inv *Invoker) logFailure(ctx context.Context, d *Deferred, err error) {
	attrs := []any{logger.Component("invoker")}
	if d != nil && d.name != "" {
		attrs = append(attrs, slog.String("deferred", d.name))
	}

	var pe *safe.PanicError
	if errors.As(err, &pe) {
		inv.logger.ErrorContext(ctx, "deferred call panicked",
			append(attrs, logger.Panic(pe.Value), logger.StackTrace(pe.Stack))...)
		return
	}
	inv.logger.ErrorContext(ctx, "deferred call failed", append(attrs, logger.Error(err))...)
}

// Rebind releases the goroutine binding, so the next Synchronize binds to
// whichever goroutine calls it. The synchronizer calls it when a tick loop starts.
func (inv *Invoker) Rebind() {
	inv.guard.Release()
}

// Len returns the number of calls waiting in both queues.
func (inv *Invoker) Len() int {
	return inv.calls.Len() + inv.deferred.Len()
}

// Stats returns current counters.
func (inv *Invoker) Stats() Stats {
	return Stats{
		Submitted: inv.submitted.Load(),
		Coalesced: inv.coalesced.Load(),
		Executed:  inv.executed.Load(),
		Failed:    inv.failed.Load(),
		Panicked:  inv.panicked.Load(),
		Ticks:     inv.ticks.Load(),
		Pending:   inv.Len(),
	}
}
