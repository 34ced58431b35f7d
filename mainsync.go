package mainsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/mainsync/core/config"
	"github.com/dmitrymomot/mainsync/core/event"
	"github.com/dmitrymomot/mainsync/core/invoker"
	"github.com/dmitrymomot/mainsync/core/logger"
	"github.com/dmitrymomot/mainsync/core/metrics"
	"github.com/dmitrymomot/mainsync/core/synchronizer"
	"github.com/dmitrymomot/mainsync/pkg/async"
)

// MainName is the metrics name of the runtime's own synchronizer and invoker.
const MainName = "main"

// Runtime wires one synchronizer and one invoker together and creates dispatchers
// that are drained on the same tick.
type Runtime struct {
	sync    *synchronizer.Synchronizer
	invoker *invoker.Invoker
	metrics *metrics.Collector
	logger  *slog.Logger

	cfg            synchronizer.Config
	syncOpts       []synchronizer.Option
	invokerOpts    []invoker.Option
	dispatcherOpts []event.Option

	mu      sync.Mutex
	names   map[synchronizer.Participant]string
	workers []func(ctx context.Context) error
}

// New creates a runtime. The invoker is registered with the synchronizer and
// starts running on the first tick.
//
// Example:
//
//	rt := mainsync.New(mainsync.WithLogger(log))
//	world := rt.NewDispatcher("world")
//	world.Subscribe(PlayerJoined, onJoin)
//
//	rt.Go(func(ctx context.Context) error {
//	    return net.Serve(ctx, func(p Player) {
//	        world.Dispatch(event.New(PlayerJoined, p))
//	    })
//	})
//
//	return rt.Run(ctx)
func New(opts ...Option) *Runtime {
	r := &Runtime{
		logger: logger.Discard(),
		cfg:    synchronizer.DefaultConfig(),
		names:  make(map[synchronizer.Participant]string),
	}
	for _, opt := range opts {
		opt(r)
	}

	syncOpts := append([]synchronizer.Option{synchronizer.WithLogger(r.logger)}, r.syncOpts...)
	r.sync = synchronizer.NewFromConfig(r.cfg, syncOpts...)

	invokerOpts := append([]invoker.Option{invoker.WithLogger(r.logger)}, r.invokerOpts...)
	r.invoker = invoker.New(invokerOpts...)

	r.metrics = metrics.NewCollector()
	r.metrics.AddSynchronizer(MainName, r.sync)
	r.metrics.AddInvoker(MainName, r.invoker)

	// A pointer participant always passes validation.
	_ = r.sync.Add(r.invoker)
	return r
}

var (
	defaultOnce    sync.Once
	defaultRuntime *Runtime
)

// Default returns the process-wide runtime, creating it on first use.
// Its tick configuration is read from the environment (SYNC_TICK_INTERVAL,
// SYNC_SHUTDOWN_TIMEOUT), falling back to synchronizer.DefaultConfig.
func Default() *Runtime {
	defaultOnce.Do(func() {
		cfg := synchronizer.DefaultConfig()
		if err := config.Load(&cfg); err != nil {
			cfg = synchronizer.DefaultConfig()
		}
		defaultRuntime = New(WithConfig(cfg))
	})
	return defaultRuntime
}

// Synchronizer returns the runtime's synchronizer.
func (r *Runtime) Synchronizer() *synchronizer.Synchronizer {
	return r.sync
}

// Invoker returns the runtime's invoker.
func (r *Runtime) Invoker() *invoker.Invoker {
	return r.invoker
}

// Metrics returns a Prometheus collector exporting the runtime's components.
// Register it with a prometheus.Registerer to expose it.
func (r *Runtime) Metrics() *metrics.Collector {
	return r.metrics
}

// NewDispatcher creates a dispatcher drained on every tick from the next one on.
// name identifies it in metrics. The dispatcher stays registered until Release.
func (r *Runtime) NewDispatcher(name string, opts ...event.Option) *event.Dispatcher {
	all := append([]event.Option{event.WithLogger(r.logger)}, r.dispatcherOpts...)
	d := event.NewDispatcher(append(all, opts...)...)

	_ = r.sync.Add(d)
	r.metrics.AddDispatcher(name, d)

	r.mu.Lock()
	r.names[d] = name
	r.mu.Unlock()

	r.logger.Debug("dispatcher registered", logger.Component("runtime"), slog.String("dispatcher", name))
	return d
}

// Attach registers any participant with the runtime's synchronizer.
func (r *Runtime) Attach(p synchronizer.Participant) error {
	return r.sync.Add(p)
}

// Release stops synchronizing p from the next tick on and drops its metrics.
// The participant is not closed; whatever is still queued in it stays there.
func (r *Runtime) Release(p synchronizer.Participant) error {
	if err := r.sync.Remove(p); err != nil {
		return err
	}

	r.mu.Lock()
	name, ok := r.names[p]
	delete(r.names, p)
	r.mu.Unlock()

	if ok {
		r.metrics.Remove(name)
	}
	return nil
}

// Invoke queues fn on the runtime's invoker.
func (r *Runtime) Invoke(fn invoker.Func) error {
	return r.invoker.Invoke(fn)
}

// Call queues fn on the runtime's invoker and returns its future.
func (r *Runtime) Call(fn invoker.Func) *async.Future {
	return r.invoker.Call(fn)
}

// Go registers a background worker started by Run. Workers should return when
// their context is done; a worker error stops the runtime.
func (r *Runtime) Go(fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers = append(r.workers, fn)
}

// Run starts the workers and runs the tick loop on the calling goroutine until
// ctx is cancelled or a worker fails. Participants are therefore always drained
// by the goroutine that called Run.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	workers := append([]func(context.Context) error(nil), r.workers...)
	r.mu.Unlock()

	eg, ctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		eg.Go(func() error {
			return w(ctx)
		})
	}

	r.logger.InfoContext(ctx, "runtime started",
		logger.Component("runtime"),
		logger.Count("workers", len(workers)))

	loopErr := r.sync.Start(ctx)
	cancel()
	workerErr := eg.Wait()

	r.logger.InfoContext(context.Background(), "runtime stopped", logger.Component("runtime"))

	if workerErr != nil && !isShutdown(workerErr) {
		return workerErr
	}
	if loopErr != nil && !isShutdown(loopErr) {
		return loopErr
	}
	return nil
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
