// Package mainsync hands work from any goroutine to one main goroutine.
//
// Producers dispatch events or queue calls without blocking; the main goroutine
// drains everything once per tick. The building blocks live in subpackages:
//
//	github.com/dmitrymomot/mainsync/core/event        - typed events, listener registry and dispatcher
//	github.com/dmitrymomot/mainsync/core/invoker      - deferred calls with coalescing arguments
//	github.com/dmitrymomot/mainsync/core/synchronizer - per-tick driver for dispatchers and invokers
//	github.com/dmitrymomot/mainsync/core/metrics      - Prometheus collector over their stats
//	github.com/dmitrymomot/mainsync/core/config       - environment configuration loading
//	github.com/dmitrymomot/mainsync/core/logger       - slog setup and attribute helpers
//	github.com/dmitrymomot/mainsync/pkg/async         - futures for awaiting queued calls
//	github.com/dmitrymomot/mainsync/pkg/fifo          - unbounded multi-producer FIFO queue
//	github.com/dmitrymomot/mainsync/pkg/safe          - panic isolation for callbacks
//
// Runtime wires them together: one synchronizer, one invoker, any number of
// dispatchers, plus background workers started alongside the tick loop.
//
// # Usage
//
//	rt := mainsync.New(mainsync.WithConfig(cfg), mainsync.WithLogger(log))
//
//	scores := rt.NewDispatcher("scores")
//	scores.Subscribe(ScoreChanged, event.NewTypedListener(func(ctx context.Context, s Score) error {
//	    board.Update(s)
//	    return nil
//	}))
//
//	rt.Go(func(ctx context.Context) error {
//	    for s := range feed(ctx) {
//	        scores.Dispatch(event.New(ScoreChanged, s))
//	    }
//	    return ctx.Err()
//	})
//
//	// Blocks; the calling goroutine becomes the main goroutine.
//	if err := rt.Run(ctx); err != nil {
//	    log.Error("runtime failed", logger.Error(err))
//	}
//
// Applications that own their frame loop call rt.Synchronizer().Tick(ctx) once per
// frame instead of Run.
//
// Default returns a lazily created process-wide runtime for code that has no way
// to pass one around.
package mainsync
