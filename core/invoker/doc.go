// Package invoker runs deferred calls from worker goroutines on a single
// draining goroutine, one call per queue per tick.
//
// There are two queues. Parameterless calls submitted with Invoke or Call run in
// submission order. Calls with arguments go through a Deferred handle: while a
// handle is pending, InvokeWith only replaces its arguments, so a burst of
// updates collapses into one call with the latest values.
//
//	inv := invoker.New(invoker.WithLogger(log))
//
//	setHealth := invoker.NewDeferred("set-health", func(ctx context.Context, args []any) error {
//	    hud.SetHealth(args[0].(int))
//	    return nil
//	})
//
//	// any goroutine
//	inv.InvokeWith(setHealth, 80)
//	inv.Invoke(func(ctx context.Context) error { return hud.Flash(ctx) })
//
//	// main goroutine, once per tick
//	inv.Synchronize(ctx)
//
// A failing or panicking call is consumed and reported to the ErrorHandler,
// which logs by default. Futures returned by Call carry the same error.
package invoker
