// Package synchronizer drives per-tick participants, such as event dispatchers and
// invokers, from one goroutine.
//
// Membership is a relation, not ownership: Add and Remove are requests applied at
// the start of the next tick, and participants may issue them from inside their own
// Synchronize call. The active list is copied before participants run, so none of
// them is ever called with the synchronizer's lock held.
//
// Ticks can be driven by an existing frame loop:
//
//	s := synchronizer.New()
//	s.Add(dispatcher)
//	s.Add(inv)
//
//	for !window.ShouldClose() {
//	    s.Tick(ctx)
//	    render()
//	}
//
// or by the built-in ticker, which fits the errgroup pattern:
//
//	s := synchronizer.NewFromConfig(cfg, synchronizer.WithLogger(log))
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(s.Run(ctx))
//
// Participant errors and panics are logged and counted in Stats; they never stop a tick.
package synchronizer
