// Package logger provides slog construction options and attribute helpers shared by
// the synchronization components.
//
// Components accept a *slog.Logger through their own With...Logger options and fall
// back to Discard, so nothing is written unless the host wires a logger in:
//
//	log := logger.New(logger.WithDevelopment("game-server"))
//
//	d := event.NewDispatcher(event.WithLogger(log))
//	s := synchronizer.New(synchronizer.WithLogger(log))
//
// Attribute helpers return an empty slog.Attr for nil or empty input, so they can be
// passed unconditionally:
//
//	log.Error("listener failed",
//		logger.Component("dispatcher"),
//		logger.EventType(string(e.Type)),
//		logger.Error(err),
//	)
package logger
