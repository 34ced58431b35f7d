package synchronizer

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a synchronizer
type Option func(*options)

type options struct {
	tickInterval    time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// WithTickInterval configures how often Start ticks.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.tickInterval = d
		}
	}
}

// WithShutdownTimeout configures how long Stop waits for a running tick to finish.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithLogger configures structured logging for the tick loop and participant failures.
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to disable logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
