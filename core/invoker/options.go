package invoker

import "log/slog"

// Option configures an Invoker.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	errorHandler   ErrorHandler
	checkGoroutine bool
}

// WithLogger configures structured logging for failed calls.
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to disable logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithErrorHandler replaces the default sink for failed calls, which logs them.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		if h != nil {
			o.errorHandler = h
		}
	}
}

// WithGoroutineCheck controls whether Synchronize is bound to the first goroutine
// that calls it. Enabled by default.
func WithGoroutineCheck(enabled bool) Option {
	return func(o *options) {
		o.checkGoroutine = enabled
	}
}
