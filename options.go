package mainsync

import (
	"log/slog"

	"github.com/dmitrymomot/mainsync/core/event"
	"github.com/dmitrymomot/mainsync/core/invoker"
	"github.com/dmitrymomot/mainsync/core/synchronizer"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger passed to every component the runtime creates.
// Components keep their own loggers when overridden through the component options.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConfig sets the tick loop configuration.
func WithConfig(cfg synchronizer.Config) Option {
	return func(r *Runtime) {
		r.cfg = cfg
	}
}

// WithSynchronizerOptions applies options to the synchronizer. They override WithConfig.
func WithSynchronizerOptions(opts ...synchronizer.Option) Option {
	return func(r *Runtime) {
		r.syncOpts = append(r.syncOpts, opts...)
	}
}

// WithInvokerOptions applies options to the invoker.
func WithInvokerOptions(opts ...invoker.Option) Option {
	return func(r *Runtime) {
		r.invokerOpts = append(r.invokerOpts, opts...)
	}
}

// WithDispatcherOptions applies options to every dispatcher created by NewDispatcher,
// before the per-call options.
func WithDispatcherOptions(opts ...event.Option) Option {
	return func(r *Runtime) {
		r.dispatcherOpts = append(r.dispatcherOpts, opts...)
	}
}
