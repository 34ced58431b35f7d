package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/mainsync/core/logger"
)

// Decorator wraps a Listener to add cross-cutting behavior.
// The wrapped listener is a new identity: subscribe and unsubscribe the returned value.
type Decorator func(Listener) Listener

// Decorate applies decorators to l. The first decorator becomes the outermost
// wrapper and runs first.
//
// Example:
//
//	onJoin := event.Decorate(spawnPlayer,
//	    event.WarnSlow(log, 2*time.Millisecond),
//	    event.Retry(2),
//	)
//
// Execution order: WarnSlow -> Retry -> spawnPlayer
func Decorate(l Listener, decorators ...Decorator) Listener {
	for i := len(decorators) - 1; i >= 0; i-- {
		l = decorators[i](l)
	}
	return l
}

// Retry calls the listener again, up to maxRetries extra times, while it returns
// an error. Retries happen inside the same drain, so keep maxRetries small.
// A negative maxRetries is treated as zero.
func Retry(maxRetries int) Decorator {
	maxRetries = max(maxRetries, 0)
	return func(next Listener) Listener {
		return NewListener(func(ctx context.Context, e *Event) error {
			var lastErr error
			for attempt := 0; attempt <= maxRetries; attempt++ {
				if attempt > 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				if lastErr = next.HandleEvent(ctx, e); lastErr == nil {
					return nil
				}
			}
			return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
		})
	}
}

// Filter only forwards events for which accept returns true.
func Filter(accept func(*Event) bool) Decorator {
	return func(next Listener) Listener {
		return NewListener(func(ctx context.Context, e *Event) error {
			if !accept(e) {
				return nil
			}
			return next.HandleEvent(ctx, e)
		})
	}
}

// WarnSlow logs a warning when the listener takes longer than threshold.
// Every listener runs on the main goroutine, so slow ones delay the whole tick.
func WarnSlow(log *slog.Logger, threshold time.Duration) Decorator {
	return func(next Listener) Listener {
		return NewListener(func(ctx context.Context, e *Event) error {
			start := time.Now()
			err := next.HandleEvent(ctx, e)
			if elapsed := time.Since(start); elapsed > threshold {
				log.WarnContext(ctx, "slow event listener",
					logger.EventType(e.Type.String()),
					logger.EventID(e.ID),
					logger.Duration(elapsed),
					slog.Duration("threshold", threshold))
			}
			return err
		})
	}
}
