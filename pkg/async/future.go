package async

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrTimeout is returned by AwaitWithTimeout when the future is not complete in time.
	ErrTimeout = errors.New("async: timeout waiting for completion")

	// ErrNoFutures is returned by ExecAny when called without futures.
	ErrNoFutures = errors.New("async: no futures provided")
)

// Future represents the completion of an operation that only reports an error.
// It is resolved exactly once, either by Exec's goroutine or by whoever holds it via Resolve.
type Future struct {
	err  error
	once sync.Once
	done chan struct{}
}

// NewFuture creates an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve completes the future with err. Only the first call has an effect;
// it reports whether this call resolved the future.
func (f *Future) Resolve(err error) bool {
	resolved := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Await waits for completion and returns the resulting error.
func (f *Future) Await() error {
	<-f.done
	return f.err
}

// AwaitContext waits for completion or for ctx to end, whichever comes first.
func (f *Future) AwaitContext(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitWithTimeout waits for completion for at most timeout.
func (f *Future) AwaitWithTimeout(timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-f.done:
		return f.err
	case <-t.C:
		return ErrTimeout
	}
}

// IsComplete checks completion without blocking.
func (f *Future) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on completion.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Exec runs fn in a new goroutine and returns its future.
func Exec[T any](ctx context.Context, param T, fn func(context.Context, T) error) *Future {
	f := NewFuture()

	go func() {
		// Early exit prevents doing work for an already cancelled caller.
		if err := ctx.Err(); err != nil {
			f.Resolve(err)
			return
		}
		f.Resolve(fn(ctx, param))
	}()

	return f
}

// ExecAll waits for every future and returns the first non-nil error in argument order.
func ExecAll(futures ...*Future) error {
	var first error
	for _, future := range futures {
		if err := future.Await(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ExecAny waits for the first future to complete and returns its index and error.
func ExecAny(futures ...*Future) (int, error) {
	if len(futures) == 0 {
		return -1, ErrNoFutures
	}

	type result struct {
		index int
		err   error
	}
	done := make(chan result, len(futures))

	for i, future := range futures {
		go func(index int, f *Future) {
			done <- result{index, f.Await()}
		}(i, future)
	}

	res := <-done
	return res.index, res.err
}
