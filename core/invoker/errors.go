package invoker

import (
	"errors"

	"github.com/dmitrymomot/mainsync/internal/guard"
)

var (
	// ErrNilCallable is returned when a nil function or deferred handle is submitted.
	ErrNilCallable = errors.New("callable is nil")

	// ErrReentrantSynchronize is returned when Synchronize is called from a deferred call.
	ErrReentrantSynchronize = guard.ErrReentrant

	// ErrWrongGoroutine is returned when Synchronize is called from a goroutine other
	// than the one that drained the invoker first.
	ErrWrongGoroutine = guard.ErrWrongGoroutine
)
