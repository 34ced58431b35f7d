package event

import (
	"errors"

	"github.com/dmitrymomot/mainsync/internal/guard"
)

var (
	// ErrNilEvent is returned when Dispatch receives a nil event.
	ErrNilEvent = errors.New("event is nil")

	// ErrNilListener is returned when a registry operation receives a nil listener.
	ErrNilListener = errors.New("listener is nil")

	// ErrInvalidEventType is returned for the empty event type.
	ErrInvalidEventType = errors.New("invalid event type")

	// ErrListenerNotComparable is returned for listeners whose dynamic type cannot be
	// compared, such as bare funcs or structs holding funcs. Wrap them with NewListener.
	ErrListenerNotComparable = errors.New("listener type is not comparable")

	// ErrReentrantSynchronize is returned when Synchronize is called from a listener.
	ErrReentrantSynchronize = guard.ErrReentrant

	// ErrWrongGoroutine is returned when Synchronize is called from a goroutine other
	// than the one that drained the dispatcher first.
	ErrWrongGoroutine = guard.ErrWrongGoroutine

	// ErrPayloadType is returned by typed listeners for events carrying another payload type.
	ErrPayloadType = errors.New("unexpected payload type")
)
