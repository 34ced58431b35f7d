package event

import (
	"context"
	"fmt"
	"reflect"
)

// Listener receives events on the draining goroutine.
// Listener values are compared for identity, so implementations must be comparable;
// pointer receivers are the usual choice.
type Listener interface {
	HandleEvent(ctx context.Context, e *Event) error
}

// ListenerFunc is the function form of a listener.
type ListenerFunc func(ctx context.Context, e *Event) error

// NewListener wraps fn in a fresh listener. Each call returns a distinct identity,
// so keep the returned value to unsubscribe later. Returns nil for a nil fn.
//
// Example:
//
//	onJoin := event.NewListener(func(ctx context.Context, e *event.Event) error {
//	    return world.Spawn(ctx, e.Payload)
//	})
//	dispatcher.Subscribe(PlayerJoined, onJoin)
//	defer dispatcher.Unsubscribe(PlayerJoined, onJoin)
func NewListener(fn ListenerFunc) Listener {
	if fn == nil {
		return nil
	}
	return &funcListener{fn: fn}
}

// NewTypedListener wraps fn so it receives the payload converted to T.
// Events carrying another payload type fail with ErrPayloadType.
func NewTypedListener[T any](fn func(ctx context.Context, payload T) error) Listener {
	if fn == nil {
		return nil
	}
	return &funcListener{fn: func(ctx context.Context, e *Event) error {
		payload, ok := PayloadAs[T](e)
		if !ok {
			return fmt.Errorf("%w: want %s, got %T", ErrPayloadType, reflect.TypeFor[T](), e.Payload)
		}
		return fn(ctx, payload)
	}}
}

type funcListener struct {
	fn ListenerFunc
}

func (l *funcListener) HandleEvent(ctx context.Context, e *Event) error {
	return l.fn(ctx, e)
}

func validate(t Type, l Listener) error {
	if !t.Valid() {
		return ErrInvalidEventType
	}
	if l == nil {
		return ErrNilListener
	}
	if !reflect.TypeOf(l).Comparable() {
		return ErrListenerNotComparable
	}
	return nil
}
