package event

import (
	"time"

	"github.com/google/uuid"
)

// Type is the key listeners subscribe to. Declare event types as constants
// so a misspelled key is a compile error rather than a silent miss:
//
//	const PlayerJoined event.Type = "player.joined"
//
// The empty Type is invalid.
type Type string

// Valid reports whether t can be used as an event key.
func (t Type) Valid() bool {
	return t != ""
}

func (t Type) String() string {
	return string(t)
}

// Event is an immutable notification produced on any goroutine and delivered
// on the goroutine that drains the dispatcher.
type Event struct {
	ID        string    `json:"id"`         // Unique identifier for the event
	Type      Type      `json:"type"`       // Key used to look up listeners
	Payload   any       `json:"payload"`    // Arbitrary producer data
	CreatedAt time.Time `json:"created_at"` // When the event was created
}

// New creates an Event with a generated ID and timestamp.
//
// Example:
//
//	e := event.New(PlayerJoined, PlayerInfo{ID: 7, Name: "ana"})
//	if err := dispatcher.Dispatch(e); err != nil {
//	    return err
//	}
func New(t Type, payload any) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// PayloadAs returns the payload converted to T. Pointer payloads are
// dereferenced when T is the pointed-to type.
func PayloadAs[T any](e *Event) (T, bool) {
	var zero T
	if e == nil {
		return zero, false
	}
	if v, ok := e.Payload.(T); ok {
		return v, true
	}
	if p, ok := e.Payload.(*T); ok && p != nil {
		return *p, true
	}
	return zero, false
}
