// Package guard detects drain methods called from the wrong goroutine or reentrantly.
package guard

import (
	"errors"
	"runtime"
	"sync/atomic"
)

var (
	// ErrReentrant is returned when a drain is entered while one is already on the stack.
	ErrReentrant = errors.New("drain called reentrantly")

	// ErrWrongGoroutine is returned when a drain is entered from a goroutine other than
	// the one that performed the first drain.
	ErrWrongGoroutine = errors.New("drain called from a goroutine other than the main goroutine")
)

// Guard binds a drain method to the first goroutine that enters it and rejects
// reentrant entry. The zero value binds.
type Guard struct {
	owner   atomic.Uint64
	active  atomic.Bool
	unbound bool
}

// New returns a guard. With bind false only reentrancy is checked.
func New(bind bool) *Guard {
	return &Guard{unbound: !bind}
}

// Enter marks the drain as running. Every successful Enter must be paired with Exit.
func (g *Guard) Enter() error {
	if !g.unbound {
		id := goroutineID()
		if !g.owner.CompareAndSwap(0, id) && g.owner.Load() != id {
			return ErrWrongGoroutine
		}
	}
	if !g.active.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	return nil
}

// Exit marks the drain as finished.
func (g *Guard) Exit() {
	g.active.Store(false)
}

// Active reports whether a drain is running.
func (g *Guard) Active() bool {
	return g.active.Load()
}

// Release forgets the bound goroutine so the next Enter binds again.
func (g *Guard) Release() {
	g.owner.Store(0)
}

// goroutineID parses the current goroutine's ID from its stack header "goroutine NNN [".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
