package event

import "sync"

// entry is one active registration. removed is set when an unsubscribe arrives
// during a drain; the entry is skipped from then on and dropped at the next merge.
type entry struct {
	listener Listener
	removed  bool
}

// Registry maps event types to ordered listener lists.
//
// While a drain is running, changes are staged: additions wait in a pending list
// and removals mark the active entry. Staged changes are merged when the drain ends,
// so the drain loop only ever walks lists it owns at that instant.
type Registry struct {
	mu       sync.RWMutex
	active   map[Type][]*entry
	staged   map[Type][]Listener
	draining bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[Type][]*entry),
		staged: make(map[Type][]Listener),
	}
}

// Subscribe appends l to the listeners of t. Registering the same listener twice
// for one type is a no-op. During a drain the listener is staged and becomes
// active once the drain ends.
func (r *Registry) Subscribe(t Type, l Listener) error {
	if err := validate(t, l); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.liveIndex(t, l) >= 0 || r.stagedIndex(t, l) >= 0 {
		return nil
	}

	if r.draining {
		r.staged[t] = append(r.staged[t], l)
		return nil
	}

	r.active[t] = append(r.active[t], &entry{listener: l})
	return nil
}

// Unsubscribe removes l from the listeners of t. Removing an unknown listener is a no-op.
// During a drain the listener stops receiving events immediately, including the
// remaining events of the running drain.
func (r *Registry) Unsubscribe(t Type, l Listener) error {
	if err := validate(t, l); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.stagedIndex(t, l); i >= 0 {
		r.staged[t] = deleteAt(r.staged[t], i)
		if len(r.staged[t]) == 0 {
			delete(r.staged, t)
		}
	}

	i := r.liveIndex(t, l)
	if i < 0 {
		return nil
	}

	if r.draining {
		r.active[t][i].removed = true
		return nil
	}

	r.active[t] = deleteAt(r.active[t], i)
	if len(r.active[t]) == 0 {
		delete(r.active, t)
	}
	return nil
}

// UnsubscribeAll removes every listener of t, staged ones included.
func (r *Registry) UnsubscribeAll(t Type) error {
	if !t.Valid() {
		return ErrInvalidEventType
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.staged, t)

	if r.draining {
		for _, e := range r.active[t] {
			e.removed = true
		}
		return nil
	}

	delete(r.active, t)
	return nil
}

// Clear removes every listener of every type.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.staged)

	if r.draining {
		for _, entries := range r.active {
			for _, e := range entries {
				e.removed = true
			}
		}
		return
	}

	clear(r.active)
}

// HasListeners reports whether t has at least one listener.
// Listeners staged for addition count; listeners staged for removal do not.
func (r *Registry) HasListeners(t Type) bool {
	return r.Len(t) > 0
}

// HasListener reports whether l is registered for t, using the same view as HasListeners.
func (r *Registry) HasListener(t Type, l Listener) bool {
	if validate(t, l) != nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.liveIndex(t, l) >= 0 || r.stagedIndex(t, l) >= 0
}

// Len returns the number of listeners of t, using the same view as HasListeners.
func (r *Registry) Len(t Type) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.staged[t])
	for _, e := range r.active[t] {
		if !e.removed {
			n++
		}
	}
	return n
}

// beginDrain merges anything still staged and switches the registry to staging mode.
func (r *Registry) beginDrain() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.merge()
	r.draining = true
}

// endDrain leaves staging mode and merges the changes requested during the drain.
func (r *Registry) endDrain() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.draining = false
	r.merge()
}

// snapshot copies the active entries of t. The entries are shared, so a removal
// marked later is still visible through live.
func (r *Registry) snapshot(t Type) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.active[t]
	if len(entries) == 0 {
		return nil
	}
	out := make([]*entry, len(entries))
	copy(out, entries)
	return out
}

// live reports whether e has not been removed.
func (r *Registry) live(e *entry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !e.removed
}

// merge applies staged removals first, then staged additions. Caller holds mu.
func (r *Registry) merge() {
	for t, entries := range r.active {
		kept := entries[:0]
		for _, e := range entries {
			if !e.removed {
				kept = append(kept, e)
			}
		}
		clear(entries[len(kept):])
		if len(kept) == 0 {
			delete(r.active, t)
			continue
		}
		r.active[t] = kept
	}

	for t, listeners := range r.staged {
		for _, l := range listeners {
			if r.liveIndex(t, l) < 0 {
				r.active[t] = append(r.active[t], &entry{listener: l})
			}
		}
	}
	clear(r.staged)
}

// liveIndex returns the index of the non-removed active entry for l, or -1. Caller holds mu.
func (r *Registry) liveIndex(t Type, l Listener) int {
	for i, e := range r.active[t] {
		if !e.removed && e.listener == l {
			return i
		}
	}
	return -1
}

// stagedIndex returns the index of l among the staged additions of t, or -1. Caller holds mu.
func (r *Registry) stagedIndex(t Type, l Listener) int {
	for i, s := range r.staged[t] {
		if s == l {
			return i
		}
	}
	return -1
}

func deleteAt[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	var zero T
	s[len(s)-1] = zero
	return s[:len(s)-1]
}
