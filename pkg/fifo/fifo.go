// Package fifo provides an unbounded, goroutine-safe FIFO queue.
//
// Any number of producers may call Enqueue concurrently. Consumers take items one at a
// time with TryDequeue or take the whole backlog with DrainAll. Nothing is ever dropped.
package fifo

import "sync"

// Queue is an unbounded FIFO guarded by a short-held mutex.
// The zero value is ready to use.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue appends v to the tail. It never blocks on consumers.
func (q *Queue[T]) Enqueue(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
}

// TryDequeue removes and returns the head item.
// The second result is false when the queue is empty.
func (q *Queue[T]) TryDequeue() (T, bool) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return zero, false
	}

	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return v, true
}

// DrainAll removes and returns every queued item in FIFO order.
// Items enqueued concurrently either land in the result or stay queued for the next call.
func (q *Queue[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return nil
	}

	out := make([]T, len(q.items)-q.head)
	copy(out, q.items[q.head:])

	clear(q.items)
	q.items = q.items[:0]
	q.head = 0

	return out
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
