package queue

import (
	"sync"
)

// Ring is a fixed-capacity buffer that evicts its oldest element to admit a
// new one once full. Reads take the newest element first, so a reader that
// falls behind sees the latest state rather than a backlog.
type Ring[T any] struct {
	mu    sync.Mutex
	items []T
	head  int // index of the oldest element
	size  int
}

// NewRing creates a ring holding at most capacity elements.
// A capacity below 1 is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push inserts v. It reports whether an older element was evicted.
func (r *Ring[T]) Push(v T) (evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := len(r.items)
	if r.size == c {
		r.items[r.head] = v
		r.head = (r.head + 1) % c
		return true
	}
	r.items[(r.head+r.size)%c] = v
	r.size++
	return false
}

// PopNewest removes and returns the most recently pushed element.
func (r *Ring[T]) PopNewest() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	idx := (r.head + r.size - 1) % len(r.items)
	v := r.items[idx]
	r.items[idx] = zero
	r.size--
	return v, true
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the capacity.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Snapshot returns the buffered elements oldest first without removing them.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}
