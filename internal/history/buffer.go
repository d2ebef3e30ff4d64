// Package history provides the bounded, oldest-first-evicted lists the panel
// keeps for executed commands and submitted scripts.
package history

import "sync"

// Buffer is a thread-safe bounded FIFO. Once full, every Add drops the oldest
// element so Len never exceeds Cap.
type Buffer[T any] struct {
	mu      sync.RWMutex
	entries []T
	cap     int
}

// New creates a new buffer with the given capacity. Capacities below one are
// raised to one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		entries: make([]T, 0, capacity),
		cap:     capacity,
	}
}

// Add appends v, evicting the oldest entries on overflow.
func (b *Buffer[T]) Add(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) >= b.cap {
		copy(b.entries, b.entries[1:])
		b.entries[len(b.entries)-1] = v
	} else {
		b.entries = append(b.entries, v)
	}
}

// Newest returns a copy of the entries, newest first.
func (b *Buffer[T]) Newest() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, len(b.entries))
	for i, j := 0, len(b.entries)-1; j >= 0; i, j = i+1, j-1 {
		result[i] = b.entries[j]
	}
	return result
}

// Find returns the newest entry matching fn.
func (b *Buffer[T]) Find(fn func(T) bool) (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := len(b.entries) - 1; i >= 0; i-- {
		if fn(b.entries[i]) {
			return b.entries[i], true
		}
	}
	var zero T
	return zero, false
}
