package buffer

import (
	"sync"
)

// Ring is a thread-safe bounded history. Once full, each Push drops the
// oldest entry.
type Ring[T any] struct {
	mu       sync.RWMutex
	data     []T
	capacity int // Maximum number of entries
	size     int // Current number of entries
	head     int // Write position
}

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 200

// New creates a ring with the specified capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Ring[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends v, overwriting the oldest entry when full.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[r.head] = v
	r.head = (r.head + 1) % r.capacity

	if r.size < r.capacity {
		r.size++
	}
}

// UpdateLast applies fn to the newest entry. It reports false when empty.
func (r *Ring[T]) UpdateLast(fn func(*T)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return false
	}
	fn(&r.data[(r.head-1+r.capacity)%r.capacity])
	return true
}

// Last returns the newest entry.
func (r *Ring[T]) Last() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.data[(r.head-1+r.capacity)%r.capacity], true
}

// LastN returns up to n of the newest entries, oldest first.
func (r *Ring[T]) LastN(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 {
		return []T{}
	}

	if n > r.size {
		n = r.size
	}

	result := make([]T, n)
	start := (r.head - n + r.capacity) % r.capacity
	for i := 0; i < n; i++ {
		result[i] = r.data[(start+i)%r.capacity]
	}
	return result
}

// All returns every entry, oldest first.
func (r *Ring[T]) All() []T {
	return r.LastN(r.Len())
}

// Len returns the current number of entries.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the maximum number of entries.
func (r *Ring[T]) Cap() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capacity
}

// Clear empties the ring.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data = make([]T, r.capacity)
	r.size = 0
	r.head = 0
}
