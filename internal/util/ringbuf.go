package util

import "sync"

// RingBuffer is a fixed-capacity circular buffer. When full, Push overwrites
// the oldest element. All methods are safe for concurrent use.
//
// The broker's capped queues (signaling, call events, group and channel logs)
// are all instances of this type: arrival order is preserved, memory is
// bounded, and the oldest entry is the one sacrificed under pressure.
type RingBuffer[T any] struct {
	mu    sync.RWMutex
	buf   []T
	head  int
	count int
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{buf: make([]T, capacity)}
}

// Push appends an item, overwriting the oldest if full.
func (r *RingBuffer[T]) Push(item T) {
	r.mu.Lock()
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = item
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.count++
	}
	r.mu.Unlock()
}

// Snapshot returns a copy of all elements in order (oldest first).
func (r *RingBuffer[T]) Snapshot() []T {
	r.mu.RLock()
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.mu.RUnlock()
	return out
}

// Drain returns all elements in order and empties the buffer in one atomic
// step. A concurrent Push lands either in the returned slice or in the next
// drain, never both.
func (r *RingBuffer[T]) Drain() []T {
	r.mu.Lock()
	out := make([]T, r.count)
	var zero T
	for i := 0; i < r.count; i++ {
		idx := (r.head + i) % len(r.buf)
		out[i] = r.buf[idx]
		r.buf[idx] = zero
	}
	r.head = 0
	r.count = 0
	r.mu.Unlock()
	return out
}

// DropWhile removes elements from the oldest end while expired returns true.
// Entries arrive in time order, so pruning expired entries is a prefix drop.
// Returns the number of elements removed.
func (r *RingBuffer[T]) DropWhile(expired func(T) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	dropped := 0
	for r.count > 0 && expired(r.buf[r.head]) {
		r.buf[r.head] = zero
		r.head = (r.head + 1) % len(r.buf)
		r.count--
		dropped++
	}
	if r.count == 0 {
		r.head = 0
	}
	return dropped
}

// Len returns the number of elements stored.
func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	n := r.count
	r.mu.RUnlock()
	return n
}
