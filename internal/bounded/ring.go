// Package bounded provides a fixed-capacity FIFO with explicit eviction.
package bounded

// Ring keeps at most Cap elements in insertion order. Pushing onto a full
// ring evicts the oldest element.
type Ring[T any] struct {
	// items is the backing array; len(items) is the capacity.
	items []T
	// head indexes the oldest element.
	head int
	// size is the number of stored elements.
	size int
}

// NewRing returns an empty ring holding up to capacity elements.
// Capacity below one is raised to one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Ring[T]{items: make([]T, capacity)}
}

// RingOf returns a ring of the given capacity seeded with values, oldest
// first. When values exceed the capacity only the newest ones are kept.
func RingOf[T any](capacity int, values ...T) *Ring[T] {
	r := NewRing[T](capacity)
	for _, v := range values {
		r.Push(v)
	}

	return r
}

// Cap returns the maximum number of elements.
func (r *Ring[T]) Cap() int { return len(r.items) }

// Len returns the number of stored elements.
func (r *Ring[T]) Len() int { return r.size }

// Full reports whether the next Push evicts.
func (r *Ring[T]) Full() bool { return r.size == len(r.items) }

// Push appends v. If the ring was full the oldest element is returned
// with evicted=true.
func (r *Ring[T]) Push(v T) (old T, evicted bool) {
	if r.Full() {
		old = r.items[r.head]
		r.items[r.head] = v
		r.head = (r.head + 1) % len(r.items)

		return old, true
	}

	r.items[(r.head+r.size)%len(r.items)] = v
	r.size++

	return old, false
}

// Peek returns the oldest element.
func (r *Ring[T]) Peek() (v T, ok bool) {
	if r.size == 0 {
		return v, false
	}

	return r.items[r.head], true
}

// Pop removes and returns the oldest element.
func (r *Ring[T]) Pop() (v T, ok bool) {
	if r.size == 0 {
		return v, false
	}

	var zero T

	v = r.items[r.head]
	r.items[r.head] = zero
	r.head = (r.head + 1) % len(r.items)
	r.size--

	return v, true
}

// DropWhile pops elements from the oldest end while pred holds and returns
// how many were removed.
func (r *Ring[T]) DropWhile(pred func(T) bool) int {
	dropped := 0

	for {
		v, ok := r.Peek()
		if !ok || !pred(v) {
			return dropped
		}

		r.Pop()

		dropped++
	}
}

// Items returns the elements oldest first in a new slice.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := range r.size {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}

	return out
}
