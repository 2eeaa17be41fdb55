package cell

import (
	"context"
	"sync"
)

// Cell holds one device record of type T. T should be a plain value type:
// Load and the wait helpers hand out copies.
type Cell[T any] struct {
	// mu guards value and changed.
	mu sync.Mutex
	// value is the current record.
	value T
	// changed is closed on the next change.
	changed chan struct{}
}

// New returns a cell holding initial.
func New[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value:   initial,
		changed: make(chan struct{}),
	}
}

// Load returns a copy of the current value.
func (c *Cell[T]) Load() T {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.value
}

// Update runs fn with the lock held. When fn reports a change, waiters are
// woken. It returns a copy of the value after fn ran.
func (c *Cell[T]) Update(fn func(v *T) bool) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fn(&c.value) {
		c.signalLocked()
	}

	return c.value
}

// Do runs step with the lock held, and again after every change, until step
// reports done. step may mutate the value; returning changed=true wakes the
// other waiters. The lock is never held while Do sleeps.
func (c *Cell[T]) Do(ctx context.Context, step func(v *T) (done, changed bool)) (T, error) {
	for {
		c.mu.Lock()

		done, changed := step(&c.value)
		if changed {
			c.signalLocked()
		}

		if done {
			v := c.value
			c.mu.Unlock()

			return v, nil
		}

		wake := c.changed
		c.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			var zero T

			return zero, ctx.Err()
		}
	}
}

// Wait blocks until cond holds for the current value and returns that value.
func (c *Cell[T]) Wait(ctx context.Context, cond func(v T) bool) (T, error) {
	return c.Do(ctx, func(v *T) (bool, bool) {
		return cond(*v), false
	})
}

// Changed returns a channel that is closed on the next change after the call.
func (c *Cell[T]) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.changed
}

// signalLocked publishes a change. The caller must hold mu.
func (c *Cell[T]) signalLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}
