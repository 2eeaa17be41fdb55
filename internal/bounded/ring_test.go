package bounded

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRing_PushEvictsOldest fills a ring past capacity and checks the sliding window.
func TestRing_PushEvictsOldest(t *testing.T) {
	t.Parallel()

	r := NewRing[int](3)

	for i := 1; i <= 3; i++ {
		_, evicted := r.Push(i)
		require.False(t, evicted)
	}

	require.True(t, r.Full())
	require.Equal(t, []int{1, 2, 3}, r.Items())

	old, evicted := r.Push(4)
	require.True(t, evicted)
	require.Equal(t, 1, old)
	require.Equal(t, []int{2, 3, 4}, r.Items())
	require.Equal(t, 3, r.Len())
}

// TestRing_DropWhile prunes from the oldest end only.
func TestRing_DropWhile(t *testing.T) {
	t.Parallel()

	r := RingOf(5, 1, 2, 10, 3)

	dropped := r.DropWhile(func(v int) bool { return v < 5 })
	require.Equal(t, 2, dropped)
	require.Equal(t, []int{10, 3}, r.Items())

	// Nothing left to drop once the head fails the predicate.
	require.Zero(t, r.DropWhile(func(v int) bool { return v < 5 }))
}

// TestRingOf_KeepsNewest seeds more values than fit.
func TestRingOf_KeepsNewest(t *testing.T) {
	t.Parallel()

	r := RingOf(2, "a", "b", "c")
	require.Equal(t, []string{"b", "c"}, r.Items())

	v, ok := r.Pop()
	require.True(t, ok)
	require.Equal(t, "b", v)

	v, ok = r.Pop()
	require.True(t, ok)
	require.Equal(t, "c", v)

	_, ok = r.Pop()
	require.False(t, ok)
	require.Zero(t, r.Len())
}

// TestNewRing_MinimumCapacity makes sure a zero capacity still holds one element.
func TestNewRing_MinimumCapacity(t *testing.T) {
	t.Parallel()

	r := NewRing[int](0)
	require.Equal(t, 1, r.Cap())

	r.Push(7)
	r.Push(8)
	require.Equal(t, []int{8}, r.Items())
}
