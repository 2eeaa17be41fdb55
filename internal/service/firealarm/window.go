package firealarm

import (
	"slices"
	"time"

	"github.com/oshokin/building-safety/internal/bounded"
)

// Window counts threshold detections within a trailing period. Detections
// are kept oldest first and pruned lazily on every Record and Count; when the
// window is full the oldest detection is evicted.
type Window struct {
	detections *bounded.Ring[time.Time]
	period     time.Duration
}

// NewWindow returns an empty window.
func NewWindow(capacity int, period time.Duration) *Window {
	return &Window{
		detections: bounded.NewRing[time.Time](capacity),
		period:     period,
	}
}

// Record adds a detection taken at and returns the count within the period
// ending at now. A detection already outside the period is ignored.
func (w *Window) Record(at, now time.Time) int {
	if at.Before(w.cutoff(now)) {
		return w.Count(now)
	}

	items := w.detections.Items()

	if len(items) == 0 || !at.Before(items[len(items)-1]) {
		w.detections.Push(at)

		return w.Count(now)
	}

	// Late arrival from a slower relay path: keep the ring in time order.
	i, _ := slices.BinarySearchFunc(items, at, func(e, t time.Time) int { return e.Compare(t) })
	items = slices.Insert(items, i, at)
	w.detections = bounded.RingOf(w.detections.Cap(), items...)

	return w.Count(now)
}

// Count prunes expired detections and returns how many remain in the period.
func (w *Window) Count(now time.Time) int {
	cutoff := w.cutoff(now)

	w.detections.DropWhile(func(at time.Time) bool { return at.Before(cutoff) })

	return w.detections.Len()
}

// cutoff is the oldest instant still inside the period.
func (w *Window) cutoff(now time.Time) time.Time {
	return now.Add(-w.period)
}
