package firealarm

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"time"

	"github.com/oshokin/building-safety/internal/cell"
	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
)

// Alarm status characters.
const (
	StatusIdle   = "-"
	StatusActive = "A"
)

// Trigger reasons.
const (
	ReasonCallPoint   = "call_point"
	ReasonTemperature = "temperature"
)

// record is the fire alarm's shared cell payload. The registry and window
// are only touched while the cell lock is held.
type record struct {
	Active      bool
	Reason      string
	ActivatedAt time.Time
	doors       *Registry
	window      *Window
}

// Notifier delivers OPEN_EMERG to one door.
type Notifier func(ctx context.Context, door netip.AddrPort) error

// Settings tune the unit.
type Settings struct {
	Threshold         float32
	MinDetections     int
	DetectionPeriod   time.Duration
	DetectionCapacity int
	RegistryCapacity  int
}

// Unit is the fire alarm's latch, door registry and detection window.
type Unit struct {
	cell          *cell.Cell[record]
	threshold     float32
	minDetections int
	notify        Notifier
	now           func() time.Time
	// broadcasts tracks in-flight OPEN_EMERG deliveries.
	broadcasts sync.WaitGroup
}

// NewUnit returns an idle unit.
func NewUnit(settings Settings, notify Notifier) *Unit {
	return &Unit{
		cell: cell.New(record{
			doors:  NewRegistry(settings.RegistryCapacity),
			window: NewWindow(settings.DetectionCapacity, settings.DetectionPeriod),
		}),
		threshold:     settings.Threshold,
		minDetections: settings.MinDetections,
		notify:        notify,
		now:           time.Now,
	}
}

// Active reports whether the alarm has fired.
func (u *Unit) Active() bool {
	return u.cell.Load().Active
}

// Fire latches the alarm immediately.
func (u *Unit) Fire(ctx context.Context) {
	u.trigger(ctx, ReasonCallPoint, func(*record) bool { return true })
}

// Temperature records a reading. Readings at or above the threshold count as
// detections; enough of them within the period latch the alarm.
func (u *Unit) Temperature(ctx context.Context, reading protocol.Temperature) {
	if reading.Value < u.threshold {
		return
	}

	u.trigger(ctx, ReasonTemperature, func(r *record) bool {
		count := r.window.Record(reading.Timestamp, u.now())

		logger.DebugKV(ctx, "Detection recorded",
			"origin_id", reading.OriginID,
			"temperature", reading.Value,
			"detections", count)

		return count >= u.minDetections
	})
}

// Register adds door to the registry. It reports whether the registration
// should be confirmed; a full registry rejects silently. A door that joins
// after the alarm fired is notified at once.
func (u *Unit) Register(ctx context.Context, door netip.AddrPort) bool {
	var (
		added, active bool
		err           error
	)

	u.cell.Update(func(r *record) bool {
		added, err = r.doors.Add(door)
		active = r.Active

		return added
	})

	switch {
	case errors.Is(err, ErrRegistryFull):
		logger.WarnKV(ctx, "Door rejected", "door", door.String(), "error", err)

		return false
	case added:
		logger.InfoKV(ctx, "Door registered", "door", door.String(), "alarm_active", active)
	}

	if added && active {
		u.deliver(ctx, []netip.AddrPort{door})
	}

	return true
}

// Wait blocks until every OPEN_EMERG delivery started so far has finished.
func (u *Unit) Wait() {
	u.broadcasts.Wait()
}

// Snapshot returns the cell contents for the twin.
func (u *Unit) Snapshot(context.Context) map[string]any {
	var (
		r          record
		doors      []netip.AddrPort
		detections int
	)

	u.cell.Update(func(v *record) bool {
		r = *v
		doors = v.doors.Doors()
		detections = v.window.Count(u.now())

		return false
	})

	status := StatusIdle
	if r.Active {
		status = StatusActive
	}

	list := make([]any, 0, len(doors))
	for _, d := range doors {
		list = append(list, d.String())
	}

	snapshot := map[string]any{
		"alarm":      status,
		"doors":      list,
		"detections": detections,
	}

	if r.Active {
		snapshot["reason"] = r.Reason
		snapshot["activated_at"] = r.ActivatedAt.Format(time.RFC3339Nano)
	}

	return snapshot
}

// trigger evaluates fires under the cell lock and, on the first firing,
// latches the alarm and broadcasts to the doors registered at that moment.
// Registrations after the latch see Active and notify themselves.
func (u *Unit) trigger(ctx context.Context, reason string, fires func(r *record) bool) {
	var (
		latched bool
		doors   []netip.AddrPort
	)

	u.cell.Update(func(r *record) bool {
		if !fires(r) || r.Active {
			return false
		}

		r.Active = true
		r.Reason = reason
		r.ActivatedAt = u.now()
		latched = true
		doors = r.doors.Doors()

		return true
	})

	if !latched {
		return
	}

	logger.WarnKV(ctx, "Fire alarm activated", "reason", reason, "doors", len(doors))

	u.deliver(ctx, doors)
}

// deliver notifies every door concurrently. A failing door never blocks the
// others.
func (u *Unit) deliver(ctx context.Context, doors []netip.AddrPort) {
	for _, door := range doors {
		u.broadcasts.Go(func() {
			if err := u.notify(ctx, door); err != nil {
				logger.WarnKV(ctx, "Emergency delivery failed", "door", door.String(), "error", err)

				return
			}

			logger.InfoKV(ctx, "Emergency delivered", "door", door.String())
		})
	}
}
