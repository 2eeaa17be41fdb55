package callpoint

import (
	"context"
	"time"

	"github.com/oshokin/building-safety/internal/cell"
	"github.com/oshokin/building-safety/internal/logger"
)

// Status characters of the call point cell.
const (
	StatusInactive = "-"
	StatusActive   = "*"
)

// CallPoint is the call point's cell and loop.
type CallPoint struct {
	cell  *cell.Cell[bool]
	delay time.Duration
	fire  func() error
}

// NewCallPoint returns an inactive call point that calls fire every delay while active.
func NewCallPoint(delay time.Duration, fire func() error) *CallPoint {
	return &CallPoint{
		cell:  cell.New(false),
		delay: delay,
		fire:  fire,
	}
}

// SetActive is the twin pressing or resetting the call point.
func (c *CallPoint) SetActive(_ context.Context, active bool) error {
	c.cell.Update(func(v *bool) bool {
		changed := *v != active
		*v = active

		return changed
	})

	return nil
}

// Snapshot returns the cell contents for the twin.
func (c *CallPoint) Snapshot(context.Context) map[string]any {
	status := StatusInactive
	if c.cell.Load() {
		status = StatusActive
	}

	return map[string]any{"status": status}
}

// Run sends FIRE while active until ctx is cancelled.
func (c *CallPoint) Run(ctx context.Context) {
	for {
		if _, err := c.cell.Wait(ctx, func(active bool) bool { return active }); err != nil {
			return
		}

		logger.Warnf(ctx, "Call point active, sending FIRE every %s", c.delay)

		if !c.sendWhileActive(ctx) {
			return
		}

		logger.Info(ctx, "Call point reset")
	}
}

// sendWhileActive fires every delay until the call point is reset. It
// reports false when ctx was cancelled.
func (c *CallPoint) sendWhileActive(ctx context.Context) bool {
	for {
		if err := c.fire(); err != nil {
			logger.WarnKV(ctx, "FIRE not sent", "error", err)
		}

		waitCtx, cancel := context.WithTimeout(ctx, c.delay)
		_, err := c.cell.Wait(waitCtx, func(active bool) bool { return !active })

		cancel()

		switch {
		case err == nil:
			return true
		case ctx.Err() != nil:
			return false
		}
	}
}
