package door

import (
	"context"
	"fmt"

	"github.com/oshokin/building-safety/internal/api/grpc/twin"
	"github.com/oshokin/building-safety/internal/cell"
	"github.com/oshokin/building-safety/internal/domain/door"
	"github.com/oshokin/building-safety/internal/logger"
)

// Controller runs door commands against the shared cell and doubles as the
// twin adapter of the door.
type Controller struct {
	// cell is the door's shared state.
	cell *cell.Cell[door.Record]
}

// NewController returns a controller for a closed door.
func NewController() *Controller {
	return &Controller{
		cell: cell.New(door.NewRecord()),
	}
}

// State returns the current door state.
func (c *Controller) State() door.State {
	return c.cell.Load().Status
}

// Execute runs cmd and returns the final reply. For commands that start a
// transition, interim receives the interim reply before Execute blocks.
func (c *Controller) Execute(ctx context.Context, cmd door.Command, interim func(reply string) error) (string, error) {
	if cmd == door.CommandState {
		return door.StateReply(c.State()), nil
	}

	var step door.Step

	_, err := c.cell.Do(ctx, func(r *door.Record) (bool, bool) {
		step = r.Begin(cmd)

		return step.Done, step.Changed
	})
	if err != nil {
		return "", fmt.Errorf("begin %s: %w", cmd, err)
	}

	if step.Transition == 0 {
		return step.Reply, nil
	}

	logger.InfoKV(ctx, "Transition started", "command", cmd, "transition", step.Transition)

	if step.Interim != "" && interim != nil {
		if err := interim(step.Interim); err != nil {
			return "", fmt.Errorf("send %s: %w", step.Interim, err)
		}
	}

	var reply string

	_, err = c.cell.Do(ctx, func(r *door.Record) (bool, bool) {
		var done bool

		reply, done = r.Finish(cmd, step.Transition)

		return done, false
	})
	if err != nil {
		return "", fmt.Errorf("await %s: %w", cmd, err)
	}

	return reply, nil
}

// Snapshot returns the cell contents for the twin.
func (c *Controller) Snapshot(context.Context) map[string]any {
	r := c.cell.Load()

	return map[string]any{
		"status":     r.Status.String(),
		"emergency":  r.Emergency.String(),
		"transition": r.Transition,
		"completed":  r.Completed,
		"in_flight":  r.InFlight(),
	}
}

// AwaitTransition blocks until a transition is in flight.
func (c *Controller) AwaitTransition(ctx context.Context) error {
	_, err := c.cell.Wait(ctx, func(r door.Record) bool { return r.InFlight() })

	return err
}

// Complete settles the in-flight transition.
func (c *Controller) Complete(ctx context.Context) error {
	var completed bool

	r := c.cell.Update(func(r *door.Record) bool {
		completed = r.Complete()

		return completed
	})

	if !completed {
		return twin.ErrNotInFlight
	}

	logger.InfoKV(ctx, "Transition completed", "status", r.Status.String(), "transition", r.Completed)

	return nil
}
