package door

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/building-safety/internal/api/grpc/twin"
	"github.com/oshokin/building-safety/internal/logger"
)

// runActuator plays the physical twin in-process: every transition completes
// delay after it starts. It returns when ctx is cancelled.
func runActuator(ctx context.Context, controller *Controller, delay time.Duration) {
	ctx = logger.WithName(ctx, "actuator")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		if err := controller.AwaitTransition(ctx); err != nil {
			return
		}

		timer.Reset(delay)

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// A preempting emergency may have replaced the transition; Complete
		// settles whichever one is in flight.
		if err := controller.Complete(ctx); err != nil && !errors.Is(err, twin.ErrNotInFlight) {
			logger.WarnKV(ctx, "Complete failed", "error", err)
		}
	}
}
