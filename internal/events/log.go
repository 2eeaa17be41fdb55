package events

import (
	"context"

	"github.com/oshokin/building-safety/internal/logger"
)

// LogPublisher writes events to the context logger.
type LogPublisher struct{}

// Publish logs the event at info level.
func (LogPublisher) Publish(ctx context.Context, event Event) error {
	kvs := make([]any, 0, 4+2*len(event.Data))
	kvs = append(kvs, "event_id", event.ID, "kind", string(event.Kind))

	for k, v := range event.Data {
		kvs = append(kvs, k, v)
	}

	logger.InfoKV(ctx, "event", kvs...)

	return nil
}

// Close does nothing.
func (LogPublisher) Close() error { return nil }
