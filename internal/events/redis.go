package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrEmptyName is returned when a publisher is created without a building name.
var ErrEmptyName = errors.New("building name cannot be empty")

// RedisPublisher publishes events over Redis pub/sub.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher for the named building.
func NewRedisPublisher(opts *redis.Options, name string) (*RedisPublisher, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	return &RedisPublisher{
		rdb:     redis.NewClient(opts),
		channel: Channel(name),
	}, nil
}

// Ping verifies Redis connectivity.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	return nil
}

// Publish sends the event as JSON.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Kind, err)
	}

	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
