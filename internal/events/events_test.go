package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/oshokin/building-safety/internal/logger"
)

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	return mr
}

func TestNewRedisPublisherRejectsEmptyName(t *testing.T) {
	t.Parallel()

	_, err := NewRedisPublisher(&redis.Options{Addr: "127.0.0.1:6379"}, "")
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestRedisPublisherPublish(t *testing.T) {
	t.Parallel()

	mr := setupRedis(t)
	ctx := context.Background()

	publisher, err := NewRedisPublisher(&redis.Options{Addr: mr.Addr()}, "hq")
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })
	require.NoError(t, publisher.Ping(ctx))

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sub := rdb.Subscribe(ctx, Channel("hq"))
	t.Cleanup(func() { _ = sub.Close() })

	// Wait for the subscription to be active.
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	sent := New(KindAccessDecided, map[string]any{"reader": 7, "verdict": "ALLOWED"})
	require.NoError(t, publisher.Publish(ctx, sent))

	select {
	case msg := <-sub.Channel():
		require.Equal(t, "building:hq:events", msg.Channel)

		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		require.Equal(t, sent.ID, got.ID)
		require.Equal(t, KindAccessDecided, got.Kind)
		require.Equal(t, "ALLOWED", got.Data["verdict"])
		require.InDelta(t, 7, got.Data["reader"], 0)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestRedisPublisherUnavailable(t *testing.T) {
	t.Parallel()

	mr := setupRedis(t)

	publisher, err := NewRedisPublisher(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}, "hq")
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })

	mr.Close()

	require.Error(t, publisher.Publish(context.Background(), New(KindDoorRegistered, nil)))
}

func TestNewEvent(t *testing.T) {
	t.Parallel()

	event := New(KindDoorRegistered, nil)

	_, err := uuid.Parse(event.ID)
	require.NoError(t, err)
	require.NotEqual(t, event.ID, New(KindDoorRegistered, nil).ID)
	require.False(t, event.Time.IsZero())
}

func TestLogPublisher(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core).Sugar())

	var publisher Publisher = LogPublisher{}

	require.NoError(t, publisher.Publish(ctx, New(KindDoorRegistered, map[string]any{"door": 3})))
	require.NoError(t, publisher.Close())

	entries := logs.FilterMessage("event").All()
	require.Len(t, entries, 1)
	require.Equal(t, string(KindDoorRegistered), entries[0].ContextMap()["kind"])
}
