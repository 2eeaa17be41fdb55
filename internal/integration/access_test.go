package integration

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/building-safety/internal/config"
	"github.com/oshokin/building-safety/internal/domain/access"
	"github.com/oshokin/building-safety/internal/domain/door"
	"github.com/oshokin/building-safety/internal/events"
	"github.com/oshokin/building-safety/internal/service/cardreader"
	doorsvc "github.com/oshokin/building-safety/internal/service/door"
	"github.com/oshokin/building-safety/internal/service/overseer"
)

// TestAccess_CardReaderRoundTrip runs the overseer from a settings file with
// Redis events, then scans a card at a reader connected to a real door.
func TestAccess_CardReaderRoundTrip(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sub := rdb.Subscribe(context.Background(), events.Channel("hq"))
	t.Cleanup(func() { _ = sub.Close() })

	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	overseerAddr := reservePort(t)
	cfgPath := filepath.Join(t.TempDir(), "overseer.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Overseer{
		Common:           config.Common{Timeout: testTimeout},
		ListenAddress:    overseerAddr,
		PolicyFile:       writePolicy(t, access.Policy{Authorizations: map[string][]int{"alice": {2}}, Connections: map[int]int{20: 2}}),
		DoorOpenDuration: 150 * time.Millisecond,
		Events:           config.Events{RedisAddress: mr.Addr(), Name: "hq"},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- overseer.Run(ctx, &overseer.Options{ConfigPath: cfgPath}) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	waitListening(t, overseerAddr)

	doorCfg := &config.Door{
		Common:        config.Common{OverseerAddress: overseerAddr, Timeout: testTimeout},
		ID:            2,
		ListenAddress: "127.0.0.1:0",
		Mode:          door.FailSecure,
		ActuatorDelay: 10 * time.Millisecond,
	}
	require.NoError(t, doorCfg.Validate())

	d, err := doorsvc.New(context.Background(), doorCfg)
	require.NoError(t, err)
	start(t, d)

	readerCfg := &config.CardReader{
		Common: config.Common{OverseerAddress: overseerAddr, Timeout: testTimeout},
		ID:     20,
	}
	require.NoError(t, readerCfg.Validate())

	reader, err := cardreader.New(context.Background(), readerCfg)
	require.NoError(t, err)
	start(t, reader)

	// Both devices announced themselves before the scan.
	kinds := make(map[events.Kind]events.Event)
	receive := func(want events.Kind) events.Event {
		t.Helper()

		deadline := time.After(testTimeout)

		for {
			if e, ok := kinds[want]; ok {
				return e
			}

			select {
			case msg := <-sub.Channel():
				var e events.Event
				require.NoError(t, json.Unmarshal([]byte(msg.Payload), &e))
				kinds[e.Kind] = e
			case <-deadline:
				t.Fatalf("no %s event", want)
			}
		}
	}

	receive(events.KindDoorRegistered)
	receive(events.KindCardReaderRegistered)

	verdict, err := reader.Reader().Scan(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "Y", verdict)

	require.Equal(t, access.ReplyAllowed, receive(events.KindAccessDecided).Data["verdict"])

	require.Eventually(t, func() bool { return d.Controller().State() == door.Open }, testTimeout, 5*time.Millisecond)

	cycled := receive(events.KindDoorCycled)
	require.Equal(t, door.ReplyOpened, cycled.Data["open_reply"])
	require.Equal(t, door.ReplyClosed, cycled.Data["close_reply"])
	require.Equal(t, door.Closed, d.Controller().State())

	verdict, err = reader.Reader().Scan(context.Background(), "mallory")
	require.NoError(t, err)
	require.Equal(t, "N", verdict)
}
