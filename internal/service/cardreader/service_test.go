package cardreader

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/building-safety/internal/config"
	"github.com/oshokin/building-safety/internal/protocol"
	"github.com/oshokin/building-safety/internal/service/common"
)

// fakeOverseer allows the code "alice" and records every token it receives.
func fakeOverseer(t *testing.T) (string, <-chan string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lis.Close() })

	tokens := make(chan string, 8)

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}

			token, err := protocol.ReadToken(bufio.NewReader(conn))
			if err == nil {
				tokens <- token

				if msg, err := protocol.ParseMessage(token); err == nil {
					if scanned, ok := msg.(protocol.Scanned); ok {
						reply := "DENIED"
						if scanned.Code == "alice" {
							reply = "ALLOWED"
						}

						_ = protocol.WriteToken(conn, reply)
					}
				}
			}

			_ = conn.Close()
		}
	}()

	return lis.Addr().String(), tokens
}

func TestServiceScanRoundTrip(t *testing.T) {
	t.Parallel()

	overseer, tokens := fakeOverseer(t)

	cfg := &config.CardReader{
		Common: config.Common{OverseerAddress: overseer, TwinAddress: "127.0.0.1:0"},
		ID:     7,
	}
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())

	svc, err := New(ctx, cfg)
	require.NoError(t, err)

	stopped := make(chan error, 1)

	go func() { stopped <- svc.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-stopped)
	})

	require.Equal(t, "CARDREADER 7 HELLO", <-tokens)

	client, err := common.Dial(ctx, svc.TwinAddress())
	require.NoError(t, err)

	defer client.Close()

	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()

	verdict, err := client.Scan(callCtx, "alice")
	require.NoError(t, err)
	require.Equal(t, "Y", verdict)
	require.Equal(t, "CARDREADER 7 SCANNED alice", <-tokens)

	verdict, err = client.Scan(callCtx, "mallory")
	require.NoError(t, err)
	require.Equal(t, "N", verdict)
}

func TestServiceDeniesWhenOverseerUnreachable(t *testing.T) {
	t.Parallel()

	cfg := &config.CardReader{
		Common: config.Common{OverseerAddress: "127.0.0.1:1", Timeout: 200 * time.Millisecond},
		ID:     1,
	}
	require.NoError(t, cfg.Validate())

	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)

	require.Equal(t, "N", svc.authorize(context.Background(), "alice").String())
}

func TestServiceAnnounceFailureIsFatal(t *testing.T) {
	t.Parallel()

	cfg := &config.CardReader{
		Common: config.Common{OverseerAddress: "127.0.0.1:1", Timeout: 200 * time.Millisecond},
		ID:     1,
	}
	require.NoError(t, cfg.Validate())

	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.Error(t, svc.Run(context.Background()))
}
