package integration

import (
	"bufio"
	"context"
	"net"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/building-safety/internal/config"
	"github.com/oshokin/building-safety/internal/domain/access"
	"github.com/oshokin/building-safety/internal/domain/door"
	"github.com/oshokin/building-safety/internal/events"
	"github.com/oshokin/building-safety/internal/protocol"
	"github.com/oshokin/building-safety/internal/repository/policy"
	"github.com/oshokin/building-safety/internal/service/common"
	"github.com/oshokin/building-safety/internal/service/overseer"
)

const testTimeout = 2 * time.Second

// runner is any bound device service.
type runner interface {
	Run(ctx context.Context) error
}

// start runs svc until the test ends and checks it stopped cleanly.
func start(t *testing.T, svc runner) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- svc.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

// writePolicy stores pol in a temporary policy file.
func writePolicy(t *testing.T, pol access.Policy) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, policy.NewFileRepository(path).Save(context.Background(), pol))

	return path
}

// startOverseer binds an overseer on loopback that logs its events.
func startOverseer(t *testing.T, pol access.Policy) *overseer.Service {
	t.Helper()

	path := writePolicy(t, pol)
	cfg := &config.Overseer{
		Common:              config.Common{Timeout: testTimeout},
		ListenAddress:       "127.0.0.1:0",
		PolicyFile:          path,
		DoorOpenDuration:    100 * time.Millisecond,
		DatagramResendDelay: 50 * time.Millisecond,
	}
	require.NoError(t, cfg.Validate())

	svc, err := overseer.New(context.Background(), cfg, policy.NewFileRepository(path), events.LogPublisher{})
	require.NoError(t, err)

	start(t, svc)

	return svc
}

// reservePort returns a loopback address that was free a moment ago.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// reserveUDP returns a loopback datagram endpoint that was free a moment ago.
func reserveUDP(t *testing.T) netip.AddrPort {
	t.Helper()

	conn, err := common.ListenUDP(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)

	ep := common.LocalEndpoint(conn)
	_ = conn.Close()

	return ep
}

// waitListening blocks until something accepts TCP connections on addr.
func waitListening(t *testing.T, addr string) {
	t.Helper()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}

		_ = conn.Close()

		return true
	}, testTimeout, 10*time.Millisecond)
}

// emergencyDoor is a door stand-in that counts OPEN_EMERG commands.
func emergencyDoor(t *testing.T) (netip.AddrPort, <-chan string) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lis.Close() })

	commands := make(chan string, 8)

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}

			token, err := protocol.ReadToken(bufio.NewReader(conn))
			if err == nil {
				commands <- token
				_ = protocol.WriteToken(conn, door.ReplyEmergencyOpened)
			}

			_ = conn.Close()
		}
	}()

	return netip.MustParseAddrPort(lis.Addr().String()), commands
}

// expectNone fails when anything arrives on ch within wait.
func expectNone(t *testing.T, ch <-chan string, wait time.Duration) {
	t.Helper()

	select {
	case got := <-ch:
		t.Fatalf("unexpected %q", got)
	case <-time.After(wait):
	}
}
