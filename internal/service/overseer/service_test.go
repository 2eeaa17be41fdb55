package overseer

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/netip"
	"path/filepath"
	"strings"
	"sync"
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
)

const testTimeout = time.Second

// recorder keeps published events in memory.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) has(kind events.Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.Kind == kind {
			return true
		}
	}

	return false
}

// gated holds access decisions until released.
type gated struct {
	recorder

	release chan struct{}
}

func (g *gated) Publish(ctx context.Context, event events.Event) error {
	if event.Kind == events.KindAccessDecided {
		<-g.release
	}

	return g.recorder.Publish(ctx, event)
}

func startOverseer(t *testing.T, pol access.Policy, publisher events.Publisher) *Service {
	t.Helper()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	repo := policy.NewFileRepository(path)
	require.NoError(t, repo.Save(context.Background(), pol))

	cfg := &config.Overseer{
		Common:              config.Common{Timeout: testTimeout},
		ListenAddress:       "127.0.0.1:0",
		PolicyFile:          path,
		DoorOpenDuration:    50 * time.Millisecond,
		DatagramResendDelay: 50 * time.Millisecond,
	}
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())

	svc, err := New(ctx, cfg, repo, publisher)
	require.NoError(t, err)

	stopped := make(chan error, 1)

	go func() { stopped <- svc.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-stopped)
	})

	return svc
}

// fakeDoor answers OPEN and CLOSE like a door whose twin completes at once.
func fakeDoor(t *testing.T) (netip.AddrPort, <-chan string) {
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

				switch door.Command(token) {
				case door.CommandOpen:
					_ = protocol.WriteToken(conn, door.ReplyOpening)
					_ = protocol.WriteToken(conn, door.ReplyOpened)
				case door.CommandClose:
					_ = protocol.WriteToken(conn, door.ReplyClosing)
					_ = protocol.WriteToken(conn, door.ReplyClosed)
				}
			}

			_ = conn.Close()
		}
	}()

	return netip.MustParseAddrPort(lis.Addr().String()), commands
}

func announce(t *testing.T, svc *Service, msg protocol.Message) {
	t.Helper()

	require.NoError(t, common.Announce(context.Background(), svc.Address(), testTimeout, msg))
}

func request(t *testing.T, svc *Service, token string) string {
	t.Helper()

	reply, err := common.Request(context.Background(), svc.Address(), testTimeout, token, nil)
	require.NoError(t, err)

	return reply
}

func TestServiceCyclesAuthorisedDoor(t *testing.T) {
	t.Parallel()

	published := &recorder{}
	svc := startOverseer(t, access.Policy{
		Authorizations: map[string][]int{"alice": {1}, "bob": {2}},
		Connections:    map[int]int{10: 1},
	}, published)

	doorAddr, commands := fakeDoor(t)

	announce(t, svc, protocol.DoorHello{ID: 1, Address: doorAddr, Mode: door.FailSecure})
	announce(t, svc, protocol.CardReaderHello{ID: 10})

	require.Eventually(t, func() bool {
		return len(svc.Doors()) == 1 && len(svc.CardReaders()) == 1
	}, testTimeout, 5*time.Millisecond)

	require.Equal(t, access.ReplyAllowed, request(t, svc, protocol.Scanned{ReaderID: 10, Code: "alice"}.String()))

	for _, want := range []door.Command{door.CommandOpen, door.CommandClose} {
		select {
		case got := <-commands:
			require.Equal(t, string(want), got)
		case <-time.After(testTimeout):
			t.Fatalf("door never received %s", want)
		}
	}

	require.Eventually(t, func() bool { return published.has(events.KindDoorCycled) }, testTimeout, 5*time.Millisecond)
	require.True(t, published.has(events.KindDoorRegistered))
	require.True(t, published.has(events.KindCardReaderRegistered))
	require.True(t, published.has(events.KindAccessDecided))
}

func TestServiceDeniesScans(t *testing.T) {
	t.Parallel()

	svc := startOverseer(t, access.Policy{
		Authorizations: map[string][]int{"alice": {1}, "bob": {2}},
		Connections:    map[int]int{10: 1},
	}, &recorder{})

	doorAddr, commands := fakeDoor(t)
	announce(t, svc, protocol.DoorHello{ID: 1, Address: doorAddr, Mode: door.FailSecure})

	for _, scan := range []protocol.Scanned{
		{ReaderID: 10, Code: "bob"},
		{ReaderID: 10, Code: "carol"},
		{ReaderID: 11, Code: "alice"},
	} {
		require.Equal(t, access.ReplyDenied, request(t, svc, scan.String()), scan.String())
	}

	select {
	case cmd := <-commands:
		t.Fatalf("denied scan drove the door: %s", cmd)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServiceRejectsInvalidMessages(t *testing.T) {
	t.Parallel()

	svc := startOverseer(t, access.Policy{}, &recorder{})

	for _, token := range []string{"HELLO", "DOOR 1 nowhere FAIL_SAFE", "CARDREADER x HELLO"} {
		require.Equal(t, door.ReplyInvalid, request(t, svc, token), token)
	}
}

// rawExchange writes payload as is and returns the single token answered
// before the overseer closes the connection.
func rawExchange(t *testing.T, address, payload string, halfClose bool) string {
	t.Helper()

	conn, err := net.Dial("tcp", address)
	require.NoError(t, err)

	defer conn.Close()

	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)

	if halfClose {
		require.NoError(t, conn.(*net.TCPConn).CloseWrite())
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))

	reader := bufio.NewReader(conn)

	reply, err := protocol.ReadToken(reader)
	require.NoError(t, err)

	_, err = protocol.ReadToken(reader)
	require.ErrorIs(t, err, protocol.ErrEmptyToken, "connection stays open")

	return reply
}

func TestServiceRejectsUnframedMessages(t *testing.T) {
	t.Parallel()

	svc := startOverseer(t, access.Policy{}, &recorder{})

	oversized := strings.Repeat("A", protocol.MaxTokenLength+1)
	require.Equal(t, door.ReplyInvalid, rawExchange(t, svc.Address(), oversized, false))
	require.Equal(t, door.ReplyInvalid, rawExchange(t, svc.Address(), "CARDREADER 1 HELLO", true))
}

func TestServiceAnswersScanBeforePublishing(t *testing.T) {
	t.Parallel()

	published := &gated{release: make(chan struct{})}
	svc := startOverseer(t, access.Policy{
		Authorizations: map[string][]int{"alice": {1}},
		Connections:    map[int]int{10: 1},
	}, published)

	var once sync.Once

	open := func() { once.Do(func() { close(published.release) }) }
	t.Cleanup(open)

	require.Equal(t, access.ReplyAllowed, request(t, svc, protocol.Scanned{ReaderID: 10, Code: "alice"}.String()))
	require.False(t, published.has(events.KindAccessDecided))

	open()

	require.Eventually(t, func() bool { return published.has(events.KindAccessDecided) }, testTimeout, 5*time.Millisecond)
}

func TestServiceRegistersFailSafeDoorsWithFireAlarm(t *testing.T) {
	t.Parallel()

	published := &recorder{}
	svc := startOverseer(t, access.Policy{}, published)

	fireAlarm, err := common.ListenUDP(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = fireAlarm.Close() })

	doorAddr := netip.MustParseAddrPort("127.0.0.1:4000")
	announce(t, svc, protocol.DoorHello{ID: 1, Address: doorAddr, Mode: door.FailSafe})
	announce(t, svc, protocol.DoorHello{ID: 2, Address: netip.MustParseAddrPort("127.0.0.1:4001"), Mode: door.FailSecure})

	buf := make([]byte, protocol.MaxDatagramSize)

	// Queued until the fire alarm announces itself.
	require.NoError(t, fireAlarm.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err = fireAlarm.ReadFromUDPAddrPort(buf)
	require.Error(t, err)

	announce(t, svc, protocol.FireAlarmHello{Address: common.LocalEndpoint(fireAlarm)})

	var from netip.AddrPort

	for range 2 {
		require.NoError(t, fireAlarm.SetReadDeadline(time.Now().Add(testTimeout)))

		var n int

		n, from, err = fireAlarm.ReadFromUDPAddrPort(buf)
		require.NoError(t, err)

		d, err := protocol.Decode(buf[:n], 0)
		require.NoError(t, err)
		require.Equal(t, protocol.DoorRegistration{Door: doorAddr}, d, "only the fail-safe door is registered")
	}

	require.NoError(t, common.SendDatagram(fireAlarm, from, protocol.DoorRegistration{Door: doorAddr, Confirmed: true}))
	require.Eventually(t, func() bool { return published.has(events.KindFireDoorConfirmed) }, testTimeout, 5*time.Millisecond)

	// Drop anything sent before the DREG landed, then expect silence.
	time.Sleep(100 * time.Millisecond)

	for {
		require.NoError(t, fireAlarm.SetReadDeadline(time.Now().Add(10*time.Millisecond)))

		if _, _, err = fireAlarm.ReadFromUDPAddrPort(buf); err != nil {
			break
		}
	}

	require.NoError(t, fireAlarm.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = fireAlarm.ReadFromUDPAddrPort(buf)

	var netErr net.Error
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "no DOOR datagrams after DREG")
}
