package tempsensor

import (
	"context"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/oshokin/building-safety/internal/cell"
	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
	"github.com/oshokin/building-safety/internal/service/common"
)

// Sender delivers one datagram.
type Sender func(to netip.AddrPort, d protocol.Datagram) error

// Settings tune a sensor.
type Settings struct {
	ID               uint16
	Self             netip.AddrPort
	Receivers        []netip.AddrPort
	PathCapacity     int
	MaxConditionWait time.Duration
	MaxUpdateWait    time.Duration
}

// Sensor is the gossip node's loop state.
type Sensor struct {
	settings Settings
	cell     *cell.Cell[float32]
	send     Sender

	originated atomic.Uint64
	relayed    atomic.Uint64
	received   atomic.Uint64
}

// NewSensor returns a sensor reading initial.
func NewSensor(settings Settings, initial float32, send Sender) *Sensor {
	return &Sensor{
		settings: settings,
		cell:     cell.New(initial),
		send:     send,
	}
}

// SetTemperature is the twin writing a new physical value.
func (s *Sensor) SetTemperature(_ context.Context, value float32) error {
	s.cell.Update(func(v *float32) bool {
		if *v == value {
			return false
		}

		*v = value

		return true
	})

	return nil
}

// Snapshot returns the cell contents and traffic counters for the twin.
func (s *Sensor) Snapshot(context.Context) map[string]any {
	return map[string]any{
		"temperature": s.cell.Load(),
		"originated":  s.originated.Load(),
		"relayed":     s.relayed.Load(),
		"received":    s.received.Load(),
	}
}

// Run executes the originate, drain, wait cycle until ctx is cancelled or
// the inbox is closed.
func (s *Sensor) Run(ctx context.Context, inbox <-chan common.Inbound) {
	var (
		first    = true
		lastSent time.Time
		lastTemp float32
	)

	timer := time.NewTimer(s.settings.MaxConditionWait)
	defer timer.Stop()

	for {
		// Capture the change signal before reading, so a change made after
		// the read still wakes the wait below.
		changed := s.cell.Changed()
		temperature := s.cell.Load()

		now := time.Now()
		if first || temperature != lastTemp || now.Sub(lastSent) >= s.settings.MaxUpdateWait {
			s.originate(ctx, temperature, now)

			first = false
			lastTemp = temperature
			lastSent = now
		}

		if !s.drain(ctx, inbox) {
			return
		}

		timer.Reset(s.waitFor(time.Since(lastSent)))

		select {
		case <-ctx.Done():
			return
		case <-changed:
		case <-timer.C:
		}
	}
}

// waitFor bounds the timed wait by the ceiling and by the time left until
// the next keepalive.
func (s *Sensor) waitFor(sinceSend time.Duration) time.Duration {
	return max(min(s.settings.MaxConditionWait, s.settings.MaxUpdateWait-sinceSend), 0)
}

// drain processes every datagram already queued. It reports false once the
// inbox is closed.
func (s *Sensor) drain(ctx context.Context, inbox <-chan common.Inbound) bool {
	for {
		select {
		case in, ok := <-inbox:
			if !ok {
				return false
			}

			if reading, isTemp := in.Datagram.(protocol.Temperature); isTemp {
				s.relay(ctx, reading)
			}
		default:
			return true
		}
	}
}

// originate sends a fresh reading with path [self] to every receiver.
func (s *Sensor) originate(ctx context.Context, temperature float32, now time.Time) {
	reading := protocol.Temperature{
		Timestamp: now,
		Value:     temperature,
		OriginID:  s.settings.ID,
		Path:      []netip.AddrPort{s.settings.Self},
	}

	s.originated.Add(1)

	logger.DebugKV(ctx, "Originating reading", "temperature", temperature)

	for _, to := range s.settings.Receivers {
		s.deliver(ctx, to, reading)
	}
}

// relay forwards a received reading with self appended to every receiver
// not already on its path. The payload is forwarded unchanged.
func (s *Sensor) relay(ctx context.Context, reading protocol.Temperature) {
	s.received.Add(1)

	forwarded := reading.Relayed(s.settings.Self, s.settings.PathCapacity)

	for _, to := range s.settings.Receivers {
		if reading.Visited(to) {
			continue
		}

		s.relayed.Add(1)
		s.deliver(ctx, to, forwarded)
	}
}

// deliver sends to one receiver; a failure only affects that receiver.
func (s *Sensor) deliver(ctx context.Context, to netip.AddrPort, reading protocol.Temperature) {
	if err := s.send(to, reading); err != nil {
		logger.WarnKV(ctx, "Send reading failed", "receiver", to.String(), "error", err)
	}
}
