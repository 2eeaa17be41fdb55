package overseer

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/oshokin/building-safety/internal/cell"
	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
)

// registration is the fire alarm registration state of one fail-safe door.
type registration struct {
	// confirmed is set once the matching DREG arrived.
	confirmed bool
	// sending is set while a goroutine resends the DOOR datagram.
	sending bool
}

// fireState is the registrar's cell. The map is only touched with the cell
// lock held.
type fireState struct {
	alarm netip.AddrPort
	doors map[netip.AddrPort]registration
}

// registrar registers fail-safe doors with the fire alarm unit, resending
// the DOOR datagram every delay until the DREG arrives. Doors added before
// the fire alarm announced itself are queued until it does.
type registrar struct {
	state *cell.Cell[fireState]
	delay time.Duration
	send  func(to netip.AddrPort, d protocol.Datagram) error
	wg    sync.WaitGroup
}

func newRegistrar(delay time.Duration, send func(netip.AddrPort, protocol.Datagram) error) *registrar {
	return &registrar{
		state: cell.New(fireState{doors: make(map[netip.AddrPort]registration)}),
		delay: delay,
		send:  send,
	}
}

// SetAlarm records the fire alarm endpoint. Every known door is registered
// again, so a restarted fire alarm unit learns the doors it lost.
func (r *registrar) SetAlarm(ctx context.Context, alarm netip.AddrPort) {
	var start []netip.AddrPort

	r.state.Update(func(s *fireState) bool {
		s.alarm = alarm

		for addr, reg := range s.doors {
			reg.confirmed = false

			if !reg.sending {
				reg.sending = true
				start = append(start, addr)
			}

			s.doors[addr] = reg
		}

		return true
	})

	for _, addr := range start {
		r.spawn(ctx, addr)
	}
}

// Add queues the registration of a fail-safe door. Doors already confirmed
// or being sent are left alone.
func (r *registrar) Add(ctx context.Context, addr netip.AddrPort) {
	start := false

	r.state.Update(func(s *fireState) bool {
		if reg, ok := s.doors[addr]; ok && (reg.confirmed || reg.sending) {
			return false
		}

		s.doors[addr] = registration{sending: true}
		start = true

		return true
	})

	if start {
		r.spawn(ctx, addr)
	}
}

// Confirm handles a DREG and reports whether it confirmed a pending door.
func (r *registrar) Confirm(addr netip.AddrPort) bool {
	confirmed := false

	r.state.Update(func(s *fireState) bool {
		reg, ok := s.doors[addr]
		if !ok || reg.confirmed {
			return false
		}

		reg.confirmed = true
		s.doors[addr] = reg
		confirmed = true

		return true
	})

	return confirmed
}

// Confirmed reports whether the door's registration was confirmed.
func (r *registrar) Confirmed(addr netip.AddrPort) bool {
	var confirmed bool

	r.state.Update(func(s *fireState) bool {
		confirmed = s.doors[addr].confirmed

		return false
	})

	return confirmed
}

// Wait blocks until every resending goroutine returned.
func (r *registrar) Wait() {
	r.wg.Wait()
}

func (r *registrar) spawn(ctx context.Context, addr netip.AddrPort) {
	r.wg.Go(func() {
		r.register(logger.WithKV(ctx, "door", addr.String()), addr)
	})
}

// register sends the DOOR datagram until it is confirmed or ctx ends.
func (r *registrar) register(ctx context.Context, addr netip.AddrPort) {
	for {
		s, err := r.state.Wait(ctx, func(s fireState) bool { return s.alarm.IsValid() })
		if err != nil {
			return
		}

		if err = r.send(s.alarm, protocol.DoorRegistration{Door: addr}); err != nil {
			logger.WarnKV(ctx, "DOOR datagram not sent", "fire_alarm", s.alarm.String(), "error", err)
		} else {
			logger.DebugKV(ctx, "DOOR datagram sent", "fire_alarm", s.alarm.String())
		}

		waitCtx, cancel := context.WithTimeout(ctx, r.delay)

		// Checking confirmation and clearing sending happen under one lock,
		// so SetAlarm never sees a goroutine that is about to exit.
		_, err = r.state.Do(waitCtx, func(s *fireState) (bool, bool) {
			reg := s.doors[addr]
			if !reg.confirmed {
				return false, false
			}

			reg.sending = false
			s.doors[addr] = reg

			return true, false
		})

		cancel()

		switch {
		case err == nil:
			logger.Info(ctx, "Door registered with fire alarm")

			return
		case ctx.Err() != nil:
			return
		}
	}
}
