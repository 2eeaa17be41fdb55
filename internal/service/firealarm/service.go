package firealarm

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/building-safety/internal/config"
	"github.com/oshokin/building-safety/internal/domain/door"
	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
	"github.com/oshokin/building-safety/internal/service/common"
	"github.com/oshokin/building-safety/internal/version"
)

// inboxCapacity bounds datagrams queued between the socket and the unit.
const inboxCapacity = 256

// Options controls the fire alarm process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level.
	LogLevel string
}

// Service is a bound fire alarm unit.
type Service struct {
	cfg     *config.FireAlarm
	unit    *Unit
	conn    *net.UDPConn
	twin    net.Listener
	address netip.AddrPort
}

// Run loads the configuration, binds, announces the unit and serves
// datagrams until ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "firealarm")

	cfg, err := config.Load[config.FireAlarm](opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = common.ApplyLogLevel(opts.LogLevel, cfg.LogLevel); err != nil {
		return err
	}

	logger.Info(ctx, version.Line("firealarm"))

	svc, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	return svc.Run(ctx)
}

// New binds the datagram socket and, when configured, the twin shim.
func New(ctx context.Context, cfg *config.FireAlarm) (*Service, error) {
	conn, err := common.ListenUDP(ctx, cfg.ListenAddress)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		conn:    conn,
		address: common.AdvertisedEndpoint(cfg.ListenAddress, conn.LocalAddr()),
	}

	s.unit = NewUnit(Settings{
		Threshold:         cfg.Threshold,
		MinDetections:     cfg.MinDetections,
		DetectionPeriod:   cfg.DetectionPeriod,
		DetectionCapacity: cfg.DetectionCapacity,
		RegistryCapacity:  cfg.RegistryCapacity,
	}, s.openEmergency)

	if cfg.TwinAddress != "" {
		if s.twin, err = common.ListenTwin(ctx, cfg.TwinAddress); err != nil {
			_ = conn.Close()

			return nil, err
		}
	}

	return s, nil
}

// Address returns the unit's datagram endpoint.
func (s *Service) Address() netip.AddrPort { return s.address }

// Unit returns the alarm unit.
func (s *Service) Unit() *Unit { return s.unit }

// Run announces the unit to the Overseer and serves datagrams until ctx is
// cancelled. Failing to announce is fatal.
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "address", s.address.String())

	hello := protocol.FireAlarmHello{Address: s.address}
	if err := common.Announce(ctx, s.cfg.OverseerAddress, s.cfg.Timeout, hello); err != nil {
		s.close()

		return err
	}

	logger.Info(ctx, "Fire alarm announced")

	group, ctx := errgroup.WithContext(ctx)
	inbox := make(chan common.Inbound, inboxCapacity)

	// Closing the socket on shutdown ends the reader.
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	group.Go(func() error {
		common.ReadDatagrams(ctx, s.conn, protocol.MaxPathCapacity, inbox)

		return nil
	})

	if s.twin != nil {
		group.Go(func() error { return common.ServeTwin(ctx, s.twin, s.unit) })
	}

	group.Go(func() error {
		for in := range inbox {
			s.dispatch(ctx, in)
		}

		s.unit.Wait()

		return nil
	})

	return group.Wait()
}

// dispatch handles one datagram.
func (s *Service) dispatch(ctx context.Context, in common.Inbound) {
	switch d := in.Datagram.(type) {
	case protocol.Fire:
		logger.InfoKV(ctx, "FIRE received", "peer", in.From.String())
		s.unit.Fire(ctx)
	case protocol.Temperature:
		s.unit.Temperature(ctx, d)
	case protocol.DoorRegistration:
		if d.Confirmed {
			return
		}

		if !s.unit.Register(ctx, d.Door) {
			return
		}

		confirm := protocol.DoorRegistration{Door: d.Door, Confirmed: true}
		if err := common.SendDatagram(s.conn, in.From, confirm); err != nil {
			logger.WarnKV(ctx, "DREG not sent", "peer", in.From.String(), "error", err)
		}
	}
}

// openEmergency sends OPEN_EMERG to one door and waits for its final reply.
func (s *Service) openEmergency(ctx context.Context, to netip.AddrPort) error {
	reply, err := common.Request(ctx, to.String(), s.cfg.Timeout, string(door.CommandOpenEmergency), nil)
	if err != nil {
		return err
	}

	logger.DebugKV(ctx, "Door answered emergency", "door", to.String(), "reply", reply)

	return nil
}

// close releases the sockets of a unit that never started serving.
func (s *Service) close() {
	_ = s.conn.Close()

	if s.twin != nil {
		_ = s.twin.Close()
	}
}
