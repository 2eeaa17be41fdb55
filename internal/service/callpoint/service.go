package callpoint

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/building-safety/internal/config"
	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
	"github.com/oshokin/building-safety/internal/service/common"
	"github.com/oshokin/building-safety/internal/version"
)

// Options controls the call point process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level.
	LogLevel string
}

// Service is a bound call point.
type Service struct {
	callPoint *CallPoint
	conn      *net.UDPConn
	fireAlarm netip.AddrPort
	twin      net.Listener
}

// Run loads the configuration and serves the call point until ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "callpoint")

	cfg, err := config.Load[config.CallPoint](opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = common.ApplyLogLevel(opts.LogLevel, cfg.LogLevel); err != nil {
		return err
	}

	logger.Info(ctx, version.Line("callpoint"))

	svc, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	return svc.Run(ctx)
}

// New binds an ephemeral datagram socket and, when configured, the twin shim.
func New(ctx context.Context, cfg *config.CallPoint) (*Service, error) {
	fireAlarm, err := protocol.ParseEndpoint(cfg.FireAlarmAddress)
	if err != nil {
		return nil, fmt.Errorf("fire alarm address: %w", err)
	}

	conn, err := common.ListenUDP(ctx, "0.0.0.0:0")
	if err != nil {
		return nil, err
	}

	s := &Service{
		conn:      conn,
		fireAlarm: fireAlarm,
	}

	s.callPoint = NewCallPoint(cfg.ResendDelay, func() error {
		return common.SendDatagram(s.conn, s.fireAlarm, protocol.Fire{})
	})

	if cfg.TwinAddress != "" {
		if s.twin, err = common.ListenTwin(ctx, cfg.TwinAddress); err != nil {
			_ = conn.Close()

			return nil, err
		}
	}

	return s, nil
}

// CallPoint returns the call point.
func (s *Service) CallPoint() *CallPoint { return s.callPoint }

// Run serves until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "fire_alarm", s.fireAlarm.String())
	defer s.conn.Close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.callPoint.Run(ctx)

		return nil
	})

	if s.twin != nil {
		group.Go(func() error { return common.ServeTwin(ctx, s.twin, s.callPoint) })
	}

	return group.Wait()
}
