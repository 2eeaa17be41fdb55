package door

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/building-safety/internal/config"
	"github.com/oshokin/building-safety/internal/domain/door"
	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
	"github.com/oshokin/building-safety/internal/service/common"
	"github.com/oshokin/building-safety/internal/version"
)

// Options controls the door process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level.
	LogLevel string
}

// Service is a bound door controller.
type Service struct {
	cfg        *config.Door
	controller *Controller
	listener   net.Listener
	twin       net.Listener
	address    netip.AddrPort
}

// Run loads the configuration, binds, announces the door and serves
// commands until ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "door")

	cfg, err := config.Load[config.Door](opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = common.ApplyLogLevel(opts.LogLevel, cfg.LogLevel); err != nil {
		return err
	}

	logger.Info(ctx, version.Line("door"))

	svc, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	return svc.Run(ctx)
}

// New binds the command listener and, when configured, the twin shim.
func New(ctx context.Context, cfg *config.Door) (*Service, error) {
	lis, err := common.Listen(ctx, cfg.ListenAddress)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:        cfg,
		controller: NewController(),
		listener:   lis,
		address:    common.AdvertisedEndpoint(cfg.ListenAddress, lis.Addr()),
	}

	if cfg.TwinAddress != "" {
		if s.twin, err = common.ListenTwin(ctx, cfg.TwinAddress); err != nil {
			_ = lis.Close()

			return nil, err
		}
	}

	return s, nil
}

// Address returns the endpoint the door announces.
func (s *Service) Address() netip.AddrPort { return s.address }

// TwinAddress returns the bound twin shim address, or "" when disabled.
func (s *Service) TwinAddress() string {
	if s.twin == nil {
		return ""
	}

	return s.twin.Addr().String()
}

// Controller returns the door's controller.
func (s *Service) Controller() *Controller { return s.controller }

// Run announces the door to the Overseer and serves until ctx is cancelled.
// Failing to announce is fatal.
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "door_id", s.cfg.ID, "address", s.address.String())

	hello := protocol.DoorHello{ID: s.cfg.ID, Address: s.address, Mode: s.cfg.Mode}
	if err := common.Announce(ctx, s.cfg.OverseerAddress, s.cfg.Timeout, hello); err != nil {
		_ = s.listener.Close()

		if s.twin != nil {
			_ = s.twin.Close()
		}

		return err
	}

	logger.InfoKV(ctx, "Door announced", "mode", s.cfg.Mode)

	group, ctx := errgroup.WithContext(ctx)

	if s.twin != nil {
		group.Go(func() error { return common.ServeTwin(ctx, s.twin, s.controller) })
	}

	if s.cfg.ActuatorDelay > 0 {
		group.Go(func() error {
			runActuator(ctx, s.controller, s.cfg.ActuatorDelay)

			return nil
		})
	}

	group.Go(func() error { return common.Serve(ctx, s.listener, s.handle) })

	return group.Wait()
}

// handle serves the commands of one connection.
func (s *Service) handle(ctx context.Context, conn net.Conn) {
	reader := bufio.NewReader(conn)

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}

		token, err := protocol.ReadToken(reader)
		if err != nil {
			s.readFailed(ctx, conn, err)

			return
		}

		// Commands may legitimately block for as long as the twin takes.
		_ = conn.SetReadDeadline(time.Time{})

		reply := s.execute(ctx, conn, token)
		if reply == "" {
			return
		}

		if err := protocol.WriteToken(conn, reply); err != nil {
			logger.WarnKV(ctx, "Write reply failed", "error", err)

			return
		}
	}
}

// readFailed answers a command that could not be framed before the
// connection is closed.
func (s *Service) readFailed(ctx context.Context, conn net.Conn, err error) {
	if errors.Is(err, protocol.ErrEmptyToken) || ctx.Err() != nil {
		return
	}

	logger.WarnKV(ctx, "Read command failed", "error", err)

	if !errors.Is(err, protocol.ErrTokenTooLong) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.Timeout))
	_ = protocol.WriteToken(conn, door.ReplyInvalid)
}

// execute runs one token and returns the final reply, or "" when the
// connection should be dropped.
func (s *Service) execute(ctx context.Context, conn net.Conn, token string) string {
	cmd, err := door.ParseCommand(token)
	if err != nil {
		logger.DebugKV(ctx, "Invalid command", "token", token)

		return door.ReplyInvalid
	}

	reply, err := s.controller.Execute(ctx, cmd, func(interim string) error {
		return protocol.WriteToken(conn, interim)
	})
	if err != nil {
		if ctx.Err() == nil {
			logger.WarnKV(ctx, "Command failed", "command", cmd, "error", err)
		}

		return ""
	}

	logger.InfoKV(ctx, "Command served", "command", cmd, "reply", reply)

	return reply
}
