package overseer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/building-safety/internal/config"
	"github.com/oshokin/building-safety/internal/events"
	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
	"github.com/oshokin/building-safety/internal/repository/policy"
	"github.com/oshokin/building-safety/internal/service/common"
	"github.com/oshokin/building-safety/internal/version"
)

// inboxCapacity bounds datagrams waiting for dispatch.
const inboxCapacity = 64

// Options controls the overseer process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level.
	LogLevel string
}

// Service is a bound overseer.
type Service struct {
	cfg       *config.Overseer
	repo      policy.Repository
	publisher events.Publisher
	directory *directory
	registrar *registrar
	listener  net.Listener
	conn      *net.UDPConn
	// cycles tracks running door access cycles.
	cycles sync.WaitGroup
}

// Run loads the configuration and serves until ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "overseer")

	cfg, err := config.Load[config.Overseer](opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = common.ApplyLogLevel(opts.LogLevel, cfg.LogLevel); err != nil {
		return err
	}

	logger.Info(ctx, version.Line("overseer"))

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}

	svc, err := New(ctx, cfg, policy.NewFileRepository(cfg.PolicyFile), publisher)
	if err != nil {
		_ = publisher.Close()

		return err
	}

	return svc.Run(ctx)
}

// newPublisher publishes to Redis when an address is configured and to the
// log otherwise. An unreachable Redis is a startup error.
func newPublisher(ctx context.Context, cfg *config.Overseer) (events.Publisher, error) {
	if cfg.Events.RedisAddress == "" {
		return events.LogPublisher{}, nil
	}

	publisher, err := events.NewRedisPublisher(&redis.Options{Addr: cfg.Events.RedisAddress}, cfg.Events.Name)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err = publisher.Ping(pingCtx); err != nil {
		_ = publisher.Close()

		return nil, err
	}

	logger.InfoKV(ctx, "Publishing events to Redis",
		"redis_address", cfg.Events.RedisAddress, "channel", events.Channel(cfg.Events.Name))

	return publisher, nil
}

// New checks the policy and binds the TCP listener and the datagram socket
// on the listen address.
func New(ctx context.Context, cfg *config.Overseer, repo policy.Repository, publisher events.Publisher) (*Service, error) {
	if _, err := repo.Load(ctx); err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			return nil, fmt.Errorf("policy file %s: %w", cfg.PolicyFile, err)
		}

		return nil, fmt.Errorf("load policy: %w", err)
	}

	lis, err := common.Listen(ctx, cfg.ListenAddress)
	if err != nil {
		return nil, err
	}

	conn, err := common.ListenUDP(ctx, udpAddress(cfg.ListenAddress, lis.Addr()))
	if err != nil {
		_ = lis.Close()

		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		repo:      repo,
		publisher: publisher,
		directory: newDirectory(),
		listener:  lis,
		conn:      conn,
	}

	s.registrar = newRegistrar(cfg.DatagramResendDelay, func(to netip.AddrPort, d protocol.Datagram) error {
		return common.SendDatagram(s.conn, to, d)
	})

	return s, nil
}

// udpAddress places the datagram socket on the TCP listener's port.
func udpAddress(configured string, bound net.Addr) string {
	host, _, err := net.SplitHostPort(configured)
	if err != nil {
		return configured
	}

	tcp, ok := bound.(*net.TCPAddr)
	if !ok {
		return configured
	}

	return net.JoinHostPort(host, strconv.Itoa(tcp.Port))
}

// Address returns the bound TCP address.
func (s *Service) Address() string { return s.listener.Addr().String() }

// DatagramAddress returns the endpoint DOOR datagrams are sent from.
func (s *Service) DatagramAddress() netip.AddrPort { return common.LocalEndpoint(s.conn) }

// Doors returns the ids of the announced doors.
func (s *Service) Doors() []int { return s.directory.doorIDs() }

// CardReaders returns the ids of the announced card readers.
func (s *Service) CardReaders() []int { return s.directory.readerIDs() }

// Run serves until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer s.publisher.Close()

	logger.InfoKV(ctx, "Overseer listening",
		"listen_address", s.Address(), "datagram_address", s.DatagramAddress().String(), "policy_file", s.cfg.PolicyFile)

	group, ctx := errgroup.WithContext(ctx)
	inbox := make(chan common.Inbound, inboxCapacity)

	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	group.Go(func() error {
		common.ReadDatagrams(ctx, s.conn, 0, inbox)

		return nil
	})

	group.Go(func() error {
		for in := range inbox {
			s.dispatch(ctx, in)
		}

		return nil
	})

	group.Go(func() error { return common.Serve(ctx, s.listener, s.handle) })

	err := group.Wait()

	s.registrar.Wait()
	s.cycles.Wait()
	logger.Info(ctx, "Overseer stopped")

	return err
}

// dispatch handles one inbound datagram. Only DREG is expected.
func (s *Service) dispatch(ctx context.Context, in common.Inbound) {
	reg, ok := in.Datagram.(protocol.DoorRegistration)
	if !ok || !reg.Confirmed {
		logger.DebugKV(ctx, "Unexpected datagram", "peer", in.From.String(), "header", in.Datagram.Header())

		return
	}

	if !s.registrar.Confirm(reg.Door) {
		logger.DebugKV(ctx, "Duplicate DREG", "door", reg.Door.String())

		return
	}

	s.publish(ctx, events.KindFireDoorConfirmed, map[string]any{
		"door":       reg.Door.String(),
		"fire_alarm": in.From.String(),
	})
}

// publish emits an event. Failures are logged and otherwise ignored.
func (s *Service) publish(ctx context.Context, kind events.Kind, data map[string]any) {
	if err := s.publisher.Publish(ctx, events.New(kind, data)); err != nil {
		logger.WarnKV(ctx, "Publish event failed", "kind", string(kind), "error", err)
	}
}
