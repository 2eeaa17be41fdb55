package tempsensor

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

// Options controls the temperature sensor process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level.
	LogLevel string
}

// Service is a bound temperature sensor.
type Service struct {
	cfg    *config.TempSensor
	sensor *Sensor
	conn   *net.UDPConn
	twin   net.Listener
}

// Run loads the configuration, binds and gossips until ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "tempsensor")

	cfg, err := config.Load[config.TempSensor](opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = common.ApplyLogLevel(opts.LogLevel, cfg.LogLevel); err != nil {
		return err
	}

	logger.Info(ctx, version.Line("tempsensor"))

	svc, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	return svc.Run(ctx)
}

// New binds the gossip socket and, when configured, the twin shim.
func New(ctx context.Context, cfg *config.TempSensor) (*Service, error) {
	receivers := make([]netip.AddrPort, 0, len(cfg.Receivers))

	for _, r := range cfg.Receivers {
		ep, err := protocol.ParseEndpoint(r)
		if err != nil {
			return nil, fmt.Errorf("receiver: %w", err)
		}

		receivers = append(receivers, ep)
	}

	conn, err := common.ListenUDP(ctx, cfg.ListenAddress)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:  cfg,
		conn: conn,
	}

	s.sensor = NewSensor(Settings{
		ID:               cfg.ID,
		Self:             common.AdvertisedEndpoint(cfg.ListenAddress, conn.LocalAddr()),
		Receivers:        receivers,
		PathCapacity:     cfg.PathCapacity,
		MaxConditionWait: cfg.MaxConditionWait,
		MaxUpdateWait:    cfg.MaxUpdateWait,
	}, cfg.InitialTemperature, s.send)

	if cfg.TwinAddress != "" {
		if s.twin, err = common.ListenTwin(ctx, cfg.TwinAddress); err != nil {
			_ = conn.Close()

			return nil, err
		}
	}

	return s, nil
}

// Address returns the sensor's own endpoint.
func (s *Service) Address() netip.AddrPort { return s.sensor.settings.Self }

// Sensor returns the gossip node.
func (s *Service) Sensor() *Sensor { return s.sensor }

// Run gossips until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "sensor_id", s.cfg.ID, "address", s.Address().String())

	logger.InfoKV(ctx, "Sensor started", "receivers", len(s.cfg.Receivers))

	group, ctx := errgroup.WithContext(ctx)
	inbox := make(chan common.Inbound, s.cfg.InboxCapacity)

	// Closing the socket on shutdown ends the reader.
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	group.Go(func() error {
		common.ReadDatagrams(ctx, s.conn, s.cfg.PathCapacity, inbox)

		return nil
	})

	group.Go(func() error {
		s.sensor.Run(ctx, inbox)

		return nil
	})

	if s.twin != nil {
		group.Go(func() error { return common.ServeTwin(ctx, s.twin, s.sensor) })
	}

	return group.Wait()
}

// send writes one datagram from the sensor's socket.
func (s *Service) send(to netip.AddrPort, d protocol.Datagram) error {
	return common.SendDatagram(s.conn, to, d)
}
