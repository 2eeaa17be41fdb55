package cardreader

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/building-safety/internal/config"
	"github.com/oshokin/building-safety/internal/domain/access"
	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
	"github.com/oshokin/building-safety/internal/service/common"
	"github.com/oshokin/building-safety/internal/version"
)

// Options controls the card reader process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level.
	LogLevel string
}

// Service is a card reader bound to its twin shim.
type Service struct {
	cfg    *config.CardReader
	reader *Reader
	twin   net.Listener
}

// Run loads the configuration, announces the reader and serves scans until
// ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "cardreader")

	cfg, err := config.Load[config.CardReader](opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = common.ApplyLogLevel(opts.LogLevel, cfg.LogLevel); err != nil {
		return err
	}

	logger.Info(ctx, version.Line("cardreader"))

	svc, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	return svc.Run(ctx)
}

// New binds the twin shim when configured.
func New(ctx context.Context, cfg *config.CardReader) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		reader: NewReader(),
	}

	if cfg.TwinAddress != "" {
		var err error
		if s.twin, err = common.ListenTwin(ctx, cfg.TwinAddress); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Reader returns the reader's cell adapter.
func (s *Service) Reader() *Reader { return s.reader }

// TwinAddress returns the bound twin shim address, or "" when disabled.
func (s *Service) TwinAddress() string {
	if s.twin == nil {
		return ""
	}

	return s.twin.Addr().String()
}

// Run announces the reader and processes scans until ctx is cancelled.
// Failing to announce is fatal.
func (s *Service) Run(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "reader_id", s.cfg.ID)

	hello := protocol.CardReaderHello{ID: s.cfg.ID}
	if err := common.Announce(ctx, s.cfg.OverseerAddress, s.cfg.Timeout, hello); err != nil {
		if s.twin != nil {
			_ = s.twin.Close()
		}

		return err
	}

	logger.Info(ctx, "Card reader announced")

	group, ctx := errgroup.WithContext(ctx)

	if s.twin != nil {
		group.Go(func() error { return common.ServeTwin(ctx, s.twin, s.reader) })
	}

	group.Go(func() error {
		s.loop(ctx)

		return nil
	})

	return group.Wait()
}

// loop waits for scans and publishes their verdicts.
func (s *Service) loop(ctx context.Context) {
	for {
		code, scan, err := s.reader.next(ctx)
		if err != nil {
			return
		}

		verdict := s.authorize(ctx, code)
		s.reader.publish(scan, verdict)

		logger.InfoKV(ctx, "Scan answered", "scan", scan, "verdict", verdict.String())
	}
}

// authorize asks the Overseer over a fresh connection. Any failure denies.
func (s *Service) authorize(ctx context.Context, code string) access.Verdict {
	request := protocol.Scanned{ReaderID: s.cfg.ID, Code: code}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	reply, err := common.Request(callCtx, s.cfg.OverseerAddress, s.cfg.Timeout, request.String(), nil)
	if err != nil {
		logger.WarnKV(ctx, "Authorization request failed", "error", err, "code_length", len(code))

		return access.Denied
	}

	return access.FromReply(reply)
}
