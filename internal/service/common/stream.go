//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
)

// Handler serves one accepted connection. The connection is closed after
// the handler returns.
type Handler func(ctx context.Context, conn net.Conn)

// Listen binds a TCP listener.
func Listen(ctx context.Context, address string) (net.Listener, error) {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	return lis, nil
}

// Serve accepts connections on lis and runs handle for each one on its own
// goroutine. It returns when ctx is cancelled, after every handler returned.
func Serve(ctx context.Context, lis net.Listener, handle Handler) error {
	var wg sync.WaitGroup

	stop := context.AfterFunc(ctx, func() { _ = lis.Close() })
	defer stop()

	for {
		conn, err := lis.Accept()
		if err != nil {
			wg.Wait()

			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("accept: %w", err)
		}

		wg.Go(func() {
			defer conn.Close()

			// Unblock reads when the process shuts down.
			release := context.AfterFunc(ctx, func() { _ = conn.Close() })
			defer release()

			handle(logger.WithKV(ctx, "peer", conn.RemoteAddr().String()), conn)
		})
	}
}

// Session is a client connection exchanging '#'-terminated tokens.
type Session struct {
	conn   net.Conn
	reader *bufio.Reader
	stop   func() bool
}

// Open dials address within timeout. Cancelling ctx closes the session.
func Open(ctx context.Context, address string, timeout time.Duration) (*Session, error) {
	dialer := net.Dialer{Timeout: timeout}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	return &Session{
		conn:   conn,
		reader: bufio.NewReader(conn),
		stop:   context.AfterFunc(ctx, func() { _ = conn.Close() }),
	}, nil
}

// Send writes one token.
func (s *Session) Send(token string) error {
	return protocol.WriteToken(s.conn, token)
}

// Receive reads one token.
func (s *Session) Receive() (string, error) {
	return protocol.ReadToken(s.reader)
}

// Close closes the connection.
func (s *Session) Close() error {
	s.stop()

	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}

// Announce delivers a single message that expects no reply.
func Announce(ctx context.Context, address string, timeout time.Duration, msg protocol.Message) error {
	session, err := Open(ctx, address, timeout)
	if err != nil {
		return fmt.Errorf("announce %q: %w", msg, err)
	}
	defer session.Close()

	if err := session.Send(msg.String()); err != nil {
		return fmt.Errorf("announce %q: %w", msg, err)
	}

	return nil
}

// Request sends token and returns the first reply for which final reports
// true, skipping interim replies. A nil final accepts the first reply.
func Request(
	ctx context.Context,
	address string,
	timeout time.Duration,
	token string,
	final func(reply string) bool,
) (string, error) {
	session, err := Open(ctx, address, timeout)
	if err != nil {
		return "", err
	}
	defer session.Close()

	if err := session.Send(token); err != nil {
		return "", err
	}

	for {
		reply, err := session.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}

			return "", fmt.Errorf("await reply to %q: %w", token, err)
		}

		if final == nil || final(reply) {
			return reply, nil
		}

		logger.DebugKV(ctx, "Interim reply", "request", token, "reply", reply)
	}
}
