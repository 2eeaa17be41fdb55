package overseer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/oshokin/building-safety/internal/domain/access"
	"github.com/oshokin/building-safety/internal/domain/door"
	"github.com/oshokin/building-safety/internal/events"
	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
)

// handle serves the messages of one connection until the peer closes it.
func (s *Service) handle(ctx context.Context, conn net.Conn) {
	reader := bufio.NewReader(conn)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.Timeout))

		token, err := protocol.ReadToken(reader)
		if err != nil {
			s.readFailed(ctx, conn, err)

			return
		}

		reply, after := s.serve(ctx, token)
		if reply == "" {
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.Timeout))

		if err := protocol.WriteToken(conn, reply); err != nil {
			logger.WarnKV(ctx, "Write reply failed", "error", err)

			return
		}

		if after != nil {
			after()
		}
	}
}

// readFailed answers a request that could not be framed before the
// connection is closed.
func (s *Service) readFailed(ctx context.Context, conn net.Conn, err error) {
	if errors.Is(err, protocol.ErrEmptyToken) || ctx.Err() != nil {
		return
	}

	logger.WarnKV(ctx, "Read message failed", "error", err)

	if !errors.Is(err, protocol.ErrTokenTooLong) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.Timeout))
	_ = protocol.WriteToken(conn, door.ReplyInvalid)
}

// serve handles one message and returns the reply, or "" for messages that
// expect none. after, when set, runs once the reply has been written.
func (s *Service) serve(ctx context.Context, token string) (reply string, after func()) {
	msg, err := protocol.ParseMessage(token)
	if err != nil {
		logger.DebugKV(ctx, "Invalid message", "token", token, "error", err)

		return door.ReplyInvalid, nil
	}

	switch m := msg.(type) {
	case protocol.DoorHello:
		s.registerDoor(ctx, m)
	case protocol.CardReaderHello:
		if s.directory.addReader(m.ID) {
			logger.InfoKV(ctx, "Card reader registered", "reader_id", m.ID)
		}

		s.publish(ctx, events.KindCardReaderRegistered, map[string]any{"reader_id": m.ID})
	case protocol.FireAlarmHello:
		logger.InfoKV(ctx, "Fire alarm registered", "fire_alarm", m.Address.String())
		s.registrar.SetAlarm(ctx, m.Address)
		s.publish(ctx, events.KindFireAlarmRegistered, map[string]any{"address": m.Address.String()})
	case protocol.Scanned:
		verdict, followUp := s.decide(ctx, m)

		return verdict.Reply(), followUp
	}

	return "", nil
}

// registerDoor records a door and, for fail-safe doors, queues its
// registration with the fire alarm unit.
func (s *Service) registerDoor(ctx context.Context, m protocol.DoorHello) {
	s.directory.addDoor(m.ID, m.Address, m.Mode)

	logger.InfoKV(ctx, "Door registered", "door_id", m.ID, "address", m.Address.String(), "mode", string(m.Mode))

	s.publish(ctx, events.KindDoorRegistered, map[string]any{
		"door_id": m.ID,
		"address": m.Address.String(),
		"mode":    string(m.Mode),
	})

	if m.Mode == door.FailSafe {
		s.registrar.Add(ctx, m.Address)
	}
}

// decide answers a scan. The returned follow-up publishes the decision and,
// when allowed, starts cycling the door; the reader is answered first.
func (s *Service) decide(ctx context.Context, m protocol.Scanned) (access.Verdict, func()) {
	ctx = logger.WithKV(ctx, "reader_id", m.ReaderID)

	verdict := access.Denied

	pol, err := s.repo.Load(ctx)
	switch {
	case err != nil:
		logger.ErrorKV(ctx, "Load policy failed, denying", "error", err)
	case access.ValidateCode(m.Code) != nil:
		logger.DebugKV(ctx, "Invalid card code", "code", m.Code)
	default:
		verdict = pol.Decide(m.ReaderID, m.Code)
	}

	doorID, connected := pol.DoorFor(m.ReaderID)

	logger.InfoKV(ctx, "Access decided", "door_id", doorID, "verdict", verdict.String())

	return verdict, func() {
		s.publish(ctx, events.KindAccessDecided, map[string]any{
			"reader_id": m.ReaderID,
			"door_id":   doorID,
			"verdict":   verdict.Reply(),
		})

		if verdict != access.Allowed || !connected {
			return
		}

		entry, ok := s.directory.door(doorID)
		if !ok {
			logger.WarnKV(ctx, "Authorised door has not announced itself", "door_id", doorID)

			return
		}

		s.cycles.Go(func() { s.cycle(ctx, entry, m.ReaderID) })
	}
}
