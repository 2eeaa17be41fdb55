package overseer

import (
	"context"
	"time"

	"github.com/oshokin/building-safety/internal/domain/door"
	"github.com/oshokin/building-safety/internal/events"
	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/service/common"
)

// cycle opens the door, keeps it open for the configured duration and closes
// it again. Cycles of one door run one at a time.
func (s *Service) cycle(ctx context.Context, entry doorEntry, readerID int) {
	entry.cycle.Lock()
	defer entry.cycle.Unlock()

	ctx = logger.WithKV(ctx, "door_id", entry.ID, "door", entry.Address.String())

	opened, err := s.command(ctx, entry, door.CommandOpen)
	if err != nil {
		logger.WarnKV(ctx, "Open door failed", "error", err)

		return
	}

	data := map[string]any{
		"door_id":    entry.ID,
		"reader_id":  readerID,
		"open_reply": opened,
	}

	if opened != door.ReplyOpened && opened != door.ReplyAlready {
		logger.InfoKV(ctx, "Door refused to open", "reply", opened)
		s.publish(ctx, events.KindDoorCycled, data)

		return
	}

	timer := time.NewTimer(s.cfg.DoorOpenDuration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	closed, err := s.command(ctx, entry, door.CommandClose)
	if err != nil {
		logger.WarnKV(ctx, "Close door failed", "error", err)

		return
	}

	data["close_reply"] = closed

	logger.InfoKV(ctx, "Door cycled", "open_reply", opened, "close_reply", closed)
	s.publish(ctx, events.KindDoorCycled, data)
}

// command sends cmd to the door and returns its terminal reply.
func (s *Service) command(ctx context.Context, entry doorEntry, cmd door.Command) (string, error) {
	return common.Request(ctx, entry.Address.String(), s.cfg.Timeout, string(cmd), func(reply string) bool {
		return reply != door.ReplyOpening && reply != door.ReplyClosing
	})
}
