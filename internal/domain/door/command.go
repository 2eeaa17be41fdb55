package door

import (
	"errors"
	"strings"
)

// Command is a request token accepted by the door controller.
type Command string

const (
	// CommandOpen opens a closed door.
	CommandOpen Command = "OPEN"
	// CommandClose closes an open door.
	CommandClose Command = "CLOSE"
	// CommandOpenEmergency forces the door open and latches emergency mode.
	CommandOpenEmergency Command = "OPEN_EMERG"
	// CommandCloseSecure forces the door closed and latches secure mode.
	CommandCloseSecure Command = "CLOSE_SECURE"
	// CommandState queries the current state without changing it.
	CommandState Command = "STATE"
)

// Reply tokens, without the terminator.
const (
	ReplyOpening         = "OPENING"
	ReplyOpened          = "OPENED"
	ReplyClosing         = "CLOSING"
	ReplyClosed          = "CLOSED"
	ReplyAlready         = "ALREADY"
	ReplyEmergencyOpened = "EMERGENCY_OPENED"
	ReplyEmergencyMode   = "EMERGENCY_MODE"
	ReplySecureClosed    = "SECURE_CLOSED"
	ReplySecureMode      = "SECURE_MODE"
	ReplyInvalid         = "ERROR Invalid command"
	replyStatePrefix     = "STATE "
)

// ErrInvalidCommand is returned by ParseCommand for unknown tokens.
var ErrInvalidCommand = errors.New("invalid command")

// ParseCommand maps a received token to a Command.
func ParseCommand(token string) (Command, error) {
	switch c := Command(strings.TrimSpace(token)); c {
	case CommandOpen, CommandClose, CommandOpenEmergency, CommandCloseSecure, CommandState:
		return c, nil
	default:
		return "", ErrInvalidCommand
	}
}

// StateReply renders the reply to a STATE query.
func StateReply(s State) string {
	return replyStatePrefix + s.String()
}

// interimReply is sent before blocking on a normal transition.
func (c Command) interimReply() string {
	switch c {
	case CommandOpen:
		return ReplyOpening
	case CommandClose:
		return ReplyClosing
	default:
		return ""
	}
}

// finishedReply is sent once the transition started by c has completed.
func (c Command) finishedReply() string {
	switch c {
	case CommandOpen:
		return ReplyOpened
	case CommandClose:
		return ReplyClosed
	case CommandOpenEmergency:
		return ReplyEmergencyOpened
	case CommandCloseSecure:
		return ReplySecureClosed
	default:
		return ReplyInvalid
	}
}
