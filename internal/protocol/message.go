package protocol

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/oshokin/building-safety/internal/domain/door"
)

// ErrMalformed is returned for text messages that do not parse.
var ErrMalformed = errors.New("malformed message")

// Message is any text message sent to the overseer.
type Message interface {
	// String renders the message without the terminator.
	String() string
}

// DoorHello announces a door controller: DOOR <id> <addr:port> <mode>.
type DoorHello struct {
	ID      int
	Address netip.AddrPort
	Mode    door.Mode
}

// String renders the message without the terminator.
func (m DoorHello) String() string {
	return fmt.Sprintf("DOOR %d %s %s", m.ID, m.Address, m.Mode)
}

// CardReaderHello announces a card reader: CARDREADER <id> HELLO.
type CardReaderHello struct {
	ID int
}

// String renders the message without the terminator.
func (m CardReaderHello) String() string {
	return fmt.Sprintf("CARDREADER %d HELLO", m.ID)
}

// FireAlarmHello announces the fire alarm unit: FIREALARM <addr:port> HELLO.
type FireAlarmHello struct {
	Address netip.AddrPort
}

// String renders the message without the terminator.
func (m FireAlarmHello) String() string {
	return fmt.Sprintf("FIREALARM %s HELLO", m.Address)
}

// Scanned asks for an authorization verdict: CARDREADER <id> SCANNED <code>.
type Scanned struct {
	ReaderID int
	Code     string
}

// String renders the message without the terminator.
func (m Scanned) String() string {
	return fmt.Sprintf("CARDREADER %d SCANNED %s", m.ReaderID, m.Code)
}

// ParseMessage decodes a token received by the overseer.
func ParseMessage(token string) (Message, error) {
	fields := strings.Fields(token)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}

	switch fields[0] {
	case "DOOR":
		return parseDoorHello(fields)
	case "CARDREADER":
		return parseCardReader(fields)
	case "FIREALARM":
		return parseFireAlarmHello(fields)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, fields[0])
	}
}

// parseDoorHello decodes DOOR <id> <addr:port> <mode>.
func parseDoorHello(fields []string) (Message, error) {
	if len(fields) != 4 {
		return nil, fmt.Errorf("%w: DOOR expects 3 arguments", ErrMalformed)
	}

	id, err := parseID(fields[1])
	if err != nil {
		return nil, err
	}

	addr, err := ParseEndpoint(fields[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	mode, err := door.ParseMode(fields[3])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return DoorHello{ID: id, Address: addr, Mode: mode}, nil
}

// parseCardReader decodes HELLO and SCANNED messages.
func parseCardReader(fields []string) (Message, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: CARDREADER expects arguments", ErrMalformed)
	}

	id, err := parseID(fields[1])
	if err != nil {
		return nil, err
	}

	switch {
	case fields[2] == "HELLO" && len(fields) == 3:
		return CardReaderHello{ID: id}, nil
	case fields[2] == "SCANNED" && len(fields) == 4:
		return Scanned{ReaderID: id, Code: fields[3]}, nil
	default:
		return nil, fmt.Errorf("%w: unknown card reader message", ErrMalformed)
	}
}

// parseFireAlarmHello decodes FIREALARM <addr:port> HELLO.
func parseFireAlarmHello(fields []string) (Message, error) {
	if len(fields) != 3 || fields[2] != "HELLO" {
		return nil, fmt.Errorf("%w: FIREALARM expects <addr:port> HELLO", ErrMalformed)
	}

	addr, err := ParseEndpoint(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return FireAlarmHello{Address: addr}, nil
}

// parseID parses a non-negative device id.
func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: bad id %q", ErrMalformed, s)
	}

	return id, nil
}

// ParseEndpoint parses an IPv4 addr:port as used in every registration.
func ParseEndpoint(s string) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(strings.TrimSpace(s))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("parse endpoint %q: %w", s, err)
	}

	if !ap.Addr().Unmap().Is4() {
		return netip.AddrPort{}, fmt.Errorf("endpoint %q: %w", s, ErrNotIPv4)
	}

	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}
