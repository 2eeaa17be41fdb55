package door

import (
	"errors"
	"fmt"
	"strings"
)

// State is the single-character door status shared with the physical twin.
type State byte

const (
	// Closed is the initial, stable closed state.
	Closed State = 'C'
	// Open is the stable open state.
	Open State = 'O'
	// Opening means the twin is moving the door towards Open.
	Opening State = 'o'
	// Closing means the twin is moving the door towards Closed.
	Closing State = 'c'
)

// String returns the state character.
func (s State) String() string { return string(s) }

// Transitional reports whether the door is moving.
func (s State) Transitional() bool { return s == Opening || s == Closing }

// Target returns the stable state a transitional state settles into.
// Stable states are their own target.
func (s State) Target() State {
	switch s {
	case Opening:
		return Open
	case Closing:
		return Closed
	default:
		return s
	}
}

// Mode is the door's emergency policy.
type Mode string

const (
	// FailSafe doors default to open under emergency (egress first).
	FailSafe Mode = "FAIL_SAFE"
	// FailSecure doors default to closed under emergency (security first).
	FailSecure Mode = "FAIL_SECURE"
)

// ErrUnknownMode is returned for anything other than FAIL_SAFE/FAIL_SECURE.
var ErrUnknownMode = errors.New("unknown door mode")

// ParseMode accepts FAIL_SAFE or FAIL_SECURE, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case FailSafe:
		return FailSafe, nil
	case FailSecure:
		return FailSecure, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Emergency is the latched emergency override of a door.
type Emergency uint8

const (
	// EmergencyNone means normal operation.
	EmergencyNone Emergency = iota
	// EmergencyOpen is latched by OPEN_EMERG.
	EmergencyOpen
	// EmergencySecure is latched by CLOSE_SECURE.
	EmergencySecure
)

// String names the latch for logs and snapshots.
func (e Emergency) String() string {
	switch e {
	case EmergencyOpen:
		return "emergency"
	case EmergencySecure:
		return "secure"
	default:
		return "none"
	}
}

// Reply is the token sent to normal commands while the latch is set.
func (e Emergency) Reply() string {
	switch e {
	case EmergencyOpen:
		return ReplyEmergencyMode
	case EmergencySecure:
		return ReplySecureMode
	default:
		return ReplyInvalid
	}
}
