// Package access holds the authorization verdicts exchanged between card
// readers and the overseer, and the policy that decides them.
package access

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Verdict is the single-character answer a card reader publishes in its cell.
type Verdict byte

const (
	// Pending means no verdict has been published yet.
	Pending Verdict = 0
	// Allowed is published as 'Y'.
	Allowed Verdict = 'Y'
	// Denied is published as 'N'.
	Denied Verdict = 'N'
)

// Wire tokens returned by the overseer.
const (
	ReplyAllowed = "ALLOWED"
	ReplyDenied  = "DENIED"
)

// FromReply interprets an overseer reply. Only the literal ALLOWED token is a
// positive verdict; everything else, including an empty reply, is a denial.
func FromReply(token string) Verdict {
	if strings.TrimSpace(token) == ReplyAllowed {
		return Allowed
	}

	return Denied
}

// Reply returns the wire token for v.
func (v Verdict) Reply() string {
	if v == Allowed {
		return ReplyAllowed
	}

	return ReplyDenied
}

// String returns "Y", "N" or "" while pending.
func (v Verdict) String() string {
	if v == Pending {
		return ""
	}

	return string(v)
}

// MaxCodeLength bounds a scanned card code.
const MaxCodeLength = 16

var (
	// ErrEmptyCode is returned for blank card codes.
	ErrEmptyCode = errors.New("card code is empty")
	// ErrInvalidCode is returned for codes that cannot travel inside a token.
	ErrInvalidCode = errors.New("invalid card code")
)

// ValidateCode checks a scanned code: non-empty, at most MaxCodeLength
// bytes, no whitespace and no token terminator.
func ValidateCode(code string) error {
	switch {
	case code == "":
		return ErrEmptyCode
	case len(code) > MaxCodeLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidCode, MaxCodeLength)
	case strings.ContainsFunc(code, func(r rune) bool { return r == '#' || unicode.IsSpace(r) }):
		return fmt.Errorf("%w: %q", ErrInvalidCode, code)
	default:
		return nil
	}
}
