package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// Terminator ends every text token.
	Terminator = '#'
	// MaxTokenLength bounds a single token, terminator excluded.
	MaxTokenLength = 1024
)

var (
	// ErrTokenTooLong is returned when no terminator arrives within MaxTokenLength bytes.
	ErrTokenTooLong = errors.New("token too long")
	// ErrEmptyToken is returned when the peer closed the stream before sending a token.
	ErrEmptyToken = errors.New("empty token")
)

// WriteToken writes token followed by the terminator and a newline.
func WriteToken(w io.Writer, token string) error {
	if _, err := io.WriteString(w, token+string(Terminator)+"\n"); err != nil {
		return fmt.Errorf("write token %q: %w", token, err)
	}

	return nil
}

// ReadToken reads up to the next terminator and returns the token without
// the terminator and surrounding whitespace. A stream that ends before the
// terminator yields the partial token together with io.ErrUnexpectedEOF, or
// ErrEmptyToken when nothing was received.
func ReadToken(r *bufio.Reader) (string, error) {
	var sb strings.Builder

	for {
		b, err := r.ReadByte()
		if err != nil {
			token := strings.TrimSpace(sb.String())

			switch {
			case !errors.Is(err, io.EOF):
				return token, fmt.Errorf("read token: %w", err)
			case token == "":
				return "", ErrEmptyToken
			default:
				return token, io.ErrUnexpectedEOF
			}
		}

		if b == Terminator {
			return strings.TrimSpace(sb.String()), nil
		}

		if sb.Len() >= MaxTokenLength {
			return "", ErrTokenTooLong
		}

		sb.WriteByte(b)
	}
}
