package protocol

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/building-safety/internal/domain/door"
)

func TestParseMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token string
		want  Message
	}{
		{
			name:  "door hello",
			token: "DOOR 3 127.0.0.1:4001 FAIL_SAFE",
			want: DoorHello{
				ID:      3,
				Address: netip.MustParseAddrPort("127.0.0.1:4001"),
				Mode:    door.FailSafe,
			},
		},
		{
			name:  "card reader hello",
			token: "CARDREADER 7 HELLO",
			want:  CardReaderHello{ID: 7},
		},
		{
			name:  "scanned",
			token: "  CARDREADER 7 SCANNED abc123 ",
			want:  Scanned{ReaderID: 7, Code: "abc123"},
		},
		{
			name:  "fire alarm hello",
			token: "FIREALARM 127.0.0.1:5000 HELLO",
			want:  FireAlarmHello{Address: netip.MustParseAddrPort("127.0.0.1:5000")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseMessage(tt.token)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)

			again, err := ParseMessage(got.String())
			require.NoError(t, err)
			require.Equal(t, got, again)
		})
	}
}

func TestParseMessageRejects(t *testing.T) {
	t.Parallel()

	for _, token := range []string{
		"",
		"HELLO",
		"DOOR x 127.0.0.1:1 FAIL_SAFE",
		"DOOR 1 127.0.0.1:1 FAIL_OPEN",
		"DOOR 1 [::1]:1 FAIL_SAFE",
		"CARDREADER 1",
		"CARDREADER 1 SCANNED",
		"CARDREADER -1 HELLO",
		"FIREALARM 127.0.0.1:1",
	} {
		_, err := ParseMessage(token)
		require.ErrorIs(t, err, ErrMalformed, token)
	}
}
