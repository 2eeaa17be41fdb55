package access

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFromReply checks that only the literal ALLOWED token allows access.
func TestFromReply(t *testing.T) {
	t.Parallel()

	require.Equal(t, Allowed, FromReply("ALLOWED"))
	require.Equal(t, Allowed, FromReply(" ALLOWED\n"))

	for _, token := range []string{"", "DENIED", "allowed", "ALLOWED NOW", "Y"} {
		require.Equal(t, Denied, FromReply(token), token)
	}
}

// TestVerdictStrings checks wire and cell renderings.
func TestVerdictStrings(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Y", Allowed.String())
	require.Equal(t, "N", Denied.String())
	require.Empty(t, Pending.String())
	require.Equal(t, ReplyAllowed, Allowed.Reply())
	require.Equal(t, ReplyDenied, Denied.Reply())
	require.Equal(t, ReplyDenied, Pending.Reply())
}

func TestValidateCode(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateCode("abc123"))
	require.NoError(t, ValidateCode("0123456789abcdef"))
	require.ErrorIs(t, ValidateCode(""), ErrEmptyCode)
	require.ErrorIs(t, ValidateCode("0123456789abcdefg"), ErrInvalidCode)
	require.ErrorIs(t, ValidateCode("ab cd"), ErrInvalidCode)
	require.ErrorIs(t, ValidateCode("ab#"), ErrInvalidCode)
}
