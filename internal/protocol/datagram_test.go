package protocol

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoorRegistrationLayout(t *testing.T) {
	t.Parallel()

	reg := DoorRegistration{Door: netip.MustParseAddrPort("10.0.0.2:8080")}

	b, err := reg.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{'D', 'O', 'O', 'R', 10, 0, 0, 2, 0x1f, 0x90}, b)

	reg.Confirmed = true
	b, err = reg.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, "DREG", string(b[:4]))

	got, err := Decode(b, 0)
	require.NoError(t, err)
	require.Equal(t, reg, got)
}

func TestDoorRegistrationRejectsIPv6(t *testing.T) {
	t.Parallel()

	_, err := DoorRegistration{Door: netip.MustParseAddrPort("[::1]:80")}.MarshalBinary()
	require.ErrorIs(t, err, ErrNotIPv4)
}

func TestTemperatureLayout(t *testing.T) {
	t.Parallel()

	reading := Temperature{
		Timestamp: time.UnixMicro(1_700_000_000_123_456),
		Value:     21.5,
		OriginID:  9,
		Path: []netip.AddrPort{
			netip.MustParseAddrPort("127.0.0.1:6001"),
			netip.MustParseAddrPort("127.0.0.1:6002"),
		},
	}

	b, err := reading.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, tempFixedSize+2*endpointSize)
	require.Equal(t, byte(2), b[tempFixedSize-1])

	got, err := Decode(b, 0)
	require.NoError(t, err)
	require.Equal(t, reading.Timestamp.UnixMicro(), got.(Temperature).Timestamp.UnixMicro())
	require.Equal(t, reading.Value, got.(Temperature).Value)
	require.Equal(t, reading.Path, got.(Temperature).Path)
}

func TestDecodeTemperatureRejects(t *testing.T) {
	t.Parallel()

	reading := Temperature{
		Timestamp: time.Now(),
		Path: []netip.AddrPort{
			netip.MustParseAddrPort("127.0.0.1:1"),
			netip.MustParseAddrPort("127.0.0.1:2"),
			netip.MustParseAddrPort("127.0.0.1:3"),
		},
	}

	b, err := reading.MarshalBinary()
	require.NoError(t, err)

	_, err = Decode(b, 2)
	require.ErrorIs(t, err, ErrPathTooLong)

	_, err = Decode(b[:len(b)-1], 0)
	require.ErrorIs(t, err, ErrShortDatagram)

	_, err = Decode(b[:tempFixedSize-1], 0)
	require.ErrorIs(t, err, ErrShortDatagram)
}

func TestDecodeUnknownHeader(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("PING"), 0)
	require.ErrorIs(t, err, ErrUnknownHeader)

	_, err = Decode([]byte("FI"), 0)
	require.ErrorIs(t, err, ErrShortDatagram)

	got, err := Decode([]byte("FIRE"), 0)
	require.NoError(t, err)
	require.Equal(t, Fire{}, got)
}

func TestTemperatureRelayed(t *testing.T) {
	t.Parallel()

	a := netip.MustParseAddrPort("127.0.0.1:1")
	b := netip.MustParseAddrPort("127.0.0.1:2")
	c := netip.MustParseAddrPort("127.0.0.1:3")

	reading := Temperature{Value: 20, Path: []netip.AddrPort{a, b}}

	relayed := reading.Relayed(c, 3)
	require.Equal(t, []netip.AddrPort{a, b, c}, relayed.Path)
	require.Equal(t, []netip.AddrPort{a, b}, reading.Path)
	require.True(t, relayed.Visited(c))
	require.False(t, reading.Visited(c))

	evicted := reading.Relayed(c, 2)
	require.Equal(t, []netip.AddrPort{b, c}, evicted.Path)
}
