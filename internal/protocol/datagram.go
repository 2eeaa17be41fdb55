package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"slices"
	"time"

	"github.com/oshokin/building-safety/internal/bounded"
)

// Datagram headers.
const (
	HeaderDoor           = "DOOR"
	HeaderDoorRegistered = "DREG"
	HeaderFire           = "FIRE"
	HeaderTemperature    = "TEMP"
)

const (
	headerSize   = 4
	endpointSize = 6
	// tempFixedSize covers header, timestamp, temperature, id and hop count.
	tempFixedSize = headerSize + 8 + 4 + 2 + 1
	// MaxPathCapacity is the largest hop list the one-byte count can describe.
	MaxPathCapacity = math.MaxUint8
	// DefaultPathCapacity is the hop list size used when none is configured.
	DefaultPathCapacity = 50
	// MaxDatagramSize fits the largest TEMP datagram.
	MaxDatagramSize = tempFixedSize + MaxPathCapacity*endpointSize
)

var (
	// ErrShortDatagram is returned when a datagram is smaller than its layout.
	ErrShortDatagram = errors.New("datagram too short")
	// ErrUnknownHeader is returned for datagrams with an unrecognised header.
	ErrUnknownHeader = errors.New("unknown datagram header")
	// ErrNotIPv4 is returned for endpoints that cannot be carried in a datagram.
	ErrNotIPv4 = errors.New("endpoint is not IPv4")
	// ErrPathTooLong is returned for hop lists beyond the allowed capacity.
	ErrPathTooLong = errors.New("path exceeds capacity")
)

// Datagram is any decoded datagram.
type Datagram interface {
	// Header returns the four-byte header.
	Header() string
	// MarshalBinary encodes the datagram.
	MarshalBinary() ([]byte, error)
}

// DoorRegistration is the DOOR datagram (overseer -> fire alarm) and, with
// Confirmed set, the DREG confirmation sent back.
type DoorRegistration struct {
	Door      netip.AddrPort
	Confirmed bool
}

// Header returns DOOR or DREG.
func (d DoorRegistration) Header() string {
	if d.Confirmed {
		return HeaderDoorRegistered
	}

	return HeaderDoor
}

// MarshalBinary encodes the registration.
func (d DoorRegistration) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, headerSize+endpointSize)
	buf = append(buf, d.Header()...)

	return appendEndpoint(buf, d.Door)
}

// Fire is the manual call point trigger.
type Fire struct{}

// Header returns FIRE.
func (Fire) Header() string { return HeaderFire }

// MarshalBinary encodes the trigger.
func (Fire) MarshalBinary() ([]byte, error) { return []byte(HeaderFire), nil }

// Temperature is a gossip reading with the hops it has traversed.
type Temperature struct {
	Timestamp time.Time
	Value     float32
	OriginID  uint16
	Path      []netip.AddrPort
}

// Header returns TEMP.
func (Temperature) Header() string { return HeaderTemperature }

// MarshalBinary encodes the reading. The hop count is len(Path).
func (t Temperature) MarshalBinary() ([]byte, error) {
	if len(t.Path) > MaxPathCapacity {
		return nil, fmt.Errorf("%w: %d hops", ErrPathTooLong, len(t.Path))
	}

	buf := make([]byte, 0, tempFixedSize+len(t.Path)*endpointSize)
	buf = append(buf, HeaderTemperature...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(t.Timestamp.UnixMicro()))
	buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(t.Value))
	buf = binary.BigEndian.AppendUint16(buf, t.OriginID)
	buf = append(buf, byte(len(t.Path)))

	for _, hop := range t.Path {
		var err error
		if buf, err = appendEndpoint(buf, hop); err != nil {
			return nil, err
		}
	}

	return buf, nil
}

// Visited reports whether ep already appears in the path.
func (t Temperature) Visited(ep netip.AddrPort) bool {
	return slices.Contains(t.Path, ep)
}

// Relayed returns a copy of t with self appended to the path. When the path
// is already at capacity the oldest hop is evicted first. The reading itself
// is never modified.
func (t Temperature) Relayed(self netip.AddrPort, capacity int) Temperature {
	if capacity <= 0 || capacity > MaxPathCapacity {
		capacity = MaxPathCapacity
	}

	path := bounded.RingOf(capacity, t.Path...)
	path.Push(self)

	t.Path = path.Items()

	return t
}

// Decode parses a datagram by its header. pathCapacity bounds accepted TEMP
// hop counts; zero means MaxPathCapacity.
func Decode(b []byte, pathCapacity int) (Datagram, error) {
	if len(b) < headerSize {
		return nil, ErrShortDatagram
	}

	switch header := string(b[:headerSize]); header {
	case HeaderFire:
		return Fire{}, nil
	case HeaderDoor, HeaderDoorRegistered:
		ep, err := readEndpoint(b[headerSize:])
		if err != nil {
			return nil, err
		}

		return DoorRegistration{Door: ep, Confirmed: header == HeaderDoorRegistered}, nil
	case HeaderTemperature:
		t, err := decodeTemperature(b, pathCapacity)
		if err != nil {
			return nil, err
		}

		return t, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHeader, header)
	}
}

// decodeTemperature parses a TEMP datagram.
func decodeTemperature(b []byte, pathCapacity int) (Temperature, error) {
	if len(b) < tempFixedSize {
		return Temperature{}, ErrShortDatagram
	}

	if pathCapacity <= 0 || pathCapacity > MaxPathCapacity {
		pathCapacity = MaxPathCapacity
	}

	body := b[headerSize:]
	t := Temperature{
		Timestamp: time.UnixMicro(int64(binary.BigEndian.Uint64(body[0:8]))),
		Value:     math.Float32frombits(binary.BigEndian.Uint32(body[8:12])),
		OriginID:  binary.BigEndian.Uint16(body[12:14]),
	}

	count := int(body[14])
	if count > pathCapacity {
		return Temperature{}, fmt.Errorf("%w: %d hops, capacity %d", ErrPathTooLong, count, pathCapacity)
	}

	hops := b[tempFixedSize:]
	if len(hops) < count*endpointSize {
		return Temperature{}, fmt.Errorf("%w: %d hops announced, %d bytes left", ErrShortDatagram, count, len(hops))
	}

	t.Path = make([]netip.AddrPort, 0, count)

	for i := range count {
		ep, err := readEndpoint(hops[i*endpointSize:])
		if err != nil {
			return Temperature{}, err
		}

		t.Path = append(t.Path, ep)
	}

	return t, nil
}

// appendEndpoint appends ipv4[4] | port[2].
func appendEndpoint(buf []byte, ep netip.AddrPort) ([]byte, error) {
	addr := ep.Addr().Unmap()
	if !addr.Is4() {
		return nil, fmt.Errorf("%w: %s", ErrNotIPv4, ep)
	}

	ip := addr.As4()
	buf = append(buf, ip[:]...)

	return binary.BigEndian.AppendUint16(buf, ep.Port()), nil
}

// readEndpoint parses ipv4[4] | port[2].
func readEndpoint(b []byte) (netip.AddrPort, error) {
	if len(b) < endpointSize {
		return netip.AddrPort{}, ErrShortDatagram
	}

	addr := netip.AddrFrom4([4]byte(b[:4]))

	return netip.AddrPortFrom(addr, binary.BigEndian.Uint16(b[4:6])), nil
}
