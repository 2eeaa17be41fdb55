//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/oshokin/building-safety/internal/logger"
	"github.com/oshokin/building-safety/internal/protocol"
)

// Inbound is a decoded datagram with its sender.
type Inbound struct {
	From     netip.AddrPort
	Datagram protocol.Datagram
}

// ListenUDP binds an IPv4 UDP socket.
func ListenUDP(ctx context.Context, address string) (*net.UDPConn, error) {
	lc := net.ListenConfig{}

	pc, err := lc.ListenPacket(ctx, "udp4", address)
	if err != nil {
		return nil, fmt.Errorf("listen udp on %s: %w", address, err)
	}

	return pc.(*net.UDPConn), nil
}

// LocalEndpoint returns the bound IPv4 endpoint of conn.
func LocalEndpoint(conn *net.UDPConn) netip.AddrPort {
	ap := conn.LocalAddr().(*net.UDPAddr).AddrPort()

	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// SendDatagram encodes d and sends it to the peer.
func SendDatagram(conn *net.UDPConn, to netip.AddrPort, d protocol.Datagram) error {
	payload, err := d.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode %s: %w", d.Header(), err)
	}

	if _, err := conn.WriteToUDPAddrPort(payload, to); err != nil {
		return fmt.Errorf("send %s to %s: %w", d.Header(), to, err)
	}

	return nil
}

// ReadDatagrams reads from conn until it is closed, decoding each datagram
// and handing it to inbox. Malformed datagrams are dropped. When the inbox
// is full the datagram is dropped with a warning, so a slow consumer never
// stalls the socket. The inbox is closed on return.
func ReadDatagrams(ctx context.Context, conn *net.UDPConn, pathCapacity int, inbox chan<- Inbound) {
	defer close(inbox)

	buf := make([]byte, protocol.MaxDatagramSize)

	for {
		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}

			logger.WarnKV(ctx, "Read datagram failed", "error", err)

			continue
		}

		from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())

		d, err := protocol.Decode(buf[:n], pathCapacity)
		if err != nil {
			logger.DebugKV(ctx, "Dropped malformed datagram", "peer", from.String(), "error", err)

			continue
		}

		select {
		case inbox <- Inbound{From: from, Datagram: d}:
		default:
			logger.WarnKV(ctx, "Inbox full, dropped datagram", "peer", from.String(), "header", d.Header())
		}
	}
}

// AdvertisedEndpoint combines the configured IPv4 host with the bound port,
// so a configured port 0 advertises the real one.
func AdvertisedEndpoint(configured string, bound net.Addr) netip.AddrPort {
	ep, _ := protocol.ParseEndpoint(configured)

	switch a := bound.(type) {
	case *net.TCPAddr:
		return netip.AddrPortFrom(ep.Addr(), uint16(a.Port))
	case *net.UDPAddr:
		return netip.AddrPortFrom(ep.Addr(), uint16(a.Port))
	default:
		return ep
	}
}
