// Package protocol implements the wire formats spoken between devices.
//
// Stream transports carry ASCII tokens terminated by '#' (writers append a
// newline after the terminator; readers skip surrounding whitespace).
// Datagram transports carry fixed binary layouts in network byte order:
//
//	DOOR / DREG  header[4] | ipv4[4] | port uint16
//	FIRE         header[4]
//	TEMP         header[4] | timestamp int64 (µs since the Unix epoch)
//	             | temperature float32 | origin id uint16 | hop count uint8
//	             | hop count × (ipv4[4] | port uint16)
package protocol
