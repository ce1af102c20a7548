// Package soupbin implements SoupBinTCP v3 packet framing: a two-byte
// big-endian length prefix followed by a one-byte packet type and an
// opaque body. Framing is a pure function over byte slices; a session's
// receive buffer owns the actual accumulation and compaction.
package soupbin

import "encoding/binary"

// Packet type bytes, client to server.
const (
	TypeLoginRequest  = 'L'
	TypeUnsequenced   = 'U'
	TypeClientHeartbt = 'R'
	TypeLogoutRequest = 'O'
)

// Packet type bytes, server to client.
const (
	TypeLoginAccepted = 'A'
	TypeLoginRejected = 'J'
	TypeSequencedData = 'S'
	TypeServerHeartbt = 'H'
	TypeEndOfSession  = 'Z'
)

// HeaderLen is the size, in bytes, of the length+type prefix.
const HeaderLen = 3

// MaxBodyLen is an upper bound on a packet body: the 16-bit length prefix
// cannot describe a body longer than 65534 bytes. ParseHeader does not
// check against it.
const MaxBodyLen = 64 * 1024

// ParseHeader inspects buf for a complete SoupBin header. length is the
// number of body bytes (excluding the type byte) once ok is true; the
// caller must have HeaderLen+length bytes before the packet is complete.
func ParseHeader(buf []byte) (length int, typ byte, ok bool) {
	if len(buf) < HeaderLen {
		return 0, 0, false
	}
	packetLen := int(binary.BigEndian.Uint16(buf[0:2]))
	if packetLen < 1 {
		return 0, 0, false
	}
	return packetLen - 1, buf[2], true
}

// Frame returns a complete SoupBin packet wrapping typ and body.
func Frame(typ byte, body []byte) []byte {
	out := make([]byte, HeaderLen+len(body))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(body)+1))
	out[2] = typ
	copy(out[3:], body)
	return out
}

// PacketLen returns the total wire length (header+body) once a header
// has been parsed with ParseHeader.
func PacketLen(bodyLen int) int {
	return HeaderLen + bodyLen
}
