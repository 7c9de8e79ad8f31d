// Package wire implements the datagram framing and sequence accounting
// for the audio stream.
//
// Every datagram carries a fixed 16 byte header followed by an opaque
// compressed payload:
//
//	offset 0  : sequence          uint32 (big endian)
//	offset 4  : capture timestamp uint64 (big endian, microseconds)
//	offset 12 : payload length    uint32 (big endian)
//	offset 16 : payload           <payload length> bytes
package wire

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed size of the packet header in bytes.
const HeaderSize = 16

var ErrMalformed = errors.New("wire: malformed packet")

// Packet is one wire unit of the stream.
type Packet struct {
	Sequence  uint32
	Timestamp uint64 // capture time in microseconds
	Payload   []byte
}

// Encode frames a payload into a single datagram. The caller guarantees
// the payload fits into one UDP datagram, no limit is enforced here.
func Encode(sequence uint32, timestamp uint64, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], sequence)
	binary.BigEndian.PutUint64(buf[4:12], timestamp)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decode parses a datagram. The declared payload length must match the
// remaining bytes exactly, truncated or padded datagrams are rejected.
// The payload is copied out of data, so the input buffer may be reused.
func Decode(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, ErrMalformed
	}

	length := binary.BigEndian.Uint32(data[12:16])
	if int(length) != len(data)-HeaderSize {
		return Packet{}, ErrMalformed
	}

	payload := make([]byte, length)
	copy(payload, data[HeaderSize:])

	return Packet{
		Sequence:  binary.BigEndian.Uint32(data[0:4]),
		Timestamp: binary.BigEndian.Uint64(data[4:12]),
		Payload:   payload,
	}, nil
}
