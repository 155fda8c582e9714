// Package frame implements the V1 wire codec: a pure, stateless
// encode/decode pair for the binary frame format spoken by the device.
// The codec never interprets payload bytes; Ident alone is the routing key.
package frame

const (
	// HeaderSize is the fixed length of everything before the payload.
	HeaderSize = 11
	// TrailerSize is the length of the trailing CRC-16.
	TrailerSize = 2
	// MinFrameSize is the smallest a complete frame can be (empty payload).
	MinFrameSize = HeaderSize + TrailerSize

	magicByte = 0x55
)

// Ident names a message type on the wire: a command-set id paired with a
// command id within that set.
type Ident struct {
	CmdSet byte
	CmdID  byte
}

// NeedAck is the 2-bit acknowledgement request carried in the attribute byte.
type NeedAck uint8

const (
	NeedAckNo NeedAck = iota
	NeedAckNow
	NeedAckFinish
)

// Frame is one fully decoded V1 message. It is immutable once parsed;
// ownership transfers from the RX worker to the event loop to handlers via a
// shared reference.
type Frame struct {
	Sender   byte
	Receiver byte
	Seq      uint16
	IsAck    bool
	NeedAck  NeedAck
	Ident    Ident
	Payload  []byte
}

// SenderByte computes the 8-bit device address used for sender/receiver
// fields: (index << 5) | host, with host in [0,31] and index in [0,7].
func SenderByte(index, host byte) byte {
	return (index << 5) | (host & 0x1f)
}
