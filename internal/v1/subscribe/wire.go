// Package subscribe implements the subscription facade: periodic pushes the
// device streams at a configured rate, keyed by a small msg-id the device
// echoes back in its envelope, and local event pushes keyed directly by
// wire ident.
package subscribe

import (
	"encoding/binary"

	v1errors "github.com/alxayo/go-v1proto/internal/errors"
	v1frame "github.com/alxayo/go-v1proto/internal/v1/frame"
)

// Command set 0x48 carries every subscription message.
const cmdSetSubscribe = 0x48

var (
	subMsgIdent      = v1frame.Ident{CmdSet: cmdSetSubscribe, CmdID: 0x03}
	unsubMsgIdent    = v1frame.Ident{CmdSet: cmdSetSubscribe, CmdID: 0x04}
	pushPeriodIdent  = v1frame.Ident{CmdSet: cmdSetSubscribe, CmdID: 0x08}
)

// SubFreq is the push rate requested for a periodic subscription.
type SubFreq byte

const (
	SubFreq1Hz SubFreq = iota
	SubFreq5Hz
	SubFreq10Hz
)

// subMsg is the SubMsg command: subscribe node_id to one or more sids at
// freq, reporting progress under msg_id. flags and subMode are carried
// through verbatim; this client always requests a single sid per message.
type subMsg struct {
	nodeID  byte
	msgID   byte
	flags   byte
	subMode byte
	sid     uint64
	freq    SubFreq
}

func (m subMsg) Ident() v1frame.Ident { return subMsgIdent }

// Encode packs node_id, msg_id, flags, sub_mode, the uid count n, n uids as
// little-endian u64s, and freq as a trailing little-endian u16.
func (m subMsg) Encode() []byte {
	buf := make([]byte, 0, 5+8+2)
	buf = append(buf, m.nodeID, m.msgID, m.flags, m.subMode, 1)
	uid := make([]byte, 8)
	binary.LittleEndian.PutUint64(uid, m.sid)
	buf = append(buf, uid...)
	freq := make([]byte, 2)
	binary.LittleEndian.PutUint16(freq, uint16(m.freq))
	buf = append(buf, freq...)
	return buf
}

// unsubMsg is the UnsubMsg command: stop pushing msg_id to node_id.
type unsubMsg struct {
	nodeID byte
	msgID  byte
}

func (m unsubMsg) Ident() v1frame.Ident { return unsubMsgIdent }
func (m unsubMsg) Encode() []byte       { return []byte{m.nodeID, m.msgID} }

// subAck is the decoded SubMsg response: just a retcode.
type subAck struct {
	Retcode byte
}

func decodeSubAck(payload []byte) (subAck, error) {
	if len(payload) < 1 {
		return subAck{}, &v1errors.ShortBufferError{Want: 1, Got: len(payload)}
	}
	return subAck{Retcode: payload[0]}, nil
}

// pushPeriodMsg is the envelope every periodic push arrives wrapped in:
// sub_mode and msg_id precede the caller's own serialized data.
type pushPeriodMsg struct {
	SubMode byte
	MsgID   byte
	Data    []byte
}

func decodePushPeriod(payload []byte) (pushPeriodMsg, error) {
	if len(payload) < 2 {
		return pushPeriodMsg{}, &v1errors.ShortBufferError{Want: 2, Got: len(payload)}
	}
	return pushPeriodMsg{
		SubMode: payload[0],
		MsgID:   payload[1],
		Data:    payload[2:],
	}, nil
}
