package frame

import (
	"fmt"

	v1errors "github.com/alxayo/go-v1proto/internal/errors"
)

// Pack encodes one outbound frame. need_ack is translated by callers (the
// command facade sends NeedAckFinish for true, NeedAckNo for false); Pack
// itself is agnostic and simply places the two bits. is_ack is always 0,
// since only the device sets that bit on a real link.
func Pack(sender, receiver byte, seq uint16, ident Ident, needAck NeedAck, payload []byte) ([]byte, error) {
	return packRaw(sender, receiver, seq, ident, needAck, false, payload)
}

// PackAck encodes a frame with is_ack set. Nothing in this module sends
// acks on a real link (only the device does), but test harnesses across
// packages need to feign device responses byte-exactly, including a valid
// trailing CRC, so the capability is part of the codec's public surface
// rather than reimplemented per test file.
func PackAck(sender, receiver byte, seq uint16, ident Ident, payload []byte) ([]byte, error) {
	return packRaw(sender, receiver, seq, ident, NeedAckNo, true, payload)
}

func packRaw(sender, receiver byte, seq uint16, ident Ident, needAck NeedAck, isAck bool, payload []byte) ([]byte, error) {
	size := MinFrameSize + len(payload)
	if size > 0x3ff {
		return nil, v1errors.NewInvalidData("pack", fmt.Errorf("frame size %d exceeds 10-bit size field", size))
	}

	buf := make([]byte, 0, size)
	buf = append(buf, magicByte)
	buf = append(buf, byte(size&0xff), byte((size>>8)&0x03)|0x04)
	buf = append(buf, crc8(buf[0:3], headerCRCSeed))
	buf = append(buf, sender, receiver)
	buf = append(buf, byte(seq&0xff), byte((seq>>8)&0xff))
	attr := byte(needAck&0x03) << 5
	if isAck {
		attr |= 0x80
	}
	buf = append(buf, attr)
	buf = append(buf, ident.CmdSet, ident.CmdID)
	buf = append(buf, payload...)

	trailer := crc16(buf, frameCRCSeed)
	buf = append(buf, byte(trailer&0xff), byte(trailer>>8))
	return buf, nil
}

// Unpack decodes one frame from the front of buf. It returns the frame and
// the number of bytes consumed (13+len(payload)); buf may hold more bytes
// than one frame (a partial next frame, or multiple queued frames).
func Unpack(buf []byte) (*Frame, int, error) {
	if len(buf) < HeaderSize+TrailerSize {
		return nil, 0, &v1errors.ShortBufferError{Want: HeaderSize + TrailerSize, Got: len(buf)}
	}
	if buf[0] != magicByte {
		return nil, 0, v1errors.NewFrameError("unpack.magic", fmt.Errorf("bad magic byte 0x%02x", buf[0]))
	}
	if got := crc8(buf[0:3], headerCRCSeed); got != buf[3] {
		return nil, 0, v1errors.NewFrameError("unpack.header_crc", fmt.Errorf("want 0x%02x got 0x%02x", buf[3], got))
	}

	size := (int(buf[2]&0x03) << 8) | int(buf[1])
	if size < MinFrameSize {
		return nil, 0, v1errors.NewFrameError("unpack.size", fmt.Errorf("declared size %d below minimum %d", size, MinFrameSize))
	}
	if len(buf) < size {
		return nil, 0, &v1errors.ShortBufferError{Want: size, Got: len(buf)}
	}

	trailerOff := size - TrailerSize
	wantTrailer := uint16(buf[trailerOff]) | uint16(buf[trailerOff+1])<<8
	if got := crc16(buf[:trailerOff], frameCRCSeed); got != wantTrailer {
		return nil, 0, v1errors.NewFrameError("unpack.payload_crc", fmt.Errorf("want 0x%04x got 0x%04x", wantTrailer, got))
	}

	attr := buf[8]
	f := &Frame{
		Sender:   buf[4],
		Receiver: buf[5],
		Seq:      uint16(buf[6]) | uint16(buf[7])<<8,
		IsAck:    attr&0x80 != 0,
		NeedAck:  NeedAck((attr >> 5) & 0x03),
		Ident:    Ident{CmdSet: buf[9], CmdID: buf[10]},
		Payload:  append([]byte(nil), buf[HeaderSize:trailerOff]...),
	}
	return f, size, nil
}
