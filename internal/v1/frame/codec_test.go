package frame

import (
	"bytes"
	"errors"
	"testing"

	v1errors "github.com/alxayo/go-v1proto/internal/errors"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		sender  byte
		recv    byte
		seq     uint16
		ident   Ident
		needAck NeedAck
		payload []byte
	}{
		{"empty payload", 0xC6, 0x09, 10001, Ident{0x00, 0x51}, NeedAckFinish, nil},
		{"with payload", 0xC6, 0x09, 10001, Ident{0x00, 0x51}, NeedAckFinish, []byte{0x01}},
		{"no-ack", 0x20, 0x09, 12345, Ident{0x3f, 0x02}, NeedAckNo, []byte{0xde, 0xad, 0xbe, 0xef}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := Pack(tc.sender, tc.recv, tc.seq, tc.ident, tc.needAck, tc.payload)
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			if len(buf) != MinFrameSize+len(tc.payload) {
				t.Fatalf("expected length %d, got %d", MinFrameSize+len(tc.payload), len(buf))
			}

			f, n, err := Unpack(buf)
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if n != len(buf) {
				t.Fatalf("expected consumed %d, got %d", len(buf), n)
			}
			if f.Sender != tc.sender || f.Receiver != tc.recv || f.Seq != tc.seq || f.Ident != tc.ident {
				t.Fatalf("roundtrip mismatch: %+v", f)
			}
			if f.NeedAck != tc.needAck {
				t.Fatalf("need_ack mismatch: want %v got %v", tc.needAck, f.NeedAck)
			}
			if f.IsAck {
				t.Fatalf("outbound frame must not set is_ack")
			}
			if !bytes.Equal(f.Payload, tc.payload) && !(len(f.Payload) == 0 && len(tc.payload) == 0) {
				t.Fatalf("payload mismatch: want %v got %v", tc.payload, f.Payload)
			}
		})
	}
}

func TestUnpackShortBufferDetection(t *testing.T) {
	buf, err := Pack(0xC6, 0x09, 10001, Ident{0x00, 0x51}, NeedAckFinish, []byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	for n := 0; n < MinFrameSize; n++ {
		_, _, err := Unpack(buf[:n])
		var sb *v1errors.ShortBufferError
		if !errors.As(err, &sb) {
			t.Fatalf("n=%d: expected ShortBufferError, got %v", n, err)
		}
		if sb.Want < MinFrameSize {
			t.Fatalf("n=%d: expected Want>=%d, got %d", n, MinFrameSize, sb.Want)
		}
	}
}

func TestHeaderCRCDetectsEverySingleBitFlip(t *testing.T) {
	buf, err := Pack(0xC6, 0x09, 10001, Ident{0x00, 0x51}, NeedAckFinish, []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	for byteIdx := 0; byteIdx < 3; byteIdx++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), buf...)
			corrupt[byteIdx] ^= 1 << bit
			_, _, err := Unpack(corrupt)
			if err == nil {
				t.Fatalf("byte %d bit %d: expected header CRC to detect corruption", byteIdx, bit)
			}
		}
	}
}

func TestPayloadCRCDetectsEverySingleBitFlip(t *testing.T) {
	buf, err := Pack(0xC6, 0x09, 10001, Ident{0x00, 0x51}, NeedAckFinish, []byte{0x01, 0x02, 0x03, 0x04})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	for byteIdx := 4; byteIdx < len(buf)-2; byteIdx++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), buf...)
			corrupt[byteIdx] ^= 1 << bit
			_, _, err := Unpack(corrupt)
			if err == nil {
				t.Fatalf("byte %d bit %d: expected payload CRC to detect corruption", byteIdx, bit)
			}
		}
	}
}

func TestUnpackBadMagic(t *testing.T) {
	buf, _ := Pack(0xC6, 0x09, 1, Ident{0, 0}, NeedAckNo, nil)
	buf[0] = 0x00
	_, _, err := Unpack(buf)
	if err == nil {
		t.Fatalf("expected bad magic error")
	}
}

func TestSenderByte(t *testing.T) {
	if got := SenderByte(1, 9); got != (1<<5)|9 {
		t.Fatalf("unexpected sender byte: 0x%02x", got)
	}
}
