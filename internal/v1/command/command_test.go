package command

import (
	"sync"
	"testing"
	"time"

	v1conn "github.com/alxayo/go-v1proto/internal/v1/conn"
	v1frame "github.com/alxayo/go-v1proto/internal/v1/frame"
	"github.com/alxayo/go-v1proto/internal/v1/transport"
)

type fakePair struct {
	mu     sync.Mutex
	sent   [][]byte
	in     chan []byte
	closed bool
}

var _ transport.Pair = (*fakePair)(nil)

func newFakePair() *fakePair { return &fakePair{in: make(chan []byte, 16)} }

func (f *fakePair) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakePair) Recv(buf []byte) (int, error) {
	data, ok := <-f.in
	if !ok {
		return 0, nil
	}
	return copy(buf, data), nil
}

func (f *fakePair) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.in)
	return nil
}

func (f *fakePair) lastSent(t *testing.T) []byte {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		f.mu.Lock()
		n := len(f.sent)
		f.mu.Unlock()
		if n > 0 {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.sent[n-1]
		}
		select {
		case <-deadline:
			t.Fatalf("expected a send, got none")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

type pingCmd struct{}

func (pingCmd) Ident() v1frame.Ident { return v1frame.Ident{CmdSet: 0x00, CmdID: 0x51} }
func (pingCmd) Encode() []byte       { return nil }

type pongResp struct{ Retcode byte }

func decodePong(payload []byte) (pongResp, error) {
	if len(payload) < 1 {
		return pongResp{}, &shortErr{}
	}
	return pongResp{Retcode: payload[0]}, nil
}

type shortErr struct{}

func (shortErr) Error() string { return "short" }

func TestSendSyncDecodesResponse(t *testing.T) {
	p := newFakePair()
	c := v1conn.New(0xC6, p, []transport.Pair{p}, nil)
	defer c.Close()

	d := New(c)

	done := make(chan struct{})
	var resp pongResp
	var err error
	go func() {
		resp, err = SendSync(d, 0x09, pingCmd{}, decodePong)
		close(done)
	}()

	sent := p.lastSent(t)
	f, _, unpackErr := v1frame.Unpack(sent)
	if unpackErr != nil {
		t.Fatalf("unpack: %v", unpackErr)
	}

	ackBuf, packErr := v1frame.PackAck(0x09, 0xC6, f.Seq, f.Ident, []byte{0x00})
	if packErr != nil {
		t.Fatalf("pack ack: %v", packErr)
	}
	p.in <- ackBuf

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("SendSync never returned")
	}
	if err != nil {
		t.Fatalf("SendSync: %v", err)
	}
	if resp.Retcode != 0 {
		t.Fatalf("unexpected retcode: %d", resp.Retcode)
	}
}

func TestSendSyncBlocksUntilShutdownWithoutAck(t *testing.T) {
	p := newFakePair()
	c := v1conn.New(0xC6, p, []transport.Pair{p}, nil)

	d := New(c)

	done := make(chan struct{})
	var err error
	go func() {
		_, err = SendSync(d, 0x09, pingCmd{}, decodePong)
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("SendSync returned before the connection shut down")
	case <-time.After(100 * time.Millisecond):
	}

	c.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("SendSync never returned after shutdown")
	}
	if err == nil {
		t.Fatalf("expected ErrChannelBroken after shutdown with no ack")
	}
}

func TestSendFireAndForgetClearsNeedAck(t *testing.T) {
	p := newFakePair()
	c := v1conn.New(0xC6, p, []transport.Pair{p}, nil)
	defer c.Close()

	d := New(c)
	if err := SendFireAndForget(d, 0x09, pingCmd{}); err != nil {
		t.Fatalf("SendFireAndForget: %v", err)
	}

	sent := p.lastSent(t)
	if sent[8]&0x60 != 0 {
		t.Fatalf("expected need_ack bits clear, got attribute byte 0x%02x", sent[8])
	}
}
