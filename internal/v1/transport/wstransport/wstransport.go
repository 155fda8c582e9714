// Package wstransport adapts a gorilla/websocket connection to the
// transport.Pair capability set, for deployments where the only path to the
// device is through a WebSocket bridge (a browser control panel, a tunnel
// proxy) rather than a raw UDP/TCP socket.
package wstransport

import (
	"errors"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport wraps a single *websocket.Conn. Each wire frame is carried as
// exactly one binary WebSocket message; the codec's own framing still
// applies underneath, so the WebSocket layer never needs to know about
// message boundaries beyond "one write, one message".
type Transport struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New wraps an already-established WebSocket connection.
func New(conn *websocket.Conn) *Transport {
	return &Transport{conn: conn}
}

func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Recv reads one binary message into buf. Messages larger than buf are
// truncated; callers size buf to the largest frame they expect.
func (t *Transport) Recv(buf []byte) (int, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if isCloseOrClosedErr(err) {
			return 0, nil
		}
		return 0, err
	}
	n := copy(buf, data)
	return n, nil
}

// Close is the gorilla idiom for unblocking a pending ReadMessage: closing
// the underlying net.Conn causes it to return an error immediately, which
// Recv reports as a sentinel zero-length read.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

func isCloseOrClosedErr(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
