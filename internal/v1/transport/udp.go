package transport

import (
	"net"
	"sync"
	"time"
)

// UDP binds a local socket and sends datagrams to a fixed peer, receiving
// from any peer. Closing sends a one-byte poison datagram to its own bound
// address and sets a read deadline in the past, the same two-step trick the
// reference client uses to break a goroutine parked in a blocking receive:
// Go has no non-blocking-socket flag on net.UDPConn, so an already-elapsed
// deadline is the idiomatic stand-in, and the poison datagram covers the
// race where a read hasn't been reissued yet when the deadline lands.
type UDP struct {
	mu     sync.Mutex
	conn   *net.UDPConn
	local  *net.UDPAddr
	dest   *net.UDPAddr
	closed bool
}

// DialUDP binds bind (or an ephemeral local port if nil) and targets dest.
func DialUDP(bind, dest *net.UDPAddr) (*UDP, error) {
	conn, err := net.ListenUDP("udp", bind)
	if err != nil {
		return nil, err
	}
	local := conn.LocalAddr().(*net.UDPAddr)
	return &UDP{conn: conn, local: local, dest: dest}, nil
}

func (u *UDP) Send(data []byte) error {
	_, err := u.conn.WriteToUDP(data, u.dest)
	return err
}

// Recv reads one datagram. A datagram that turns out to have come from our
// own local address is the poison byte sent by Close; it is reported as a
// zero-length read rather than real data, same as a read that unblocked
// purely because of the expired deadline after Close.
func (u *UDP) Recv(buf []byte) (int, error) {
	n, from, err := u.conn.ReadFromUDP(buf)
	if err != nil {
		u.mu.Lock()
		closed := u.closed
		u.mu.Unlock()
		if closed {
			return 0, nil
		}
		return 0, err
	}
	if from.IP.Equal(u.local.IP) && from.Port == u.local.Port {
		return 0, nil
	}
	return n, nil
}

// Close implements transport.RxCloser. It is idempotent.
func (u *UDP) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil
	}
	u.closed = true
	u.mu.Unlock()

	_, _ = u.conn.WriteToUDP([]byte{0xff}, u.local)
	_ = u.conn.SetReadDeadline(time.Unix(0, 1))
	return nil
}
