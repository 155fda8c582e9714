package transport

import "net"

// TCP wraps a connected stream. Close calls shutdown(both) via the standard
// library's CloseRead/CloseWrite pair so a blocked Recv returns promptly.
type TCP struct {
	conn *net.TCPConn
}

// DialTCP connects to addr, optionally binding a local address first.
func DialTCP(bind, addr *net.TCPAddr) (*TCP, error) {
	conn, err := net.DialTCP("tcp", bind, addr)
	if err != nil {
		return nil, err
	}
	return &TCP{conn: conn}, nil
}

func (t *TCP) Send(data []byte) error {
	_, err := t.conn.Write(data)
	return err
}

func (t *TCP) Recv(buf []byte) (int, error) {
	return t.conn.Read(buf)
}

// Close shuts down both directions of the stream, which is the Go
// equivalent of shutdown(Shutdown::Both): any goroutine blocked in Read
// observes an immediate EOF.
func (t *TCP) Close() error {
	_ = t.conn.CloseRead()
	_ = t.conn.CloseWrite()
	return t.conn.Close()
}
