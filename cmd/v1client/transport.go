package main

import (
	"fmt"
	"net"

	"github.com/gorilla/websocket"

	v1config "github.com/alxayo/go-v1proto/internal/config"
	"github.com/alxayo/go-v1proto/internal/v1/transport"
	"github.com/alxayo/go-v1proto/internal/v1/transport/wstransport"
)

// dialTransport opens a transport.Pair to remoteAddr over the configured
// transport kind, binding localAddr first when it is non-empty.
func dialTransport(kind v1config.Transport, localAddr, remoteAddr string) (transport.Pair, error) {
	switch kind {
	case v1config.TransportTCP:
		var bind *net.TCPAddr
		if localAddr != "" {
			b, err := net.ResolveTCPAddr("tcp", localAddr)
			if err != nil {
				return nil, fmt.Errorf("resolve bind addr: %w", err)
			}
			bind = b
		}
		dest, err := net.ResolveTCPAddr("tcp", remoteAddr)
		if err != nil {
			return nil, fmt.Errorf("resolve remote addr: %w", err)
		}
		return transport.DialTCP(bind, dest)

	case v1config.TransportUDP:
		var bind *net.UDPAddr
		if localAddr != "" {
			b, err := net.ResolveUDPAddr("udp", localAddr)
			if err != nil {
				return nil, fmt.Errorf("resolve bind addr: %w", err)
			}
			bind = b
		}
		dest, err := net.ResolveUDPAddr("udp", remoteAddr)
		if err != nil {
			return nil, fmt.Errorf("resolve remote addr: %w", err)
		}
		return transport.DialUDP(bind, dest)

	case v1config.TransportWS:
		url := remoteAddr
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return nil, fmt.Errorf("dial websocket: %w", err)
		}
		return wstransport.New(conn), nil

	default:
		return nil, fmt.Errorf("unsupported transport %q", kind)
	}
}
