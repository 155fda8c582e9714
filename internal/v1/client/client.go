// Package client assembles the connection event loop with the command,
// action, and subscription facades into the single handle application code
// holds, mirroring the original SDK's top-level Client wrapping its
// Connection, ActionDispatcher, and Subscriber.
package client

import (
	"log/slog"

	v1action "github.com/alxayo/go-v1proto/internal/v1/action"
	v1command "github.com/alxayo/go-v1proto/internal/v1/command"
	v1conn "github.com/alxayo/go-v1proto/internal/v1/conn"
	v1subscribe "github.com/alxayo/go-v1proto/internal/v1/subscribe"
	"github.com/alxayo/go-v1proto/internal/v1/transport"
)

// Client is the runtime's public surface: one connection, its command
// dispatcher, its action dispatcher, and its subscriber, torn down together.
type Client struct {
	conn       *v1conn.Connection
	commands   *v1command.Dispatcher
	actions    *v1action.Dispatcher
	subscriber *v1subscribe.Subscriber
}

// New builds a Client over tx/rxs. host is the local address byte used as
// sender on every outbound frame and as the connection's node_id for
// subscriptions. Construction order matters: the action dispatcher and
// subscriber each register a raw handler with the connection, and must be
// torn down (Close) before the connection itself stops routing frames.
func New(host byte, tx transport.Tx, rxs []transport.Pair, log *slog.Logger) (*Client, error) {
	conn := v1conn.New(host, tx, rxs, log)

	actions, err := v1action.New(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	commands := v1command.New(conn)

	subscriber, err := v1subscribe.New(conn, commands)
	if err != nil {
		actions.Close()
		conn.Close()
		return nil, err
	}

	return &Client{
		conn:       conn,
		commands:   commands,
		actions:    actions,
		subscriber: subscriber,
	}, nil
}

// Host returns the local address byte.
func (c *Client) Host() byte { return c.conn.Host() }

// ID returns the connection's logical identifier, used in log lines and as
// a default diagnostics session name.
func (c *Client) ID() string { return c.conn.ID() }

// Stats returns a snapshot of connection-level state for admin surfaces.
func (c *Client) Stats() v1conn.Stats { return c.conn.Stats() }

// Commands returns the request/response command dispatcher.
func (c *Client) Commands() *v1command.Dispatcher { return c.commands }

// Actions returns the long-running action dispatcher.
func (c *Client) Actions() *v1action.Dispatcher { return c.actions }

// Subscriber returns the periodic/event subscription facade.
func (c *Client) Subscriber() *v1subscribe.Subscriber { return c.subscriber }

// RegisterRawHandler installs a caller-supplied handler directly on the
// underlying connection, for protocol extensions this package doesn't model.
func (c *Client) RegisterRawHandler(name string, h v1conn.RawHandler) error {
	return c.conn.RegisterRawHandler(name, h)
}

// UnregisterRawHandler removes a previously installed raw handler.
func (c *Client) UnregisterRawHandler(name string) bool {
	return c.conn.UnregisterRawHandler(name)
}

// Close tears the client down in the reverse order of construction: the
// subscriber and action dispatcher unregister their raw handlers first, then
// the connection stops its RX workers and drains any pending command
// waiters.
func (c *Client) Close() error {
	c.subscriber.Close()
	c.actions.Close()
	return c.conn.Close()
}
