// Package conn implements the connection event loop: the single dispatcher
// goroutine that owns the pending-command table and the raw handler
// registry, fans inbound frames out to both, and serializes all outbound
// writes through one transport.Tx.
package conn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	v1errors "github.com/alxayo/go-v1proto/internal/errors"
	"github.com/alxayo/go-v1proto/internal/logger"
	v1frame "github.com/alxayo/go-v1proto/internal/v1/frame"
	"github.com/alxayo/go-v1proto/internal/v1/transport"
)

// GCInterval is the period between raw-handler gc sweeps.
const GCInterval = 300 * time.Second

// inboundMaxFrame bounds the read buffer an RX worker reuses; V1 frames are
// small control/telemetry messages, not bulk transfers.
const inboundMaxFrame = 64 * 1024

var connCounter uint64

func nextID() string { return fmt.Sprintf("v1c%06d", atomic.AddUint64(&connCounter, 1)) }

// Connection owns the send queue, the RX worker handles, and the routing
// tables. Command/Action/Subscription facades hold a shared handle to it.
type Connection struct {
	id   string
	host byte
	log  *slog.Logger

	tx  transport.Tx
	rxs []transport.Pair

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	events  chan any
	inbound chan *v1frame.Frame

	pending  map[pendingKey]*pendingEntry
	handlers *handlerRegistry

	framesIn  uint64
	framesOut uint64
}

// New spawns the event loop and one RX worker per entry in rxs. tx is the
// single outbound path; rxs may be the same underlying transport handed in
// multiple times (one worker each) or genuinely distinct ingress paths.
// host is the local address byte used both as the sender field default and
// as subscription node_id.
func New(host byte, tx transport.Tx, rxs []transport.Pair, log *slog.Logger) *Connection {
	if log == nil {
		log = logger.Logger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := nextID()
	c := &Connection{
		id:       id,
		host:     host,
		log:      logger.WithConn(log, id, ""),
		tx:       tx,
		rxs:      rxs,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan any, 64),
		inbound:  make(chan *v1frame.Frame, 256),
		pending:  make(map[pendingKey]*pendingEntry),
		handlers: newHandlerRegistry(),
	}

	c.wg.Add(1)
	go c.runLoop()

	for i, rx := range rxs {
		c.wg.Add(1)
		go c.runRXWorker(i, rx)
	}

	return c
}

// Host returns the local address byte (sender/node_id).
func (c *Connection) Host() byte { return c.host }

// ID returns the connection's logical identifier, used in log lines.
func (c *Connection) ID() string { return c.id }

// Submit transmits raw (an already-packed frame) and, if wantAck is true,
// installs a one-shot waiter keyed by (ident, seq). The returned channel
// receives exactly one frame (the matching ack) or is closed on shutdown
// without a send, which callers must read as ChannelBroken.
func (c *Connection) Submit(ident v1frame.Ident, seq uint16, raw []byte, wantAck bool) (<-chan *v1frame.Frame, error) {
	var sink chan *v1frame.Frame
	if wantAck {
		sink = make(chan *v1frame.Frame, 1)
	}
	ev := submitCmdEvent{key: pendingKey{Ident: ident, Seq: seq}, raw: raw, sink: sink}
	select {
	case c.events <- ev:
		return sink, nil
	case <-c.ctx.Done():
		return nil, v1errors.ErrChannelBroken
	}
}

// RegisterRawHandler installs h under name. Fails with a Duplicate error if
// name is already registered.
func (c *Connection) RegisterRawHandler(name string, h RawHandler) error {
	result := make(chan error, 1)
	ev := registerHandlerEvent{name: name, handler: h, result: result}
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
		return v1errors.ErrChannelBroken
	}
	select {
	case err := <-result:
		return err
	case <-c.ctx.Done():
		return v1errors.ErrChannelBroken
	}
}

// UnregisterRawHandler removes the handler registered under name, reporting
// whether it was present.
func (c *Connection) UnregisterRawHandler(name string) bool {
	result := make(chan bool, 1)
	ev := unregisterHandlerEvent{name: name, result: result}
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
		return false
	}
	select {
	case ok := <-result:
		return ok
	case <-c.ctx.Done():
		return false
	}
}

// Stats returns a point-in-time snapshot of connection state: the number
// of commands awaiting an ack, the names of currently registered raw
// handlers, and cumulative frame counts.
func (c *Connection) Stats() Stats {
	result := make(chan Stats, 1)
	ev := statsEvent{result: result}
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
		return Stats{}
	}
	select {
	case s := <-result:
		return s
	case <-c.ctx.Done():
		return Stats{}
	}
}

// Close signals shutdown: it stops accepting events, closes every RX
// closer, joins all workers, and drains any response sink still waiting
// (those waiters observe a closed channel, i.e. ChannelBroken).
func (c *Connection) Close() error {
	c.cancel()
	for _, rx := range c.rxs {
		_ = rx.Close()
	}
	c.wg.Wait()
	return nil
}

func (c *Connection) runLoop() {
	defer c.wg.Done()
	gcTicker := time.NewTicker(GCInterval)
	defer gcTicker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.drainPending()
			return

		case ev := <-c.events:
			c.handleEvent(ev)

		case f := <-c.inbound:
			c.routeFrame(f)

		case <-gcTicker.C:
			c.handlers.each(func(name string, h RawHandler) {
				if err := h.GC(); err != nil {
					c.log.Warn("raw handler gc failed", "handler", name, "error", err)
				}
			})
		}
	}
}

func (c *Connection) handleEvent(ev any) {
	switch e := ev.(type) {
	case submitCmdEvent:
		if err := c.tx.Send(e.raw); err != nil {
			c.log.Error("transport send failed", "error", err)
			if e.sink != nil {
				close(e.sink)
			}
			return
		}
		atomic.AddUint64(&c.framesOut, 1)
		if e.sink != nil {
			c.pending[e.key] = &pendingEntry{sink: e.sink}
		}

	case registerHandlerEvent:
		e.result <- c.handlers.register(e.name, e.handler)

	case unregisterHandlerEvent:
		e.result <- c.handlers.unregister(e.name)

	case statsEvent:
		names := make([]string, 0, len(c.handlers.order))
		c.handlers.each(func(name string, _ RawHandler) { names = append(names, name) })
		e.result <- Stats{
			PendingCommands: len(c.pending),
			HandlerNames:    names,
			FramesIn:        atomic.LoadUint64(&c.framesIn),
			FramesOut:       atomic.LoadUint64(&c.framesOut),
		}
	}
}

// routeFrame matches an inbound frame against pending_cmds first
// (removing the entry on match), then, independent of whether that
// claimed it, iterates every raw handler in insertion order. Handlers
// decide for themselves whether an is_ack frame is relevant; the loop does
// not filter it out (the action/subscription handlers each return
// not-handled immediately for is_ack frames, per their own contract).
func (c *Connection) routeFrame(f *v1frame.Frame) {
	atomic.AddUint64(&c.framesIn, 1)
	key := pendingKey{Ident: f.Ident, Seq: f.Seq}
	if entry, ok := c.pending[key]; ok {
		delete(c.pending, key)
		if entry.sink != nil {
			entry.sink <- f
			close(entry.sink)
		}
	}

	c.handlers.each(func(name string, h RawHandler) {
		if _, err := h.Recv(f); err != nil {
			c.log.Warn("raw handler recv failed", "handler", name, "error", err)
		}
	})
}

func (c *Connection) drainPending() {
	for key, entry := range c.pending {
		if entry.sink != nil {
			close(entry.sink)
		}
		delete(c.pending, key)
	}
}

func (c *Connection) runRXWorker(idx int, rx transport.Rx) {
	defer c.wg.Done()
	buf := make([]byte, inboundMaxFrame)
	log := c.log.With("rx_worker", idx)
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		n, err := rx.Recv(buf)
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
			log.Error("rx recv failed", "error", err)
			return
		}
		if n == 0 {
			select {
			case <-c.ctx.Done():
				return
			default:
				continue
			}
		}

		rest := buf[:n]
		for len(rest) > 0 {
			f, consumed, err := v1frame.Unpack(rest)
			if err != nil {
				if v1errors.IsProtocolError(err) {
					log.Warn("dropping corrupt frame", "error", err)
					break
				}
				log.Warn("unpack failed", "error", err)
				break
			}
			select {
			case c.inbound <- f:
			case <-c.ctx.Done():
				return
			}
			rest = rest[consumed:]
		}
	}
}
