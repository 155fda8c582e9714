// Package command implements the request/response command facade: encode a
// typed outbound message, submit it through the connection, and decode the
// device's ack payload into a typed response.
package command

import (
	v1errors "github.com/alxayo/go-v1proto/internal/errors"
	v1conn "github.com/alxayo/go-v1proto/internal/v1/conn"
	v1frame "github.com/alxayo/go-v1proto/internal/v1/frame"
	v1seq "github.com/alxayo/go-v1proto/internal/v1/seq"
)

// Command is the duck-typed capability a caller's outbound message exposes:
// its wire ident and its serialized payload. Modeling this as two small
// methods, rather than a single fat interface, keeps callers from needing to
// implement response-decoding on the request type itself.
type Command interface {
	Ident() v1frame.Ident
	Encode() []byte
}

// RespDecoder converts a decoded ack frame's payload into a typed response.
type RespDecoder[R any] func(payload []byte) (R, error)

// Dispatcher submits commands on a shared connection, allocating its own
// command-seq domain.
type Dispatcher struct {
	conn *v1conn.Connection
	seq  *v1seq.Generator
}

// New builds a command dispatcher over conn. Unlike action.Dispatcher and
// subscribe.Subscriber, it registers no raw handler: the event loop's
// pending-table match on (ident, seq) is the only routing a plain
// request/response command needs.
func New(conn *v1conn.Connection) *Dispatcher {
	return &Dispatcher{conn: conn, seq: v1seq.NewCommandSeq()}
}

// SendAsync submits cmd to receiver and returns immediately with a channel
// that will receive the decoded response once the device's ack arrives, or
// be closed without a value if the connection shuts down first. wantAck
// selects whether the device is asked to acknowledge at all; with wantAck
// false the returned channel is nil and no response is ever expected.
func SendAsync[R any](d *Dispatcher, receiver byte, cmd Command, wantAck bool, decode RespDecoder[R]) (<-chan Result[R], error) {
	seqVal := uint16(d.seq.Next())
	needAck := v1frame.NeedAckNo
	if wantAck {
		needAck = v1frame.NeedAckFinish
	}

	raw, err := v1frame.Pack(d.conn.Host(), receiver, seqVal, cmd.Ident(), needAck, cmd.Encode())
	if err != nil {
		return nil, err
	}

	sink, err := d.conn.Submit(cmd.Ident(), seqVal, raw, wantAck)
	if err != nil {
		return nil, err
	}
	if !wantAck {
		return nil, nil
	}

	out := make(chan Result[R], 1)
	go func() {
		defer close(out)
		f, ok := <-sink
		if !ok {
			out <- Result[R]{Err: v1errors.ErrChannelBroken}
			return
		}
		val, err := decode(f.Payload)
		out <- Result[R]{Value: val, Err: err}
	}()
	return out, nil
}

// Result carries either a decoded response or the error that prevented one.
type Result[R any] struct {
	Value R
	Err   error
}

// SendSync submits cmd and blocks for its decoded response. There is
// deliberately no timeout at this layer; a response never arrives if the
// connection shuts down first, in which case out is closed and res.Err is
// ErrChannelBroken. Callers needing a deadline wrap this call in their own
// context or timer.
func SendSync[R any](d *Dispatcher, receiver byte, cmd Command, decode RespDecoder[R]) (R, error) {
	var zero R
	out, err := SendAsync(d, receiver, cmd, true, decode)
	if err != nil {
		return zero, err
	}
	res, ok := <-out
	if !ok {
		return zero, v1errors.ErrChannelBroken
	}
	return res.Value, res.Err
}

// SendFireAndForget submits cmd with need_ack cleared; the device is never
// expected to respond and no resources are held waiting for one.
func SendFireAndForget(d *Dispatcher, receiver byte, cmd Command) error {
	_, err := SendAsync[struct{}](d, receiver, cmd, false, nil)
	return err
}
