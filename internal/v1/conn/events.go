package conn

import v1frame "github.com/alxayo/go-v1proto/internal/v1/frame"

// pendingKey identifies one outstanding command awaiting its ack.
type pendingKey struct {
	Ident v1frame.Ident
	Seq   uint16
}

// pendingEntry is the loop's bookkeeping for one submitted command awaiting
// its ack. Fire-and-forget submissions (need_ack == false) get no entry.
type pendingEntry struct {
	sink chan *v1frame.Frame
}

// submitCmdEvent asks the loop to transmit raw bytes and, if sink is
// non-nil, register a one-shot waiter keyed by (ident, seq).
type submitCmdEvent struct {
	key  pendingKey
	raw  []byte
	sink chan *v1frame.Frame
}

// registerHandlerEvent asks the loop to add a named raw handler.
type registerHandlerEvent struct {
	name    string
	handler RawHandler
	result  chan error
}

// unregisterHandlerEvent asks the loop to remove a named raw handler.
type unregisterHandlerEvent struct {
	name   string
	result chan bool
}

// statsEvent asks the loop for a snapshot of pending-command count and
// registered handler names, the two pieces of state the loop alone owns.
type statsEvent struct {
	result chan Stats
}

// Stats is a point-in-time snapshot of connection state, for admin/status
// surfaces.
type Stats struct {
	PendingCommands int
	HandlerNames    []string
	FramesIn        uint64
	FramesOut       uint64
}
