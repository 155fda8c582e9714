package action

import (
	"sync"

	v1errors "github.com/alxayo/go-v1proto/internal/errors"
	v1conn "github.com/alxayo/go-v1proto/internal/v1/conn"
	v1frame "github.com/alxayo/go-v1proto/internal/v1/frame"
	v1seq "github.com/alxayo/go-v1proto/internal/v1/seq"
)

// HandlerName is the raw handler name the dispatcher registers under.
const HandlerName = "v1::ActionDispatcher"

type callbackKey struct {
	Ident v1frame.Ident
	Seq   uint16
}

// callbackEntry is the dispatcher's internal, type-erased notification hook.
// Send's generic type parameter is captured in both closures at
// construction time, so the map storing these needs no generics of its own.
type callbackEntry struct {
	notify func(f *v1frame.Frame) error
	alive  func() bool
}

// Dispatcher drives long-running actions: it registers one raw handler with
// the connection and keeps a map of update callbacks keyed by
// (update_ident, action_seq), mirroring the original client's
// ActionCallbacks table.
type Dispatcher struct {
	conn *v1conn.Connection
	seq  *v1seq.Generator

	mu        sync.Mutex
	callbacks map[callbackKey]callbackEntry
}

// New registers the dispatcher's raw handler on conn. The caller must call
// Close when done; Go has no destructor to unregister it automatically.
func New(conn *v1conn.Connection) (*Dispatcher, error) {
	d := &Dispatcher{
		conn:      conn,
		seq:       v1seq.NewActionSeq(),
		callbacks: make(map[callbackKey]callbackEntry),
	}
	if err := conn.RegisterRawHandler(HandlerName, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Close unregisters the dispatcher's raw handler. Callbacks still installed
// receive no further frames; their UpdateReceiver channels are left unclosed
// since a caller may still be draining them, but no further values will arrive.
func (d *Dispatcher) Close() {
	d.conn.UnregisterRawHandler(HandlerName)
}

// Action is the capability set a caller's action type exposes: the command
// this action starts under, the ident its update frames arrive under, and a
// hook notified once the start command is accepted.
type Action interface {
	Ident() v1frame.Ident
	Encode() []byte
	UpdateIdent() v1frame.Ident
	ApplyState(ActionState)
}

// Update is delivered once per progress frame.
type Update[U any] struct {
	Head  ActionUpdateHead
	Value U
}

// UpdateReceiver hands the caller a read-only stream of updates plus an
// explicit Close, standing in for the original's channel-drop detection:
// Go has no destructor, so gc needs a signal the caller can set instead of
// one it infers from channel abandonment.
type UpdateReceiver[U any] struct {
	ch   chan Update[U]
	done chan struct{}
	once sync.Once
}

// C returns the channel of updates. It is closed after the update carrying a
// terminal state, or with no values when the action succeeds synchronously;
// Dispatcher.Close does not close it.
func (r *UpdateReceiver[U]) C() <-chan Update[U] { return r.ch }

// Close signals the dispatcher that this receiver is no longer wanted; the
// next gc sweep evicts its callback.
func (r *UpdateReceiver[U]) Close() {
	r.once.Do(func() { close(r.done) })
}

func (r *UpdateReceiver[U]) isAlive() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Send allocates an action-seq, submits the action's start command with ack
// required, and on acceptance returns the accepted state plus a receiver of
// typed updates. decode converts the bytes following the action-update head
// into the caller's own type. Rejection (any state other than Started or
// Succeeded) returns an ActionError and no receiver.
func Send[U any](d *Dispatcher, receiver byte, cfg byte, a Action, decode func([]byte) (U, error)) (ActionState, *UpdateReceiver[U], error) {
	seqVal := uint16(d.seq.Next())
	head := ActionHead{ID: byte(seqVal), Cfg: cfg}
	payload := append(head.Encode(), a.Encode()...)

	key := callbackKey{Ident: a.UpdateIdent(), Seq: seqVal}
	rx := &UpdateReceiver[U]{
		ch:   make(chan Update[U], 64),
		done: make(chan struct{}),
	}

	cb := func(f *v1frame.Frame) error {
		uh, used, err := DecodeUpdateHead(f.Payload)
		if err != nil {
			return err
		}
		value, err := decode(f.Payload[used:])
		if err != nil {
			return v1errors.NewInvalidData("action.update.decode", err)
		}
		select {
		case rx.ch <- Update[U]{Head: uh, Value: value}:
		default:
		}
		if uh.State.IsTerminal() {
			d.evict(key)
			rx.Close()
			close(rx.ch)
		}
		return nil
	}

	d.mu.Lock()
	d.callbacks[key] = callbackEntry{notify: cb, alive: rx.isAlive}
	d.mu.Unlock()

	raw, err := v1frame.Pack(d.conn.Host(), receiver, seqVal, a.Ident(), v1frame.NeedAckFinish, payload)
	if err != nil {
		d.evict(key)
		return 0, nil, err
	}

	sink, err := d.conn.Submit(a.Ident(), seqVal, raw, true)
	if err != nil {
		d.evict(key)
		return 0, nil, err
	}

	respFrame, ok := <-sink
	if !ok {
		d.evict(key)
		return 0, nil, v1errors.ErrChannelBroken
	}

	state, err := decodeAcceptance(respFrame.Payload)
	if err != nil {
		d.evict(key)
		return 0, nil, err
	}

	if state != ActionStateStarted && state != ActionStateSucceeded {
		d.evict(key)
		return state, nil, &v1errors.ActionError{State: state.String()}
	}

	a.ApplyState(state)

	if state == ActionStateSucceeded {
		d.evict(key)
		close(rx.ch)
	}

	return state, rx, nil
}

func (d *Dispatcher) evict(key callbackKey) {
	d.mu.Lock()
	delete(d.callbacks, key)
	d.mu.Unlock()
}

// Recv implements conn.RawHandler. It returns false immediately for ack
// frames; an action update is a fresh push from the device, not a response
// to something this side sent, so is_ack is never set on one in practice,
// but the check mirrors the original's explicit guard.
func (d *Dispatcher) Recv(f *v1frame.Frame) (bool, error) {
	if f.IsAck {
		return false, nil
	}

	uh, _, err := DecodeUpdateHead(f.Payload)
	if err != nil {
		return false, nil
	}
	key := callbackKey{Ident: f.Ident, Seq: uh.ActionSeq}

	d.mu.Lock()
	entry, ok := d.callbacks[key]
	d.mu.Unlock()
	if !ok {
		return false, nil
	}

	if err := entry.notify(f); err != nil {
		return true, err
	}
	return true, nil
}

// GC evicts callbacks whose UpdateReceiver has been explicitly closed.
// Go has no retain-in-place for maps, so it collects keys to delete in a
// first pass and deletes them in a second, the idiomatic replacement for
// the original's HashMap::retain.
func (d *Dispatcher) GC() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var stale []callbackKey
	for key, entry := range d.callbacks {
		if !entry.alive() {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		delete(d.callbacks, key)
	}
	return nil
}

var _ v1conn.RawHandler = (*Dispatcher)(nil)
