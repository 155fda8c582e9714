package subscribe

import (
	"sync"

	v1errors "github.com/alxayo/go-v1proto/internal/errors"
	v1command "github.com/alxayo/go-v1proto/internal/v1/command"
	v1conn "github.com/alxayo/go-v1proto/internal/v1/conn"
	v1frame "github.com/alxayo/go-v1proto/internal/v1/frame"
	v1seq "github.com/alxayo/go-v1proto/internal/v1/seq"
)

// HandlerName is the raw handler name the subscriber registers under.
const HandlerName = "v1::Subscriber"

// cmdReceiver is the fixed address subscription commands target: index 0
// under host 9, the subscription command-set's well-known node.
const cmdReceiver = 0x09

type periodEntry struct {
	notify func(data []byte) error
	alive  func() bool
}

type eventEntry struct {
	notify func(data []byte) error
	alive  func() bool
}

// Subscriber drives periodic and event subscriptions: it registers one raw
// handler with the connection and keeps two maps, one keyed by the locally
// allocated msg-id for periodic pushes and one keyed by wire ident
// for local event pushes.
type Subscriber struct {
	conn *v1conn.Connection
	cmds *v1command.Dispatcher
	seq  *v1seq.Generator

	mu     sync.Mutex
	period map[byte]periodEntry
	event  map[v1frame.Ident]eventEntry
}

// New registers the subscriber's raw handler on conn. The caller must call
// Close when done.
func New(conn *v1conn.Connection, cmds *v1command.Dispatcher) (*Subscriber, error) {
	s := &Subscriber{
		conn:   conn,
		cmds:   cmds,
		seq:    v1seq.NewMsgIDSeq(),
		period: make(map[byte]periodEntry),
		event:  make(map[v1frame.Ident]eventEntry),
	}
	if err := conn.RegisterRawHandler(HandlerName, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Close unregisters the subscriber's raw handler.
func (s *Subscriber) Close() {
	s.conn.UnregisterRawHandler(HandlerName)
}

// PushReceiver hands the caller a read-only stream of decoded pushes plus an
// explicit Close/Unsubscribe.
type PushReceiver[P any] struct {
	ch   chan P
	done chan struct{}
	once sync.Once

	unsub func()
}

// C returns the channel of pushes.
func (r *PushReceiver[P]) C() <-chan P { return r.ch }

// Unsubscribe stops the subscription: for a periodic push this also sends
// the device an UnsubMsg command; for an event push it is purely local.
// Go has no destructor to run this on scope exit, so callers must call it
// explicitly when done, unlike the original's Drop-triggered unsub.
func (r *PushReceiver[P]) Unsubscribe() {
	r.once.Do(func() {
		close(r.done)
		if r.unsub != nil {
			r.unsub()
		}
	})
}

func (r *PushReceiver[P]) isAlive() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// SubscribePeriodPush installs a local callback for msg-id, sends the
// device a SubMsg requesting pushes for sid at freq, and rolls the callback
// back if the device's response reports rejection — the callback must be
// installed before the command is sent so an unusually fast first push is
// never missed, per the original's exact ordering.
func SubscribePeriodPush[P any](s *Subscriber, sid uint64, freq SubFreq, decode func([]byte) (P, error)) (*PushReceiver[P], error) {
	msgID := byte(s.seq.Next())

	rx := &PushReceiver[P]{
		ch:   make(chan P, 64),
		done: make(chan struct{}),
	}
	rx.unsub = func() {
		s.mu.Lock()
		delete(s.period, msgID)
		s.mu.Unlock()
		_ = v1command.SendFireAndForget(s.cmds, cmdReceiver, unsubMsg{nodeID: s.conn.Host(), msgID: msgID})
	}

	entry := periodEntry{
		notify: func(data []byte) error {
			value, err := decode(data)
			if err != nil {
				return v1errors.NewInvalidData("subscribe.period.decode", err)
			}
			select {
			case rx.ch <- value:
			default:
			}
			return nil
		},
		alive: rx.isAlive,
	}

	s.mu.Lock()
	s.period[msgID] = entry
	s.mu.Unlock()

	msg := subMsg{nodeID: s.conn.Host(), msgID: msgID, freq: freq, sid: sid}
	ack, err := v1command.SendSync(s.cmds, cmdReceiver, msg, decodeSubAck)
	if err != nil {
		s.evictPeriod(msgID)
		return nil, err
	}
	if ack.Retcode != 0 && ack.Retcode != 0x50 {
		s.evictPeriod(msgID)
		return nil, v1errors.NewInvalidData("subscribe.period.rejected", nil)
	}

	return rx, nil
}

func (s *Subscriber) evictPeriod(msgID byte) {
	s.mu.Lock()
	delete(s.period, msgID)
	s.mu.Unlock()
}

// SubscribeEvent installs a local callback keyed directly by ident. There is
// no wire traffic: event pushes arrive unsolicited and Unsubscribe is purely
// local bookkeeping.
func SubscribeEvent[P any](s *Subscriber, ident v1frame.Ident, decode func([]byte) (P, error)) (*PushReceiver[P], error) {
	rx := &PushReceiver[P]{
		ch:   make(chan P, 64),
		done: make(chan struct{}),
	}
	rx.unsub = func() {
		s.mu.Lock()
		delete(s.event, ident)
		s.mu.Unlock()
	}

	entry := eventEntry{
		notify: func(data []byte) error {
			value, err := decode(data)
			if err != nil {
				return v1errors.NewInvalidData("subscribe.event.decode", err)
			}
			select {
			case rx.ch <- value:
			default:
			}
			return nil
		},
		alive: rx.isAlive,
	}

	s.mu.Lock()
	s.event[ident] = entry
	s.mu.Unlock()

	return rx, nil
}

// Recv implements conn.RawHandler. Periodic pushes arrive wrapped in the
// (0x48,0x08) envelope and are routed by msg_id; everything else is looked
// up directly by ident as an event push.
func (s *Subscriber) Recv(f *v1frame.Frame) (bool, error) {
	if f.IsAck {
		return false, nil
	}

	if f.Ident == pushPeriodIdent {
		env, err := decodePushPeriod(f.Payload)
		if err != nil {
			return false, nil
		}
		s.mu.Lock()
		entry, ok := s.period[env.MsgID]
		s.mu.Unlock()
		if !ok {
			return false, nil
		}
		if err := entry.notify(env.Data); err != nil {
			return true, err
		}
		return true, nil
	}

	s.mu.Lock()
	entry, ok := s.event[f.Ident]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := entry.notify(f.Payload); err != nil {
		return true, err
	}
	return true, nil
}

// GC evicts callbacks whose PushReceiver has been explicitly unsubscribed,
// using the same collect-then-delete idiom as action.Dispatcher.GC.
func (s *Subscriber) GC() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stalePeriod []byte
	for id, entry := range s.period {
		if !entry.alive() {
			stalePeriod = append(stalePeriod, id)
		}
	}
	for _, id := range stalePeriod {
		delete(s.period, id)
	}

	var staleEvent []v1frame.Ident
	for id, entry := range s.event {
		if !entry.alive() {
			staleEvent = append(staleEvent, id)
		}
	}
	for _, id := range staleEvent {
		delete(s.event, id)
	}

	return nil
}

var _ v1conn.RawHandler = (*Subscriber)(nil)
