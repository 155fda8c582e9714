package conn

import (
	v1errors "github.com/alxayo/go-v1proto/internal/errors"
	v1frame "github.com/alxayo/go-v1proto/internal/v1/frame"
)

// RawHandler is a named subscriber to every frame the loop routes, ack or
// not; each handler decides for itself whether an ack frame is relevant.
// Recv reports whether the handler claimed the frame; a claim is purely
// informational and never stops iteration over the remaining handlers. GC
// is invoked roughly every 300s so a handler can prune callbacks whose
// receive side has gone away.
type RawHandler interface {
	Recv(f *v1frame.Frame) (bool, error)
	GC() error
}

// handlerEntry pairs a registered name with its handler, preserving
// insertion order for routing.
type handlerEntry struct {
	name    string
	handler RawHandler
}

// handlerRegistry is touched only by the event loop goroutine; no locking
// is needed despite being logically "shared" state, because every mutation
// and every read arrives as a serialized event.
type handlerRegistry struct {
	order []handlerEntry
	index map[string]int
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{index: make(map[string]int)}
}

func (r *handlerRegistry) register(name string, h RawHandler) error {
	if _, exists := r.index[name]; exists {
		return v1errors.NewDuplicate(name)
	}
	r.index[name] = len(r.order)
	r.order = append(r.order, handlerEntry{name: name, handler: h})
	return nil
}

func (r *handlerRegistry) unregister(name string) bool {
	i, ok := r.index[name]
	if !ok {
		return false
	}
	r.order = append(r.order[:i], r.order[i+1:]...)
	delete(r.index, name)
	for name, idx := range r.index {
		if idx > i {
			r.index[name] = idx - 1
		}
	}
	return true
}

func (r *handlerRegistry) each(fn func(name string, h RawHandler)) {
	for _, e := range r.order {
		fn(e.name, e.handler)
	}
}
