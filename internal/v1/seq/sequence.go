// Package seq implements the three sequence-number generators the core
// hands out: command-seq, action-seq, and subscription msg-id. Each is a
// process-local atomic counter reduced into its domain, never global, so
// tests covering distinct connections never collide.
package seq

import "sync/atomic"

// Generator allocates values in [lo, hi] by advancing an atomic counter and
// folding it into the domain's span. Values are opaque identifiers, not
// timestamps or indices, and may repeat once the counter wraps the span.
type Generator struct {
	lo   uint32
	span uint32
	n    atomic.Uint64
}

// New builds a Generator over the inclusive range [lo, hi].
func New(lo, hi uint32) *Generator {
	return &Generator{lo: lo, span: hi - lo + 1}
}

// Next returns the next value in [lo, hi].
func (g *Generator) Next() uint32 {
	n := g.n.Add(1) - 1
	return g.lo + uint32(n%uint64(g.span))
}

// Command-seq: [10000, 20000).
const (
	FirstCmd = 10000
	SpanCmd  = 10000
	LastCmd  = FirstCmd + SpanCmd - 1
)

// Action-seq: [1, 255) in the 8-bit wire field; spec calls out wrap behavior
// at the boundary as implementation-defined and recommends skipping 0.
const (
	FirstAction = 1
	SpanAction  = 254
	LastAction  = FirstAction + SpanAction - 1
)

// Subscription msg-id: [20, 255].
const (
	FirstMsgID = 20
	SpanMsgID  = 236
	LastMsgID  = FirstMsgID + SpanMsgID - 1
)

// NewCommandSeq builds the command-seq generator.
func NewCommandSeq() *Generator { return New(FirstCmd, LastCmd) }

// NewActionSeq builds the action-seq generator.
func NewActionSeq() *Generator { return New(FirstAction, LastAction) }

// NewMsgIDSeq builds the subscription msg-id generator.
func NewMsgIDSeq() *Generator { return New(FirstMsgID, LastMsgID) }
