// Package action implements the action dispatcher: long-running operations
// started by a single command and reported via a stream of update frames
// until a terminal state.
package action

import (
	"fmt"

	v1errors "github.com/alxayo/go-v1proto/internal/errors"
)

// ActionUpdateHeadSize is the number of leading payload bytes the dispatcher
// consumes before handing the remainder to the caller's decoder: the 8-bit
// action-seq, the percent byte, and the packed state+reason byte.
const ActionUpdateHeadSize = 3

// ActionCtrl selects whether an action command starts or cancels.
type ActionCtrl byte

const (
	ActionCtrlStart ActionCtrl = iota
	ActionCtrlCancel
)

// ActionFreq selects the update push rate the device uses for an action.
type ActionFreq byte

const (
	ActionFreq1Hz ActionFreq = iota
	ActionFreq5Hz
	ActionFreq10Hz
)

// Cfg packs ctrl (bits 0-1) and freq (bits 2-3) into ActionHead's config byte.
func Cfg(ctrl ActionCtrl, freq ActionFreq) byte {
	return byte(ctrl&0x03) | byte(freq&0x03)<<2
}

// ActionHead is the two-byte header prefixed to every action start command:
// the 8-bit sequence id (action-seq downcast, wrap behavior implementation
// defined — see seq.SpanAction) and the packed ctrl/freq config byte.
type ActionHead struct {
	ID  byte
	Cfg byte
}

// Encode serializes the head to its two wire bytes.
func (h ActionHead) Encode() []byte { return []byte{h.ID, h.Cfg} }

// ActionState mirrors the device's action lifecycle states.
type ActionState int

const (
	ActionStateIdle ActionState = iota
	ActionStateRunning
	ActionStateSucceeded
	ActionStateFailed
	ActionStateStarted
	ActionStateAborting
	ActionStateAborted
	ActionStateRejected
	ActionStateException
)

func (s ActionState) String() string {
	switch s {
	case ActionStateIdle:
		return "Idle"
	case ActionStateRunning:
		return "Running"
	case ActionStateSucceeded:
		return "Succeeded"
	case ActionStateFailed:
		return "Failed"
	case ActionStateStarted:
		return "Started"
	case ActionStateAborting:
		return "Aborting"
	case ActionStateAborted:
		return "Aborted"
	case ActionStateRejected:
		return "Rejected"
	case ActionStateException:
		return "Exception"
	default:
		return fmt.Sprintf("ActionState(%d)", int(s))
	}
}

// IsTerminal reports whether state ends the update stream.
func (s ActionState) IsTerminal() bool {
	switch s {
	case ActionStateSucceeded, ActionStateFailed, ActionStateException, ActionStateRejected, ActionStateAborted:
		return true
	default:
		return false
	}
}

// ActionUpdateHead is the decoded leading head of one update frame.
type ActionUpdateHead struct {
	ActionSeq uint16
	Percent   byte
	State     ActionState
	Reason    byte
}

// updateWireState maps the 2-bit state field packed into an update frame's
// third head byte to ActionState. This ordinal does not match ActionState's
// own declaration order.
func updateWireState(bits byte) ActionState {
	switch bits & 0x03 {
	case 0:
		return ActionStateRunning
	case 1:
		return ActionStateSucceeded
	case 2:
		return ActionStateFailed
	default:
		return ActionStateStarted
	}
}

// DecodeUpdateHead parses the leading ActionUpdateHeadSize bytes of an
// action-update payload, returning the head and the number of bytes
// consumed so the caller's own decoder can start at the right offset.
func DecodeUpdateHead(payload []byte) (ActionUpdateHead, int, error) {
	if len(payload) < ActionUpdateHeadSize {
		return ActionUpdateHead{}, 0, &v1errors.ShortBufferError{Want: ActionUpdateHeadSize, Got: len(payload)}
	}
	packed := payload[2]
	return ActionUpdateHead{
		ActionSeq: uint16(payload[0]),
		Percent:   payload[1],
		State:     updateWireState(packed),
		Reason:    (packed >> 2) & 0x03,
	}, ActionUpdateHeadSize, nil
}

// acceptanceWireState maps an acceptance byte to ActionState. This ordinal
// does not match ActionState's own declaration order either, and differs
// from updateWireState's mapping.
func acceptanceWireState(b byte) ActionState {
	switch b {
	case 0:
		return ActionStateStarted
	case 1:
		return ActionStateRejected
	default:
		return ActionStateSucceeded
	}
}

// decodeAcceptance parses an action start command's response: a retcode
// byte followed by an acceptance byte. A non-zero retcode means the device
// failed the command outright, independent of the acceptance byte.
func decodeAcceptance(payload []byte) (ActionState, error) {
	if len(payload) < 2 {
		return 0, &v1errors.ShortBufferError{Want: 2, Got: len(payload)}
	}
	if payload[0] != 0 {
		return ActionStateFailed, nil
	}
	return acceptanceWireState(payload[1]), nil
}
