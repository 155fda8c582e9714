package main

import (
	v1frame "github.com/alxayo/go-v1proto/internal/v1/frame"
)

// announceCmd is a minimal stand-in for the reference client's
// set_sdk_connection detect-phase request: it tells whatever is listening
// on the detect address which host byte this client will use once it opens
// its long-lived connection to the device address. The original SDK's
// exact connection-announce payload layout was never retrieved, so this
// only carries the one field this demo actually needs.
type announceCmd struct {
	host byte
}

func (announceCmd) Ident() v1frame.Ident { return v1frame.Ident{CmdSet: 0x00, CmdID: 0x01} }
func (a announceCmd) Encode() []byte     { return []byte{a.host} }
