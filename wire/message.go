// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// Commands used in the InstantSend message headers.
const (
	// CmdISLock identifies a legacy (non-deterministic) InstantSend lock
	// message.
	CmdISLock = "islock"

	// CmdISDLock identifies a deterministic InstantSend lock message,
	// carrying a cycleHash binding it to a quorum DKG cycle.
	CmdISDLock = "isdlock"
)

// ISDLockProtoVersion is the minimum protocol version at which a peer may
// advertise and relay deterministic InstantSend locks.
const ISDLockProtoVersion = 70216

// Message is the interface that every InstantSend wire message implements,
// mirroring the shape of the base Dash/Bitcoin P2P Message interface
// (BtcEncode/BtcDecode/Command/MaxPayloadLength).
type Message interface {
	BtcEncode(w io.Writer, pver uint32) error
	BtcDecode(r io.Reader, pver uint32) error
	Command() string
	MaxPayloadLength(pver uint32) uint32
}
