// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// InvType represents the allowed types of inventory vectors relevant to
// InstantSend. The base transaction/block inventory types are owned by the
// general P2P wire package; this module only needs the two lock types it
// introduces.
type InvType uint32

// Inventory types carried by InstantSend. Values follow the upstream
// Dash P2P protocol's MSG_ISLOCK/MSG_ISDLOCK assignment.
const (
	InvTypeInstantSendLock              InvType = 30
	InvTypeInstantSendDeterministicLock InvType = 31
)

var invTypeStrings = map[InvType]string{
	InvTypeInstantSendLock:              "MSG_ISLOCK",
	InvTypeInstantSendDeterministicLock: "MSG_ISDLOCK",
}

// String returns the InvType in human-readable form.
func (t InvType) String() string {
	if s, ok := invTypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown InvType (%d)", uint32(t))
}

// InvVect describes a single piece of inventory a peer wants, has, or does
// not have, the same shape as btcsuite-btcd's wire.InvVect but scoped to
// the two InstantSend inventory types this package owns.
type InvVect struct {
	Type InvType
	Hash chainhash.Hash
}

// NewInvVect returns a new InvVect for the given type and hash.
func NewInvVect(typ InvType, hash chainhash.Hash) InvVect {
	return InvVect{Type: typ, Hash: hash}
}
