// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OutpointByteSize is the number of bytes a serialized Outpoint occupies:
// a 32-byte prior-transaction hash followed by a 4-byte little-endian output
// index.
const OutpointByteSize = chainhash.HashSize + 4

// Outpoint defines a Dash data type that is used to track previous
// transaction outputs. It identifies an exact transaction input by the hash
// of the transaction that created the output it spends and the index of
// that output within the transaction's output vector.
type Outpoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutpoint returns a new Dash transaction outpoint point with the
// provided hash and index.
func NewOutpoint(hash *chainhash.Hash, index uint32) *Outpoint {
	return &Outpoint{
		Hash:  *hash,
		Index: index,
	}
}

// String returns the Outpoint in the human-readable form "hash:index".
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash, o.Index)
}

// Deserialize decodes an Outpoint from r in the canonical wire encoding.
func (o *Outpoint) Deserialize(r io.Reader) error {
	if err := readElement(r, &o.Hash); err != nil {
		return err
	}
	return readElement(r, &o.Index)
}

// Serialize encodes an Outpoint to w in the canonical wire encoding.
func (o *Outpoint) Serialize(w io.Writer) error {
	if err := writeElement(w, &o.Hash); err != nil {
		return err
	}
	return writeElement(w, o.Index)
}
