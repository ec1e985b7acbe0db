// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MaxInstantSendLockInputs caps the number of outpoints an ISLOCK/ISDLOCK
// may carry, mirroring the maximum number of inputs a standard transaction
// may have; it exists to bound allocation when decoding an attacker-supplied
// message.
const MaxInstantSendLockInputs = 1 << 16

// MsgISLock implements the Message interface and represents a legacy
// (non-deterministic) InstantSend lock. It binds Txid to the exact ordered
// set of Inputs it spends via an aggregate BLS Signature produced by a
// rotating masternode quorum.
//
// Inputs must appear in the spending transaction's input order: RequestID
// derivation for the lock is purely a function of that order (see
// islock.IslockRequestID in package instantsend/islock).
type MsgISLock struct {
	Txid      chainhash.Hash
	Inputs    []Outpoint
	Signature Signature
}

// BtcDecode decodes r using the InstantSend wire encoding into the receiver.
func (msg *MsgISLock) BtcDecode(r io.Reader, pver uint32) error {
	if err := readElement(r, &msg.Txid); err != nil {
		return err
	}

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxInstantSendLockInputs {
		str := fmt.Sprintf("too many inputs to fit into max message "+
			"size [count %d, max %d]", count, MaxInstantSendLockInputs)
		return messageErrorf("MsgISLock.BtcDecode", str)
	}

	msg.Inputs = make([]Outpoint, count)
	for i := range msg.Inputs {
		if err := msg.Inputs[i].Deserialize(r); err != nil {
			return err
		}
	}

	return readElement(r, &msg.Signature)
}

// BtcEncode encodes the receiver to w using the InstantSend wire encoding.
func (msg *MsgISLock) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeElement(w, &msg.Txid); err != nil {
		return err
	}

	if err := WriteVarInt(w, uint64(len(msg.Inputs))); err != nil {
		return err
	}
	for i := range msg.Inputs {
		if err := msg.Inputs[i].Serialize(w); err != nil {
			return err
		}
	}

	return writeElement(w, &msg.Signature)
}

// Command returns the protocol command string for the message.
func (msg *MsgISLock) Command() string {
	return CmdISLock
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.
func (msg *MsgISLock) MaxPayloadLength(pver uint32) uint32 {
	// txid (32) + varint input count (up to 9) + inputs (36 each) + sig (96).
	return chainhash.HashSize + MaxVarIntPayload +
		uint32(MaxInstantSendLockInputs)*OutpointByteSize + SignatureSize
}

// NewMsgISLock returns a new legacy InstantSend lock message that conforms
// to the Message interface.
func NewMsgISLock(txid chainhash.Hash, inputs []Outpoint, sig Signature) *MsgISLock {
	return &MsgISLock{
		Txid:      txid,
		Inputs:    inputs,
		Signature: sig,
	}
}
