// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MsgISDLock implements the Message interface and represents a
// deterministic InstantSend lock: an ISLOCK plus a CycleHash binding it to
// the quorum DKG cycle active when it was produced. A peer must advertise
// ISDLockProtoVersion to receive this message type.
type MsgISDLock struct {
	Txid      chainhash.Hash
	Inputs    []Outpoint
	CycleHash chainhash.Hash
	Signature Signature
}

// BtcDecode decodes r using the InstantSend wire encoding into the receiver.
func (msg *MsgISDLock) BtcDecode(r io.Reader, pver uint32) error {
	if pver < ISDLockProtoVersion {
		return messageErrorf("MsgISDLock.BtcDecode",
			"isdlock message invalid for protocol version")
	}

	base := MsgISLock{}
	// The leading txid/inputs fields share encoding with the legacy
	// lock; only the trailing cycleHash-before-signature layout differs.
	if err := readElement(r, &base.Txid); err != nil {
		return err
	}

	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > MaxInstantSendLockInputs {
		return messageErrorf("MsgISDLock.BtcDecode", "too many inputs")
	}
	base.Inputs = make([]Outpoint, count)
	for i := range base.Inputs {
		if err := base.Inputs[i].Deserialize(r); err != nil {
			return err
		}
	}

	if err := readElement(r, &msg.CycleHash); err != nil {
		return err
	}

	msg.Txid = base.Txid
	msg.Inputs = base.Inputs

	return readElement(r, &msg.Signature)
}

// BtcEncode encodes the receiver to w using the InstantSend wire encoding.
func (msg *MsgISDLock) BtcEncode(w io.Writer, pver uint32) error {
	if pver < ISDLockProtoVersion {
		return messageErrorf("MsgISDLock.BtcEncode",
			"isdlock message invalid for protocol version")
	}

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
	if err := writeElement(w, &msg.CycleHash); err != nil {
		return err
	}

	return writeElement(w, &msg.Signature)
}

// Command returns the protocol command string for the message.
func (msg *MsgISDLock) Command() string {
	return CmdISDLock
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver.
func (msg *MsgISDLock) MaxPayloadLength(pver uint32) uint32 {
	return chainhash.HashSize + MaxVarIntPayload +
		uint32(MaxInstantSendLockInputs)*OutpointByteSize +
		chainhash.HashSize + SignatureSize
}

// NewMsgISDLock returns a new deterministic InstantSend lock message that
// conforms to the Message interface.
func NewMsgISDLock(txid chainhash.Hash, inputs []Outpoint, cycleHash chainhash.Hash, sig Signature) *MsgISDLock {
	return &MsgISDLock{
		Txid:      txid,
		Inputs:    inputs,
		CycleHash: cycleHash,
		Signature: sig,
	}
}
