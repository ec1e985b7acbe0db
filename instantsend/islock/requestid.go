package islock

import (
	"errors"

	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/PastaPastaPasta/dash/wire"
)

// inputLockRequestIDPrefix and islockRequestIDPrefix are serialized ahead
// of their respective payloads before hashing, exactly as the upstream
// implementation's INPUTLOCK_REQUESTID_PREFIX/ISLOCK_REQUESTID_PREFIX
// constants are.
const (
	inputLockRequestIDPrefix = "inlock"
	islockRequestIDPrefix    = "islock"
)

// ErrInvalidLockMessage is returned by FromWireMessage when handed a
// message type that is neither MsgISLock nor MsgISDLock.
var ErrInvalidLockMessage = errors.New("islock: not an islock/isdlock message")

// writeVarString serializes s the way the rest of the protocol serializes a
// std::string: a CompactSize length prefix followed by the raw bytes.
func writeVarString(buf *bytes.Buffer, s string) {
	_ = wire.WriteVarInt(buf, uint64(len(s)))
	buf.WriteString(s)
}

// doubleSHA256 reproduces CHashWriter(SER_GETHASH)'s hash function: two
// rounds of SHA-256 over the serialized payload.
func doubleSHA256(b []byte) chainhash.Hash {
	return chainhash.DoubleHashH(b)
}

// InputLockRequestID derives the request id the signing service is asked
// to produce a threshold signature for when voting to lock a single input:
// requestId(inputLock) = H("inlock" || outpoint).
func InputLockRequestID(outpoint Outpoint) chainhash.Hash {
	var buf bytes.Buffer
	writeVarString(&buf, inputLockRequestIDPrefix)
	_ = outpoint.Serialize(&buf)
	return doubleSHA256(buf.Bytes())
}

// IslockRequestID derives the request id for the islock itself:
// requestId(islock) = H("islock" || inputs[]). It depends purely on the
// transaction's input order, which is why a lock's Inputs field must
// preserve the spending transaction's own input ordering.
func IslockRequestID(inputs []Outpoint) chainhash.Hash {
	var buf bytes.Buffer
	writeVarString(&buf, islockRequestIDPrefix)
	_ = wire.WriteVarInt(&buf, uint64(len(inputs)))
	for i := range inputs {
		_ = inputs[i].Serialize(&buf)
	}
	return doubleSHA256(buf.Bytes())
}

// RequestID returns the islock request id for an in-progress or committed
// lock's current input set.
func (p *InProgressLock) RequestID() chainhash.Hash {
	return IslockRequestID(p.Inputs)
}

// RequestID returns the islock request id for a committed lock.
func (l *InstantSendLock) RequestID() chainhash.Hash {
	return IslockRequestID(l.Inputs)
}

// SigningMessage returns the message hash the threshold signature over the
// islock request id actually covers: the transaction id itself.
func (l *InstantSendLock) SigningMessage() chainhash.Hash {
	return l.Txid
}

// Serialize encodes the lock body (txid, inputs, cycleHash when
// deterministic, signature) into buf using the canonical wire encoding.
func (l *InstantSendLock) Serialize(buf *bytes.Buffer) error {
	if _, err := buf.Write(l.Txid[:]); err != nil {
		return err
	}
	if err := wire.WriteVarInt(buf, uint64(len(l.Inputs))); err != nil {
		return err
	}
	for i := range l.Inputs {
		if err := l.Inputs[i].Serialize(buf); err != nil {
			return err
		}
	}
	if l.Version == DeterministicLock {
		if _, err := buf.Write(l.CycleHash[:]); err != nil {
			return err
		}
	}
	_, err := buf.Write(l.Signature[:])
	return err
}

// Hash returns the canonical lock-hash: the serialization hash of the lock
// body. This is the identity used throughout LockStore and the wire
// inventory layer.
func (l *InstantSendLock) Hash() chainhash.Hash {
	var buf bytes.Buffer
	_ = l.Serialize(&buf)
	return doubleSHA256(buf.Bytes())
}

// ToWireMessage converts a committed lock to its wire representation for
// relay, dispatching on Version the way the peer distinguishes ISLOCK from
// ISDLOCK by message type rather than subclassing.
func (l *InstantSendLock) ToWireMessage() wire.Message {
	if l.Version == DeterministicLock {
		return wire.NewMsgISDLock(l.Txid, l.Inputs, l.CycleHash, l.Signature)
	}
	return wire.NewMsgISLock(l.Txid, l.Inputs, l.Signature)
}

// FromWireMessage converts a decoded wire message into the domain
// InstantSendLock type.
func FromWireMessage(msg wire.Message) (*InstantSendLock, error) {
	switch m := msg.(type) {
	case *wire.MsgISLock:
		return &InstantSendLock{
			Version:   LegacyLock,
			Txid:      m.Txid,
			Inputs:    m.Inputs,
			Signature: m.Signature,
		}, nil
	case *wire.MsgISDLock:
		return &InstantSendLock{
			Version:   DeterministicLock,
			Txid:      m.Txid,
			Inputs:    m.Inputs,
			CycleHash: m.CycleHash,
			Signature: m.Signature,
		}, nil
	default:
		return nil, ErrInvalidLockMessage
	}
}

// InvType returns the inventory type used to relay this lock, dispatching
// on Version.
func (l *InstantSendLock) InvType() wire.InvType {
	if l.Version == DeterministicLock {
		return wire.InvTypeInstantSendDeterministicLock
	}
	return wire.InvTypeInstantSendLock
}
