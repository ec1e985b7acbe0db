package islock

import (
	"bytes"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/PastaPastaPasta/dash/wire"
)

// MarshalBinary is LockStore's on-disk record format: a version byte ahead
// of the canonical wire body (Serialize itself carries no version marker,
// since the lock-hash it feeds must match across legacy/deterministic
// nodes that agree on which variant they're hashing). This lets Store
// round-trip a value it already knows the hash of without also having to
// remember Version out of band.
func (l *InstantSendLock) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(l.Version))
	if err := l.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary reverses MarshalBinary.
func (l *InstantSendLock) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("islock: short record")
	}
	r := bytes.NewReader(data[1:])
	version := LockVersion(data[0])

	var txid chainhash.Hash
	if _, err := io.ReadFull(r, txid[:]); err != nil {
		return err
	}

	numInputs, err := wire.ReadVarInt(r)
	if err != nil {
		return err
	}
	inputs := make([]Outpoint, numInputs)
	for i := range inputs {
		if err := inputs[i].Deserialize(r); err != nil {
			return err
		}
	}

	var cycleHash chainhash.Hash
	if version == DeterministicLock {
		if _, err := io.ReadFull(r, cycleHash[:]); err != nil {
			return err
		}
	}

	var sig wire.Signature
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		return err
	}

	l.Version = version
	l.Txid = txid
	l.Inputs = inputs
	l.CycleHash = cycleHash
	l.Signature = sig
	return nil
}
