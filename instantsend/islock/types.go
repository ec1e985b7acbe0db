// Package islock holds the InstantSend data model shared by the lock
// store, the tracker, and the lock-manager state machine: the committed
// and in-progress lock types, the outpoint/tx/block value types the core
// reasons about, and lock-hash/request-id derivation. It plays the role
// the teacher's wire/chainhash packages play for mempool/blockchain: a
// dependency-free foundation every higher-level package imports.
package islock

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/PastaPastaPasta/dash/wire"
)

// Outpoint identifies an exact transaction input: the hash of the
// transaction that created the spent output and that output's index.
type Outpoint = wire.Outpoint

// LockVersion distinguishes a legacy ISLOCK from a deterministic ISDLOCK.
// The two are a tagged variant of the same entity (spec §9: "a
// tagged-variant field, not subclassing"), not separate types.
type LockVersion uint8

const (
	// LegacyLock carries no cycleHash.
	LegacyLock LockVersion = iota
	// DeterministicLock carries a cycleHash binding the lock to the
	// quorum DKG cycle active when it was produced.
	DeterministicLock
)

// String implements fmt.Stringer.
func (v LockVersion) String() string {
	switch v {
	case LegacyLock:
		return "legacy"
	case DeterministicLock:
		return "deterministic"
	default:
		return "unknown"
	}
}

// InstantSendLock is the immutable, committed lock binding a transaction
// identity to its exact input set, once a threshold signature exists over
// (requestId, txid). It is created once and never mutated; the mutable
// in-construction counterpart is InProgressLock.
type InstantSendLock struct {
	Version   LockVersion
	Txid      chainhash.Hash
	Inputs    []Outpoint
	CycleHash chainhash.Hash // zero value when Version == LegacyLock
	Signature wire.Signature
}

// IsDeterministic reports whether the lock carries a cycleHash.
func (l *InstantSendLock) IsDeterministic() bool {
	return l.Version == DeterministicLock
}

// InProgressLock is the mutable, LockManager-owned counterpart of
// InstantSendLock: the state held between "all input locks are present" and
// receipt of the self-signed threshold signature over the islock request
// id. It transitions one-way into an InstantSendLock on successful
// verification (spec §9: "replace with two distinct types ... with a
// one-way transition on successful verification").
type InProgressLock struct {
	Version   LockVersion
	Txid      chainhash.Hash
	Inputs    []Outpoint
	CycleHash chainhash.Hash
}

// Commit attaches the recovered threshold signature and produces the
// immutable committed lock.
func (p *InProgressLock) Commit(sig wire.Signature) *InstantSendLock {
	return &InstantSendLock{
		Version:   p.Version,
		Txid:      p.Txid,
		Inputs:    append([]Outpoint(nil), p.Inputs...),
		CycleHash: p.CycleHash,
		Signature: sig,
	}
}

// NonLockedTxInfo is a tracked, not-yet-locked transaction: either a
// mempool entry, a mined-but-unlocked entry, or a stub created only to
// record a child relationship before the parent's own body is known.
type NonLockedTxInfo struct {
	Tx          *Tx
	MinedBlock  *BlockRef
	Children    map[chainhash.Hash]struct{}
	HasOwnEntry bool
}

// Tx is the minimal transaction view the InstantSend core needs from the
// external chain/mempool collaborators: its hash and its ordered inputs.
// The core never needs scripts, amounts, or witness data.
type Tx struct {
	Hash   chainhash.Hash
	Inputs []Outpoint
}

// BlockRef identifies a block by hash and height, the minimal view the
// core needs to reason about confirmation depth and chain-lock status.
type BlockRef struct {
	Hash   chainhash.Hash
	Height int32
}

// PendingLock is a peer- (or self-) delivered lock awaiting batch BLS
// verification, keyed by lock-hash in LockManager.pendingInstantSendLocks.
type PendingLock struct {
	// From is the originating peer id, or SelfPeerID for a lock this
	// node produced itself.
	From int64
	Lock *InstantSendLock
}

// SelfPeerID is the sentinel "peer id" used for locks this node produced
// itself, so they flow through the same verification/commit pipeline as
// peer-delivered locks (spec §4.3 HandleNewRecoveredSig).
const SelfPeerID int64 = -1

// ArchivedLock is the bookkeeping entry retained after a committed lock is
// removed, either by final confirmation or by chain-lock-driven pruning, so
// that KnownLock stays true for repeated deliveries.
type ArchivedLock struct {
	Hash   chainhash.Hash
	Height int32
}

// ArchiveRetentionBlocks is the number of blocks an archived lock is kept
// after its archival height, matching the original implementation's
// retention window.
const ArchiveRetentionBlocks = 100

// MaxPendingLocksPerBatch bounds how many pending locks a single worker
// tick drains for batch verification.
const MaxPendingLocksPerBatch = 32
