package instantsend

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
	"github.com/PastaPastaPasta/dash/wire"
)

// This file holds the collaborator ports InstantSend consumes but does not
// implement: the chain, mempool, BLS threshold-signing service, and P2P
// relay layer are all out of scope per spec §1 and are modeled here as
// plain Go interfaces, the same way mempool.Config injects
// FetchUtxoView/BestHeight/CalcSequenceLock as function fields rather than
// reaching for globals (spec §9: "model explicitly as injected
// collaborator handles").

// Quorum is the minimal view of a selected signing quorum the core needs:
// its identity hash, the height it was selected at, and its public key for
// batch-verification.
type Quorum struct {
	Hash      chainhash.Hash
	Height    int32
	PublicKey wire.PublicKey
}

// RecoveredSig is the reconstructed threshold signature the signing
// service delivers for a (llmqType, requestId, msgHash) triple, either via
// the listener callback (HandleNewRecoveredSig) or via direct lookup
// (GetRecoveredSig).
type RecoveredSig struct {
	LLMQType LLMQType
	ID       chainhash.Hash
	MsgHash  chainhash.Hash
	Sig      wire.Signature
}

// ChainSource is the external chain/node-state collaborator.
type ChainSource interface {
	// IsMasternode reports whether the local node participates in
	// quorums and should vote at all.
	IsMasternode() bool

	// IsBlockchainSynced reports whether the local view of the chain is
	// caught up enough to reason about confirmation depth.
	IsBlockchainSynced() bool

	// GetTransaction returns the transaction body for hash, if known to
	// the chain or mempool.
	GetTransaction(hash chainhash.Hash) (*islock.Tx, bool)

	// GetTxBlock returns the block a transaction was mined into, if any.
	GetTxBlock(txid chainhash.Hash) (*islock.BlockRef, bool)

	// BestHeight returns the current best chain height.
	BestHeight() int32

	// GetBlockHash returns the hash of the block at height, if known.
	GetBlockHash(height int32) (chainhash.Hash, bool)

	// GetBlockHeight returns the height of the block identified by
	// hash, if known.
	GetBlockHeight(hash chainhash.Hash) (int32, bool)

	// IsBlockChainLocked reports whether the block at height/hash has a
	// ChainLock, which trumps any conflicting InstantSend lock.
	IsBlockChainLocked(height int32, hash chainhash.Hash) bool

	// InvalidateBlock marks the block as invalid, triggering a reorg
	// away from it. A false return is treated as fatal (spec §7).
	InvalidateBlock(hash chainhash.Hash) bool

	// ActivateBestChain reconsiders the chain tip after an
	// invalidation. A false return is treated as fatal (spec §7).
	ActivateBestChain() bool
}

// MempoolSource is the external mempool collaborator.
type MempoolSource interface {
	// HaveTransaction reports whether txid is currently in the mempool.
	HaveTransaction(txid chainhash.Hash) bool

	// GetMempoolSpender returns the txid of the mempool transaction
	// spending outpoint, if any.
	GetMempoolSpender(outpoint islock.Outpoint) (chainhash.Hash, bool)

	// RemoveRecursive evicts txid and everything that spends its
	// outputs, recursively, from the mempool.
	RemoveRecursive(txid chainhash.Hash, reason string)

	// BumpUpdateCounter signals mempool-observers that state changed.
	BumpUpdateCounter()
}

// Signer is the external BLS threshold-signing service collaborator. Its
// actual cryptography (quorum selection, partial-signature aggregation,
// pairing verification) is entirely out of scope per spec §1; this is only
// the interface surface LockManager drives it through.
type Signer interface {
	// AsyncSignIfMember asks the signing service to contribute a partial
	// signature for (llmqType, id, msgHash) if the local node is a
	// member of the quorum selected for id, returning immediately.
	AsyncSignIfMember(llmqType LLMQType, id, msgHash chainhash.Hash)

	// HasRecoveredSig reports whether a threshold signature already
	// exists for (llmqType, id, msgHash).
	HasRecoveredSig(llmqType LLMQType, id, msgHash chainhash.Hash) bool

	// GetRecoveredSig returns the recovered signature for (llmqType,
	// id), if one exists.
	GetRecoveredSig(llmqType LLMQType, id chainhash.Hash) (*RecoveredSig, bool)

	// GetVoteForId returns the message hash this node has already voted
	// for under id, if any, so a conflicting vote can be detected.
	GetVoteForId(llmqType LLMQType, id chainhash.Hash) (chainhash.Hash, bool)

	// IsConflicting reports whether id/msgHash conflicts with a
	// previously recorded vote for a different message.
	IsConflicting(llmqType LLMQType, id, msgHash chainhash.Hash) bool

	// SelectQuorumForSigning selects the quorum active for id at
	// signHeight, offset by signOffset blocks (used for the two-pass
	// verification against a just-rotated quorum set).
	SelectQuorumForSigning(llmqType LLMQType, id chainhash.Hash, signHeight int32, signOffset int32) (*Quorum, bool)

	// TruncateRecoveredSig tells the signing service it may drop the
	// recovered signature for id; InstantSend no longer needs it once
	// the islock covering it is committed.
	TruncateRecoveredSig(llmqType LLMQType, id chainhash.Hash)

	// PushReconstructedRecoveredSig hands a recovered signature
	// reconstructed during batch verification back to the signing
	// service, saving it the work of reconstructing it again.
	PushReconstructedRecoveredSig(sig *RecoveredSig, quorum *Quorum)
}

// RecoveredSigListener receives HandleNewRecoveredSig callbacks from the
// Signer collaborator.
type RecoveredSigListener interface {
	HandleNewRecoveredSig(sig RecoveredSig)
}

// BatchVerifier is the external BLS batch-verification collaborator. It
// accumulates candidate (signHash, signature, pubkey) triples and verifies
// them together; actual pairing cryptography is out of scope (spec §1).
type BatchVerifier interface {
	// Add queues one candidate for verification, identified by
	// lockHash for result lookup.
	Add(lockHash chainhash.Hash, signHash chainhash.Hash, sig wire.Signature, pubKey wire.PublicKey)

	// Execute runs the batch and returns, per queued lockHash, whether
	// it verified.
	Execute() map[chainhash.Hash]bool
}

// Relayer is the external P2P transport collaborator.
type Relayer interface {
	// RelayInstantSendLock announces hash/lock to peers via inventory,
	// filtered by whichever peers already know about tx (or, if tx is
	// unknown, by txid alone).
	RelayInstantSendLock(hash chainhash.Hash, lock *islock.InstantSendLock)

	// AskNodesForLockedTx asks peers to re-offer txid now that it is
	// known to be locked.
	AskNodesForLockedTx(txid chainhash.Hash)

	// Misbehaving applies a misbehavior penalty to peer.
	Misbehaving(peer int64, score MisbehaviorScore)

	// NotifyTransactionLock fires once a tracked transaction becomes
	// locked and its body is known locally.
	NotifyTransactionLock(tx *islock.Tx, lock *islock.InstantSendLock)
}
