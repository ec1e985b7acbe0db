package instantsend

import "time"

// LLMQType identifies a quorum type/size configuration. The concrete
// selection rules live with the external quorum-selection collaborator;
// the core only ever treats this as an opaque comparable key.
type LLMQType uint8

// LLMQTypeNone disables InstantSend entirely: ProcessTx returns
// immediately whenever the configured InstantSend quorum type is None.
const LLMQTypeNone LLMQType = 0

// Config holds the spork/consensus-driven toggles InstantSend reads fresh
// on each entry, mirroring mempool.Policy's struct-of-knobs shape. There is
// deliberately no CLI/RPC/file-parsing surface here — that layer is out of
// scope (spec §1 Non-goals) and, if it existed, would live outside this
// package entirely.
type Config struct {
	// IsInstantSendEnabled reports whether InstantSend voting is active
	// at all for the current spork state.
	IsInstantSendEnabled func() bool

	// IsInstantSendMempoolSigningEnabled reports whether input-lock
	// signing may proceed for ordinary (non-retroactive) mempool
	// transactions.
	IsInstantSendMempoolSigningEnabled func() bool

	// RejectConflictingBlocks reports whether a mined block conflicting
	// with a committed, non-chain-locked lock should be invalidated.
	RejectConflictingBlocks func() bool

	// InstantSendConfirmationsRequired is the minimum confirmation depth
	// an input's source transaction must reach before that input can be
	// voted on, absent a ChainLock.
	InstantSendConfirmationsRequired int32

	// InstantSendKeepLock is the number of blocks after mining that a
	// committed lock is retained before RemoveConfirmedUpTo archives it.
	InstantSendKeepLock int32

	// DKGInterval is the block-height period between quorum rotations.
	DKGInterval int32

	// LLMQTypeInstantSend is the quorum type InstantSend signs with.
	// LLMQTypeNone disables the subsystem.
	LLMQTypeInstantSend LLMQType

	// IsDIP0020Active gates the one-time LockStore migration that drops
	// locks for transactions unknown to the chain.
	IsDIP0020Active func() bool

	// DIP0008Height is the activation height of the deterministic
	// InstantSend upgrade; below it, only legacy locks are produced.
	DIP0008Height int32

	// WorkerTickInterval is how often the worker loop drains pending
	// verification and pending retries. ~100ms per spec §5.
	WorkerTickInterval time.Duration

	// NewBatchVerifier returns a fresh BatchVerifier, called once per
	// verification pass so ProcessPendingInstantSendLocks's two-pass
	// quorum-rotation retry never reuses state across passes.
	//
	// DefaultConfig deliberately leaves this nil: actual BLS pairing
	// verification is out of scope (spec §1), the same reason Chain,
	// Mempool, Signer, and Relayer are collaborators the caller must set
	// on the LockManager rather than ambient defaults this package could
	// fabricate. Fabricating a no-op verifier here would silently accept
	// every signature, which is worse than panicking on a missing wiring.
	NewBatchVerifier func() BatchVerifier
}

// DefaultWorkerTickInterval is the spec-mandated worker cadence.
const DefaultWorkerTickInterval = 100 * time.Millisecond

// DefaultConfig returns a Config with the original implementation's
// documented defaults for the numeric knobs and permissive stand-ins for
// the boolean toggles, suitable for tests and as a starting point for a
// caller wiring real spork/consensus data in. NewBatchVerifier is left
// nil; a caller must assign it (along with LockManager's Chain, Mempool,
// Signer, and Relayer fields) before calling ProcessPendingInstantSendLocks.
func DefaultConfig() Config {
	return Config{
		IsInstantSendEnabled:               func() bool { return true },
		IsInstantSendMempoolSigningEnabled: func() bool { return true },
		RejectConflictingBlocks:            func() bool { return true },
		InstantSendConfirmationsRequired:   6,
		InstantSendKeepLock:                24,
		DKGInterval:                        24,
		LLMQTypeInstantSend:                1,
		IsDIP0020Active:                    func() bool { return true },
		DIP0008Height:                      0,
		WorkerTickInterval:                 DefaultWorkerTickInterval,
	}
}
