package instantsend

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
	"github.com/PastaPastaPasta/dash/instantsend/lockstore"
	"github.com/PastaPastaPasta/dash/wire"
)

func newTestManager(t *testing.T) (*LockManager, *MockChainSource, *MockMempoolSource, *MockSigner, *MockRelayer) {
	t.Helper()
	store, err := lockstore.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	lm := New(DefaultConfig(), store)
	chainSrc := &MockChainSource{}
	mempoolSrc := &MockMempoolSource{}
	signer := &MockSigner{}
	relayer := &MockRelayer{}
	lm.Chain = chainSrc
	lm.Mempool = mempoolSrc
	lm.Signer = signer
	lm.Relayer = relayer
	return lm, chainSrc, mempoolSrc, signer, relayer
}

func mkOutpoint(b byte, index uint32) islock.Outpoint {
	var h chainhash.Hash
	h[0] = b
	return islock.Outpoint{Hash: h, Index: index}
}

func mkTxid(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

// TestProcessTxSkipsWhenNotMasternodeOrUnsynced verifies ProcessTx's first
// gate: it must not vote unless this node is both a masternode and synced.
func TestProcessTxSkipsWhenNotMasternodeOrUnsynced(t *testing.T) {
	lm, chainSrc, _, signer, _ := newTestManager(t)
	chainSrc.On("IsMasternode").Return(false)

	tx := &islock.Tx{Hash: mkTxid(1), Inputs: []islock.Outpoint{mkOutpoint(2, 0)}}
	lm.ProcessTx(tx, false)

	signer.AssertNotCalled(t, "AsyncSignIfMember", mock.Anything, mock.Anything, mock.Anything)
}

// TestProcessTxVotesOnEveryInputWhenEligible exercises the full
// CheckCanLock → TrySignInputLocks happy path: every input is old enough
// and unvoted, so the signer is asked to vote on each of them.
func TestProcessTxVotesOnEveryInputWhenEligible(t *testing.T) {
	lm, chainSrc, mempoolSrc, signer, _ := newTestManager(t)

	in0 := mkOutpoint(10, 0)
	in1 := mkOutpoint(11, 0)
	tx := &islock.Tx{Hash: mkTxid(1), Inputs: []islock.Outpoint{in0, in1}}

	chainSrc.On("IsMasternode").Return(true)
	chainSrc.On("IsBlockchainSynced").Return(true)
	chainSrc.On("BestHeight").Return(10)
	mempoolSrc.On("HaveTransaction", in0.Hash).Return(false)
	mempoolSrc.On("HaveTransaction", in1.Hash).Return(false)
	chainSrc.On("GetTxBlock", in0.Hash).Return(&islock.BlockRef{Hash: mkTxid(99), Height: 1}, true)
	chainSrc.On("GetTxBlock", in1.Hash).Return(&islock.BlockRef{Hash: mkTxid(98), Height: 1}, true)
	chainSrc.On("IsBlockChainLocked", mock.Anything, mock.Anything).Return(false)

	id0 := islock.InputLockRequestID(in0)
	id1 := islock.InputLockRequestID(in1)
	signer.On("GetVoteForId", lm.cfg.LLMQTypeInstantSend, id0).Return(chainhash.Hash{}, false)
	signer.On("GetVoteForId", lm.cfg.LLMQTypeInstantSend, id1).Return(chainhash.Hash{}, false)
	signer.On("IsConflicting", lm.cfg.LLMQTypeInstantSend, id0, tx.Hash).Return(false)
	signer.On("IsConflicting", lm.cfg.LLMQTypeInstantSend, id1, tx.Hash).Return(false)
	signer.On("AsyncSignIfMember", lm.cfg.LLMQTypeInstantSend, id0, tx.Hash).Return()
	signer.On("AsyncSignIfMember", lm.cfg.LLMQTypeInstantSend, id1, tx.Hash).Return()
	signer.On("HasRecoveredSig", lm.cfg.LLMQTypeInstantSend, id0, tx.Hash).Return(false)

	lm.ProcessTx(tx, false)

	signer.AssertCalled(t, "AsyncSignIfMember", lm.cfg.LLMQTypeInstantSend, id0, tx.Hash)
	signer.AssertCalled(t, "AsyncSignIfMember", lm.cfg.LLMQTypeInstantSend, id1, tx.Hash)
}

// TestCheckCanLockOutpointTooYoung verifies an unconfirmed-enough, non
// chain-locked parent blocks voting.
func TestCheckCanLockOutpointTooYoung(t *testing.T) {
	lm, chainSrc, mempoolSrc, _, _ := newTestManager(t)
	in := mkOutpoint(5, 0)

	mempoolSrc.On("HaveTransaction", in.Hash).Return(false)
	chainSrc.On("GetTxBlock", in.Hash).Return(&islock.BlockRef{Hash: mkTxid(1), Height: 100}, true)
	chainSrc.On("BestHeight").Return(101)
	chainSrc.On("IsBlockChainLocked", int32(100), mkTxid(1)).Return(false)

	ok := lm.checkCanLockOutpoint(in, false, mkTxid(2))
	require.False(t, ok)
}

// TestCheckCanLockOutpointChainLockedBypassesDepth verifies a ChainLocked
// parent may be voted on regardless of confirmation depth.
func TestCheckCanLockOutpointChainLockedBypassesDepth(t *testing.T) {
	lm, chainSrc, mempoolSrc, _, _ := newTestManager(t)
	in := mkOutpoint(5, 0)

	mempoolSrc.On("HaveTransaction", in.Hash).Return(false)
	chainSrc.On("GetTxBlock", in.Hash).Return(&islock.BlockRef{Hash: mkTxid(1), Height: 100}, true)
	chainSrc.On("BestHeight").Return(101)
	chainSrc.On("IsBlockChainLocked", int32(100), mkTxid(1)).Return(true)

	ok := lm.checkCanLockOutpoint(in, false, mkTxid(2))
	require.True(t, ok)
}

// TestGetConflictingLockDetectsSharedInput verifies that a transaction
// sharing an input with an already-committed lock is flagged as
// conflicting, even under a different txid.
func TestGetConflictingLockDetectsSharedInput(t *testing.T) {
	lm, _, _, _, _ := newTestManager(t)

	in := mkOutpoint(7, 0)
	committed := &islock.InstantSendLock{
		Txid:      mkTxid(1),
		Inputs:    []islock.Outpoint{in},
		Signature: wire.Signature{1},
	}
	require.NoError(t, lm.Store.WriteNew(committed.Hash(), committed))

	other := &islock.Tx{Hash: mkTxid(2), Inputs: []islock.Outpoint{in}}
	conflict, ok := lm.GetConflictingLock(other)
	require.True(t, ok)
	require.Equal(t, committed.Txid, conflict.Txid)

	same := &islock.Tx{Hash: mkTxid(1), Inputs: []islock.Outpoint{in}}
	_, ok = lm.GetConflictingLock(same)
	require.False(t, ok)
}

// TestTrySignInstantSendLockWaitsForAllInputVotes verifies the islock is
// not assembled until every input's recovered signature exists.
func TestTrySignInstantSendLockWaitsForAllInputVotes(t *testing.T) {
	lm, chainSrc, _, signer, _ := newTestManager(t)

	in0 := mkOutpoint(1, 0)
	in1 := mkOutpoint(2, 0)
	tx := &islock.Tx{Hash: mkTxid(9), Inputs: []islock.Outpoint{in0, in1}}

	id0 := islock.InputLockRequestID(in0)
	id1 := islock.InputLockRequestID(in1)
	signer.On("HasRecoveredSig", lm.cfg.LLMQTypeInstantSend, id0, tx.Hash).Return(true)
	signer.On("HasRecoveredSig", lm.cfg.LLMQTypeInstantSend, id1, tx.Hash).Return(false)

	lm.TrySignInstantSendLock(tx)

	chainSrc.AssertNotCalled(t, "BestHeight")
}

// TestTrySignInstantSendLockAssemblesOnceComplete verifies the islock is
// assembled and voted on once every input vote exists.
func TestTrySignInstantSendLockAssemblesOnceComplete(t *testing.T) {
	lm, chainSrc, _, signer, _ := newTestManager(t)

	in0 := mkOutpoint(1, 0)
	tx := &islock.Tx{Hash: mkTxid(9), Inputs: []islock.Outpoint{in0}}

	id0 := islock.InputLockRequestID(in0)
	signer.On("HasRecoveredSig", lm.cfg.LLMQTypeInstantSend, id0, tx.Hash).Return(true)
	lm.cfg.DIP0008Height = 100
	chainSrc.On("BestHeight").Return(0)

	reqID := (&islock.InProgressLock{Txid: tx.Hash, Inputs: tx.Inputs}).RequestID()
	signer.On("HasRecoveredSig", lm.cfg.LLMQTypeInstantSend, reqID, tx.Hash).Return(false)
	signer.On("AsyncSignIfMember", lm.cfg.LLMQTypeInstantSend, reqID, tx.Hash).Return()

	lm.TrySignInstantSendLock(tx)

	signer.AssertCalled(t, "AsyncSignIfMember", lm.cfg.LLMQTypeInstantSend, reqID, tx.Hash)
	lm.mu.Lock()
	_, exists := lm.creatingInstantSendLocks[reqID]
	lm.mu.Unlock()
	require.True(t, exists)
}

// TestHandleNewInstantSendLockRecoveredSigQueuesPending verifies a
// completed islock signature moves the in-progress lock into the pending
// verification queue under SelfPeerID.
func TestHandleNewInstantSendLockRecoveredSigQueuesPending(t *testing.T) {
	lm, _, _, _, _ := newTestManager(t)

	tx := &islock.Tx{Hash: mkTxid(3), Inputs: []islock.Outpoint{mkOutpoint(1, 0)}}
	p := &islock.InProgressLock{Txid: tx.Hash, Inputs: tx.Inputs}
	id := p.RequestID()

	lm.mu.Lock()
	lm.creatingInstantSendLocks[id] = p
	lm.txToCreatingInstantSendLocks[tx.Hash] = id
	lm.mu.Unlock()

	sig := RecoveredSig{ID: id, MsgHash: tx.Hash, Sig: wire.Signature{7}}
	lm.handleNewInstantSendLockRecoveredSig(sig)

	lm.mu.Lock()
	pending, ok := lm.pendingInstantSendLocks[p.Commit(sig.Sig).Hash()]
	lm.mu.Unlock()
	require.True(t, ok)
	require.Equal(t, islock.SelfPeerID, pending.From)
	require.Equal(t, tx.Hash, pending.Lock.Txid)
}

// TestProcessMessageInstantSendLockRejectsStructurallyInvalid verifies a
// message with duplicated inputs is misbehavior-penalized and never
// queued.
func TestProcessMessageInstantSendLockRejectsStructurallyInvalid(t *testing.T) {
	lm, _, _, _, relayer := newTestManager(t)
	relayer.On("Misbehaving", int64(42), MisbehaviorSevere).Return()

	in := mkOutpoint(1, 0)
	msg := wire.NewMsgISLock(mkTxid(1), []islock.Outpoint{in, in}, wire.Signature{1})
	lm.ProcessMessageInstantSendLock(42, msg)

	relayer.AssertCalled(t, "Misbehaving", int64(42), MisbehaviorSevere)
	require.Empty(t, lm.pendingInstantSendLocks)
}

// TestProcessMessageInstantSendLockQueuesValid verifies a structurally
// valid message is queued for batch verification exactly once even if
// delivered twice.
func TestProcessMessageInstantSendLockQueuesValid(t *testing.T) {
	lm, _, _, _, _ := newTestManager(t)

	in := mkOutpoint(1, 0)
	msg := wire.NewMsgISLock(mkTxid(1), []islock.Outpoint{in}, wire.Signature{1})
	lm.ProcessMessageInstantSendLock(7, msg)
	lm.ProcessMessageInstantSendLock(7, msg)

	require.Len(t, lm.pendingInstantSendLocks, 1)
}

// TestProcessInstantSendLockCommitsAndRelays exercises the commit path: a
// verified lock is written to the store, removed from the tracker, and
// relayed, and resolves cleanly with no conflicts.
func TestProcessInstantSendLockCommitsAndRelays(t *testing.T) {
	lm, chainSrc, mempoolSrc, signer, relayer := newTestManager(t)

	in := mkOutpoint(1, 0)
	l := &islock.InstantSendLock{Txid: mkTxid(5), Inputs: []islock.Outpoint{in}, Signature: wire.Signature{9}}
	hash := l.Hash()

	chainSrc.On("GetTransaction", l.Txid).Return((*islock.Tx)(nil), false)
	relayer.On("RelayInstantSendLock", hash, l).Return()
	mempoolSrc.On("GetMempoolSpender", in).Return(chainhash.Hash{}, false)
	signer.On("TruncateRecoveredSig", mock.Anything, mock.Anything).Return()

	lm.ProcessInstantSendLock(islock.SelfPeerID, hash, l)

	require.True(t, lm.Store.KnownLock(hash))
	relayer.AssertCalled(t, "RelayInstantSendLock", hash, l)
	lm.mu.Lock()
	_, tracked := lm.Tracker.GetNonLockedTx(l.Txid)
	lm.mu.Unlock()
	require.False(t, tracked)
}

// TestProcessInstantSendLockSkipsAlreadyKnown verifies a duplicate lock
// hash is a no-op past the KnownLock check.
func TestProcessInstantSendLockSkipsAlreadyKnown(t *testing.T) {
	lm, _, _, _, relayer := newTestManager(t)

	l := &islock.InstantSendLock{Txid: mkTxid(5), Inputs: []islock.Outpoint{mkOutpoint(1, 0)}, Signature: wire.Signature{9}}
	hash := l.Hash()
	require.NoError(t, lm.Store.WriteNew(hash, l))

	lm.ProcessInstantSendLock(islock.SelfPeerID, hash, l)

	relayer.AssertNotCalled(t, "RelayInstantSendLock", mock.Anything, mock.Anything)
}

// TestGetInstantSendLockByTxidReturnsCommitted verifies the LockManager
// wrapper reaches into the store for a committed lock, and reports nothing
// for an unknown txid.
func TestGetInstantSendLockByTxidReturnsCommitted(t *testing.T) {
	lm, _, _, _, _ := newTestManager(t)

	l := &islock.InstantSendLock{Txid: mkTxid(5), Inputs: []islock.Outpoint{mkOutpoint(1, 0)}, Signature: wire.Signature{9}}
	require.NoError(t, lm.Store.WriteNew(l.Hash(), l))

	got, ok := lm.GetInstantSendLockByTxid(l.Txid)
	require.True(t, ok)
	require.Equal(t, l.Txid, got.Txid)

	_, ok = lm.GetInstantSendLockByTxid(mkTxid(6))
	require.False(t, ok)
}

// TestGetInstantSendLockByTxidDisabled verifies a disabled InstantSend
// config hides even a committed lock, matching CInstantSendManager's gate.
func TestGetInstantSendLockByTxidDisabled(t *testing.T) {
	lm, _, _, _, _ := newTestManager(t)
	lm.cfg.IsInstantSendEnabled = func() bool { return false }

	l := &islock.InstantSendLock{Txid: mkTxid(5), Inputs: []islock.Outpoint{mkOutpoint(1, 0)}, Signature: wire.Signature{9}}
	require.NoError(t, lm.Store.WriteNew(l.Hash(), l))

	_, ok := lm.GetInstantSendLockByTxid(l.Txid)
	require.False(t, ok)
}

// TestGetInstantSendLockCountReflectsCommitted verifies the count tracks
// the store's committed-lock index rather than the pending queue.
func TestGetInstantSendLockCountReflectsCommitted(t *testing.T) {
	lm, _, _, _, _ := newTestManager(t)
	require.Equal(t, 0, lm.GetInstantSendLockCount())

	l0 := &islock.InstantSendLock{Txid: mkTxid(1), Inputs: []islock.Outpoint{mkOutpoint(1, 0)}, Signature: wire.Signature{1}}
	l1 := &islock.InstantSendLock{Txid: mkTxid(2), Inputs: []islock.Outpoint{mkOutpoint(2, 0)}, Signature: wire.Signature{2}}
	require.NoError(t, lm.Store.WriteNew(l0.Hash(), l0))
	require.NoError(t, lm.Store.WriteNew(l1.Hash(), l1))

	require.Equal(t, 2, lm.GetInstantSendLockCount())
}

// TestAlreadyHaveChecksPendingAndCommitted verifies AlreadyHave recognizes
// both a lock still awaiting verification and one already committed, and
// reports false for a hash this node has never seen.
func TestAlreadyHaveChecksPendingAndCommitted(t *testing.T) {
	lm, _, _, _, _ := newTestManager(t)

	committed := &islock.InstantSendLock{Txid: mkTxid(1), Inputs: []islock.Outpoint{mkOutpoint(1, 0)}, Signature: wire.Signature{1}}
	require.NoError(t, lm.Store.WriteNew(committed.Hash(), committed))

	pending := &islock.InstantSendLock{Txid: mkTxid(2), Inputs: []islock.Outpoint{mkOutpoint(2, 0)}, Signature: wire.Signature{2}}
	pendingHash := pending.Hash()
	lm.mu.Lock()
	lm.pendingInstantSendLocks[pendingHash] = islock.PendingLock{From: 1, Lock: pending}
	lm.mu.Unlock()

	require.True(t, lm.AlreadyHave(wire.NewInvVect(wire.InvTypeInstantSendLock, committed.Hash())))
	require.True(t, lm.AlreadyHave(wire.NewInvVect(wire.InvTypeInstantSendLock, pendingHash)))
	require.False(t, lm.AlreadyHave(wire.NewInvVect(wire.InvTypeInstantSendLock, mkTxid(9))))
}

// TestAlreadyHaveDisabled verifies AlreadyHave reports true for anything
// while InstantSend is disabled, so the inventory layer never re-requests
// islocks this node has no intention of processing.
func TestAlreadyHaveDisabled(t *testing.T) {
	lm, _, _, _, _ := newTestManager(t)
	lm.cfg.IsInstantSendEnabled = func() bool { return false }

	require.True(t, lm.AlreadyHave(wire.NewInvVect(wire.InvTypeInstantSendLock, mkTxid(1))))
}
