package instantsend

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
	"github.com/PastaPastaPasta/dash/wire"
)

// TestTransactionAddedToMempoolNotifiesEarlierLock verifies that when a
// lock for tx already arrived before tx itself, TransactionAddedToMempool
// stops tracking it as non-locked and delivers the notification that
// could not be sent earlier instead of re-voting on it.
func TestTransactionAddedToMempoolNotifiesEarlierLock(t *testing.T) {
	lm, chainSrc, _, _, relayer := newTestManager(t)
	chainSrc.On("IsBlockchainSynced").Return(true)

	in := mkOutpoint(1, 0)
	tx := &islock.Tx{Hash: mkTxid(5), Inputs: []islock.Outpoint{in}}
	l := &islock.InstantSendLock{Txid: tx.Hash, Inputs: tx.Inputs, Signature: wire.Signature{1}}
	require.NoError(t, lm.Store.WriteNew(l.Hash(), l))

	lm.mu.Lock()
	lm.Tracker.AddNonLockedTx(tx, nil)
	lm.mu.Unlock()

	relayer.On("RelayInstantSendLock", l.Hash(), mock.Anything).Return()
	relayer.On("NotifyTransactionLock", tx, mock.Anything).Return()

	lm.TransactionAddedToMempool(tx)

	relayer.AssertCalled(t, "NotifyTransactionLock", tx, mock.Anything)
	require.False(t, lm.Tracker.IsTracked(tx.Hash))
}

// TestTransactionAddedToMempoolTracksWhenNoLockExists verifies an ordinary
// not-yet-locked transaction is tracked rather than notified.
func TestTransactionAddedToMempoolTracksWhenNoLockExists(t *testing.T) {
	lm, chainSrc, _, _, _ := newTestManager(t)
	chainSrc.On("IsBlockchainSynced").Return(true)
	chainSrc.On("IsMasternode").Return(false)

	in := mkOutpoint(1, 0)
	tx := &islock.Tx{Hash: mkTxid(5), Inputs: []islock.Outpoint{in}}

	lm.TransactionAddedToMempool(tx)

	require.True(t, lm.Tracker.IsTracked(tx.Hash))
}

// TestTransactionRemovedFromMempoolDropsLock verifies an evicted
// transaction that had a committed lock takes that lock down with it.
func TestTransactionRemovedFromMempoolDropsLock(t *testing.T) {
	lm, chainSrc, _, _, _ := newTestManager(t)

	in := mkOutpoint(1, 0)
	tx := &islock.Tx{Hash: mkTxid(5), Inputs: []islock.Outpoint{in}}
	l := &islock.InstantSendLock{Txid: tx.Hash, Inputs: tx.Inputs, Signature: wire.Signature{1}}
	hash := l.Hash()
	require.NoError(t, lm.Store.WriteNew(hash, l))

	chainSrc.On("BestHeight").Return(10)

	lm.TransactionRemovedFromMempool(tx)

	require.True(t, lm.Store.KnownLock(hash)) // archived, not forgotten
	_, ok := lm.Store.GetLockByHash(hash)
	require.False(t, ok)
}

// TestBlockConnectedVotesOnUnlockedTxsAndUntracksConflicted verifies
// BlockConnected's two effects together: conflicted transactions stop
// being tracked outright, and a mined transaction not yet locked (and not
// covered by a ChainLock) is voted on retroactively and tracked as mined.
func TestBlockConnectedVotesOnUnlockedTxsAndUntracksConflicted(t *testing.T) {
	lm, chainSrc, mempoolSrc, signer, _ := newTestManager(t)

	conflicted := &islock.Tx{Hash: mkTxid(1), Inputs: []islock.Outpoint{mkOutpoint(9, 0)}}
	lm.mu.Lock()
	lm.Tracker.AddNonLockedTx(conflicted, nil)
	lm.mu.Unlock()

	block := &islock.BlockRef{Hash: mkTxid(20), Height: 50}
	in := mkOutpoint(2, 0)
	mined := &islock.Tx{Hash: mkTxid(3), Inputs: []islock.Outpoint{in}}

	chainSrc.On("IsBlockchainSynced").Return(true)
	chainSrc.On("IsBlockChainLocked", block.Height, block.Hash).Return(false)
	chainSrc.On("IsMasternode").Return(true)
	chainSrc.On("BestHeight").Return(int(block.Height))
	mempoolSrc.On("HaveTransaction", in.Hash).Return(false)
	chainSrc.On("GetTxBlock", in.Hash).Return(block, true)
	signer.On("GetVoteForId", mock.Anything, mock.Anything).Return(chainhash.Hash{}, false)
	signer.On("IsConflicting", mock.Anything, mock.Anything, mock.Anything).Return(false)
	signer.On("AsyncSignIfMember", mock.Anything, mock.Anything, mock.Anything).Return()

	lm.BlockConnected(block, []*islock.Tx{mined}, []*islock.Tx{conflicted})

	require.False(t, lm.Tracker.IsTracked(conflicted.Hash))
	require.True(t, lm.Tracker.IsTracked(mined.Hash))
}

// TestBlockDisconnectedUnminesLockWithoutRemovingIt verifies a
// disconnected block's locks stay committed, only losing their mined
// height.
func TestBlockDisconnectedUnminesLockWithoutRemovingIt(t *testing.T) {
	lm, _, _, _, _ := newTestManager(t)

	in := mkOutpoint(1, 0)
	tx := &islock.Tx{Hash: mkTxid(5), Inputs: []islock.Outpoint{in}}
	l := &islock.InstantSendLock{Txid: tx.Hash, Inputs: tx.Inputs, Signature: wire.Signature{1}}
	hash := l.Hash()
	require.NoError(t, lm.Store.WriteNew(hash, l))
	require.NoError(t, lm.Store.WriteMined(hash, 100))

	block := &islock.BlockRef{Hash: mkTxid(20), Height: 100}
	lm.BlockDisconnected(block, []*islock.Tx{tx})

	require.True(t, lm.Store.KnownLock(hash))
	_, ok := lm.Store.GetLockByHash(hash)
	require.True(t, ok)
}

// TestUpdatedBlockTipSkipsFinalizationWhenChainLocksActivePastDIP0008
// verifies that once ChainLocks are active past DIP-0008, UpdatedBlockTip
// defers finalization to NotifyChainLock instead of finalizing on depth.
func TestUpdatedBlockTipSkipsFinalizationWhenChainLocksActivePastDIP0008(t *testing.T) {
	lm, _, _, _, _ := newTestManager(t)
	lm.cfg.IsDIP0020Active = func() bool { return false }
	lm.cfg.DIP0008Height = 10

	newTip := &islock.BlockRef{Hash: mkTxid(1), Height: 200}
	lm.UpdatedBlockTip(newTip, 20, true, func(chainhash.Hash) bool { return true })

	// No panic/errors and nothing archived: the store has no locks to
	// finalize, and IsDIP0020Active is false so Upgrade never even runs.
	require.Equal(t, int32(0), lm.Store.BestConfirmedHeight())
}
