package instantsend

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
)

// TransactionAddedToMempool is the mempool-acceptance hook: it either
// starts voting on tx (and tracks it as non-locked) or, if tx already has
// a committed lock — an islock can arrive before the transaction it
// covers — stops tracking it and fires the locked-transaction
// notification that could not be sent earlier.
func (lm *LockManager) TransactionAddedToMempool(tx *islock.Tx) {
	if !lm.cfg.IsInstantSendEnabled() || !lm.Chain.IsBlockchainSynced() || len(tx.Inputs) == 0 {
		return
	}

	if l, ok := lm.Store.GetLockByTxid(tx.Hash); ok {
		lm.mu.Lock()
		lm.Tracker.RemoveNonLockedTx(tx.Hash, true)
		lm.mu.Unlock()

		hash := l.Hash()
		lm.Relayer.RelayInstantSendLock(hash, l)
		log.Debugf("TransactionAddedToMempool: notifying earlier-received lock for tx %v", tx.Hash)
		lm.Relayer.NotifyTransactionLock(tx, l)
		return
	}

	lm.ProcessTx(tx, false)
	lm.mu.Lock()
	lm.Tracker.AddNonLockedTx(tx, nil)
	lm.mu.Unlock()
}

// TransactionRemovedFromMempool is the mempool-eviction hook: if the
// evicted transaction already had a committed lock (e.g. it conflicted
// with something that reorganized in), that lock and everything chained
// on top of it must go too, since nothing backs it anymore.
func (lm *LockManager) TransactionRemovedFromMempool(tx *islock.Tx) {
	if len(tx.Inputs) == 0 {
		return
	}
	l, ok := lm.Store.GetLockByTxid(tx.Hash)
	if !ok {
		return
	}
	log.Debugf("TransactionRemovedFromMempool: tx %v was evicted, dropping its lock", tx.Hash)
	lm.RemoveConflictingLock(l.Hash(), l)
}

// BlockConnected is the chain-tip-extension hook: every conflicting
// transaction displaced by the new block stops being tracked, and every
// block transaction not already locked (and not already covered by a
// ChainLock) is voted on retroactively and tracked as mined-but-unlocked.
func (lm *LockManager) BlockConnected(block *islock.BlockRef, txs []*islock.Tx, conflicted []*islock.Tx) {
	if !lm.cfg.IsInstantSendEnabled() {
		return
	}

	if len(conflicted) > 0 {
		lm.mu.Lock()
		for _, tx := range conflicted {
			lm.Tracker.RemoveConflictedTx(tx.Hash)
		}
		lm.mu.Unlock()
	}

	if !lm.Chain.IsBlockchainSynced() {
		return
	}

	for _, tx := range txs {
		if len(tx.Inputs) == 0 {
			// Coinbase and other no-input transactions can't be locked.
			continue
		}
		if lm.IsLocked(tx.Hash) || lm.Chain.IsBlockChainLocked(block.Height, block.Hash) {
			lm.mu.Lock()
			lm.Tracker.RemoveNonLockedTx(tx.Hash, true)
			lm.mu.Unlock()
			continue
		}
		lm.ProcessTx(tx, true)
		lm.mu.Lock()
		lm.Tracker.AddNonLockedTx(tx, block)
		lm.mu.Unlock()
	}
}

// BlockDisconnected is the chain-tip-reorg hook: locks mined into the
// disconnected block are no longer mined, though they remain committed
// and valid.
func (lm *LockManager) BlockDisconnected(block *islock.BlockRef, txs []*islock.Tx) {
	for _, tx := range txs {
		if l, ok := lm.Store.GetLockByTxid(tx.Hash); ok {
			if err := lm.Store.RemoveMined(l.Hash(), block.Height); err != nil {
				log.Errorf("BlockDisconnected: RemoveMined failed for %v: %v", l.Hash(), err)
			}
		}
	}
}

// NotifyChainLock is the ChainLock hook: a ChainLock finalizes every
// transaction up to and including the locked block, the same as reaching
// InstantSendKeepLock confirmations does in the absence of one.
func (lm *LockManager) NotifyChainLock(block *islock.BlockRef) {
	lm.HandleFullyConfirmedBlock(block.Height)
}

// UpdatedBlockTip is the new-best-block hook: it runs the one-time
// DIP-0020 LockStore migration once it activates, then finalizes the
// block InstantSendKeepLock confirmations back — unless ChainLocks are
// active past DIP-0008, in which case ChainLocks alone drive finalization
// via NotifyChainLock.
func (lm *LockManager) UpdatedBlockTip(newTip *islock.BlockRef, parentHeight int32, chainLocksActive bool, knownToChain func(chainhash.Hash) bool) {
	if lm.cfg.IsDIP0020Active() {
		if err := lm.Store.Upgrade(knownToChain); err != nil {
			log.Errorf("UpdatedBlockTip: LockStore.Upgrade failed: %v", err)
		}
	}

	dip0008Active := parentHeight >= lm.cfg.DIP0008Height
	if chainLocksActive && dip0008Active {
		return
	}

	lm.HandleFullyConfirmedBlock(newTip.Height - lm.cfg.InstantSendKeepLock)
}
