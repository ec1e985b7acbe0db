package instantsend

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
)

// RemoveMempoolConflictsForLock evicts every mempool transaction that
// spends an input l claims but does not itself carry l's txid, then asks
// peers to re-offer the correctly locked transaction.
func (lm *LockManager) RemoveMempoolConflictsForLock(hash chainhash.Hash, l *islock.InstantSendLock) {
	toDelete := make(map[chainhash.Hash]struct{})
	for _, in := range l.Inputs {
		spender, ok := lm.Mempool.GetMempoolSpender(in)
		if !ok || spender == l.Txid {
			continue
		}
		toDelete[spender] = struct{}{}
		log.Infof("RemoveMempoolConflictsForLock: txid=%v, islock=%v: mempool tx %v with input %v conflicts",
			l.Txid, hash, spender, in)
	}
	if len(toDelete) == 0 {
		return
	}

	for txid := range toDelete {
		lm.Mempool.RemoveRecursive(txid, "instantsend-conflict")
	}

	lm.mu.Lock()
	for txid := range toDelete {
		lm.Tracker.RemoveConflictedTx(txid)
	}
	lm.mu.Unlock()

	lm.Relayer.AskNodesForLockedTx(l.Txid)
}

// ResolveBlockConflicts finds every mined-but-not-locked transaction that
// conflicts with l's inputs and either prunes l (if the conflicting
// transaction is already in a ChainLocked block — l must lose, since a
// ChainLock cannot be undone) or invalidates the conflicting block and
// reactivates the best chain (l wins).
func (lm *LockManager) ResolveBlockConflicts(hash chainhash.Hash, l *islock.InstantSendLock) {
	conflictsByBlock := lm.collectBlockConflicts(hash, l)
	if len(conflictsByBlock) == 0 {
		return
	}

	for block := range conflictsByBlock {
		if lm.Chain.IsBlockChainLocked(block.Height, block.Hash) {
			log.Infof("ResolveBlockConflicts: txid=%v, islock=%v: a conflicting tx already has a ChainLock, dropping islock",
				l.Txid, hash)
			lm.RemoveConflictingLock(hash, l)
			return
		}
	}

	for block, conflicting := range conflictsByBlock {
		lm.mu.Lock()
		for _, tx := range conflicting {
			lm.Tracker.RemoveConflictedTx(tx.Hash)
		}
		lm.mu.Unlock()

		log.Infof("ResolveBlockConflicts: invalidating block %v", block.Hash)
		if !lm.Chain.InvalidateBlock(block.Hash) {
			log.Criticalf("ResolveBlockConflicts: InvalidateBlock failed for %v; chain state may no longer be safe", block.Hash)
			panic("instantsend: InvalidateBlock failed while resolving a committed lock's conflicts")
		}
	}

	if !lm.Chain.ActivateBestChain() {
		log.Criticalf("ResolveBlockConflicts: ActivateBestChain failed after invalidating conflicting blocks")
		panic("instantsend: ActivateBestChain failed while resolving a committed lock's conflicts")
	}
}

// collectBlockConflicts groups every tracked, mined-but-not-locked
// transaction that spends one of l's inputs by the block it was mined
// into, excluding l's own transaction.
func (lm *LockManager) collectBlockConflicts(hash chainhash.Hash, l *islock.InstantSendLock) map[islock.BlockRef][]*islock.Tx {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	conflicts := make(map[islock.BlockRef][]*islock.Tx)
	for _, in := range l.Inputs {
		conflictTxid, ok := lm.Tracker.GetSpender(in)
		if !ok || conflictTxid == l.Txid {
			continue
		}
		tx, ok := lm.Tracker.GetNonLockedTx(conflictTxid)
		if !ok {
			continue
		}
		// Only a mined transaction is a real conflict worth invalidating
		// a block for; an unmined mempool conflict is already handled by
		// RemoveMempoolConflictsForLock.
		block, minedOK := lm.chainBlockFor(conflictTxid)
		if !minedOK {
			continue
		}
		log.Warnf("ResolveBlockConflicts: txid=%v, islock=%v: mined tx %v with input %v in block %v conflicts",
			l.Txid, hash, conflictTxid, in, block.Hash)
		conflicts[*block] = append(conflicts[*block], tx)
	}
	return conflicts
}

func (lm *LockManager) chainBlockFor(txid chainhash.Hash) (*islock.BlockRef, bool) {
	return lm.Chain.GetTxBlock(txid)
}

// RemoveConflictingLock removes l and the transitive closure of locks
// chained on top of it, archiving them at the current best height. It runs
// when a conflicting transaction already has a ChainLock (a ChainLock
// cannot be sacrificed for an islock) and when l's transaction is evicted
// from the mempool (TransactionRemovedFromMempool).
func (lm *LockManager) RemoveConflictingLock(hash chainhash.Hash, l *islock.InstantSendLock) {
	log.Warnf("RemoveConflictingLock: txid=%v, islock=%v: removing islock and its chained children", l.Txid, hash)

	removed, err := lm.Store.RemoveChained(hash, l.Txid, lm.Chain.BestHeight())
	if err != nil {
		log.Errorf("RemoveConflictingLock: txid=%v, islock=%v: RemoveChained failed: %v", l.Txid, hash, err)
		return
	}
	for _, r := range removed {
		log.Warnf("RemoveConflictingLock: txid=%v, islock=%v: removed chained islock %v", l.Txid, hash, r.Hash())
	}
}

// HandleFullyConfirmedBlock is called once a block reaches either final
// confirmation depth (InstantSendKeepLock blocks deep, when ChainLocks are
// not active past DIP-0008) or a ChainLock directly: every lock mined at
// or before that block no longer needs its supporting recovered
// signatures, since nothing can conflict with it anymore.
func (lm *LockManager) HandleFullyConfirmedBlock(height int32) {
	if !lm.cfg.IsInstantSendEnabled() {
		return
	}

	removed, err := lm.Store.RemoveConfirmedUpTo(height)
	if err != nil {
		log.Errorf("HandleFullyConfirmedBlock: RemoveConfirmedUpTo(%d) failed: %v", height, err)
		return
	}
	for _, l := range removed {
		log.Debugf("HandleFullyConfirmedBlock: txid=%v, islock=%v: fully confirmed, releasing recovered sigs",
			l.Txid, l.Hash())
		lm.truncateRecoveredSigsForInputs(l)
		lm.Signer.TruncateRecoveredSig(lm.cfg.LLMQTypeInstantSend, l.RequestID())
	}

	if err := lm.Store.RemoveArchivedUpTo(height - islock.ArchiveRetentionBlocks); err != nil {
		log.Errorf("HandleFullyConfirmedBlock: RemoveArchivedUpTo failed: %v", err)
	}

	removedTxids := lm.Tracker.HandleFullyConfirmedBlock(func(mined *islock.BlockRef) bool {
		return mined.Height <= height
	})
	if len(removedTxids) > 0 {
		log.Debugf("HandleFullyConfirmedBlock: height=%d: stopped tracking %d now-confirmed txs", height, len(removedTxids))
	}
}
