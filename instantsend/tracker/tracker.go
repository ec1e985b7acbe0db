// Package tracker holds the in-memory bookkeeping of transactions that are
// not yet InstantSend-locked: the dependency graph used to retry a child
// once its parent locks, and the set of transactions queued for a retry
// attempt. It is the Go counterpart of the original manager's
// nonLockedTxs/nonLockedTxsByOutpoints/pendingRetryTxs members, pulled out
// into its own package the way the teacher pulls mempool bookkeeping out of
// the wider node into mempool.TxPool (spec §9: "own package exposing a
// typed API instead of three ad hoc maps").
package tracker

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
)

// Tracker owns the set of non-locked transactions known to the core: every
// mempool transaction not yet locked, and every mined-but-not-yet-locked
// transaction still within the confirmation window. All state is guarded
// by a single mutex; callers must not hold it across a call back into
// ProcessTx or any other collaborator (spec §5).
type Tracker struct {
	mu sync.Mutex

	nonLockedTxs            map[chainhash.Hash]*islock.NonLockedTxInfo
	nonLockedTxsByOutpoints map[islock.Outpoint]chainhash.Hash
	pendingRetryTxs         map[chainhash.Hash]struct{}
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		nonLockedTxs:            make(map[chainhash.Hash]*islock.NonLockedTxInfo),
		nonLockedTxsByOutpoints: make(map[islock.Outpoint]chainhash.Hash),
		pendingRetryTxs:         make(map[chainhash.Hash]struct{}),
	}
}

// AddNonLockedTx records tx as not yet locked, optionally noting the block
// it was just mined in. If an entry already exists (e.g. created earlier
// purely to hold a child relationship), its tx body and mined block are
// filled in without disturbing already-recorded children.
func (t *Tracker) AddNonLockedTx(tx *islock.Tx, minedBlock *islock.BlockRef) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, existed := t.nonLockedTxs[tx.Hash]
	if !existed {
		info = &islock.NonLockedTxInfo{Children: make(map[chainhash.Hash]struct{})}
		t.nonLockedTxs[tx.Hash] = info
	}
	info.MinedBlock = minedBlock

	if info.HasOwnEntry {
		return
	}
	info.HasOwnEntry = true
	info.Tx = tx

	for _, in := range tx.Inputs {
		parent, ok := t.nonLockedTxs[in.Hash]
		if !ok {
			parent = &islock.NonLockedTxInfo{Children: make(map[chainhash.Hash]struct{})}
			t.nonLockedTxs[in.Hash] = parent
		}
		parent.Children[tx.Hash] = struct{}{}
		t.nonLockedTxsByOutpoints[in] = tx.Hash
	}

	log.Debugf("AddNonLockedTx: txid=%v mined=%v", tx.Hash, minedBlock != nil)
}

// RemoveNonLockedTx drops txid from tracking. If retryChildren is true (the
// transaction became locked rather than simply vanishing), every child
// recorded against it is queued in pendingRetryTxs so the next worker tick
// attempts to lock it.
func (t *Tracker) RemoveNonLockedTx(txid chainhash.Hash, retryChildren bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeNonLockedTxLocked(txid, retryChildren)
}

func (t *Tracker) removeNonLockedTxLocked(txid chainhash.Hash, retryChildren bool) {
	info, ok := t.nonLockedTxs[txid]
	if !ok {
		return
	}

	if retryChildren {
		for child := range info.Children {
			t.pendingRetryTxs[child] = struct{}{}
		}
	}

	if info.Tx != nil {
		for _, in := range info.Tx.Inputs {
			if parent, ok := t.nonLockedTxs[in.Hash]; ok {
				delete(parent.Children, txid)
				if !parent.HasOwnEntry && len(parent.Children) == 0 {
					delete(t.nonLockedTxs, in.Hash)
				}
			}
			delete(t.nonLockedTxsByOutpoints, in)
		}
	}

	delete(t.nonLockedTxs, txid)
}

// RemoveConflictedTx drops txid without queuing its children for retry:
// the transaction was evicted outright, not locked, so nothing downstream
// of it can legitimately lock either.
func (t *Tracker) RemoveConflictedTx(txid chainhash.Hash) {
	t.RemoveNonLockedTx(txid, false)
}

// HandleFullyConfirmedBlock drops every tracked transaction whose recorded
// mined block is an ancestor of the now fully-confirmed block, as
// determined by isAncestor, and queues their children for a retry. It
// returns the txids removed, for logging by the caller.
func (t *Tracker) HandleFullyConfirmedBlock(isAncestor func(mined *islock.BlockRef) bool) []chainhash.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()

	var toRemove []chainhash.Hash
	for txid, info := range t.nonLockedTxs {
		if info.MinedBlock != nil && isAncestor(info.MinedBlock) {
			toRemove = append(toRemove, txid)
		}
	}
	for _, txid := range toRemove {
		t.removeNonLockedTxLocked(txid, true)
	}
	return toRemove
}

// DrainPendingRetries pops and clears the set of transactions queued for a
// retry attempt, returning the ones that are still tracked (a queued child
// may have been independently removed since being queued).
func (t *Tracker) DrainPendingRetries() []*islock.Tx {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pendingRetryTxs) == 0 {
		return nil
	}
	retry := t.pendingRetryTxs
	t.pendingRetryTxs = make(map[chainhash.Hash]struct{})

	txs := make([]*islock.Tx, 0, len(retry))
	for txid := range retry {
		info, ok := t.nonLockedTxs[txid]
		if !ok || info.Tx == nil {
			continue
		}
		txs = append(txs, info.Tx)
	}
	return txs
}

// GetNonLockedTxCount reports how many transactions are currently tracked,
// for metrics/logging parity with the original's size() log lines.
func (t *Tracker) GetNonLockedTxCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nonLockedTxs)
}

// GetNonLockedTx returns the tracked transaction body for txid, if known.
func (t *Tracker) GetNonLockedTx(txid chainhash.Hash) (*islock.Tx, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.nonLockedTxs[txid]
	if !ok || info.Tx == nil {
		return nil, false
	}
	return info.Tx, true
}

// GetSpender returns the txid of the tracked non-locked transaction that
// spends outpoint, if any.
func (t *Tracker) GetSpender(op islock.Outpoint) (chainhash.Hash, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	txid, ok := t.nonLockedTxsByOutpoints[op]
	return txid, ok
}

// IsTracked reports whether txid has an entry in the tracker at all
// (mined, pending, or a stub created only to record a child relationship).
func (t *Tracker) IsTracked(txid chainhash.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.nonLockedTxs[txid]
	return ok
}
