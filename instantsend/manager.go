package instantsend

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
	"github.com/PastaPastaPasta/dash/instantsend/lockstore"
	"github.com/PastaPastaPasta/dash/instantsend/tracker"
	"github.com/PastaPastaPasta/dash/wire"
)

// LockManager is InstantSend's state machine: it drives voting on a
// transaction's inputs, assembles and signs the islock once all input
// votes are in, verifies and commits peer-delivered locks, and resolves
// the conflicts a committed lock creates against the mempool and the
// chain. It plays the role CInstantSendManager plays in the original,
// generalized the way mempool.TxPool generalizes a single struct's worth
// of maps into named, documented fields plus a Config of collaborators
// (spec §9: "the LockManager owns ... injected collaborator handles").
type LockManager struct {
	cfg Config

	Store   *lockstore.Store
	Tracker *tracker.Tracker

	Chain    ChainSource
	Mempool  MempoolSource
	Signer   Signer
	Relayer  Relayer
	Listener RecoveredSigListener

	mu sync.Mutex

	// inputRequestIds is the set of input-lock request ids this node has
	// asked the signer to vote on, so HandleNewRecoveredSig can recognize
	// an input-lock recovered sig versus an islock recovered sig.
	inputRequestIds map[chainhash.Hash]struct{}

	// creatingInstantSendLocks holds the in-progress lock this node is
	// assembling for an islock request id, between TrySignInstantSendLock
	// and the matching recovered sig arriving.
	creatingInstantSendLocks map[chainhash.Hash]*islock.InProgressLock

	// txToCreatingInstantSendLocks maps a txid to the islock request id of
	// its in-progress lock. TrySignInstantSendLock adds entries; they are
	// removed together with the matching creatingInstantSendLocks entry.
	// Nothing looks an in-progress lock up through it.
	txToCreatingInstantSendLocks map[chainhash.Hash]chainhash.Hash

	// pendingInstantSendLocks holds peer- or self-delivered locks waiting
	// for batch BLS verification, keyed by lock hash.
	pendingInstantSendLocks map[chainhash.Hash]islock.PendingLock
}

// New constructs a LockManager. The returned value is ready to use once
// its Chain/Mempool/Signer/Relayer collaborators are set.
func New(cfg Config, store *lockstore.Store) *LockManager {
	return &LockManager{
		cfg:                          cfg,
		Store:                        store,
		Tracker:                      tracker.New(),
		inputRequestIds:              make(map[chainhash.Hash]struct{}),
		creatingInstantSendLocks:     make(map[chainhash.Hash]*islock.InProgressLock),
		txToCreatingInstantSendLocks: make(map[chainhash.Hash]chainhash.Hash),
		pendingInstantSendLocks:      make(map[chainhash.Hash]islock.PendingLock),
	}
}

// ProcessTx is the entry point for a transaction becoming a candidate for
// locking, whether because it entered the mempool or because it was mined
// and is being locked retroactively. retroactive distinguishes the two:
// a retroactive call signs even when mempool IS-signing is disabled, so
// that a ChainLock can still land on the containing block afterward.
func (lm *LockManager) ProcessTx(tx *islock.Tx, retroactive bool) {
	if !lm.Chain.IsMasternode() || !lm.Chain.IsBlockchainSynced() {
		return
	}
	if lm.cfg.LLMQTypeInstantSend == LLMQTypeNone {
		return
	}

	if !lm.CheckCanLock(tx, true) {
		log.Debugf("ProcessTx: txid=%v: CheckCanLock returned false", tx.Hash)
		return
	}

	if conflict, ok := lm.GetConflictingLock(tx); ok {
		log.Infof("ProcessTx: txid=%v conflicts with islock %v, txid=%v",
			tx.Hash, conflict.Hash(), conflict.Txid)
		return
	}

	if !lm.cfg.IsInstantSendMempoolSigningEnabled() && !retroactive {
		return
	}

	if !lm.TrySignInputLocks(tx, retroactive) {
		return
	}

	// All input locks might already be present if they arrived before
	// this node even saw the transaction; sign the islock immediately in
	// that case instead of waiting for a vote callback that will never
	// come.
	lm.TrySignInstantSendLock(tx)
}

// CheckCanLock reports whether every input of tx is old enough (or itself
// already locked, or chain-locked) to vote on.
func (lm *LockManager) CheckCanLock(tx *islock.Tx, printDebug bool) bool {
	if len(tx.Inputs) == 0 {
		return false
	}
	for _, in := range tx.Inputs {
		if !lm.checkCanLockOutpoint(in, printDebug, tx.Hash) {
			return false
		}
	}
	return true
}

func (lm *LockManager) checkCanLockOutpoint(outpoint islock.Outpoint, printDebug bool, txHash chainhash.Hash) bool {
	if lm.IsLocked(outpoint.Hash) {
		// The parent is already locked, so descendants may be voted on
		// no matter how deep in the mempool or how recently mined.
		return true
	}

	if lm.Mempool.HaveTransaction(outpoint.Hash) {
		if printDebug {
			log.Debugf("checkCanLockOutpoint: txid=%v: parent mempool tx %v is not locked", txHash, outpoint.Hash)
		}
		return false
	}

	parentBlock, ok := lm.Chain.GetTxBlock(outpoint.Hash)
	if !ok {
		if printDebug {
			log.Debugf("checkCanLockOutpoint: txid=%v: failed to find parent tx %v", txHash, outpoint.Hash)
		}
		return false
	}

	txAge := lm.Chain.BestHeight() - parentBlock.Height + 1
	if txAge < lm.cfg.InstantSendConfirmationsRequired && !lm.Chain.IsBlockChainLocked(parentBlock.Height, parentBlock.Hash) {
		if printDebug {
			log.Debugf("checkCanLockOutpoint: txid=%v: outpoint %v too new and not chain-locked, age=%d required=%d",
				txHash, outpoint, txAge, lm.cfg.InstantSendConfirmationsRequired)
		}
		return false
	}
	return true
}

// IsLocked reports whether txHash already has a committed lock.
func (lm *LockManager) IsLocked(txHash chainhash.Hash) bool {
	_, ok := lm.Store.GetLockHashByTxid(txHash)
	return ok
}

// GetInstantSendLockByTxid returns the committed lock for txid, if any,
// the public counterpart to CInstantSendManager::GetInstantSendLockByTxid.
func (lm *LockManager) GetInstantSendLockByTxid(txid chainhash.Hash) (*islock.InstantSendLock, bool) {
	if !lm.cfg.IsInstantSendEnabled() {
		return nil, false
	}
	return lm.Store.GetLockByTxid(txid)
}

// GetInstantSendLockCount returns the number of currently committed locks,
// the way CInstantSendDb::GetInstantSendLockCount walks DB_ISLOCK_BY_HASH.
func (lm *LockManager) GetInstantSendLockCount() int {
	return lm.Store.LockCount()
}

// AlreadyHave reports whether inv's hash is already pending verification or
// already committed/archived, so a peer offering it again can be ignored
// (CInstantSendManager::AlreadyHave).
func (lm *LockManager) AlreadyHave(inv wire.InvVect) bool {
	if !lm.cfg.IsInstantSendEnabled() {
		return true
	}

	lm.mu.Lock()
	_, pending := lm.pendingInstantSendLocks[inv.Hash]
	lm.mu.Unlock()

	return pending || lm.Store.KnownLock(inv.Hash)
}

// GetConflictingLock returns the committed lock that conflicts with tx, if
// any: one that covers a different txid but shares one of tx's inputs.
func (lm *LockManager) GetConflictingLock(tx *islock.Tx) (*islock.InstantSendLock, bool) {
	for _, in := range tx.Inputs {
		if l, ok := lm.Store.GetLockByOutpoint(in); ok && l.Txid != tx.Hash {
			return l, true
		}
	}
	return nil, false
}

// TrySignInputLocks asks the signer to vote on every input of tx, unless
// an input is already conflicting with a different transaction's vote, in
// which case no vote is cast and false is returned.
func (lm *LockManager) TrySignInputLocks(tx *islock.Tx, retroactive bool) bool {
	ids := make([]chainhash.Hash, len(tx.Inputs))
	alreadyVoted := 0

	for i, in := range tx.Inputs {
		id := islock.InputLockRequestID(in)
		ids[i] = id

		if otherTx, ok := lm.Signer.GetVoteForId(lm.cfg.LLMQTypeInstantSend, id); ok {
			if otherTx != tx.Hash {
				log.Warnf("TrySignInputLocks: txid=%v: input %v conflicts with previous vote for tx %v",
					tx.Hash, in, otherTx)
				return false
			}
			alreadyVoted++
		}

		if lm.Signer.IsConflicting(lm.cfg.LLMQTypeInstantSend, id, tx.Hash) {
			log.Warnf("TrySignInputLocks: txid=%v: signer reports conflicting id=%v", tx.Hash, id)
			return false
		}
	}

	if !retroactive && alreadyVoted == len(ids) {
		log.Debugf("TrySignInputLocks: txid=%v: already voted on all inputs", tx.Hash)
		return true
	}

	lm.mu.Lock()
	for _, id := range ids {
		lm.inputRequestIds[id] = struct{}{}
	}
	lm.mu.Unlock()

	for i, in := range tx.Inputs {
		lm.Signer.AsyncSignIfMember(lm.cfg.LLMQTypeInstantSend, ids[i], tx.Hash)
		log.Debugf("TrySignInputLocks: txid=%v: voted on input %v with id %v", tx.Hash, in, ids[i])
	}
	return true
}

// TrySignInstantSendLock assembles and asks the signer to vote on the
// islock itself, once every input vote's recovered signature exists.
func (lm *LockManager) TrySignInstantSendLock(tx *islock.Tx) {
	for _, in := range tx.Inputs {
		id := islock.InputLockRequestID(in)
		if !lm.Signer.HasRecoveredSig(lm.cfg.LLMQTypeInstantSend, id, tx.Hash) {
			return
		}
	}

	log.Debugf("TrySignInstantSendLock: txid=%v: got all input votes, assembling islock", tx.Hash)

	p := &islock.InProgressLock{
		Version: lm.lockVersionForHeight(lm.Chain.BestHeight()),
		Txid:    tx.Hash,
		Inputs:  append([]islock.Outpoint(nil), tx.Inputs...),
	}
	if p.Version == islock.DeterministicLock {
		p.CycleHash = lm.cycleHashAt(lm.Chain.BestHeight())
	}

	id := p.RequestID()
	if lm.Signer.HasRecoveredSig(lm.cfg.LLMQTypeInstantSend, id, tx.Hash) {
		return
	}

	lm.mu.Lock()
	if _, exists := lm.creatingInstantSendLocks[id]; exists {
		lm.mu.Unlock()
		return
	}
	lm.creatingInstantSendLocks[id] = p
	lm.txToCreatingInstantSendLocks[tx.Hash] = id
	lm.mu.Unlock()

	lm.Signer.AsyncSignIfMember(lm.cfg.LLMQTypeInstantSend, id, tx.Hash)
}

// lockVersionForHeight decides legacy vs. deterministic based on the
// DIP-0008 activation height.
func (lm *LockManager) lockVersionForHeight(height int32) islock.LockVersion {
	if height >= lm.cfg.DIP0008Height {
		return islock.DeterministicLock
	}
	return islock.LegacyLock
}

// cycleHashAt returns the block hash of the most recent DKG cycle boundary
// at or before height.
func (lm *LockManager) cycleHashAt(height int32) chainhash.Hash {
	quorumHeight := height - (height % lm.cfg.DKGInterval)
	hash, _ := lm.Chain.GetBlockHash(quorumHeight)
	return hash
}

// HandleNewRecoveredSig dispatches a newly recovered threshold signature
// to either the input-lock or islock continuation, based on which request
// id it answers.
func (lm *LockManager) HandleNewRecoveredSig(sig RecoveredSig) {
	if !lm.cfg.IsInstantSendEnabled() || lm.cfg.LLMQTypeInstantSend == LLMQTypeNone {
		return
	}

	lm.mu.Lock()
	_, isInputLock := lm.inputRequestIds[sig.ID]
	_, isInstantSendLock := lm.creatingInstantSendLocks[sig.ID]
	lm.mu.Unlock()

	switch {
	case isInputLock:
		lm.handleNewInputLockRecoveredSig(sig)
	case isInstantSendLock:
		lm.handleNewInstantSendLockRecoveredSig(sig)
	}
}

func (lm *LockManager) handleNewInputLockRecoveredSig(sig RecoveredSig) {
	tx, ok := lm.Chain.GetTransaction(sig.MsgHash)
	if !ok {
		return
	}
	lm.TrySignInstantSendLock(tx)
}

func (lm *LockManager) handleNewInstantSendLockRecoveredSig(sig RecoveredSig) {
	lm.mu.Lock()
	p, ok := lm.creatingInstantSendLocks[sig.ID]
	if !ok {
		lm.mu.Unlock()
		return
	}
	delete(lm.creatingInstantSendLocks, sig.ID)
	delete(lm.txToCreatingInstantSendLocks, p.Txid)
	lm.mu.Unlock()

	if p.Txid != sig.MsgHash {
		log.Warnf("handleNewInstantSendLockRecoveredSig: txid=%v conflicts with %v, dropping own version",
			p.Txid, sig.MsgHash)
		return
	}

	committed := p.Commit(sig.Sig)
	hash := committed.Hash()

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, pending := lm.pendingInstantSendLocks[hash]; pending || lm.Store.KnownLock(hash) {
		return
	}
	lm.pendingInstantSendLocks[hash] = islock.PendingLock{From: islock.SelfPeerID, Lock: committed}
}

// ProcessMessageInstantSendLock handles a peer-delivered ISLOCK/ISDLOCK
// message: cheap structural validation and queuing for batch verification.
// Misbehavior penalties are applied to from through the Relayer.
func (lm *LockManager) ProcessMessageInstantSendLock(from int64, msg wire.Message) {
	l, err := islock.FromWireMessage(msg)
	if err != nil {
		lm.Relayer.Misbehaving(from, MisbehaviorSevere)
		return
	}
	hash := l.Hash()

	if !preVerifyInstantSendLock(l) {
		lm.Relayer.Misbehaving(from, MisbehaviorSevere)
		return
	}

	if l.IsDeterministic() {
		cycleHeight, ok := lm.Chain.GetBlockHeight(l.CycleHash)
		if !ok {
			lm.Relayer.Misbehaving(from, MisbehaviorMinor)
			return
		}
		if cycleHeight%lm.cfg.DKGInterval != 0 {
			lm.Relayer.Misbehaving(from, MisbehaviorSevere)
			return
		}
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, pending := lm.pendingInstantSendLocks[hash]; pending || lm.Store.KnownLock(hash) {
		return
	}
	log.Debugf("ProcessMessageInstantSendLock: txid=%v, islock=%v: received from peer=%d", l.Txid, hash, from)
	lm.pendingInstantSendLocks[hash] = islock.PendingLock{From: from, Lock: l}
}

// preVerifyInstantSendLock performs the cheap, signature-independent
// structural checks every candidate lock must pass before it is even
// worth queuing for expensive batch BLS verification.
func preVerifyInstantSendLock(l *islock.InstantSendLock) bool {
	var zero chainhash.Hash
	if l.Txid == zero || len(l.Inputs) == 0 {
		return false
	}
	seen := make(map[islock.Outpoint]struct{}, len(l.Inputs))
	for _, in := range l.Inputs {
		if _, dup := seen[in]; dup {
			return false
		}
		seen[in] = struct{}{}
	}
	return true
}
