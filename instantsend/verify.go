package instantsend

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
	"github.com/PastaPastaPasta/dash/wire"
)

// buildSignHash reproduces CLLMQUtils::BuildSignHash: the double-SHA256 of
// the quorum/request identity the threshold signature is checked against.
func buildSignHash(llmqType LLMQType, quorumHash, id, msgHash chainhash.Hash) chainhash.Hash {
	var buf bytes.Buffer
	buf.WriteByte(byte(llmqType))
	buf.Write(quorumHash[:])
	buf.Write(id[:])
	buf.Write(msgHash[:])
	return chainhash.DoubleHashH(buf.Bytes())
}

// ProcessPendingInstantSendLocks drains up to MaxPendingLocksPerBatch
// queued locks and batch-verifies them, first against the currently active
// quorum set and, for whatever fails that pass, again against the
// previous set with peer banning enabled. A true return means more
// pending locks remain than fit in one batch, so the worker should call
// again immediately rather than wait for the next tick.
func (lm *LockManager) ProcessPendingInstantSendLocks() bool {
	if !lm.cfg.IsInstantSendEnabled() {
		return false
	}

	pend, moreWork := lm.drainPending(islock.MaxPendingLocksPerBatch)
	if len(pend) == 0 {
		return false
	}

	badHashes := lm.verifyPendingPass(0, pend, false)
	if len(badHashes) > 0 {
		log.Debugf("ProcessPendingInstantSendLocks: re-verifying %d locks against the previous active set", len(badHashes))
		retry := make(map[chainhash.Hash]islock.PendingLock, len(badHashes))
		for hash := range badHashes {
			retry[hash] = pend[hash]
		}
		lm.verifyPendingPass(lm.cfg.DKGInterval, retry, true)
	}

	return moreWork
}

// drainPending pops up to maxCount entries from pendingInstantSendLocks,
// reporting whether more than maxCount remained.
func (lm *LockManager) drainPending(maxCount int) (map[chainhash.Hash]islock.PendingLock, bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if len(lm.pendingInstantSendLocks) <= maxCount {
		pend := lm.pendingInstantSendLocks
		lm.pendingInstantSendLocks = make(map[chainhash.Hash]islock.PendingLock)
		return pend, false
	}

	pend := make(map[chainhash.Hash]islock.PendingLock, maxCount)
	for hash, p := range lm.pendingInstantSendLocks {
		if len(pend) >= maxCount {
			break
		}
		pend[hash] = p
		delete(lm.pendingInstantSendLocks, hash)
	}
	return pend, true
}

// verifyPendingPass runs one batch-verification pass over pend at
// signOffset and, on success, commits each verified lock. It returns the
// set of lock hashes whose signature failed to verify in this pass, for
// the caller's quorum-rotation retry.
func (lm *LockManager) verifyPendingPass(signOffset int32, pend map[chainhash.Hash]islock.PendingLock, ban bool) map[chainhash.Hash]struct{} {
	llmqType := lm.cfg.LLMQTypeInstantSend
	verifier := lm.cfg.NewBatchVerifier()

	type reconstructed struct {
		quorum *Quorum
		sig    RecoveredSig
	}
	recSigs := make(map[chainhash.Hash]reconstructed)
	badSources := make(map[int64]struct{})

	for hash, p := range pend {
		if _, bad := badSources[p.From]; bad {
			continue
		}
		if p.Lock.Signature.IsZero() {
			badSources[p.From] = struct{}{}
			continue
		}

		id := p.Lock.RequestID()
		if lm.Signer.HasRecoveredSig(llmqType, id, p.Lock.Txid) {
			continue
		}

		signHeight := int32(-1)
		if p.Lock.IsDeterministic() {
			cycleHeight, ok := lm.Chain.GetBlockHeight(p.Lock.CycleHash)
			if !ok {
				badSources[p.From] = struct{}{}
				continue
			}
			if cycleHeight+lm.cfg.DKGInterval < lm.Chain.BestHeight() {
				signHeight = cycleHeight + lm.cfg.DKGInterval - 1
			}
		}

		quorum, ok := lm.Signer.SelectQuorumForSigning(llmqType, id, signHeight, signOffset)
		if !ok {
			// Matches the original behavior: if quorum selection fails
			// for one candidate it will fail for all of them at this
			// offset, so there is nothing more this pass can do.
			return nil
		}

		signHash := buildSignHash(llmqType, quorum.Hash, id, p.Lock.Txid)
		verifier.Add(hash, signHash, p.Lock.Signature, quorum.PublicKey)

		if !lm.Signer.HasRecoveredSig(llmqType, id, p.Lock.Txid) {
			recSigs[hash] = reconstructed{
				quorum: quorum,
				sig: RecoveredSig{
					LLMQType: llmqType,
					ID:       id,
					MsgHash:  p.Lock.Txid,
					Sig:      p.Lock.Signature,
				},
			}
		}
	}

	results := verifier.Execute()

	if ban {
		banned := make(map[int64]struct{}, len(badSources))
		for peer := range badSources {
			banned[peer] = struct{}{}
		}
		for hash, ok := range results {
			if p, queued := pend[hash]; queued && !ok {
				banned[p.From] = struct{}{}
			}
		}
		for peer := range banned {
			lm.Relayer.Misbehaving(peer, MisbehaviorMinor)
		}
	}

	bad := make(map[chainhash.Hash]struct{})
	for hash, p := range pend {
		if _, wasBadSource := badSources[p.From]; wasBadSource {
			continue
		}
		if ok, checked := results[hash]; checked && !ok {
			log.Warnf("verifyPendingPass: txid=%v, islock=%v: invalid signature, peer=%d", p.Lock.Txid, hash, p.From)
			bad[hash] = struct{}{}
			continue
		}

		lm.ProcessInstantSendLock(p.From, hash, p.Lock)

		if r, ok := recSigs[hash]; ok && !lm.Signer.HasRecoveredSig(llmqType, r.sig.ID, r.sig.MsgHash) {
			lm.Signer.PushReconstructedRecoveredSig(&r.sig, r.quorum)
		}
	}
	return bad
}

// ProcessInstantSendLock commits a verified lock: it writes the lock to
// the store, removes it from the tracker's non-locked set (retrying its
// children), relays it to peers, and resolves whatever mempool and chain
// conflicts it creates.
func (lm *LockManager) ProcessInstantSendLock(from int64, hash chainhash.Hash, l *islock.InstantSendLock) {
	log.Debugf("ProcessInstantSendLock: txid=%v, islock=%v: processing, peer=%d", l.Txid, hash, from)

	lm.mu.Lock()
	delete(lm.creatingInstantSendLocks, l.RequestID())
	delete(lm.txToCreatingInstantSendLocks, l.Txid)
	lm.mu.Unlock()

	if lm.Store.KnownLock(hash) {
		return
	}

	tx, haveTx := lm.Chain.GetTransaction(l.Txid)
	var minedBlock *islock.BlockRef
	if haveTx {
		minedBlock, _ = lm.Chain.GetTxBlock(l.Txid)
		if minedBlock != nil && lm.Chain.IsBlockChainLocked(minedBlock.Height, minedBlock.Hash) {
			log.Debugf("ProcessInstantSendLock: txid=%v, islock=%v: dropping, already chain-locked in block %v, peer=%d",
				l.Txid, hash, minedBlock.Hash, from)
			return
		}
	}

	if other, ok := lm.Store.GetLockByTxid(l.Txid); ok {
		log.Warnf("ProcessInstantSendLock: txid=%v, islock=%v: duplicate islock, other=%v, peer=%d",
			l.Txid, hash, other.Hash(), from)
	}
	for _, in := range l.Inputs {
		if other, ok := lm.Store.GetLockByOutpoint(in); ok {
			log.Warnf("ProcessInstantSendLock: txid=%v, islock=%v: conflicting input %v, other=%v, peer=%d",
				l.Txid, hash, in, other.Hash(), from)
		}
	}

	if err := lm.Store.WriteNew(hash, l); err != nil {
		log.Errorf("ProcessInstantSendLock: txid=%v, islock=%v: WriteNew failed: %v", l.Txid, hash, err)
		return
	}
	if minedBlock != nil {
		if err := lm.Store.WriteMined(hash, minedBlock.Height); err != nil {
			log.Errorf("ProcessInstantSendLock: txid=%v, islock=%v: WriteMined failed: %v", l.Txid, hash, err)
		}
	}

	lm.mu.Lock()
	lm.Tracker.RemoveNonLockedTx(l.Txid, true)
	lm.mu.Unlock()
	lm.truncateRecoveredSigsForInputs(l)

	lm.Relayer.RelayInstantSendLock(hash, l)

	lm.ResolveBlockConflicts(hash, l)
	lm.RemoveMempoolConflictsForLock(hash, l)

	if haveTx {
		log.Debugf("ProcessInstantSendLock: notifying in-time lock for tx %v", tx.Hash)
		lm.Relayer.NotifyTransactionLock(tx, l)
		lm.Mempool.BumpUpdateCounter()
	}
}

// truncateRecoveredSigsForInputs drops the recovered signatures for every
// input of l: once the islock itself covers the spend, the per-input
// votes serve no further purpose and would otherwise keep being relayed.
func (lm *LockManager) truncateRecoveredSigsForInputs(l *islock.InstantSendLock) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for _, in := range l.Inputs {
		id := islock.InputLockRequestID(in)
		delete(lm.inputRequestIds, id)
		lm.Signer.TruncateRecoveredSig(lm.cfg.LLMQTypeInstantSend, id)
	}
}

// ToWireMessage is a thin export used by transport code relaying l.
func ToWireMessage(l *islock.InstantSendLock) wire.Message {
	return l.ToWireMessage()
}
