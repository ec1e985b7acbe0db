// Package lockstore implements the durable, crash-consistent storage of
// committed InstantSend locks described in spec §4.1: fast lookup by
// lock-hash, txid, and spent outpoint, a height-indexed mined set, and an
// archive retained for KnownLock purposes after a lock is removed.
//
// It is modeled on how the teacher's database/ffldb package drives
// goleveldb directly — one leveldb.DB, atomic leveldb.Batch writes, and
// ordered prefix iteration via util.Range — rather than going through a
// heavier block-file storage abstraction LockStore has no use for.
package lockstore

import (
	"encoding/binary"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
)

// CurrentVersion is the on-disk schema version Upgrade migrates to.
const CurrentVersion uint32 = 2

// Store is the persistent key-value store of committed InstantSend locks.
// All of its in-memory state (the three caches, bestConfirmedHeight) is
// protected by mu, the package's "cs_db" per spec §5: this lock is never
// held across a call into chain/mempool/signer/peer collaborators.
type Store struct {
	mu                  sync.Mutex
	db                  *leveldb.DB
	caches              *caches
	bestConfirmedHeight int32
}

// New opens (creating if necessary) the LevelDB-backed lock store at path.
func New(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{
		db:     db,
		caches: newCaches(),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteNew atomically writes all primary indexes for a freshly committed
// lock and populates the caches.
func (s *Store) WriteNew(hash chainhash.Hash, l *islock.InstantSendLock) error {
	body, err := l.MarshalBinary()
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(islockByHashKey(hash), body)
	batch.Put(hashByTxidKey(l.Txid), hash[:])
	for _, in := range l.Inputs {
		batch.Put(hashByOutpointKey(in), hash[:])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Write(batch, nil); err != nil {
		return err
	}
	s.caches.populate(hash, l)
	return nil
}

// Remove deletes all primary indexes for hash. If invalidateCache is false,
// the caller is responsible for eventually invalidating the caches itself
// (some callers immediately re-query and want the stale read, per spec
// §4.1).
func (s *Store) Remove(hash chainhash.Hash, l *islock.InstantSendLock, invalidateCache bool) error {
	batch := new(leveldb.Batch)
	batch.Delete(islockByHashKey(hash))
	if l != nil {
		batch.Delete(hashByTxidKey(l.Txid))
		for _, in := range l.Inputs {
			batch.Delete(hashByOutpointKey(in))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Write(batch, nil); err != nil {
		return err
	}
	if invalidateCache {
		s.caches.invalidate(hash, l)
	}
	return nil
}

// WriteMined records that the lock at hash is now mined at height.
func (s *Store) WriteMined(hash chainhash.Hash, height int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Put(minedKey(height, hash), []byte{1}, nil)
}

// RemoveMined reverses WriteMined, used on block disconnect.
func (s *Store) RemoveMined(hash chainhash.Hash, height int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Delete(minedKey(height, hash), nil)
}

// BestConfirmedHeight returns the monotonic watermark advanced by
// RemoveConfirmedUpTo.
func (s *Store) BestConfirmedHeight() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestConfirmedHeight
}

// RemoveConfirmedUpTo walks the mined index for every entry at height <=
// height, removes each lock from the primary indexes, and writes a
// matching archive entry at the same height, per spec §4.1. Calls with
// height <= the current bestConfirmedHeight are no-ops, enforcing the
// monotonicity invariant (spec §8 invariant 3).
func (s *Store) RemoveConfirmedUpTo(height int32) ([]*islock.InstantSendLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if height <= s.bestConfirmedHeight {
		return nil, nil
	}

	rng := util.BytesPrefix(prefixMinedByHeightAndHash)
	rng.Start = minedStartKey(height)

	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()

	var removed []*islock.InstantSendLock
	batch := new(leveldb.Batch)
	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		hash := hashFromMinedOrArchivedKey(key)
		minedHeight := minedHeightFromKey(key)

		l, err := s.getLockByHashLocked(hash)
		if err != nil {
			return nil, err
		}

		batch.Delete(key)
		batch.Delete(islockByHashKey(hash))
		if l != nil {
			batch.Delete(hashByTxidKey(l.Txid))
			for _, in := range l.Inputs {
				batch.Delete(hashByOutpointKey(in))
			}
			removed = append(removed, l)
		}
		batch.Put(archivedHeightKey(minedHeight, hash), []byte{1})
		batch.Put(archivedByHashKey(hash), archivedValue(minedHeight))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	if err := s.db.Write(batch, nil); err != nil {
		return nil, err
	}
	for _, l := range removed {
		s.caches.invalidate(l.Hash(), l)
	}
	s.bestConfirmedHeight = height
	return removed, nil
}

// minedHeightFromKey recovers the mined height encoded in a
// MINED_BY_HEIGHT_AND_HASH key.
func minedHeightFromKey(key []byte) int32 {
	invStart := len(prefixMinedByHeightAndHash)
	return heightFromInverse(key[invStart : invStart+4])
}

// RemoveArchivedUpTo erases both archive keys for every entry at height <=
// height. It does not touch bestConfirmedHeight.
func (s *Store) RemoveArchivedUpTo(height int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rng := util.BytesPrefix(prefixArchivedByHeightHash)
	rng.Start = archivedStartKey(height)

	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		hash := hashFromMinedOrArchivedKey(key)
		batch.Delete(key)
		batch.Delete(archivedByHashKey(hash))
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

// RemoveChained removes rootHash and the transitive closure of locks whose
// inputs spend outputs of rootTxid (directly or via an intermediate
// descendant), archiving every removed hash at nHeight. This is driven by
// the resolver when a ChainLock trumps a committed lock (spec §4.5).
func (s *Store) RemoveChained(rootHash chainhash.Hash, rootTxid chainhash.Hash, nHeight int32) ([]*islock.InstantSendLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []*islock.InstantSendLock
	visited := make(map[chainhash.Hash]bool)
	queue := []chainhash.Hash{rootTxid}

	batch := new(leveldb.Batch)
	archive := func(hash chainhash.Hash, l *islock.InstantSendLock) {
		batch.Delete(islockByHashKey(hash))
		batch.Delete(hashByTxidKey(l.Txid))
		for _, in := range l.Inputs {
			batch.Delete(hashByOutpointKey(in))
		}
		batch.Put(archivedHeightKey(nHeight, hash), []byte{1})
		batch.Put(archivedByHashKey(hash), archivedValue(nHeight))
		removed = append(removed, l)
	}

	for len(queue) > 0 {
		txid := queue[0]
		queue = queue[1:]
		if visited[txid] {
			continue
		}
		visited[txid] = true

		prefix := hashByOutpointTxPrefix(txid)
		iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
		for iter.Next() {
			hashBytes := iter.Value()
			var childHash chainhash.Hash
			copy(childHash[:], hashBytes)
			if childHash == rootHash || visited[childHash] {
				continue
			}

			childLock, err := s.getLockByHashLocked(childHash)
			if err != nil {
				iter.Release()
				return nil, err
			}
			if childLock == nil {
				continue
			}
			archive(childHash, childLock)
			queue = append(queue, childLock.Txid)
		}
		if err := iter.Error(); err != nil {
			iter.Release()
			return nil, err
		}
		iter.Release()
	}

	rootLock, err := s.getLockByHashLocked(rootHash)
	if err != nil {
		return nil, err
	}
	if rootLock != nil {
		archive(rootHash, rootLock)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return nil, err
	}
	for _, l := range removed {
		s.caches.invalidate(l.Hash(), l)
	}
	return removed, nil
}

// KnownLock reports whether hash is present in the primary store or in the
// archive (spec §3: "Archived ⇒ known").
func (s *Store) KnownLock(hash chainhash.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.caches.byHash.Get(hash); ok {
		return true
	}
	if ok, _ := s.db.Has(islockByHashKey(hash), nil); ok {
		return true
	}
	ok, _ := s.db.Has(archivedByHashKey(hash), nil)
	return ok
}

// GetLockByHash returns the committed lock for hash, reading through the
// cache to disk on a miss.
func (s *Store) GetLockByHash(hash chainhash.Hash) (*islock.InstantSendLock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.getLockByHashLocked(hash)
	return l, err == nil && l != nil
}

func (s *Store) getLockByHashLocked(hash chainhash.Hash) (*islock.InstantSendLock, error) {
	if l, ok := s.caches.byHash.Get(hash); ok {
		return l, nil
	}

	body, err := s.db.Get(islockByHashKey(hash), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	l := new(islock.InstantSendLock)
	if err := l.UnmarshalBinary(body); err != nil {
		return nil, err
	}
	s.caches.byHash.Put(hash, l)
	return l, nil
}

// GetLockHashByTxid returns the lock-hash committed for txid, if any.
func (s *Store) GetLockHashByTxid(txid chainhash.Hash) (chainhash.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hash, ok := s.caches.hashByTxid.Get(txid); ok {
		return hash, true
	}

	val, err := s.db.Get(hashByTxidKey(txid), nil)
	if err != nil {
		return chainhash.Hash{}, false
	}
	var hash chainhash.Hash
	copy(hash[:], val)
	s.caches.hashByTxid.Put(txid, hash)
	return hash, true
}

// GetLockByTxid is a convenience composition of GetLockHashByTxid and
// GetLockByHash.
func (s *Store) GetLockByTxid(txid chainhash.Hash) (*islock.InstantSendLock, bool) {
	hash, ok := s.GetLockHashByTxid(txid)
	if !ok {
		return nil, false
	}
	return s.GetLockByHash(hash)
}

// GetLockHashByOutpoint returns the lock-hash that indexes outpoint, if
// any. Per the input-exclusivity invariant (spec §8 invariant 1), at most
// one committed lock ever indexes a given outpoint.
func (s *Store) GetLockHashByOutpoint(op islock.Outpoint) (chainhash.Hash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hash, ok := s.caches.hashByOut.Get(op); ok {
		return hash, true
	}

	val, err := s.db.Get(hashByOutpointKey(op), nil)
	if err != nil {
		return chainhash.Hash{}, false
	}
	var hash chainhash.Hash
	copy(hash[:], val)
	s.caches.hashByOut.Put(op, hash)
	return hash, true
}

// GetLockByOutpoint is a convenience composition of GetLockHashByOutpoint
// and GetLockByHash.
func (s *Store) GetLockByOutpoint(op islock.Outpoint) (*islock.InstantSendLock, bool) {
	hash, ok := s.GetLockHashByOutpoint(op)
	if !ok {
		return nil, false
	}
	return s.GetLockByHash(hash)
}

// LockCount returns the number of committed locks in the primary
// lock-by-hash index, the way CInstantSendDb::GetInstantSendLockCount walks
// DB_ISLOCK_BY_HASH and counts.
func (s *Store) LockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	rng := util.BytesPrefix(prefixIslockByHash)
	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()

	count := 0
	for iter.Next() {
		count++
	}
	return count
}

// GetArchivedLock returns the archival bookkeeping entry for hash, if it
// was archived rather than forgotten outright (spec §3: "Archived ⇒
// known").
func (s *Store) GetArchivedLock(hash chainhash.Hash) (islock.ArchivedLock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, err := s.db.Get(archivedByHashKey(hash), nil)
	if err != nil {
		return islock.ArchivedLock{}, false
	}
	return islock.ArchivedLock{Hash: hash, Height: heightFromArchivedValue(val)}, true
}

// Upgrade is the one-time migration gated on DIP-0020 activation: it drops
// every lock whose txid is unknown to the chain, then writes the current
// schema version. knownToChain should consult the external ChainSource
// collaborator (spec §4.1).
func (s *Store) Upgrade(knownToChain func(txid chainhash.Hash) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version, err := s.readVersionLocked()
	if err != nil {
		return err
	}
	if version >= CurrentVersion {
		return nil
	}

	rng := util.BytesPrefix(prefixIslockByHash)
	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		var hash chainhash.Hash
		copy(hash[:], iter.Key()[len(prefixIslockByHash):])

		l := new(islock.InstantSendLock)
		if err := l.UnmarshalBinary(iter.Value()); err != nil {
			return err
		}
		if knownToChain(l.Txid) {
			continue
		}

		batch.Delete(islockByHashKey(hash))
		batch.Delete(hashByTxidKey(l.Txid))
		for _, in := range l.Inputs {
			batch.Delete(hashByOutpointKey(in))
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}

	var verBuf [4]byte
	binary.BigEndian.PutUint32(verBuf[:], CurrentVersion)
	batch.Put(keyVersion, verBuf[:])

	if err := s.db.Write(batch, nil); err != nil {
		return err
	}
	s.caches = newCaches()
	return nil
}

func (s *Store) readVersionLocked() (uint32, error) {
	val, err := s.db.Get(keyVersion, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	if len(val) < 4 {
		return 0, nil
	}
	return binary.BigEndian.Uint32(val), nil
}
