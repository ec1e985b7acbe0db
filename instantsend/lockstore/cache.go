package lockstore

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/container/lru"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
)

// Default cache sizes for the three read-through caches shadowing the
// store's primary indexes. Sized generously relative to a typical active
// InstantSend working set. New always builds a Store with these sizes;
// there is no constructor taking other limits.
const (
	defaultHashCacheSize  = 4096
	defaultTxidCacheSize  = 4096
	defaultOutpointCache  = 16384
)

// caches bundles the three in-memory LRU caches that shadow LockStore's
// primary on-disk indexes. Cache misses read through to disk; hits never
// touch disk. This is the "durable store + in-memory read-through cache"
// abstraction called for in spec §9, built on the pack's generic LRU map
// (decred/dcrd/container/lru) rather than a hand-rolled container/list
// cache, since nothing here needs TTL or other behavior a generic map
// doesn't already provide.
type caches struct {
	byHash     *lru.Map[chainhash.Hash, *islock.InstantSendLock]
	hashByTxid *lru.Map[chainhash.Hash, chainhash.Hash]
	hashByOut  *lru.Map[islock.Outpoint, chainhash.Hash]
}

func newCaches() *caches {
	return &caches{
		byHash:     lru.NewMap[chainhash.Hash, *islock.InstantSendLock](defaultHashCacheSize),
		hashByTxid: lru.NewMap[chainhash.Hash, chainhash.Hash](defaultTxidCacheSize),
		hashByOut:  lru.NewMap[islock.Outpoint, chainhash.Hash](defaultOutpointCache),
	}
}

func (c *caches) invalidate(hash chainhash.Hash, l *islock.InstantSendLock) {
	c.byHash.Delete(hash)
	if l == nil {
		return
	}
	c.hashByTxid.Delete(l.Txid)
	for _, in := range l.Inputs {
		c.hashByOut.Delete(in)
	}
}

func (c *caches) populate(hash chainhash.Hash, l *islock.InstantSendLock) {
	c.byHash.Put(hash, l)
	c.hashByTxid.Put(l.Txid, hash)
	for _, in := range l.Inputs {
		c.hashByOut.Put(in, hash)
	}
}
