package lockstore

import (
	"encoding/binary"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
)

// Key-space prefixes, one per logical index described in spec §4.1/§6.
// Each ends in a delimiter byte not otherwise present in a prefix string so
// that, e.g., the "is_i" prefix never shadows "is_in" during a prefix
// iteration (plain "is_i"/"is_in" would collide on a byte-prefix scan).
var (
	prefixIslockByHash          = []byte("is_i:")
	prefixHashByTxid            = []byte("is_tx:")
	prefixHashByOutpoint        = []byte("is_in:")
	prefixMinedByHeightAndHash  = []byte("is_m:")
	prefixArchivedByHeightHash  = []byte("is_a1:")
	prefixArchivedByHash        = []byte("is_a2:")
	keyVersion                  = []byte("is_v")
)

// inverseHeight encodes height the way the mined/archived height-indexed
// keys require: big-endian u32::MAX - height, so that iterating in
// ascending byte order from a given height walks actual heights in
// descending order (spec §4.1, §6).
func inverseHeight(height int32) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.MaxUint32-uint32(height))
	return b
}

func heightFromInverse(b []byte) int32 {
	inv := binary.BigEndian.Uint32(b)
	return int32(math.MaxUint32 - inv)
}

func islockByHashKey(hash chainhash.Hash) []byte {
	k := make([]byte, 0, len(prefixIslockByHash)+chainhash.HashSize)
	k = append(k, prefixIslockByHash...)
	return append(k, hash[:]...)
}

func hashByTxidKey(txid chainhash.Hash) []byte {
	k := make([]byte, 0, len(prefixHashByTxid)+chainhash.HashSize)
	k = append(k, prefixHashByTxid...)
	return append(k, txid[:]...)
}

func hashByOutpointKey(op islock.Outpoint) []byte {
	k := make([]byte, 0, len(prefixHashByOutpoint)+chainhash.HashSize+4)
	k = append(k, prefixHashByOutpoint...)
	k = append(k, op.Hash[:]...)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], op.Index)
	return append(k, idx[:]...)
}

// hashByOutpointTxPrefix returns the key range prefix covering every
// outpoint whose prior-tx hash is txid, for RemoveChained's descendant
// walk.
func hashByOutpointTxPrefix(txid chainhash.Hash) []byte {
	k := make([]byte, 0, len(prefixHashByOutpoint)+chainhash.HashSize)
	k = append(k, prefixHashByOutpoint...)
	return append(k, txid[:]...)
}

func minedKey(height int32, hash chainhash.Hash) []byte {
	inv := inverseHeight(height)
	k := make([]byte, 0, len(prefixMinedByHeightAndHash)+4+chainhash.HashSize)
	k = append(k, prefixMinedByHeightAndHash...)
	k = append(k, inv[:]...)
	return append(k, hash[:]...)
}

func archivedHeightKey(height int32, hash chainhash.Hash) []byte {
	inv := inverseHeight(height)
	k := make([]byte, 0, len(prefixArchivedByHeightHash)+4+chainhash.HashSize)
	k = append(k, prefixArchivedByHeightHash...)
	k = append(k, inv[:]...)
	return append(k, hash[:]...)
}

func archivedByHashKey(hash chainhash.Hash) []byte {
	k := make([]byte, 0, len(prefixArchivedByHash)+chainhash.HashSize)
	k = append(k, prefixArchivedByHash...)
	return append(k, hash[:]...)
}

// archivedValue encodes the archival height stored alongside an is_a2
// entry, so GetArchivedLock can reconstruct an islock.ArchivedLock without
// a second lookup into the is_a1 height index.
func archivedValue(height int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(height))
	return b[:]
}

func heightFromArchivedValue(val []byte) int32 {
	if len(val) < 4 {
		return 0
	}
	return int32(binary.BigEndian.Uint32(val))
}

// minedStartKey returns the key to start an ascending scan from in order
// to visit every mined entry at height <= untilHeight, in descending
// height order (spec §4.1 RemoveConfirmedUpTo).
func minedStartKey(untilHeight int32) []byte {
	inv := inverseHeight(untilHeight)
	k := make([]byte, 0, len(prefixMinedByHeightAndHash)+4)
	k = append(k, prefixMinedByHeightAndHash...)
	return append(k, inv[:]...)
}

func archivedStartKey(untilHeight int32) []byte {
	inv := inverseHeight(untilHeight)
	k := make([]byte, 0, len(prefixArchivedByHeightHash)+4)
	k = append(k, prefixArchivedByHeightHash...)
	return append(k, inv[:]...)
}

// hashFromMinedOrArchivedKey extracts the trailing lock-hash from a
// mined/archived height-indexed key.
func hashFromMinedOrArchivedKey(key []byte) chainhash.Hash {
	var h chainhash.Hash
	copy(h[:], key[len(key)-chainhash.HashSize:])
	return h
}

func txidFromOutpointKey(key []byte, prefixLen int) chainhash.Hash {
	var h chainhash.Hash
	copy(h[:], key[prefixLen:prefixLen+chainhash.HashSize])
	return h
}
