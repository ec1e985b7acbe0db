package instantsend

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/mock"

	"github.com/PastaPastaPasta/dash/instantsend/islock"
	"github.com/PastaPastaPasta/dash/wire"
)

// MockChainSource is a mock implementation of the ChainSource interface,
// grounded on mempool.MockTxMempool's testify/mock.Mock shape.
type MockChainSource struct {
	mock.Mock
}

var _ ChainSource = (*MockChainSource)(nil)

func (m *MockChainSource) IsMasternode() bool {
	return m.Called().Bool(0)
}

func (m *MockChainSource) IsBlockchainSynced() bool {
	return m.Called().Bool(0)
}

func (m *MockChainSource) GetTransaction(hash chainhash.Hash) (*islock.Tx, bool) {
	args := m.Called(hash)
	if args.Get(0) == nil {
		return nil, false
	}
	return args.Get(0).(*islock.Tx), args.Bool(1)
}

func (m *MockChainSource) GetTxBlock(txid chainhash.Hash) (*islock.BlockRef, bool) {
	args := m.Called(txid)
	if args.Get(0) == nil {
		return nil, false
	}
	return args.Get(0).(*islock.BlockRef), args.Bool(1)
}

func (m *MockChainSource) BestHeight() int32 {
	return int32(m.Called().Int(0))
}

func (m *MockChainSource) GetBlockHash(height int32) (chainhash.Hash, bool) {
	args := m.Called(height)
	if args.Get(0) == nil {
		return chainhash.Hash{}, args.Bool(1)
	}
	return args.Get(0).(chainhash.Hash), args.Bool(1)
}

func (m *MockChainSource) GetBlockHeight(hash chainhash.Hash) (int32, bool) {
	args := m.Called(hash)
	return int32(args.Int(0)), args.Bool(1)
}

func (m *MockChainSource) IsBlockChainLocked(height int32, hash chainhash.Hash) bool {
	return m.Called(height, hash).Bool(0)
}

func (m *MockChainSource) InvalidateBlock(hash chainhash.Hash) bool {
	return m.Called(hash).Bool(0)
}

func (m *MockChainSource) ActivateBestChain() bool {
	return m.Called().Bool(0)
}

// MockMempoolSource is a mock implementation of the MempoolSource
// interface.
type MockMempoolSource struct {
	mock.Mock
}

var _ MempoolSource = (*MockMempoolSource)(nil)

func (m *MockMempoolSource) HaveTransaction(txid chainhash.Hash) bool {
	return m.Called(txid).Bool(0)
}

func (m *MockMempoolSource) GetMempoolSpender(outpoint islock.Outpoint) (chainhash.Hash, bool) {
	args := m.Called(outpoint)
	if args.Get(0) == nil {
		return chainhash.Hash{}, false
	}
	return args.Get(0).(chainhash.Hash), args.Bool(1)
}

func (m *MockMempoolSource) RemoveRecursive(txid chainhash.Hash, reason string) {
	m.Called(txid, reason)
}

func (m *MockMempoolSource) BumpUpdateCounter() {
	m.Called()
}

// MockSigner is a mock implementation of the Signer interface.
type MockSigner struct {
	mock.Mock
}

var _ Signer = (*MockSigner)(nil)

func (m *MockSigner) AsyncSignIfMember(llmqType LLMQType, id, msgHash chainhash.Hash) {
	m.Called(llmqType, id, msgHash)
}

func (m *MockSigner) HasRecoveredSig(llmqType LLMQType, id, msgHash chainhash.Hash) bool {
	return m.Called(llmqType, id, msgHash).Bool(0)
}

func (m *MockSigner) GetRecoveredSig(llmqType LLMQType, id chainhash.Hash) (*RecoveredSig, bool) {
	args := m.Called(llmqType, id)
	if args.Get(0) == nil {
		return nil, false
	}
	return args.Get(0).(*RecoveredSig), args.Bool(1)
}

func (m *MockSigner) GetVoteForId(llmqType LLMQType, id chainhash.Hash) (chainhash.Hash, bool) {
	args := m.Called(llmqType, id)
	if args.Get(0) == nil {
		return chainhash.Hash{}, false
	}
	return args.Get(0).(chainhash.Hash), args.Bool(1)
}

func (m *MockSigner) IsConflicting(llmqType LLMQType, id, msgHash chainhash.Hash) bool {
	return m.Called(llmqType, id, msgHash).Bool(0)
}

func (m *MockSigner) SelectQuorumForSigning(llmqType LLMQType, id chainhash.Hash, signHeight, signOffset int32) (*Quorum, bool) {
	args := m.Called(llmqType, id, signHeight, signOffset)
	if args.Get(0) == nil {
		return nil, false
	}
	return args.Get(0).(*Quorum), args.Bool(1)
}

func (m *MockSigner) TruncateRecoveredSig(llmqType LLMQType, id chainhash.Hash) {
	m.Called(llmqType, id)
}

func (m *MockSigner) PushReconstructedRecoveredSig(sig *RecoveredSig, quorum *Quorum) {
	m.Called(sig, quorum)
}

// MockRelayer is a mock implementation of the Relayer interface.
type MockRelayer struct {
	mock.Mock
}

var _ Relayer = (*MockRelayer)(nil)

func (m *MockRelayer) RelayInstantSendLock(hash chainhash.Hash, lock *islock.InstantSendLock) {
	m.Called(hash, lock)
}

func (m *MockRelayer) AskNodesForLockedTx(txid chainhash.Hash) {
	m.Called(txid)
}

func (m *MockRelayer) Misbehaving(peer int64, score MisbehaviorScore) {
	m.Called(peer, score)
}

func (m *MockRelayer) NotifyTransactionLock(tx *islock.Tx, lock *islock.InstantSendLock) {
	m.Called(tx, lock)
}

// MockBatchVerifier is a mock implementation of the BatchVerifier
// interface: Add records its arguments and Execute returns whatever the
// test configured via On("Execute").
type MockBatchVerifier struct {
	mock.Mock
}

var _ BatchVerifier = (*MockBatchVerifier)(nil)

func (m *MockBatchVerifier) Add(lockHash, signHash chainhash.Hash, sig wire.Signature, pubKey wire.PublicKey) {
	m.Called(lockHash, signHash, sig, pubKey)
}

func (m *MockBatchVerifier) Execute() map[chainhash.Hash]bool {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(map[chainhash.Hash]bool)
}
