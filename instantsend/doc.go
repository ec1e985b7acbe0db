// Package instantsend implements InstantSend: a distributed
// transaction-finality protocol that produces cryptographically-signed
// locks (ISLOCKs) on unconfirmed transactions using threshold signatures
// from a rotating quorum of masternodes.
//
// The package is organized the way the teacher corpus organizes a mempool
// or chain subsystem: a durable, cache-fronted store (sub-package
// lockstore), an in-memory dependency tracker for not-yet-lockable
// transactions (sub-package tracker), and a state machine (LockManager)
// that ties them together with a small set of injected collaborator
// interfaces standing in for the chain, mempool, peer transport, and BLS
// threshold-signing service.
package instantsend
