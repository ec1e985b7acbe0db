package instantsend

import "errors"

// Sentinel errors naming the handful of outcomes callers branch on, in the
// style of mempool.TxRuleError's sentinel/typed-error split. No function in
// this package returns them: ProcessTx, CheckCanLock and
// ProcessMessageInstantSendLock report these outcomes by returning early or
// through a bool result.
var (
	// ErrKnownConflict names a peer-delivered lock that conflicts with one
	// already committed or archived.
	ErrKnownConflict = errors.New("instantsend: conflicts with a known lock")

	// ErrAlreadyLocked names a transaction that already has a committed
	// lock.
	ErrAlreadyLocked = errors.New("instantsend: transaction already locked")

	// ErrNotLockable names a transaction with an input whose dependency
	// cannot yet be resolved.
	ErrNotLockable = errors.New("instantsend: transaction not yet lockable")
)

// MisbehaviorScore is the numeric penalty applied to a peer via the
// Relayer.Misbehaving hook. Two severities are used throughout the
// pipeline, matching the original's minor/severe split.
type MisbehaviorScore int

const (
	// MisbehaviorMinor is applied for violations that may simply reflect
	// a peer being out of date (e.g. signing against a just-rotated
	// quorum) rather than malice.
	MisbehaviorMinor MisbehaviorScore = 20

	// MisbehaviorSevere is applied for structural protocol violations
	// (duplicate/empty inputs, malformed messages).
	MisbehaviorSevere MisbehaviorScore = 100
)
