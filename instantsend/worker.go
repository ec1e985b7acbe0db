package instantsend

import (
	"sync"
	"time"
)

// Worker drives LockManager's periodic work: draining queued locks for
// batch verification and retrying transactions whose parent just became
// lockable. It is started and stopped the way cpuminer.CPUMiner runs its
// speedMonitor/generateBlocks goroutines — a quit channel plus a
// WaitGroup — rather than a context, to match the teacher's long-lived
// background-worker idiom.
type Worker struct {
	lm   *LockManager
	tick time.Duration

	quit chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewWorker returns a Worker for lm, using cfg's WorkerTickInterval (or
// DefaultWorkerTickInterval if zero) as the idle sleep between ticks.
func NewWorker(lm *LockManager) *Worker {
	tick := lm.cfg.WorkerTickInterval
	if tick <= 0 {
		tick = DefaultWorkerTickInterval
	}
	return &Worker{lm: lm, tick: tick}
}

// Start launches the worker loop in a new goroutine. Calling Start on an
// already-started Worker is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.quit = make(chan struct{})
	w.wg.Add(1)
	go w.run()
}

// Stop signals the worker loop to exit and blocks until it has.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	close(w.quit)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	log.Debugf("Worker: started, tick=%v", w.tick)

	for {
		moreWork := w.lm.ProcessPendingInstantSendLocks()
		w.retryPendingLockTxs()

		if moreWork {
			// A full batch was drained but more remain queued; loop
			// again immediately instead of waiting out the tick.
			select {
			case <-w.quit:
				log.Debugf("Worker: stopped")
				return
			default:
				continue
			}
		}

		select {
		case <-w.quit:
			log.Debugf("Worker: stopped")
			return
		case <-time.After(w.tick):
		}
	}
}

// retryPendingLockTxs drains the tracker's retry queue and re-runs
// ProcessTx non-retroactively for each still-eligible transaction.
// CheckCanLock is deliberately not pre-checked here beyond what ProcessTx
// itself does: calling it twice would only save a log line, at the cost
// of duplicating every gate ProcessTx already applies.
func (w *Worker) retryPendingLockTxs() {
	if !w.lm.cfg.IsInstantSendEnabled() {
		return
	}

	retry := w.lm.Tracker.DrainPendingRetries()
	if len(retry) == 0 {
		return
	}

	count := 0
	for _, tx := range retry {
		if w.lm.IsLocked(tx.Hash) {
			continue
		}
		if _, conflict := w.lm.GetConflictingLock(tx); conflict {
			continue
		}
		w.lm.ProcessTx(tx, false)
		count++
	}
	if count > 0 {
		log.Debugf("Worker: retried %d txs, tracked=%d", count, w.lm.Tracker.GetNonLockedTxCount())
	}
}
