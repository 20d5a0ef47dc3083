// Package recycler implements deferred reclamation of retired buffers
// (spec §4.F): a structural mutation (slice recycle, TermTable
// reconfiguration) retires a buffer and hands it to the Recycler along with
// the TokenTracker that must complete first. A dedicated worker pops
// entries whose tracker has completed and frees them, so a reader holding a
// Token issued before the retire can never observe a freed buffer — its
// Token's serial is below the tracker's cutoff, and the tracker cannot
// complete until that Token drops.
//
// Grounded on encoding/pam/fieldio/writer.go's WriteBufPool: a pool of
// reusable write buffers handed back only once their outstanding flush work
// completes, the same "free/reuse gated on completion" shape applied here
// to slice buffers gated on tracker completion instead of a flush future.
package recycler

import (
	"sync"

	"github.com/grailbio/base/log"

	"github.com/bitfunnel/bitfunnel/token"
)

// Buffer is anything a Recycler can retire: a release callback invoked once
// the guarding tracker completes. Callers that want pooled reuse (rather
// than letting the GC reclaim the buffer) can have Release return it to a
// pool instead of dropping the last reference.
type Buffer interface {
	Release()
}

// ReleaseFunc adapts a plain function to the Buffer interface.
type ReleaseFunc func()

// Release implements Buffer.
func (f ReleaseFunc) Release() { f() }

type entry struct {
	tracker *token.Tracker
	buf     Buffer
}

// Recycler holds retired buffers until their guarding TokenTracker
// completes, then releases them. Safe for concurrent Retire calls; exactly
// one worker goroutine drains the queue (Run).
type Recycler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []entry
	closed  bool

	released int64 // diagnostics: count of buffers released so far
}

// New constructs an empty Recycler.
func New() *Recycler {
	r := &Recycler{}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Retire enqueues buf for release once tracker completes. If tracker is
// already complete, Retire still enqueues it — the worker releases it on
// its next pass rather than inline, so Retire never blocks on a tracker
// wait.
func (r *Recycler) Retire(tracker *token.Tracker, buf Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		log.Panicf("recycler: Retire called after Close")
	}
	r.pending = append(r.pending, entry{tracker: tracker, buf: buf})
	r.cond.Broadcast()
}

// Pending returns the number of buffers awaiting reclamation, for
// diagnostics.
func (r *Recycler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Released returns the number of buffers released so far.
func (r *Recycler) Released() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// RunOnce scans the pending queue and releases every entry whose tracker
// has completed, returning how many were released. Exposed separately from
// Run so tests can drive reclamation deterministically without a
// background goroutine.
func (r *Recycler) RunOnce() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseCompletedLocked()
}

func (r *Recycler) releaseCompletedLocked() int {
	kept := r.pending[:0]
	released := 0
	for _, e := range r.pending {
		if e.tracker.IsComplete() {
			e.buf.Release()
			released++
			continue
		}
		kept = append(kept, e)
	}
	r.pending = kept
	r.released += int64(released)
	return released
}

// Run drains the recycler on a dedicated goroutine until Close is called:
// it wakes whenever Retire adds work or Close is called, releasing
// everything it can each pass. A tracker completing on its own does not
// wake it. Intended to be run as `go recycler.Run()`.
func (r *Recycler) Run() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		r.releaseCompletedLocked()
		if r.closed {
			return
		}
		// Either the queue is empty, or every remaining entry's tracker is
		// still incomplete: either way, wait for the next Retire/Close to
		// avoid busy-spinning. A caller that wants to react to tracker
		// completion directly (rather than waiting for the next Retire)
		// should drive RunOnce from a select over each tracker's Done().
		r.cond.Wait()
	}
}

// Close stops Run and releases any buffers whose tracker has already
// completed; buffers whose tracker never completes are dropped unreleased
// (the process is exiting).
func (r *Recycler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseCompletedLocked()
	r.closed = true
	r.cond.Broadcast()
}
