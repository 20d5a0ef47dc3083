package token

// Tracker is a one-shot completion object: it becomes complete once every
// Token with a serial strictly less than its cutoff has been dropped. A
// Tracker started with cutoff == current next-serial and count == current
// in-flight count at construction time; the TokenManager mutates `remaining`
// and `complete` under its own lock (see manager.go) as tokens drop, which
// is why Tracker itself carries no lock of its own — sharing the manager's
// lock is what makes the FIFO-ordering guarantee possible.
type Tracker struct {
	cutoff    uint64
	remaining int
	complete  bool
	done      chan struct{}
}

func newTracker(cutoff uint64, count int) *Tracker {
	t := &Tracker{cutoff: cutoff, remaining: count, done: make(chan struct{})}
	if count == 0 {
		t.complete = true
		close(t.done)
	}
	return t
}

// IsComplete reports whether every token issued before the tracker's cutoff
// has dropped. Safe to call concurrently; it only reads a channel's closed
// state.
func (t *Tracker) IsComplete() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the tracker is complete.
func (t *Tracker) Wait() {
	<-t.done
}

// Done returns a channel that is closed once the tracker completes, for use
// in a select alongside other blocking points (e.g. a caller-supplied
// context's Done channel).
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}
