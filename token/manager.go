package token

import (
	"sync"

	"github.com/grailbio/base/log"
)

// Manager hands out Tokens with monotonically increasing serials, tracks the
// in-flight count, maintains the FIFO of active Trackers, and blocks
// Shutdown until the in-flight count reaches zero.
//
// All public methods are thread-safe. The in-flight counter, the next-serial
// counter, and the tracker FIFO are guarded by a single mutex: the three are
// coupled (RequestToken reads next-serial and bumps in-flight; StartTracker
// reads both and appends to the FIFO; onTokenComplete decrements in-flight
// and walks the FIFO) so splitting the lock would reintroduce the races it
// exists to prevent.
type Manager struct {
	mu           sync.Mutex
	shutdownCond *sync.Cond
	nextSerial   uint64
	inFlight     int
	trackers     []*Tracker
	shuttingDown bool
	shutdown     bool
}

// NewManager constructs a Manager with serial numbers starting at zero.
func NewManager() *Manager {
	m := &Manager{}
	m.shutdownCond = sync.NewCond(&m.mu)
	return m
}

// RequestToken allocates the next serial, increments the in-flight count,
// and returns a live Token. Fatal if Shutdown has been initiated: per the
// spec, requesting a token after shutdown is a programming error, not a
// recoverable condition.
func (m *Manager) RequestToken() Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuttingDown {
		log.Panicf("token: RequestToken called after Shutdown")
	}
	serial := m.nextSerial
	m.nextSerial++
	m.inFlight++
	return newToken(serial, m)
}

// StartTracker snapshots the cutoff (strictly greater than every
// currently-alive token's serial, i.e. the next serial to be handed out) and
// the current in-flight count, and enqueues the resulting Tracker in the
// manager's FIFO — unless it is already complete (count == 0) at
// construction, in which case it is simply returned without enqueueing.
func (m *Manager) StartTracker() *Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := newTracker(m.nextSerial, m.inFlight)
	if !t.complete {
		m.trackers = append(m.trackers, t)
	}
	return t
}

// InFlight returns the current number of live tokens. Intended for
// diagnostics (e.g. the REPL's `status` command).
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Shutdown marks the manager as shutting down and blocks until the in-flight
// count reaches zero. Calling Shutdown twice is fatal.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuttingDown {
		log.Panicf("token: Shutdown called twice")
	}
	m.shuttingDown = true
	for m.inFlight != 0 {
		m.shutdownCond.Wait()
	}
	m.shutdown = true
}

// onTokenComplete implements the listener interface used by Token.Drop. It
// decrements the in-flight count and delivers the completion to every
// tracker in the FIFO whose cutoff is past this serial, then pops completed
// trackers off the front. A non-head tracker completing while the head has
// not is an invariant violation (trackers form a FIFO by construction
// order, and cutoffs are non-decreasing along the FIFO, so every completion
// that satisfies an older tracker's cutoff also satisfies every newer
// tracker's cutoff).
func (m *Manager) onTokenComplete(serial uint64) {
	m.mu.Lock()
	m.inFlight--
	if m.inFlight < 0 {
		log.Panicf("token: in-flight count underflowed")
	}
	for _, t := range m.trackers {
		if t.complete {
			continue
		}
		if serial < t.cutoff {
			t.remaining--
			if t.remaining < 0 {
				log.Panicf("token: tracker remaining count underflowed")
			}
			if t.remaining == 0 {
				t.complete = true
				close(t.done)
			}
		}
	}
	i := 0
	for i < len(m.trackers) && m.trackers[i].complete {
		i++
	}
	for _, t := range m.trackers[i:] {
		if t.complete {
			log.Panicf("token: non-head tracker completed while an earlier tracker is still incomplete")
		}
	}
	m.trackers = m.trackers[i:]
	inFlight := m.inFlight
	shuttingDown := m.shuttingDown
	m.mu.Unlock()
	if shuttingDown && inFlight == 0 {
		m.shutdownCond.Broadcast()
	}
}
