package token

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTokenSerialsIncrease(t *testing.T) {
	m := NewManager()
	tok0 := m.RequestToken()
	tok1 := m.RequestToken()
	assert.Less(t, tok0.Serial(), tok1.Serial())
	assert.Equal(t, 2, m.InFlight())
	tok0.Drop()
	tok1.Drop()
	assert.Equal(t, 0, m.InFlight())
}

func TestTokenDropExactlyOnce(t *testing.T) {
	m := NewManager()
	tok := m.RequestToken()
	require.Equal(t, 1, m.InFlight())
	tok.Drop()
	assert.Equal(t, 0, m.InFlight())
	// Dropping again must not double-decrement.
	tok.Drop()
	assert.Equal(t, 0, m.InFlight())
}

func TestTokenTakeTombstonesSource(t *testing.T) {
	m := NewManager()
	src := m.RequestToken()
	dst := src.Take()
	assert.False(t, src.Valid())
	assert.True(t, dst.Valid())

	// Dropping the tombstoned source must not notify the manager.
	src.Drop()
	assert.Equal(t, 1, m.InFlight())

	dst.Drop()
	assert.Equal(t, 0, m.InFlight())
}

func TestStartTrackerAlreadyComplete(t *testing.T) {
	m := NewManager()
	tr := m.StartTracker()
	assert.True(t, tr.IsComplete())
}

func TestTrackerWaitsForPreCutoffTokens(t *testing.T) {
	m := NewManager()
	a := m.RequestToken()
	b := m.RequestToken()
	tr := m.StartTracker()
	c := m.RequestToken() // issued after the cutoff; tr must not wait on it.
	assert.False(t, tr.IsComplete())

	a.Drop()
	assert.False(t, tr.IsComplete())
	b.Drop()
	assert.True(t, tr.IsComplete())

	c.Drop()
}

// TestTrackerDrainS6 follows spec scenario S6: a tracker T started at
// serial N while tokens with serials {N-2, N-1} are alive, plus a token
// issued after T (serial N here), must complete iff both pre-cutoff tokens
// {N-2, N-1} have dropped; dropping the post-cutoff token alone must never
// complete it.
func TestTrackerDrainS6(t *testing.T) {
	m := NewManager()
	a := m.RequestToken() // N-2
	b := m.RequestToken() // N-1
	tr := m.StartTracker()
	c := m.RequestToken() // N (issued after the cutoff)

	c.Drop()
	assert.False(t, tr.IsComplete())

	a.Drop()
	assert.False(t, tr.IsComplete())

	b.Drop()
	assert.True(t, tr.IsComplete())
}

func TestTrackerFIFOOrdering(t *testing.T) {
	m := NewManager()
	a := m.RequestToken()
	t1 := m.StartTracker()
	b := m.RequestToken()
	t2 := m.StartTracker()

	// t2 requires both a and b; t1 requires only a.
	b.Drop()
	assert.False(t, t1.IsComplete())
	assert.False(t, t2.IsComplete())

	a.Drop()
	assert.True(t, t1.IsComplete())
	assert.True(t, t2.IsComplete())
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	m := NewManager()
	tok := m.RequestToken()

	var wg sync.WaitGroup
	wg.Add(1)
	done := make(chan struct{})
	go func() {
		defer wg.Done()
		m.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Shutdown returned before in-flight token dropped")
	default:
	}

	tok.Drop()
	wg.Wait()
}

func TestShutdownTwiceIsFatal(t *testing.T) {
	m := NewManager()
	m.Shutdown()
	assert.Panics(t, func() { m.Shutdown() })
}

func TestRequestAfterShutdownIsFatal(t *testing.T) {
	m := NewManager()
	m.Shutdown()
	assert.Panics(t, func() { m.RequestToken() })
}

func TestConcurrentTokensAndTrackers(t *testing.T) {
	m := NewManager()
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := m.RequestToken()
			tok.Drop()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, m.InFlight())
}
