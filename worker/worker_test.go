package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockingQueueEnqueueDequeue(t *testing.T) {
	q := NewBlockingQueue(2)

	require.True(t, q.TryEnqueue("a", time.Second))
	require.True(t, q.TryEnqueue("b", time.Second))
	assert.False(t, q.TryEnqueue("c", 20*time.Millisecond), "queue at capacity should time out")

	var out interface{}
	require.True(t, q.TryDequeue(&out, time.Second))
	assert.Equal(t, "a", out)
}

func TestBlockingQueueDequeueTimesOutWhenEmpty(t *testing.T) {
	q := NewBlockingQueue(1)
	var out interface{}
	assert.False(t, q.TryDequeue(&out, 20*time.Millisecond))
}

func TestBlockingQueueShutdownUnblocks(t *testing.T) {
	q := NewBlockingQueue(1)
	q.Shutdown()

	assert.False(t, q.TryEnqueue("x", time.Second))
	var out interface{}
	assert.False(t, q.TryDequeue(&out, time.Second))

	// Idempotent.
	q.Shutdown()
}

func TestBlockingQueueDrainsBufferedItemsAfterShutdown(t *testing.T) {
	q := NewBlockingQueue(2)
	require.True(t, q.TryEnqueue("a", time.Second))
	q.Shutdown()

	select {
	case <-q.Done():
	default:
		t.Fatal("Done channel not closed after Shutdown")
	}

	var out interface{}
	require.True(t, q.TryDequeue(&out, time.Second))
	assert.Equal(t, "a", out)
	assert.False(t, q.TryDequeue(&out, 20*time.Millisecond))
}

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(4)
	var count int64
	err := p.Run(100, func(i int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 100, count)
}

func TestPoolSurfacesFirstError(t *testing.T) {
	p := NewPool(4)
	boom := errors.New("task failed")
	err := p.Run(10, func(i int) error {
		if i == 5 {
			return boom
		}
		return nil
	})
	assert.Error(t, err)
}

func TestFirstErrorKeepsEarliest(t *testing.T) {
	var fe FirstError
	fe.Set(errors.New("first"))
	fe.Set(errors.New("second"))
	assert.EqualError(t, fe.Err(), "first")
}
