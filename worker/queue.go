// Package worker implements the fixed-size background worker pool and
// bounded blocking queue used for ingestion (one task per chunk file) and,
// optionally, query fan-out (one task per shard).
//
// The pool is grounded on the bounded-parallelism idiom pileup/snp/pileup.go
// and encoding/bam/adjacent_sharded_bam_reader.go use with
// grailbio/base/traverse: a fixed worker count, each worker draining a
// shared work sequence. The queue replaces the original OS semaphore pair
// with Go's portable counted semaphore — a buffered channel — plus a
// shutdown event channel, the substitution called for in the design notes;
// grailbio/base/syncqueue's LIFO and OrderedQueue both block without a
// timeout, so neither can back the timeout-bounded TryEnqueue/TryDequeue
// contract.
package worker

import (
	"sync"
	"time"
)

// BlockingQueue is a fixed-capacity FIFO of interface{} items with
// timeout-bounded enqueue/dequeue: TryEnqueue blocks until a free slot
// appears or timeout elapses; TryDequeue blocks until an item appears or
// timeout elapses. Both return false rather than erroring on timeout;
// after shutdown, TryEnqueue returns false and TryDequeue returns false
// once the items enqueued before the shutdown have been drained.
//
// The buffered channel is the counted semaphore pair in one: its free
// capacity is the producers' semaphore, its buffered length the consumers'.
type BlockingQueue struct {
	items        chan interface{}
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewBlockingQueue constructs a BlockingQueue holding up to capacity items.
func NewBlockingQueue(capacity int) *BlockingQueue {
	return &BlockingQueue{
		items:    make(chan interface{}, capacity),
		shutdown: make(chan struct{}),
	}
}

// TryEnqueue attempts to push item, waiting up to timeout for a free slot.
// Returns false if the queue is shut down or timeout elapses first.
func (bq *BlockingQueue) TryEnqueue(item interface{}, timeout time.Duration) bool {
	select {
	case <-bq.shutdown:
		return false
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case bq.items <- item:
		return true
	case <-bq.shutdown:
		return false
	case <-timer.C:
		return false
	}
}

// TryDequeue attempts to pop the next item into *out, waiting up to timeout
// for one to appear. Items already enqueued remain dequeueable after
// Shutdown; once drained, TryDequeue returns false immediately.
func (bq *BlockingQueue) TryDequeue(out *interface{}, timeout time.Duration) bool {
	// Drain-first: a shut-down queue still hands out items that were
	// accepted before the shutdown event.
	select {
	case v := <-bq.items:
		*out = v
		return true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-bq.items:
		*out = v
		return true
	case <-bq.shutdown:
		// select picks at random among ready cases, so an item may have
		// arrived alongside the shutdown; hand it out before reporting.
		select {
		case v := <-bq.items:
			*out = v
			return true
		default:
			return false
		}
	case <-timer.C:
		return false
	}
}

// Done returns a channel closed once Shutdown has been called, for callers
// that need to distinguish a timeout from a shutdown after a false return.
func (bq *BlockingQueue) Done() <-chan struct{} {
	return bq.shutdown
}

// Shutdown unblocks every pending and future TryEnqueue call and every
// TryDequeue on an empty queue with a false return, per spec §5 "a shutdown
// propagates by setting a shared flag plus notifying all condition
// variables and semaphores." Idempotent.
func (bq *BlockingQueue) Shutdown() {
	bq.shutdownOnce.Do(func() {
		close(bq.shutdown)
	})
}
