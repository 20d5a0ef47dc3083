package worker

import (
	"runtime"
	"sync/atomic"

	"github.com/grailbio/base/errorreporter"
	"github.com/grailbio/base/traverse"
)

// Pool runs n tasks across a fixed number of worker goroutines, one task
// per chunk file during ingestion or one per shard during query fan-out,
// and reports the first error any task returned. It follows the bounded
// fan-out idiom pileup/snp/pileup.go uses with traverse.Each: spawn exactly
// `limit` workers and have each drain a shared work sequence, so the worker
// count — not the task count — bounds parallelism.
type Pool struct {
	limit int
}

// NewPool constructs a Pool with the given worker count. A limit of 0 uses
// GOMAXPROCS, matching traverse.CPU.
func NewPool(limit int) *Pool {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Pool{limit: limit}
}

// Run executes task(i) for i in [0, n), fanned out across the pool's fixed
// worker count, and returns the first error encountered. A worker stops
// claiming new tasks once its own task has returned an error; the other
// workers keep claiming and running the remaining tasks. Only the first
// error is returned; errors from later failing tasks are not reported.
func (p *Pool) Run(n int, task func(i int) error) error {
	if n <= 0 {
		return nil
	}
	workers := p.limit
	if workers > n {
		workers = n
	}
	next := int64(-1)
	var first FirstError
	err := traverse.Each(workers, func(_ int) error {
		for {
			i := int(atomic.AddInt64(&next, 1))
			if i >= n {
				return nil
			}
			if err := task(i); err != nil {
				first.Set(err)
				return err
			}
		}
	})
	if ferr := first.Err(); ferr != nil {
		return ferr
	}
	return err
}

// FirstError accumulates the first non-nil error reported by Set, matching
// the coordinator pattern ingest.Shard already uses (errorreporter.T) to
// turn a fan-out of goroutine errors into one fatal flag the caller
// observes on join.
type FirstError struct {
	reporter errorreporter.T
}

// Set records err if it is the first non-nil error seen. Safe for
// concurrent use from multiple worker goroutines.
func (f *FirstError) Set(err error) {
	f.reporter.Set(err)
}

// Err returns the first error recorded, or nil if none.
func (f *FirstError) Err() error {
	return f.reporter.Err()
}
