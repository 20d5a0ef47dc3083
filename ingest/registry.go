// Package ingest implements document ingestion (spec §4.C): shard/slice
// allocation, the DocId-to-column registry, and the per-document posting
// write algorithm that turns a term.Document into set bits across a
// shard's rank-sliced RowTables.
package ingest

import (
	"sync"

	"github.com/biogo/store/llrb"
)

// DocId is the caller-assigned external document identifier.
type DocId uint64

// DocHandle locates a document's column within the index: which shard,
// which of that shard's slices, and which column within the slice.
type DocHandle struct {
	Shard    int
	Slice    int
	DocIndex int
}

type registryEntry struct {
	id     DocId
	handle DocHandle
}

// Compare orders registryEntry by DocId, the ordering llrb.Tree needs to
// place it.
func (e *registryEntry) Compare(b llrb.Comparable) int {
	o := b.(*registryEntry)
	switch {
	case e.id < o.id:
		return -1
	case e.id > o.id:
		return 1
	default:
		return 0
	}
}

// Registry is the ordered DocId -> DocHandle map every ingested document is
// registered in (spec §4.C step 6). It is backed by an LLRB tree, giving
// query-time DocId range scans (e.g. a stats dump in DocId order) without a
// separate sort step, mirroring the ordered-registry shape fieldio/pamutil
// index structures use elsewhere in the teacher.
type Registry struct {
	mu   sync.RWMutex
	tree llrb.Tree
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register records id -> handle. Registering an id that already exists
// overwrites its handle.
func (r *Registry) Register(id DocId, handle DocHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree.Insert(&registryEntry{id: id, handle: handle})
}

// Lookup returns the handle registered for id, if any.
func (r *Registry) Lookup(id DocId) (DocHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v := r.tree.Get(&registryEntry{id: id})
	if v == nil {
		return DocHandle{}, false
	}
	return v.(*registryEntry).handle, true
}

// Delete removes id from the registry, e.g. once its document is retired
// (spec §4.F) and no longer addressable.
func (r *Registry) Delete(id DocId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree.Delete(&registryEntry{id: id})
}

// Len returns the number of registered documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tree.Len()
}

// Walk calls fn for every registered (DocId, DocHandle) pair in ascending
// DocId order, stopping early if fn returns false.
func (r *Registry) Walk(fn func(DocId, DocHandle) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.tree.Do(func(c llrb.Comparable) bool {
		e := c.(*registryEntry)
		return !fn(e.id, e.handle)
	})
}
