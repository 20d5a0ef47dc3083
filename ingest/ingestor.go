package ingest

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/bitfunnel/bitfunnel/term"
	"github.com/bitfunnel/bitfunnel/termtable"
)

// ShardDefinition partitions documents across shards by posting count (spec
// §3: shards partition documents by size). MinPostings[i] is the smallest
// posting count shard i accepts; the boundaries must be ascending and
// MinPostings[0] is conventionally 0. A document with p postings lands in
// the last shard whose boundary is <= p.
type ShardDefinition struct {
	MinPostings []int
}

// ShardFor returns the shard index for a document with postingCount
// postings, clamped to [0, shardCount). An empty definition sends
// everything to shard 0.
func (d ShardDefinition) ShardFor(postingCount, shardCount int) int {
	if len(d.MinPostings) == 0 || shardCount <= 1 {
		return 0
	}
	// First boundary strictly greater than postingCount; the document
	// belongs to the shard before it.
	i := sort.SearchInts(d.MinPostings, postingCount+1) - 1
	if i < 0 {
		i = 0
	}
	if i >= shardCount {
		i = shardCount - 1
	}
	return i
}

// Ingestor fans documents out across a fixed set of shards and maintains
// the DocId -> DocHandle registry (spec §4.C steps 1-6). Shard selection is
// a posting-count lookup against the ShardDefinition, so small and large
// documents land in shards with geometry tuned to their size.
type Ingestor struct {
	shards   []*Shard
	def      ShardDefinition
	registry *Registry
}

// NewIngestor constructs an Ingestor with one Shard per TermTable in tts,
// in order: shard i uses tts[i] and is addressed as shard index i. def
// supplies the posting-count boundaries; the zero ShardDefinition routes
// every document to shard 0.
func NewIngestor(tts []*termtable.TermTable, def ShardDefinition) *Ingestor {
	shards := make([]*Shard, len(tts))
	for i, tt := range tts {
		shards[i] = NewShard(i, tt)
	}
	return &Ingestor{shards: shards, def: def, registry: NewRegistry()}
}

// NumShards returns the number of shards.
func (ig *Ingestor) NumShards() int { return len(ig.shards) }

// Shard returns the shard at index i.
func (ig *Ingestor) Shard(i int) *Shard { return ig.shards[i] }

// Registry returns the ingestor's DocId registry.
func (ig *Ingestor) Registry() *Registry { return ig.registry }

// Add ingests doc under id, selecting the shard whose posting-count range
// covers doc, and registering the resulting handle. Re-adding an id that is
// already registered is rejected: callers that want to replace a document
// must Expire it first (spec §4.F).
func (ig *Ingestor) Add(id DocId, doc *term.Document) (DocHandle, error) {
	if len(ig.shards) == 0 {
		return DocHandle{}, errors.New("ingest: no shards configured")
	}
	if _, ok := ig.registry.Lookup(id); ok {
		return DocHandle{}, errors.Errorf("ingest: document %d already registered", id)
	}

	shard := ig.shards[ig.def.ShardFor(doc.NumPostings(), len(ig.shards))]
	handle := shard.AddDocument(id, doc)
	ig.registry.Register(id, handle)
	return handle, nil
}

// Expire unpublishes id's document (clears DocumentActive) and removes it
// from the registry, making the column eligible for eventual reclamation by
// the recycler once all trackers observing it complete (spec §4.F).
func (ig *Ingestor) Expire(id DocId) error {
	handle, ok := ig.registry.Lookup(id)
	if !ok {
		return errors.Errorf("ingest: document %d not registered", id)
	}
	ig.shards[handle.Shard].ExpireDocument(handle)
	ig.registry.Delete(id)
	return nil
}

// IsActive reports whether id's document is currently published and live.
func (ig *Ingestor) IsActive(id DocId) bool {
	handle, ok := ig.registry.Lookup(id)
	if !ok {
		return false
	}
	return ig.shards[handle.Shard].IsDocumentActive(handle)
}
