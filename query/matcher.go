package query

import (
	"math/bits"

	"github.com/bitfunnel/bitfunnel/bitmatrix"
	"github.com/bitfunnel/bitfunnel/ingest"
)

// wordsPerCacheLine is how many 64-bit row words share one 64-byte cache
// line, the granularity CacheLineCounter counts at.
const wordsPerCacheLine = 8

// CacheLineCounter counts the distinct cache lines of row-buffer storage a
// match touches — research instrumentation for characterizing how much of
// the bit matrix a query actually reads (spec §4.E "Cache-line counting
// mode", §9). It is an optional Matcher collaborator: when absent the hot
// path pays a single nil check per row-word read and nothing else.
//
// Not safe for concurrent use; give each matcher goroutine its own counter
// and sum Lines() afterward.
type CacheLineCounter struct {
	seen map[cacheLineKey]struct{}
}

type cacheLineKey struct {
	buf  *bitmatrix.RankBuffer
	row  int
	line int
}

// NewCacheLineCounter constructs an empty counter.
func NewCacheLineCounter() *CacheLineCounter {
	return &CacheLineCounter{seen: make(map[cacheLineKey]struct{})}
}

func (c *CacheLineCounter) record(buf *bitmatrix.RankBuffer, row, wordIdx int) {
	c.seen[cacheLineKey{buf: buf, row: row, line: wordIdx / wordsPerCacheLine}] = struct{}{}
}

// Lines returns the number of distinct cache lines recorded so far.
func (c *CacheLineCounter) Lines() int {
	return len(c.seen)
}

// Merge folds other's recorded lines into c, for fan-out matchers that
// record into per-goroutine counters and combine afterward.
func (c *CacheLineCounter) Merge(other *CacheLineCounter) {
	for k := range other.seen {
		c.seen[k] = struct{}{}
	}
}

// Stats records instrumentation for one Match call: how many rank-0 words
// were visited, how many were skipped outright because the plan's
// combination produced an all-zero word, and how many matches were emitted.
type Stats struct {
	WordsVisited int
	WordsSkipped int
	Matches      int
}

// Matcher evaluates a compiled RowPlan word-at-a-time against a shard's
// slices, always restricting results to documents with DocumentActive set
// (spec §4.C "DocumentActive is the publication/liveness fence every reader
// must consult").
type Matcher struct {
	plan RowPlan
	ctr  *CacheLineCounter
}

// NewMatcher builds a Matcher that intersects plan's results with
// documentActive, the shard's DocumentActive row.
func NewMatcher(plan RowPlan, documentActive RowPlan) *Matcher {
	return &Matcher{plan: andWithActive(plan, documentActive)}
}

// SetCacheLineCounter attaches ctr to subsequent Match calls; nil detaches
// it, restoring the uninstrumented hot path.
func (m *Matcher) SetCacheLineCounter(ctr *CacheLineCounter) {
	m.ctr = ctr
}

func andWithActive(plan, documentActive RowPlan) RowPlan {
	return &planAnd{children: []RowPlan{plan, documentActive}}
}

// Match scans every rank-0 word of slice and returns the local document
// columns (0-based, within the slice) whose bit the plan sets, along with
// word-visit statistics.
func (m *Matcher) Match(slice *ingest.Slice, sliceCapacity int) ([]int, Stats) {
	var stats Stats
	var out []int

	wordCount := sliceCapacity / 64
	for w := 0; w < wordCount; w++ {
		word := m.plan.evalWord(slice, w, m.ctr)
		stats.WordsVisited++
		if word == 0 {
			stats.WordsSkipped++
			continue
		}
		base := w * 64
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			out = append(out, base+bit)
			word &= word - 1 // clear lowest set bit
		}
	}
	stats.Matches = len(out)
	return out, stats
}
