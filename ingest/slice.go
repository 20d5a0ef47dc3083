package ingest

import (
	"sync/atomic"

	"github.com/bitfunnel/bitfunnel/bitmatrix"
	"github.com/bitfunnel/bitfunnel/rows"
	"github.com/bitfunnel/bitfunnel/termtable"
)

// SliceCapacity is the fixed number of document columns held by one Slice.
// Slices are arenas: allocated once at this size, filled, sealed, and never
// reused in place (spec §4.C).
const SliceCapacity = 4096

// Slice is one fixed-capacity arena of document columns, holding one
// bitmatrix.RankBuffer per rank the owning shard's TermTable actually uses,
// plus the column -> DocId mapping the matcher uses to resolve hits back to
// external document identifiers.
type Slice struct {
	index   int
	buffers [rows.MaxRank + 1]*bitmatrix.RankBuffer
	docIds  []DocId

	count  int64 // atomically incremented; next free column, capped at SliceCapacity
	sealed int32 // atomic bool, set once count reaches SliceCapacity
}

func newSlice(index int, tt *termtable.TermTable) *Slice {
	s := &Slice{index: index, docIds: make([]DocId, SliceCapacity)}
	for r := rows.Rank(0); r <= rows.MaxRank; r++ {
		if !tt.IsRankUsed(r) && r != 0 {
			continue
		}
		docsPerRow := SliceCapacity >> r
		if docsPerRow < bitmatrix.BitsPerWord {
			docsPerRow = bitmatrix.BitsPerWord
		}
		s.buffers[r] = bitmatrix.NewRankBuffer(uint8(r), tt.GetTotalRowCount(r), docsPerRow)
	}
	// The MatchAll system row is constant all-ones; fill it before the
	// slice is published so readers never observe it partially set. The
	// MatchNone and DocumentActive rows start (correctly) all-zero.
	matchAll := tt.MatchAllRow()
	s.buffers[matchAll.Rank].FillRow(int(matchAll.Index))
	return s
}

// Index returns the slice's position within its shard's slice list.
func (s *Slice) Index() int { return s.index }

// allocate reserves the next free document column. ok is false once the
// slice has reached SliceCapacity; the caller must roll over to a new
// slice.
func (s *Slice) allocate() (column int, ok bool) {
	for {
		c := atomic.LoadInt64(&s.count)
		if c >= SliceCapacity {
			atomic.StoreInt32(&s.sealed, 1)
			return 0, false
		}
		if atomic.CompareAndSwapInt64(&s.count, c, c+1) {
			if c+1 >= SliceCapacity {
				atomic.StoreInt32(&s.sealed, 1)
			}
			return int(c), true
		}
	}
}

// Sealed reports whether the slice has reached capacity.
func (s *Slice) Sealed() bool { return atomic.LoadInt32(&s.sealed) != 0 }

// numAllocated returns how many columns have been reserved so far.
func (s *Slice) numAllocated() int {
	c := atomic.LoadInt64(&s.count)
	if c > SliceCapacity {
		c = SliceCapacity
	}
	return int(c)
}

// SetRow sets the bit for document column col in row. At rank r, a single
// bit covers 2^r consecutive document columns, so the physical column
// addressed is col >> r.
func (s *Slice) SetRow(row rows.RowId, col int) {
	buf := s.buffers[row.Rank]
	buf.SetBit(int(row.Index), col>>row.Rank)
}

// TestRow reports whether the bit for document column col is set in row.
func (s *Slice) TestRow(row rows.RowId, col int) bool {
	buf := s.buffers[row.Rank]
	return buf.TestBit(int(row.Index), col>>row.Rank)
}

// Buffer returns the rank buffer at rank, or nil if the shard's TermTable
// never uses that rank.
func (s *Slice) Buffer(rank rows.Rank) *bitmatrix.RankBuffer {
	return s.buffers[rank]
}

// setDocId records the external DocId occupying col. Written by the
// ingester before the column's DocumentActive bit is set, so any reader
// that found the column live sees the mapping.
func (s *Slice) setDocId(col int, id DocId) {
	s.docIds[col] = id
}

// DocId resolves a document column to its external DocId. Only meaningful
// for columns whose DocumentActive bit the caller has already observed set
// (spec §4.E: the matcher resolves docIndex to DocId via the slice's
// mapping as its final step).
func (s *Slice) DocId(col int) DocId {
	return s.docIds[col]
}
