package ingest

import (
	"sync"

	"github.com/grailbio/base/errorreporter"

	"github.com/bitfunnel/bitfunnel/rows"
	"github.com/bitfunnel/bitfunnel/term"
	"github.com/bitfunnel/bitfunnel/termtable"
)

// Shard owns one TermTable and the slices holding its documents.
//
// Per spec §4.C, a shard's lock is held only across slice allocation, never
// across a Token boundary: reserveColumn holds shard.mu only to read the
// current slice, then reserves a column through Slice.allocate's lock-free
// CAS loop, and posting bits are OR-ed in with no lock held. The rollover
// path — the current slice is full and a new one must be installed — takes
// shard.mu a second time to install it.
type Shard struct {
	index int
	tt    *termtable.TermTable

	mu      sync.Mutex
	slices  []*Slice
	current *Slice

	errs errorreporter.T
}

// NewShard constructs a Shard backed by a sealed TermTable, with one empty
// slice ready to receive documents.
func NewShard(index int, tt *termtable.TermTable) *Shard {
	s := &Shard{index: index, tt: tt}
	s.current = newSlice(0, tt)
	s.slices = append(s.slices, s.current)
	return s
}

// Index returns the shard's index among its Ingestor's shards.
func (s *Shard) Index() int { return s.index }

// TermTable returns the shard's TermTable.
func (s *Shard) TermTable() *termtable.TermTable { return s.tt }

// NumSlices returns the number of slices allocated so far.
func (s *Shard) NumSlices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slices)
}

// Slice returns the slice at index i.
func (s *Shard) Slice(i int) *Slice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slices[i]
}

// reserveColumn reserves the next free document column for this shard,
// rolling over to a new slice if the current one is full (spec §4.C step
// 3: "if the active slice is full, allocate a new one under the shard
// lock").
func (s *Shard) reserveColumn() (*Slice, int) {
	for {
		s.mu.Lock()
		cur := s.current
		s.mu.Unlock()

		if col, ok := cur.allocate(); ok {
			return cur, col
		}

		s.mu.Lock()
		if s.current == cur {
			next := newSlice(len(s.slices), s.tt)
			s.slices = append(s.slices, next)
			s.current = next
		}
		s.mu.Unlock()
	}
}

// AddDocument ingests doc's postings into a freshly reserved column,
// looking up each posting's rows via the shard's TermTable and OR-ing the
// document's bit into every matching row. The column's DocId mapping is
// written and then DocumentActive is set last, publishing the column only
// once every other write is already visible (spec §4.C step 5, §5
// "Ordering guarantees").
func (s *Shard) AddDocument(id DocId, doc *term.Document) DocHandle {
	slice, col := s.reserveColumn()

	for _, t := range doc.Postings() {
		seq := s.tt.GetRows(t)
		for {
			row, ok := seq.Next()
			if !ok {
				break
			}
			slice.SetRow(row, col)
		}
	}

	slice.setDocId(col, id)
	slice.SetRow(s.tt.DocumentActiveRow(), col)

	return DocHandle{Shard: s.index, Slice: slice.index, DocIndex: col}
}

// IsDocumentActive reports whether the document at handle is still active.
func (s *Shard) IsDocumentActive(handle DocHandle) bool {
	slice := s.Slice(handle.Slice)
	return slice.TestRow(s.tt.DocumentActiveRow(), handle.DocIndex)
}

// ExpireDocument clears DocumentActive for handle (spec §4.F: a retired
// document is unpublished before its slice is ever recycled).
func (s *Shard) ExpireDocument(handle DocHandle) {
	slice := s.Slice(handle.Slice)
	row := s.tt.DocumentActiveRow()
	buf := slice.Buffer(row.Rank)
	buf.ClearBit(int(row.Index), handle.DocIndex>>row.Rank)
}

// NumDocuments returns the number of columns allocated across the shard's
// slices so far.
func (s *Shard) NumDocuments() int {
	s.mu.Lock()
	slices := append([]*Slice(nil), s.slices...)
	s.mu.Unlock()
	total := 0
	for _, slice := range slices {
		total += slice.numAllocated()
	}
	return total
}

// RowDensities returns, for each row at rank, the fraction of set bits over
// the columns allocated so far — the per-shard RowDensity diagnostic. An
// empty shard yields all zeros.
func (s *Shard) RowDensities(rank rows.Rank) []float64 {
	s.mu.Lock()
	slices := append([]*Slice(nil), s.slices...)
	s.mu.Unlock()

	rowCount := s.tt.GetTotalRowCount(rank)
	counts := make([]int, rowCount)
	totalCols := 0
	for _, slice := range slices {
		buf := slice.Buffer(rank)
		if buf == nil {
			continue
		}
		allocated := slice.numAllocated()
		if allocated == 0 {
			continue
		}
		cols := (allocated + (1 << rank) - 1) >> rank
		totalCols += cols
		for r := 0; r < rowCount; r++ {
			counts[r] += buf.RowPopCount(r, cols)
		}
	}

	out := make([]float64, rowCount)
	if totalCols == 0 {
		return out
	}
	for r := range counts {
		out[r] = float64(counts[r]) / float64(totalCols)
	}
	return out
}

// ColumnDensities returns, for each allocated rank-0 column, the fraction
// of the shard's rank-0 rows with that column's bit set — the per-shard
// ColumnDensity diagnostic.
func (s *Shard) ColumnDensities() []float64 {
	s.mu.Lock()
	slices := append([]*Slice(nil), s.slices...)
	s.mu.Unlock()

	rowCount := s.tt.GetTotalRowCount(0)
	var out []float64
	for _, slice := range slices {
		buf := slice.Buffer(0)
		allocated := slice.numAllocated()
		for col := 0; col < allocated; col++ {
			set := 0
			for r := 0; r < rowCount; r++ {
				if buf.TestBit(r, col) {
					set++
				}
			}
			out = append(out, float64(set)/float64(rowCount))
		}
	}
	return out
}

// RecordError records an ingestion error without interrupting the caller;
// only the first error is retained (spec §7 "Recoverable" category:
// per-document failures do not halt the ingestion stream).
func (s *Shard) RecordError(err error) {
	if err != nil {
		s.errs.Set(err)
	}
}

// Err returns the first recorded ingestion error, if any.
func (s *Shard) Err() error {
	return s.errs.Err()
}
