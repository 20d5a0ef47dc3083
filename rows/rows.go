// Package rows defines the primitive row-addressing types shared by
// termtable, bitmatrix, ingest and query: Rank, RowIndex, RowId, and the
// bit-packed PackedRowIdSequence descriptor that a TermTable stores per
// term.
package rows

import "fmt"

// MaxRank is the highest supported rank. A rank-r row covers 2^r consecutive
// documents with a single bit.
const MaxRank = 6

// Rank identifies how many consecutive documents a single bit of a row
// covers: 2^Rank.
type Rank uint8

// RowIndex is the position of a row within a shard's RowTable at a given
// rank, after TermTable.Seal has converted it from a build-time relative
// index to an absolute one.
type RowIndex uint32

// RowId refers to a single row inside a shard's RowTable of the matching
// rank.
type RowId struct {
	Rank  Rank
	Index RowIndex
}

func (r RowId) String() string {
	return fmt.Sprintf("Row(rank=%d, index=%d)", r.Rank, r.Index)
}

// Kind identifies which of the three row families a PackedRowIdSequence
// slot refers to.
type Kind uint8

const (
	// Explicit rows are assigned to a specific term by the TermTable
	// builder.
	Explicit Kind = iota
	// Adhoc rows are selected at query time via a hash-of-hash of the
	// term; many terms share the same adhoc row.
	Adhoc
	// Fact rows are reserved rank-0 rows representing a system or
	// user-defined fact (e.g. DocumentActive).
	Fact
)

func (k Kind) String() string {
	switch k {
	case Explicit:
		return "Explicit"
	case Adhoc:
		return "Adhoc"
	case Fact:
		return "Fact"
	default:
		return "Unknown"
	}
}

// PackedRowIdSequence is the bit-packed {start, count, type} descriptor a
// sealed TermTable stores per term, matching
// original_source/inc/BitFunnel/Index/PackedRowIdSequence.h: start (22
// bits), count (8 bits), and a 2-bit type tag, all packed into a uint32 so
// that a TermTable's per-term map stays cache-dense.
type PackedRowIdSequence uint32

const (
	startBits = 22
	countBits = 8
	typeBits  = 2

	startMask = (uint32(1) << startBits) - 1
	countMask = (uint32(1) << countBits) - 1
	typeMask  = (uint32(1) << typeBits) - 1

	countShift = startBits
	typeShift  = startBits + countBits
)

// MaxStart and MaxCount bound what Pack can represent.
const (
	MaxStart = int(startMask)
	MaxCount = int(countMask)
)

// Pack bit-packs a (start, count, kind) triple. Fatal (panics) if start or
// count overflow their field widths: this only happens on a malformed
// TermTable build, which is a programming error, not a runtime condition.
func Pack(start, count int, kind Kind) PackedRowIdSequence {
	if start < 0 || start > MaxStart {
		panic(fmt.Sprintf("rows: start %d out of range [0,%d]", start, MaxStart))
	}
	if count < 0 || count > MaxCount {
		panic(fmt.Sprintf("rows: count %d out of range [0,%d]", count, MaxCount))
	}
	v := uint32(start) | (uint32(count) << countShift) | (uint32(kind) << typeShift)
	return PackedRowIdSequence(v)
}

// Start returns the packed start index.
func (p PackedRowIdSequence) Start() int {
	return int(uint32(p) & startMask)
}

// Count returns the packed row count.
func (p PackedRowIdSequence) Count() int {
	return int((uint32(p) >> countShift) & countMask)
}

// Kind returns the packed row family.
func (p PackedRowIdSequence) Kind() Kind {
	return Kind((uint32(p) >> typeShift) & typeMask)
}
