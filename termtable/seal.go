package termtable

import (
	"github.com/grailbio/base/log"

	"github.com/bitfunnel/bitfunnel/rows"
)

// Fact slot numbers reserved for the three system terms (spec §9 "Global
// system terms"). These are process-wide invariants, not mutable state.
const (
	FactSlotDocumentActive = 0
	FactSlotMatchAll       = 1
	FactSlotMatchNone      = 2

	// SystemFactCount is the number of reserved system fact slots that
	// precede any user-defined facts in the rank-0 fact band.
	SystemFactCount = 3
)

// Seal finalizes the TermTable: relative row indices become absolute
// (explicit rows are offset by 0 — i.e. unchanged — adhoc rows are offset by
// explicitCount(rank) when synthesized at read time, and fact rows are
// placed at the top of rank 0, above the explicit and adhoc bands).  After
// Seal, the TermTable is immutable and safe for concurrent reads.
//
// Sealing twice, or sealing while a term is still open, is fatal.
func (t *TermTable) Seal() {
	if t.sealed {
		log.Panicf("termtable: Seal called twice")
	}
	if t.cur.open {
		log.Panicf("termtable: Seal called with an open term")
	}

	base := t.rowCounts[0].Explicit + t.rowCounts[0].Adhoc
	total := SystemFactCount + t.userFactCount
	t.factRows = make([]rows.RowId, total)
	for i := 0; i < total; i++ {
		t.factRows[i] = rows.RowId{Rank: 0, Index: rows.RowIndex(base + i)}
	}

	t.sealed = true
}

// Sealed reports whether Seal has been called.
func (t *TermTable) Sealed() bool {
	return t.sealed
}

// IsRankUsed reports whether any explicit or adhoc row has been configured
// at the given rank.
func (t *TermTable) IsRankUsed(rank rows.Rank) bool {
	c := t.rowCounts[rank]
	return c.Explicit > 0 || c.Adhoc > 0
}

// GetMaxRankUsed returns the highest rank with any configured rows, or 0 if
// none.
func (t *TermTable) GetMaxRankUsed() rows.Rank {
	max := rows.Rank(0)
	for r := rows.Rank(0); r <= rows.MaxRank; r++ {
		if t.IsRankUsed(r) {
			max = r
		}
	}
	return max
}

// GetTotalRowCount returns the number of physical rows stored at rank,
// across all three row families (fact rows only exist at rank 0).
func (t *TermTable) GetTotalRowCount(rank rows.Rank) int {
	c := t.rowCounts[rank]
	n := c.Explicit + c.Adhoc
	if rank == 0 {
		n += SystemFactCount + t.userFactCount
	}
	return n
}

// GetBytesPerDocument returns the approximate number of bytes of row-bit
// storage a single document at rank contributes: GetTotalRowCount(rank)
// rows, each storing one bit per 2^rank documents.
func (t *TermTable) GetBytesPerDocument(rank rows.Rank) float64 {
	bitsPerDoc := float64(t.GetTotalRowCount(rank)) / float64(uint64(1)<<rank)
	return bitsPerDoc / 8
}
