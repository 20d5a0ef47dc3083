package termtable

import (
	"encoding/binary"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/log"

	"github.com/bitfunnel/bitfunnel/rows"
	"github.com/bitfunnel/bitfunnel/term"
)

// RowIdSequence is the unifying iterator over a term's rows, whichever
// family backs them (Explicit, Adhoc, or Fact). This collapses what would
// otherwise be three separate accessor calls scattered at every call site
// into one iteration protocol used identically by the ingestion bit-setter
// and the query planner (see SPEC_FULL.md, "Supplemented features", grounded
// on original_source/src/Index/src/RowIdSequence.cpp).
type RowIdSequence struct {
	tt     *TermTable
	packed rows.PackedRowIdSequence
	hash   term.Hash
	i      int
}

// Len returns the number of rows in the sequence.
func (s RowIdSequence) Len() int {
	return s.packed.Count()
}

// Next returns the next RowId in the sequence, or (zero, false) once
// exhausted.
func (s *RowIdSequence) Next() (rows.RowId, bool) {
	if s.i >= s.packed.Count() {
		return rows.RowId{}, false
	}
	slot := s.packed.Start() + s.i
	variant := s.i
	s.i++
	switch s.packed.Kind() {
	case rows.Explicit:
		return s.tt.GetRowIdExplicit(slot), true
	case rows.Fact:
		return s.tt.GetRowIdFact(slot), true
	case rows.Adhoc:
		rank := s.tt.adhocRanks[slot]
		return s.tt.GetRowIdAdhoc(s.hash, variant, rank), true
	default:
		log.Panicf("termtable: unknown row kind at match time")
		return rows.RowId{}, false
	}
}

func (t *TermTable) mustBeSealed(op string) {
	if !t.sealed {
		log.Panicf("termtable: %s called before Seal", op)
	}
}

// GetRows resolves a Term to its RowIdSequence. An unknown term (neither an
// explicit nor a matching adhoc recipe) yields an empty sequence, not an
// error — per spec, "requesting rows for an unknown term yields an empty
// sequence."
func (t *TermTable) GetRows(tm term.Term) RowIdSequence {
	t.mustBeSealed("GetRows")
	if tm.Stream == term.SystemStreamId {
		if slot, ok := systemFactSlot(tm.Hash); ok {
			return RowIdSequence{tt: t, packed: rows.Pack(slot, 1, rows.Fact)}
		}
	}
	if packed, ok := t.explicit[tm.Hash]; ok {
		return RowIdSequence{tt: t, packed: packed, hash: tm.Hash}
	}
	key := adhocKey{Idf: tm.IdfX10, Gram: tm.GramSize}
	if packed, ok := t.adhocByKey[key]; ok {
		return RowIdSequence{tt: t, packed: packed, hash: tm.Hash}
	}
	return RowIdSequence{}
}

// GetRowIdExplicit returns the absolute RowId stored at the given position
// in the flat explicit-rows array.
func (t *TermTable) GetRowIdExplicit(index int) rows.RowId {
	t.mustBeSealed("GetRowIdExplicit")
	return t.explicitRows[index]
}

// GetRowIdFact returns the absolute RowId stored at the given position in
// the flat fact-rows array.
func (t *TermTable) GetRowIdFact(index int) rows.RowId {
	t.mustBeSealed("GetRowIdFact")
	return t.factRows[index]
}

// GetRowIdAdhoc synthesizes an adhoc RowId: index = h(hash, variant) mod
// adhocCount(rank), offset by the explicit band's size at that rank. variant
// is the 0-based position of this row within the term's recipe, so that
// multiple adhoc rows sharing the same term hash land on distinct rows
// (spec §4.B).
//
// adhocCount(rank) == 0 while a recipe references that rank is a build-time
// invariant violation (SetRowCounts must be called for every rank with an
// adhoc recipe before Seal).
func (t *TermTable) GetRowIdAdhoc(hash term.Hash, variant int, rank rows.Rank) rows.RowId {
	t.mustBeSealed("GetRowIdAdhoc")
	counts := t.rowCounts[rank]
	if counts.Adhoc == 0 {
		log.Panicf("termtable: adhoc row requested at rank %d with zero adhocCount", rank)
	}
	h := adhocSlotHash(hash, variant)
	index := int(h % uint64(counts.Adhoc))
	return rows.RowId{Rank: rank, Index: rows.RowIndex(counts.Explicit + index)}
}

// adhocSlotHash mixes a term's raw hash with its recipe-slot variant using
// SeaHash — a hash family independent from the FarmHash family used for raw
// term hashing, so adhoc slot collisions aren't correlated with term-hash
// collisions.
func adhocSlotHash(hash term.Hash, variant int) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(hash))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(variant))
	h := seahash.New()
	h.Write(buf[:]) // nolint: errcheck
	return h.Sum64()
}
