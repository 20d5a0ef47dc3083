package termtable

import (
	"github.com/bitfunnel/bitfunnel/rows"
	"github.com/bitfunnel/bitfunnel/term"
)

// systemFactSlot maps a system-stream reserved hash to its fact-band slot.
// These three slots are process-wide invariants (spec §9), encoded as
// constants rather than global mutable state.
func systemFactSlot(hash term.Hash) (int, bool) {
	switch hash {
	case term.HashDocumentActive:
		return FactSlotDocumentActive, true
	case term.HashMatchAll:
		return FactSlotMatchAll, true
	case term.HashMatchNone:
		return FactSlotMatchNone, true
	}
	return 0, false
}

// DocumentActiveRow returns the absolute RowId of the soft-delete mask: a
// reader ANDs this row's bit for a document's column as the final matcher
// step so partially-ingested or deleted documents are filtered out.
func (t *TermTable) DocumentActiveRow() rows.RowId {
	return t.GetRowIdFact(FactSlotDocumentActive)
}

// MatchAllRow returns the absolute RowId of the all-ones row at rank 0.
func (t *TermTable) MatchAllRow() rows.RowId {
	return t.GetRowIdFact(FactSlotMatchAll)
}

// MatchNoneRow returns the absolute RowId of the all-zeros row at rank 0.
func (t *TermTable) MatchNoneRow() rows.RowId {
	return t.GetRowIdFact(FactSlotMatchNone)
}

// DocumentActiveTerm, MatchAllTerm, and MatchNoneTerm are the three system
// terms at the reserved system stream.
func DocumentActiveTerm() term.Term {
	return term.Term{Hash: term.HashDocumentActive, Stream: term.SystemStreamId, GramSize: 1}
}

func MatchAllTerm() term.Term {
	return term.Term{Hash: term.HashMatchAll, Stream: term.SystemStreamId, GramSize: 1}
}

func MatchNoneTerm() term.Term {
	return term.Term{Hash: term.HashMatchNone, Stream: term.SystemStreamId, GramSize: 1}
}
