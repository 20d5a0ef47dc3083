// Package termtable implements the TermTable (spec §4.B): a build-once,
// then-sealed, then-read-only map from a Term's hash to a sequence of
// RowIds. Three row families are supported: Explicit (assigned to a specific
// term by the builder), Adhoc (selected at query time via a hash-of-hash
// recipe shared by many terms), and Fact (reserved rank-0 system/user
// rows).
package termtable

import (
	"github.com/grailbio/base/log"

	"github.com/bitfunnel/bitfunnel/rows"
	"github.com/bitfunnel/bitfunnel/term"
)

type rankCounts struct {
	Explicit int
	Adhoc    int
}

type adhocKey struct {
	Idf  term.IdfX10
	Gram uint8
}

// buildTerm accumulates the row refs pushed between OpenTerm and
// CloseTerm/CloseAdhocTerm.
type buildTerm struct {
	open  bool
	ranks []rows.Rank
	rels  []int // build-time relative indices; meaningful only for explicit rows
}

// TermTable maps a Term's hash to a PackedRowIdSequence. It is built via
// OpenTerm/AddRowId/CloseTerm(orAdhoc)/SetRowCounts/SetFactCount, then
// Seal()ed into an immutable, concurrently-readable structure.
type TermTable struct {
	sealed bool

	explicit     map[term.Hash]rows.PackedRowIdSequence
	explicitRows []rows.RowId // flat array; explicit slots are never offset by Seal (offset 0)

	adhocByKey  map[adhocKey]rows.PackedRowIdSequence
	adhocRanks  []rows.Rank // flat array of ranks, one per adhoc recipe slot

	factRows []rows.RowId // flat array; absolute after Seal

	rowCounts [rows.MaxRank + 1]rankCounts
	userFactCount int

	cur buildTerm
}

// New constructs an empty, unsealed TermTable.
func New() *TermTable {
	return &TermTable{
		explicit:   make(map[term.Hash]rows.PackedRowIdSequence),
		adhocByKey: make(map[adhocKey]rows.PackedRowIdSequence),
	}
}

func (t *TermTable) mustNotBeSealed(op string) {
	if t.sealed {
		log.Panicf("termtable: %s called after Seal", op)
	}
}

// OpenTerm begins accumulating row refs for one term. Calling OpenTerm while
// a term is already open, or calling it after Seal, is fatal.
func (t *TermTable) OpenTerm() {
	t.mustNotBeSealed("OpenTerm")
	if t.cur.open {
		log.Panicf("termtable: OpenTerm called while a term is already open")
	}
	t.cur = buildTerm{open: true}
}

// AddRowId pushes one row reference onto the currently open term. relIndex
// is meaningful only for explicit terms (the row's position within the
// rank's explicit band); adhoc recipes only need the rank, since the
// RowIndex is synthesized at read time (spec §4.B).
func (t *TermTable) AddRowId(rank rows.Rank, relIndex int) {
	t.mustNotBeSealed("AddRowId")
	if !t.cur.open {
		log.Panicf("termtable: AddRowId called with no open term")
	}
	t.cur.ranks = append(t.cur.ranks, rank)
	t.cur.rels = append(t.cur.rels, relIndex)
}

// CloseTerm closes the currently open term as an Explicit term keyed by
// hash, recording {start, count, Explicit}. Reopening/duplicate-closing a
// term is fatal (a build-protocol violation).
func (t *TermTable) CloseTerm(hash term.Hash) {
	t.mustNotBeSealed("CloseTerm")
	if !t.cur.open {
		log.Panicf("termtable: CloseTerm called with no open term")
	}
	if _, exists := t.explicit[hash]; exists {
		log.Panicf("termtable: duplicate CloseTerm for hash %d", hash)
	}
	start := len(t.explicitRows)
	for i, rank := range t.cur.ranks {
		t.explicitRows = append(t.explicitRows, rows.RowId{Rank: rank, Index: rows.RowIndex(t.cur.rels[i])})
	}
	t.explicit[hash] = rows.Pack(start, len(t.cur.ranks), rows.Explicit)
	t.cur = buildTerm{}
}

// CloseAdhocTerm closes the currently open term as an Adhoc recipe keyed by
// (idf, gramSize): the stored ranks are recipe slots; the RowIndex per slot
// is synthesized at read time by GetRowIdAdhoc.
func (t *TermTable) CloseAdhocTerm(idf term.IdfX10, gramSize uint8) {
	t.mustNotBeSealed("CloseAdhocTerm")
	if !t.cur.open {
		log.Panicf("termtable: CloseAdhocTerm called with no open term")
	}
	key := adhocKey{Idf: idf, Gram: gramSize}
	if _, exists := t.adhocByKey[key]; exists {
		log.Panicf("termtable: duplicate CloseAdhocTerm for (idf=%d, gram=%d)", idf, gramSize)
	}
	start := len(t.adhocRanks)
	t.adhocRanks = append(t.adhocRanks, t.cur.ranks...)
	t.adhocByKey[key] = rows.Pack(start, len(t.cur.ranks), rows.Adhoc)
	t.cur = buildTerm{}
}

// SetRowCounts records, for one rank, how many explicit rows and how many
// adhoc rows exist. Must be called once per rank used, before Seal.
func (t *TermTable) SetRowCounts(rank rows.Rank, explicitCount, adhocCount int) {
	t.mustNotBeSealed("SetRowCounts")
	t.rowCounts[rank] = rankCounts{Explicit: explicitCount, Adhoc: adhocCount}
}

// SetFactCount records the number of reserved user-defined fact rows
// (beyond the three system facts DocumentActive/MatchAll/MatchNone, which
// are always present).
func (t *TermTable) SetFactCount(factCount int) {
	t.mustNotBeSealed("SetFactCount")
	t.userFactCount = factCount
}
