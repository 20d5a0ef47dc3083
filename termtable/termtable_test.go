package termtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfunnel/bitfunnel/rows"
	"github.com/bitfunnel/bitfunnel/term"
)

func buildSimple(t *testing.T) *TermTable {
	tt := New()
	tt.SetRowCounts(0, 2, 4) // rank 0: 2 explicit rows, 4 adhoc rows
	tt.SetFactCount(1)

	tt.OpenTerm()
	tt.AddRowId(0, 0)
	tt.CloseTerm(term.Hash(100))

	tt.OpenTerm()
	tt.AddRowId(0, 1)
	tt.CloseTerm(term.Hash(200))

	tt.OpenTerm()
	tt.AddRowId(0, 0)
	tt.CloseAdhocTerm(term.IdfX10(30), 1)

	tt.Seal()
	return tt
}

func TestExplicitRowRoundTrip(t *testing.T) {
	tt := buildSimple(t)
	seq := tt.GetRows(term.Term{Hash: term.Hash(100), Stream: 1, IdfX10: 30, GramSize: 1})
	require.Equal(t, 1, seq.Len())
	row, ok := seq.Next()
	require.True(t, ok)
	assert.Equal(t, rows.RowId{Rank: 0, Index: 0}, row)
	_, ok = seq.Next()
	assert.False(t, ok)
}

func TestUnknownTermYieldsEmptySequence(t *testing.T) {
	tt := buildSimple(t)
	seq := tt.GetRows(term.Term{Hash: term.Hash(999999), Stream: 1, IdfX10: 99, GramSize: 3})
	assert.Equal(t, 0, seq.Len())
	_, ok := seq.Next()
	assert.False(t, ok)
}

func TestAdhocRowWithinBounds(t *testing.T) {
	tt := buildSimple(t)
	seq := tt.GetRows(term.Term{Hash: term.Hash(42), Stream: 1, IdfX10: 30, GramSize: 1})
	require.Equal(t, 1, seq.Len())
	row, ok := seq.Next()
	require.True(t, ok)
	assert.Equal(t, rows.Rank(0), row.Rank)
	assert.GreaterOrEqual(t, int(row.Index), 2) // offset by explicit count
	assert.Less(t, int(row.Index), 2+4)
}

func TestAdhocRowDistinctByVariant(t *testing.T) {
	tt := New()
	tt.SetRowCounts(0, 0, 97)
	tt.OpenTerm()
	for i := 0; i < 5; i++ {
		tt.AddRowId(0, 0)
	}
	tt.CloseAdhocTerm(10, 3)
	tt.Seal()

	seq := tt.GetRows(term.Term{Hash: term.Hash(7), Stream: 1, IdfX10: 10, GramSize: 3})
	seen := map[rows.RowIndex]bool{}
	for {
		row, ok := seq.Next()
		if !ok {
			break
		}
		seen[row.Index] = true
	}
	assert.Greater(t, len(seen), 1, "distinct variants should usually land on distinct rows")
}

func TestSystemTermsResolveToFactRows(t *testing.T) {
	tt := buildSimple(t)
	seq := tt.GetRows(DocumentActiveTerm())
	row, ok := seq.Next()
	require.True(t, ok)
	assert.Equal(t, tt.DocumentActiveRow(), row)

	assert.NotEqual(t, tt.MatchAllRow(), tt.MatchNoneRow())
}

func TestDuplicateCloseTermIsFatal(t *testing.T) {
	tt := New()
	tt.SetRowCounts(0, 1, 0)
	tt.OpenTerm()
	tt.AddRowId(0, 0)
	tt.CloseTerm(term.Hash(1))

	assert.Panics(t, func() {
		tt.OpenTerm()
		tt.CloseTerm(term.Hash(1))
	})
}

func TestReopenWithoutCloseIsFatal(t *testing.T) {
	tt := New()
	tt.OpenTerm()
	assert.Panics(t, func() { tt.OpenTerm() })
}

func TestSealTwiceIsFatal(t *testing.T) {
	tt := buildSimple(t)
	assert.Panics(t, func() { tt.Seal() })
}

func TestGetRowsBeforeSealIsFatal(t *testing.T) {
	tt := New()
	assert.Panics(t, func() { tt.GetRows(term.Term{}) })
}

func TestGeometryQueries(t *testing.T) {
	tt := buildSimple(t)
	assert.True(t, tt.IsRankUsed(0))
	assert.False(t, tt.IsRankUsed(1))
	assert.Equal(t, rows.Rank(0), tt.GetMaxRankUsed())
	// 2 explicit + 4 adhoc + 3 system facts + 1 user fact = 10.
	assert.Equal(t, 10, tt.GetTotalRowCount(0))
}
