package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfunnel/bitfunnel/ingest"
	"github.com/bitfunnel/bitfunnel/term"
	"github.com/bitfunnel/bitfunnel/termtable"
)

func buildQueryTestTable(t *testing.T) *termtable.TermTable {
	tt := termtable.New()
	tt.SetRowCounts(0, 3, 0)
	tt.SetFactCount(0)

	tt.OpenTerm()
	tt.AddRowId(0, 0)
	tt.CloseTerm(term.New("hello", DefaultStream, 30).Hash)

	tt.OpenTerm()
	tt.AddRowId(0, 1)
	tt.CloseTerm(term.New("world", DefaultStream, 30).Hash)

	tt.OpenTerm()
	tt.AddRowId(0, 2)
	tt.CloseTerm(term.New("goodbye", DefaultStream, 30).Hash)

	tt.Seal()
	return tt
}

func TestCompileUnknownTermFoldsToConstFalse(t *testing.T) {
	tt := buildQueryTestTable(t)
	tree, err := Parse("nonexistent", testStreams())
	require.NoError(t, err)
	plan := Compile(tree, tt, 30, 1)
	_, isConst := plan.(planConst)
	assert.True(t, isConst)
}

func TestCompileAndWithNotPushesDownToAndNot(t *testing.T) {
	tt := buildQueryTestTable(t)
	tree, err := Parse("hello-world", testStreams())
	require.NoError(t, err)
	plan := Compile(tree, tt, 30, 1)
	_, isAndNot := plan.(*planAndNot)
	assert.True(t, isAndNot)
}

func TestCompileMatchAllAndMatchNoneConstantFold(t *testing.T) {
	tt := buildQueryTestTable(t)
	all := compileTermRows(tt, termtable.MatchAllTerm())
	require.IsType(t, planConst{}, all)
	assert.True(t, all.(planConst).value)

	none := compileTermRows(tt, termtable.MatchNoneTerm())
	require.IsType(t, planConst{}, none)
	assert.False(t, none.(planConst).value)
}

func addDoc(t *testing.T, shard *ingest.Shard, id ingest.DocId, tokens ...string) ingest.DocHandle {
	doc := term.NewDocument(1)
	for _, tok := range tokens {
		doc.AddToken(DefaultStream, tok, 30)
	}
	return shard.AddDocument(id, doc)
}

func TestMatchSimpleAnd(t *testing.T) {
	tt := buildQueryTestTable(t)
	shard := ingest.NewShard(0, tt)

	h1 := addDoc(t, shard, 1, "hello", "world")
	_ = addDoc(t, shard, 2, "hello")
	_ = addDoc(t, shard, 3, "world")

	tree, err := Parse("hello world", testStreams())
	require.NoError(t, err)
	plan := Compile(tree, tt, 30, 1)
	m := NewMatcher(plan, CompileDocumentActive(tt))

	slice := shard.Slice(h1.Slice)
	matches, stats := m.Match(slice, ingest.SliceCapacity)
	require.Len(t, matches, 1)
	assert.Equal(t, h1.DocIndex, matches[0])
	assert.Greater(t, stats.WordsVisited, 0)
}

func TestMatchResolvesDocIds(t *testing.T) {
	tt := buildQueryTestTable(t)
	shard := ingest.NewShard(0, tt)

	_ = addDoc(t, shard, 41, "world")
	h := addDoc(t, shard, 42, "hello")

	tree, err := Parse("hello", testStreams())
	require.NoError(t, err)
	m := NewMatcher(Compile(tree, tt, 30, 1), CompileDocumentActive(tt))

	slice := shard.Slice(h.Slice)
	matches, _ := m.Match(slice, ingest.SliceCapacity)
	require.Len(t, matches, 1)
	assert.Equal(t, ingest.DocId(42), slice.DocId(matches[0]))
}

func TestMatchOr(t *testing.T) {
	tt := buildQueryTestTable(t)
	shard := ingest.NewShard(0, tt)

	h1 := addDoc(t, shard, 1, "hello")
	h2 := addDoc(t, shard, 2, "goodbye")
	_ = addDoc(t, shard, 3, "world")

	tree, err := Parse("hello | goodbye", testStreams())
	require.NoError(t, err)
	plan := Compile(tree, tt, 30, 1)
	m := NewMatcher(plan, CompileDocumentActive(tt))

	slice := shard.Slice(0)
	matches, _ := m.Match(slice, ingest.SliceCapacity)
	assert.ElementsMatch(t, []int{h1.DocIndex, h2.DocIndex}, matches)
}

func TestMatchNotExcludesTerm(t *testing.T) {
	tt := buildQueryTestTable(t)
	shard := ingest.NewShard(0, tt)

	h1 := addDoc(t, shard, 1, "hello")
	_ = addDoc(t, shard, 2, "hello", "world")

	tree, err := Parse("hello-world", testStreams())
	require.NoError(t, err)
	plan := Compile(tree, tt, 30, 1)
	m := NewMatcher(plan, CompileDocumentActive(tt))

	slice := shard.Slice(0)
	matches, _ := m.Match(slice, ingest.SliceCapacity)
	require.Len(t, matches, 1)
	assert.Equal(t, h1.DocIndex, matches[0])
}

func TestMatchExcludesExpiredDocument(t *testing.T) {
	tt := buildQueryTestTable(t)
	shard := ingest.NewShard(0, tt)

	h1 := addDoc(t, shard, 1, "hello")
	shard.ExpireDocument(h1)

	tree, err := Parse("hello", testStreams())
	require.NoError(t, err)
	plan := Compile(tree, tt, 30, 1)
	m := NewMatcher(plan, CompileDocumentActive(tt))

	slice := shard.Slice(0)
	matches, _ := m.Match(slice, ingest.SliceCapacity)
	assert.Empty(t, matches)
}

// buildPhraseTestTable registers the bigrams a maxGram=2 ingestion of
// "shall i compare thee" would post, so the chunked phrase decomposition
// has explicit rows to land on.
func buildPhraseTestTable(t *testing.T) *termtable.TermTable {
	tt := termtable.New()
	tt.SetRowCounts(0, 2, 0)
	tt.SetFactCount(0)

	shallI := term.Compose(term.New("shall", DefaultStream, 30), term.New("i", DefaultStream, 30))
	compareThee := term.Compose(term.New("compare", DefaultStream, 30), term.New("thee", DefaultStream, 30))

	tt.OpenTerm()
	tt.AddRowId(0, 0)
	tt.CloseTerm(shallI.Hash)

	tt.OpenTerm()
	tt.AddRowId(0, 1)
	tt.CloseTerm(compareThee.Hash)

	tt.Seal()
	return tt
}

func TestMatchPhraseRequiresAdjacency(t *testing.T) {
	tt := buildPhraseTestTable(t)
	shard := ingest.NewShard(0, tt)

	adjacent := term.NewDocument(2)
	for _, tok := range []string{"shall", "i", "compare", "thee"} {
		adjacent.AddToken(DefaultStream, tok, 30)
	}
	h := shard.AddDocument(18, adjacent)

	scrambled := term.NewDocument(2)
	for _, tok := range []string{"thee", "compare", "i", "shall"} {
		scrambled.AddToken(DefaultStream, tok, 30)
	}
	shard.AddDocument(19, scrambled)

	tree, err := Parse(`"shall i compare thee"`, testStreams())
	require.NoError(t, err)
	plan := Compile(tree, tt, 30, 2)
	m := NewMatcher(plan, CompileDocumentActive(tt))

	slice := shard.Slice(0)
	matches, _ := m.Match(slice, ingest.SliceCapacity)
	require.Len(t, matches, 1)
	assert.Equal(t, h.DocIndex, matches[0])
}

// TestStreamScopedTermMissesOtherStreams pins the stream-scoping behavior:
// a term indexed only under the body stream must not match when the query
// qualifies it to a different stream, because the stream id is folded into
// the term hash.
func TestStreamScopedTermMissesOtherStreams(t *testing.T) {
	tt := termtable.New()
	tt.SetRowCounts(0, 1, 0)
	tt.SetFactCount(0)
	tt.OpenTerm()
	tt.AddRowId(0, 0)
	tt.CloseTerm(term.New("love", 1, 30).Hash) // body stream only
	tt.Seal()

	tree, err := Parse("title:love", testStreams())
	require.NoError(t, err)
	plan := Compile(tree, tt, 30, 1)
	pc, isConst := plan.(planConst)
	require.True(t, isConst)
	assert.False(t, pc.value)

	body, err := Parse("love", testStreams())
	require.NoError(t, err)
	_, isConst = Compile(body, tt, 30, 1).(planConst)
	assert.False(t, isConst, "the body-stream term resolves to a real row")
}

func TestCacheLineCounterCountsDistinctLines(t *testing.T) {
	tt := buildQueryTestTable(t)
	shard := ingest.NewShard(0, tt)
	addDoc(t, shard, 1, "hello")

	tree, err := Parse("hello", testStreams())
	require.NoError(t, err)
	m := NewMatcher(Compile(tree, tt, 30, 1), CompileDocumentActive(tt))
	ctr := NewCacheLineCounter()
	m.SetCacheLineCounter(ctr)

	slice := shard.Slice(0)
	m.Match(slice, ingest.SliceCapacity)
	first := ctr.Lines()
	assert.Greater(t, first, 0)

	// Re-matching the same slice touches the same lines: distinct count
	// must not grow.
	m.Match(slice, ingest.SliceCapacity)
	assert.Equal(t, first, ctr.Lines())
}

func TestEvaluateRequiresEveryAndedTerm(t *testing.T) {
	tree, err := Parse("hello world", testStreams())
	require.NoError(t, err)

	doc := term.NewDocument(1)
	doc.AddToken(DefaultStream, "hello", 30)
	doc.AddToken(DefaultStream, "world", 30)

	assert.True(t, tree.Evaluate(30, 1, doc))

	other := term.NewDocument(1)
	other.AddToken(DefaultStream, "hello", 30)
	assert.False(t, tree.Evaluate(30, 1, other))
}

func TestEvaluatePhraseUsesChunkedGrams(t *testing.T) {
	tree, err := Parse(`"shall i compare thee"`, testStreams())
	require.NoError(t, err)

	adjacent := term.NewDocument(2)
	for _, tok := range []string{"shall", "i", "compare", "thee"} {
		adjacent.AddToken(DefaultStream, tok, 30)
	}
	assert.True(t, tree.Evaluate(30, 2, adjacent))

	scrambled := term.NewDocument(2)
	for _, tok := range []string{"thee", "compare", "i", "shall"} {
		scrambled.AddToken(DefaultStream, tok, 30)
	}
	assert.False(t, tree.Evaluate(30, 2, scrambled))
}
