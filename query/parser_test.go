package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfunnel/bitfunnel/term"
)

func testStreams() Streams {
	return Streams{
		Default: DefaultStream,
		ByName: map[string]term.StreamId{
			"body":  1,
			"title": 2,
		},
	}
}

func TestParseSingleTerm(t *testing.T) {
	tree, err := Parse("hello", testStreams())
	require.NoError(t, err)
	assert.Equal(t, NodeTerm, tree.Kind)
	assert.Equal(t, "hello", tree.Text)
	assert.Equal(t, DefaultStream, tree.Stream)
}

func TestParseImplicitAnd(t *testing.T) {
	tree, err := Parse("hello world", testStreams())
	require.NoError(t, err)
	require.Equal(t, NodeAnd, tree.Kind)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "hello", tree.Children[0].Text)
	assert.Equal(t, "world", tree.Children[1].Text)
}

func TestParseExplicitAnd(t *testing.T) {
	tree, err := Parse("hello & world", testStreams())
	require.NoError(t, err)
	require.Equal(t, NodeAnd, tree.Kind)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "hello", tree.Children[0].Text)
	assert.Equal(t, "world", tree.Children[1].Text)
}

func TestParseOr(t *testing.T) {
	tree, err := Parse("hello | world", testStreams())
	require.NoError(t, err)
	require.Equal(t, NodeOr, tree.Kind)
	require.Len(t, tree.Children, 2)
}

func TestParsePhrase(t *testing.T) {
	tree, err := Parse(`"thee compare"`, testStreams())
	require.NoError(t, err)
	require.Equal(t, NodePhrase, tree.Kind)
	assert.Equal(t, []string{"thee", "compare"}, tree.Phrase)
}

func TestParseParens(t *testing.T) {
	tree, err := Parse("(hello | world) foo", testStreams())
	require.NoError(t, err)
	require.Equal(t, NodeAnd, tree.Kind)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, NodeOr, tree.Children[0].Kind)
}

// TestParseHyphenQuirk pins down the documented "one-two parses as
// one AND NOT two" behavior (spec §9 Open Question, preserved as-is).
func TestParseHyphenQuirk(t *testing.T) {
	tree, err := Parse("one-two", testStreams())
	require.NoError(t, err)
	require.Equal(t, NodeAnd, tree.Kind)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "one", tree.Children[0].Text)
	require.Equal(t, NodeNot, tree.Children[1].Kind)
	assert.Equal(t, "two", tree.Children[1].Children[0].Text)
}

func TestParseEscapedHyphenIsLiteral(t *testing.T) {
	tree, err := Parse(`one\-two`, testStreams())
	require.NoError(t, err)
	require.Equal(t, NodeTerm, tree.Kind)
	assert.Equal(t, "one-two", tree.Text)
}

func TestParseLeadingNot(t *testing.T) {
	tree, err := Parse("-two", testStreams())
	require.NoError(t, err)
	require.Equal(t, NodeNot, tree.Kind)
	assert.Equal(t, "two", tree.Children[0].Text)
}

func TestParseStreamQualifiedTerm(t *testing.T) {
	tree, err := Parse("title:love", testStreams())
	require.NoError(t, err)
	require.Equal(t, NodeTerm, tree.Kind)
	assert.Equal(t, "love", tree.Text)
	assert.Equal(t, term.StreamId(2), tree.Stream)
}

func TestParseStreamQualifiedPhrase(t *testing.T) {
	tree, err := Parse(`title:"shall i"`, testStreams())
	require.NoError(t, err)
	require.Equal(t, NodePhrase, tree.Kind)
	assert.Equal(t, term.StreamId(2), tree.Stream)
	assert.Equal(t, []string{"shall", "i"}, tree.Phrase)
}

func TestParseUnknownStreamIsRecoverableError(t *testing.T) {
	_, err := Parse("footer:love", testStreams())
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

// TestParseEscapeRoundTrip pins down spec §8 property 8: escaping any
// non-empty token yields a query that parses back to a single unigram
// matching the original text literally.
func TestParseEscapeRoundTrip(t *testing.T) {
	for _, text := range []string{
		"plain",
		"with space",
		"a&b|c",
		`quote"inside`,
		"paren(thetical)",
		"colon:separated",
		"dash-ed",
		`back\slash`,
	} {
		tree, err := Parse(Escape(text), testStreams())
		require.NoError(t, err, "text %q", text)
		require.NotNil(t, tree, "text %q", text)
		require.Equal(t, NodeTerm, tree.Kind, "text %q", text)
		assert.Equal(t, text, tree.Text, "text %q", text)
	}
}

func TestParseUnterminatedPhraseIsRecoverableError(t *testing.T) {
	_, err := Parse(`"hello`, testStreams())
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, perr.Position)
}

func TestParseUnmatchedParenIsRecoverableError(t *testing.T) {
	_, err := Parse("(hello", testStreams())
	require.Error(t, err)
	assert.Error(t, err)
}

func TestParseDanglingOperatorIsRecoverableError(t *testing.T) {
	_, err := Parse("hello |", testStreams())
	require.Error(t, err)
}

func TestParseEmptyQueryYieldsNilTree(t *testing.T) {
	tree, err := Parse("", testStreams())
	require.NoError(t, err)
	assert.Nil(t, tree)

	tree, err = Parse("   ", testStreams())
	require.NoError(t, err)
	assert.Nil(t, tree)
}
