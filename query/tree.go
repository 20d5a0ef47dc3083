// Package query implements the BitFunnel query surface (spec §4.E): a
// recoverable recursive-descent parser from query text to a TermMatchTree,
// a per-shard planner that compiles a TermMatchTree into a RowPlan (with
// constant folding and NOT -> AND-NOT pushdown), and a word-at-a-time
// matcher that evaluates a RowPlan against a shard's rank-sliced row
// buffers.
package query

import (
	"github.com/bitfunnel/bitfunnel/term"
)

// NodeKind discriminates TermMatchTree node variants.
type NodeKind int

const (
	NodeTerm NodeKind = iota
	NodePhrase
	NodeAnd
	NodeOr
	NodeNot
)

// TermMatchTree is a parsed boolean query: a term, a phrase (an ordered run
// of terms composed via term.Compose, spec §4.D), or an And/Or/Not
// combination of subtrees.
type TermMatchTree struct {
	Kind NodeKind

	// NodeTerm.
	Stream StreamRef
	Text   string

	// NodePhrase: the ordered literal tokens of the phrase, same stream.
	Phrase []string

	// NodeAnd, NodeOr: Children has >= 2 entries.
	// NodeNot: Children has exactly 1 entry.
	Children []*TermMatchTree
}

// StreamRef names the stream a bare term/phrase is matched against.
type StreamRef = term.StreamId

// DefaultStream is the stream unqualified query terms resolve to.
const DefaultStream StreamRef = 1

// Evaluate checks whether doc actually contains every term the tree
// requires, using term.Document.Contains directly rather than row bits.
// maxGram is the n-gram size the corpus was ingested with; phrases
// decompose to the same terms the planner compiles (see phraseTerms), so
// the oracle and the matcher agree on phrase semantics. This is the
// independent verification oracle of spec §8 property 1: the matcher's
// bit-level answer for a document must agree with Evaluate on that same
// document's full posting set.
func (n *TermMatchTree) Evaluate(idf term.IdfX10, maxGram uint8, doc *term.Document) bool {
	switch n.Kind {
	case NodeTerm:
		t := term.New(n.Text, n.Stream, idf)
		return doc.Contains(t.Stream, t.Hash)
	case NodePhrase:
		for _, t := range phraseTerms(n.Stream, n.Phrase, idf, maxGram) {
			if !doc.Contains(t.Stream, t.Hash) {
				return false
			}
		}
		return true
	case NodeNot:
		return !n.Children[0].Evaluate(idf, maxGram, doc)
	case NodeAnd:
		for _, c := range n.Children {
			if !c.Evaluate(idf, maxGram, doc) {
				return false
			}
		}
		return true
	case NodeOr:
		for _, c := range n.Children {
			if c.Evaluate(idf, maxGram, doc) {
				return true
			}
		}
		return false
	default:
		panic("query: unknown TermMatchTree kind")
	}
}

// phraseTerms decomposes a phrase's literal tokens into the conjunction of
// terms a maxGram-ingested corpus actually posted: consecutive runs of
// maxGram tokens compose into n-gram terms, and the trailing partial run
// (fewer than maxGram tokens) contributes its tokens composed as one
// shorter gram — or, for a one-token remainder, a plain unigram. The same
// decomposition feeds both the planner (Compile) and the verification
// oracle (Evaluate), so phrase semantics cannot drift between them.
//
// Adjacency across run boundaries is not enforced — that is the documented
// "phrase positional matching beyond n-gram AND" non-goal: a document
// containing every composed gram but in a different arrangement is a
// bloom-style false positive, never a false negative.
func phraseTerms(stream StreamRef, tokens []string, idf term.IdfX10, maxGram uint8) []term.Term {
	if maxGram < 1 {
		maxGram = 1
	}
	if maxGram > term.MaxGramSize {
		maxGram = term.MaxGramSize
	}
	var out []term.Term
	for i := 0; i < len(tokens); i += int(maxGram) {
		end := i + int(maxGram)
		if end > len(tokens) {
			end = len(tokens)
		}
		t := term.New(tokens[i], stream, idf)
		for _, tok := range tokens[i+1 : end] {
			t = term.Compose(t, term.New(tok, stream, idf))
		}
		out = append(out, t)
	}
	return out
}

// And constructs a NodeAnd over children as given; nested NodeAnd children
// are not flattened.
func And(children ...*TermMatchTree) *TermMatchTree {
	return &TermMatchTree{Kind: NodeAnd, Children: children}
}

// Or constructs a NodeOr over children as given; nested NodeOr children are
// not flattened.
func Or(children ...*TermMatchTree) *TermMatchTree {
	return &TermMatchTree{Kind: NodeOr, Children: children}
}

// Not constructs a NodeNot wrapping child.
func Not(child *TermMatchTree) *TermMatchTree {
	return &TermMatchTree{Kind: NodeNot, Children: []*TermMatchTree{child}}
}

// Term constructs a NodeTerm for a single token in stream.
func Term(stream StreamRef, text string) *TermMatchTree {
	return &TermMatchTree{Kind: NodeTerm, Stream: stream, Text: text}
}

// Phrase constructs a NodePhrase for an ordered run of tokens in stream.
func Phrase(stream StreamRef, tokens []string) *TermMatchTree {
	return &TermMatchTree{Kind: NodePhrase, Stream: stream, Phrase: tokens}
}
