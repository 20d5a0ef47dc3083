package query

import (
	"github.com/bitfunnel/bitfunnel/bitmatrix"
	"github.com/bitfunnel/bitfunnel/ingest"
	"github.com/bitfunnel/bitfunnel/rows"
	"github.com/bitfunnel/bitfunnel/term"
	"github.com/bitfunnel/bitfunnel/termtable"
)

// RowPlan is a compiled, per-shard query: a tree of row references and
// boolean combinators that the matcher evaluates word-at-a-time against one
// Slice at a time. Compile performs constant folding (an empty row
// sequence — a term with no explicit rows and no matching adhoc recipe in
// the TermTable — folds to a constant-false leaf) and NOT -> AND-NOT pushdown (an And with negated children becomes a
// single planAndNot node, so the matcher never has to materialize a row's
// complement).
type RowPlan interface {
	evalWord(slice *ingest.Slice, rank0WordIdx int, ctr *CacheLineCounter) uint64
}

// Compile compiles tree against tt's rows, using idf to resolve the
// term/phrase hashes' adhoc row selection and maxGram (the corpus's
// ingestion n-gram size) to decompose phrases the same way ingestion
// composed them. The result is reusable across every Slice belonging to
// the shard tt was sealed for.
func Compile(tree *TermMatchTree, tt *termtable.TermTable, idf term.IdfX10, maxGram uint8) RowPlan {
	switch tree.Kind {
	case NodeTerm:
		t := term.New(tree.Text, tree.Stream, idf)
		return compileTermRows(tt, t)
	case NodePhrase:
		terms := phraseTerms(tree.Stream, tree.Phrase, idf, maxGram)
		children := make([]RowPlan, len(terms))
		for i, t := range terms {
			children[i] = compileTermRows(tt, t)
		}
		return foldAnd(children)
	case NodeNot:
		return foldNot(Compile(tree.Children[0], tt, idf, maxGram))
	case NodeAnd:
		children := make([]RowPlan, len(tree.Children))
		for i, c := range tree.Children {
			children[i] = Compile(c, tt, idf, maxGram)
		}
		return foldAnd(children)
	case NodeOr:
		children := make([]RowPlan, len(tree.Children))
		for i, c := range tree.Children {
			children[i] = Compile(c, tt, idf, maxGram)
		}
		return foldOr(children)
	default:
		panic("query: unknown TermMatchTree kind")
	}
}

// compileTermRows resolves t to its row sequence and ANDs every row
// together: a term backed by more than one row (e.g. a multi-row adhoc
// recipe) only matches a document that sets all of them, the standard
// BitFunnel false-positive-reduction construction. The system terms
// constant-fold: MatchAll to constant-true, MatchNone to constant-false.
func compileTermRows(tt *termtable.TermTable, t term.Term) RowPlan {
	if t.Stream == term.SystemStreamId {
		switch t.Hash {
		case term.HashMatchAll:
			return planConst{value: true}
		case term.HashMatchNone:
			return planConst{value: false}
		}
	}
	seq := tt.GetRows(t)
	if seq.Len() == 0 {
		return planConst{value: false}
	}
	rowPlans := make([]RowPlan, 0, seq.Len())
	for {
		row, ok := seq.Next()
		if !ok {
			break
		}
		rowPlans = append(rowPlans, &planRow{row: row})
	}
	if len(rowPlans) == 1 {
		return rowPlans[0]
	}
	return &planAnd{children: rowPlans}
}

// CompileDocumentActive compiles tt's DocumentActive row to a RowPlan, for
// use as the Matcher's liveness filter.
func CompileDocumentActive(tt *termtable.TermTable) RowPlan {
	return &planRow{row: tt.DocumentActiveRow()}
}

type planConst struct{ value bool }

func (p planConst) evalWord(*ingest.Slice, int, *CacheLineCounter) uint64 {
	if p.value {
		return ^uint64(0)
	}
	return 0
}

// planRow reads one row's bits, expanded to rank-0 granularity so it can be
// combined with rows stored at other ranks.
type planRow struct{ row rows.RowId }

func (p *planRow) evalWord(slice *ingest.Slice, rank0WordIdx int, ctr *CacheLineCounter) uint64 {
	buf := slice.Buffer(p.row.Rank)
	if ctr != nil {
		wordIdx := rank0WordIdx >> p.row.Rank
		ctr.record(buf, int(p.row.Index), wordIdx)
	}
	return rowWordAtRank0(buf, int(p.row.Index), p.row.Rank, rank0WordIdx)
}

type planAnd struct{ children []RowPlan }

func (p *planAnd) evalWord(slice *ingest.Slice, idx int, ctr *CacheLineCounter) uint64 {
	word := ^uint64(0)
	for _, c := range p.children {
		word &= c.evalWord(slice, idx, ctr)
		if word == 0 {
			return 0
		}
	}
	return word
}

type planOr struct{ children []RowPlan }

func (p *planOr) evalWord(slice *ingest.Slice, idx int, ctr *CacheLineCounter) uint64 {
	var word uint64
	for _, c := range p.children {
		word |= c.evalWord(slice, idx, ctr)
	}
	return word
}

type planAndNot struct {
	pos RowPlan
	neg RowPlan
}

func (p *planAndNot) evalWord(slice *ingest.Slice, idx int, ctr *CacheLineCounter) uint64 {
	posWord := p.pos.evalWord(slice, idx, ctr)
	if posWord == 0 {
		return 0
	}
	return posWord &^ p.neg.evalWord(slice, idx, ctr)
}

type planNot struct{ child RowPlan }

func (p *planNot) evalWord(slice *ingest.Slice, idx int, ctr *CacheLineCounter) uint64 {
	return ^p.child.evalWord(slice, idx, ctr)
}

func foldNot(child RowPlan) RowPlan {
	if v, ok := child.(planConst); ok {
		return planConst{value: !v.value}
	}
	if v, ok := child.(*planNot); ok {
		return v.child
	}
	return &planNot{child: child}
}

// foldAnd drops constant-true operands, short-circuits to constant-false on
// any constant-false operand, and pushes every negated operand into a
// single AND-NOT against the OR of all of them: And(a, Not(b), Not(c))
// becomes AndNot(a, Or(b, c)), i.e. "a and not (b or c)".
func foldAnd(children []RowPlan) RowPlan {
	var positives, negatives []RowPlan
	for _, c := range children {
		switch v := c.(type) {
		case planConst:
			if !v.value {
				return planConst{value: false}
			}
		case *planNot:
			negatives = append(negatives, v.child)
		default:
			positives = append(positives, c)
		}
	}

	var pos RowPlan
	switch len(positives) {
	case 0:
		pos = planConst{value: true}
	case 1:
		pos = positives[0]
	default:
		pos = &planAnd{children: positives}
	}

	if len(negatives) == 0 {
		return pos
	}
	var neg RowPlan
	if len(negatives) == 1 {
		neg = negatives[0]
	} else {
		neg = &planOr{children: negatives}
	}
	if v, ok := pos.(planConst); ok && v.value {
		return &planNot{child: neg}
	}
	return &planAndNot{pos: pos, neg: neg}
}

func foldOr(children []RowPlan) RowPlan {
	var kept []RowPlan
	for _, c := range children {
		if v, ok := c.(planConst); ok {
			if v.value {
				return planConst{value: true}
			}
			continue
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return planConst{value: false}
	case 1:
		return kept[0]
	default:
		return &planOr{children: kept}
	}
}

// rowWordAtRank0 reads the 64-bit word covering rank0-document columns
// [rank0WordIdx*64, rank0WordIdx*64+64) from a row stored at rank, by
// reading the (generally narrower) rank-r word those columns fall into and
// expanding each rank-r bit into its 2^rank constituent rank-0 bit
// positions. Exact because BitsPerWord == 2^rows.MaxRank: a rank-r word's
// bit always divides evenly into rank-0 words with no remainder.
func rowWordAtRank0(buf *bitmatrix.RankBuffer, rowIndex int, rank rows.Rank, rank0WordIdx int) uint64 {
	if rank == 0 {
		return buf.Word(rowIndex, rank0WordIdx)
	}
	nbits := bitmatrix.BitsPerWord >> rank
	groupSize := 1 << rank
	wordIdxAtRank := rank0WordIdx >> rank
	bitOffset := (rank0WordIdx & (groupSize - 1)) * nbits

	rankWord := buf.Word(rowIndex, wordIdxAtRank)
	group := (rankWord >> uint(bitOffset)) & fullMask(nbits)
	return expandRankWord(group, nbits, groupSize)
}

func fullMask(bits int) uint64 {
	if bits >= bitmatrix.BitsPerWord {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

func expandRankWord(group uint64, nbits, groupSize int) uint64 {
	var out uint64
	for i := 0; i < nbits; i++ {
		if group&(uint64(1)<<uint(i)) != 0 {
			out |= fullMask(groupSize) << uint(i*groupSize)
		}
	}
	return out
}
