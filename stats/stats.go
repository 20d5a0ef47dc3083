// Package stats writes the diagnostic artifacts the `statistics` CLI tool
// produces while scanning a corpus (spec §6): a per-shard document-frequency
// table, a document-length histogram, and per-shard cumulative term
// counts, all as tab-separated files under a config.Dir.
//
// Grounded on pileup/snp/output.go's tsv.Writer-based TSV emission
// (WriteString/EndLine/Flush, sorted-then-written rows).
package stats

import (
	"context"
	"sort"
	"strconv"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"

	"github.com/bitfunnel/bitfunnel/config"
	"github.com/bitfunnel/bitfunnel/term"
)

// TermFrequency is one (term hash, document frequency) row of a
// DocFreqTable-<shard>.csv artifact.
type TermFrequency struct {
	Hash term.Hash
	Text string // only populated when the tool was run with -text
	DF   uint64
}

// WriteDocFreqTable writes rows to d's DocFreqTable-<shard>.csv, sorted by
// descending frequency (spec §6: "sorted by descending frequency"), ties
// broken by ascending hash for determinism.
func WriteDocFreqTable(ctx context.Context, d config.Dir, shard int, rows []TermFrequency, withText bool) error {
	sorted := append([]TermFrequency(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].DF != sorted[j].DF {
			return sorted[i].DF > sorted[j].DF
		}
		return sorted[i].Hash < sorted[j].Hash
	})

	path := d.ShardPath(config.DocFreqTable, shard)
	f, err := d.Create(ctx, path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(f.Writer(ctx))
	for _, r := range sorted {
		w.WriteString(strconv.FormatUint(uint64(r.Hash), 10))
		w.WriteString(strconv.FormatUint(r.DF, 10))
		if withText {
			w.WriteString(r.Text)
		}
		if err := w.EndLine(); err != nil {
			return errors.Wrap(err, "stats: write DocFreqTable row")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "stats: flush DocFreqTable")
	}
	return f.Close(ctx)
}

// WriteDocumentHistogram writes a document-length histogram: counts[L] is
// the number of documents with exactly L postings.
func WriteDocumentHistogram(ctx context.Context, d config.Dir, counts []uint64) error {
	path := d.Path(config.DocumentHistogram)
	f, err := d.Create(ctx, path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(f.Writer(ctx))
	for length, count := range counts {
		if count == 0 {
			continue
		}
		w.WriteString(strconv.Itoa(length))
		w.WriteString(strconv.FormatUint(count, 10))
		if err := w.EndLine(); err != nil {
			return errors.Wrap(err, "stats: write DocumentHistogram row")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "stats: flush DocumentHistogram")
	}
	return f.Close(ctx)
}

// WriteCumulativeTermCounts writes, for shard, the running total of
// distinct terms encountered as the corpus scan progresses (one row per
// document processed, in scan order): cumulative[i] is the distinct-term
// count after the first i+1 documents.
func WriteCumulativeTermCounts(ctx context.Context, d config.Dir, shard int, cumulative []uint64) error {
	path := d.ShardPath(config.CumulativeTermCounts, shard)
	f, err := d.Create(ctx, path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(f.Writer(ctx))
	for i, c := range cumulative {
		w.WriteString(strconv.Itoa(i))
		w.WriteString(strconv.FormatUint(c, 10))
		if err := w.EndLine(); err != nil {
			return errors.Wrap(err, "stats: write CumulativeTermCounts row")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "stats: flush CumulativeTermCounts")
	}
	return f.Close(ctx)
}

// Builder accumulates statistics over a single pass of a corpus scan,
// producing the three artifacts above. It is not safe for concurrent use;
// the `statistics` CLI tool feeds it documents one at a time as the corpus
// is scanned (spec §6).
type Builder struct {
	withText   bool
	df         map[term.Hash]*TermFrequency
	histogram  []uint64
	cumulative []uint64
	distinct   map[term.Hash]struct{}
}

// NewBuilder constructs an empty Builder.
func NewBuilder(withText bool) *Builder {
	return &Builder{
		withText: withText,
		df:       make(map[term.Hash]*TermFrequency),
		distinct: make(map[term.Hash]struct{}),
	}
}

// AddDocument records one document's postings: each distinct term hash
// increments its document frequency by one (DF counts documents, not
// occurrences), the document's posting count is tallied into the length
// histogram, and the running distinct-term count is appended to the
// cumulative series.
func (b *Builder) AddDocument(postings []term.Term) {
	seen := make(map[term.Hash]bool, len(postings))
	for _, t := range postings {
		if seen[t.Hash] {
			continue
		}
		seen[t.Hash] = true
		if _, ok := b.df[t.Hash]; !ok {
			b.df[t.Hash] = &TermFrequency{Hash: t.Hash}
		}
		b.df[t.Hash].DF++
		if _, ok := b.distinct[t.Hash]; !ok {
			b.distinct[t.Hash] = struct{}{}
		}
	}
	for len(b.histogram) <= len(postings) {
		b.histogram = append(b.histogram, 0)
	}
	b.histogram[len(postings)]++
	b.cumulative = append(b.cumulative, uint64(len(b.distinct)))
}

// SetText annotates hash's document-frequency row with its literal text,
// for a -text run of the `statistics` tool.
func (b *Builder) SetText(hash term.Hash, text string) {
	if !b.withText {
		return
	}
	if e, ok := b.df[hash]; ok {
		e.Text = text
	}
}

// Flush writes all three artifacts for shard under d.
func (b *Builder) Flush(ctx context.Context, d config.Dir, shard int) error {
	rows := make([]TermFrequency, 0, len(b.df))
	for _, e := range b.df {
		rows = append(rows, *e)
	}
	if err := WriteDocFreqTable(ctx, d, shard, rows, b.withText); err != nil {
		return err
	}
	if err := WriteDocumentHistogram(ctx, d, b.histogram); err != nil {
		return err
	}
	return WriteCumulativeTermCounts(ctx, d, shard, b.cumulative)
}
