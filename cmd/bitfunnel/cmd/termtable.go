package cmd

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
	"v.io/x/lib/cmdline"

	"github.com/bitfunnel/bitfunnel/config"
	"github.com/bitfunnel/bitfunnel/rows"
	"github.com/bitfunnel/bitfunnel/term"
	"github.com/bitfunnel/bitfunnel/termtable"
)

// newCmdTermTable wires the `termtable <config-dir> <density> <treatment>`
// subcommand (spec §6): it consumes the DocFreqTable-<shard>.csv artifacts
// statistics wrote and writes one TermTable-<shard>.bin per shard found.
//
// The row-assignment policy implemented here is intentionally the simplest
// one that honors the TermTable build protocol (spec §4.B): density
// controls how many adhoc rows are shared per rank, and the -snr flag sets
// the frequency threshold above which a term earns its own explicit row
// rather than sharing an adhoc recipe. The treatment argument is accepted
// but does not change the table that is built. A production TermTable builder's
// actual bit-density optimizer (which minimizes false-positive rate subject
// to a row budget) is out of scope — spec §1 excludes the statistics-
// building tools as external collaborators.
func newCmdTermTable() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "termtable",
		Short:    "Build one TermTable per shard from a statistics config directory",
		ArgsName: "config-dir density treatment",
	}
	snr := cmd.Flags.Float64("snr", 10.0, "signal-to-noise ratio threshold separating explicit from adhoc rows")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 3 {
			return fmt.Errorf("termtable takes config-dir, density, treatment, but found %v", argv)
		}
		density, err := strconv.ParseFloat(argv[1], 64)
		if err != nil {
			return errors.Wrap(err, "termtable: parse density")
		}
		return runTermTable(argv[0], density, argv[2], *snr)
	})
	return cmd
}

// docFreqRow mirrors one row of DocFreqTable-<shard>.csv.
type docFreqRow struct {
	hash term.Hash
	df   uint64
}

func runTermTable(configDir string, density float64, treatment string, snr float64) error {
	ctx := context.Background()
	d := config.New(configDir)

	for shard := 0; ; shard++ {
		path := d.ShardPath(config.DocFreqTable, shard)
		rows, err := readDocFreqTable(ctx, path)
		if errors.Cause(err) == errNoSuchShard {
			if shard == 0 {
				return errors.New("termtable: no DocFreqTable artifacts found")
			}
			return nil
		}
		if err != nil {
			return err
		}
		tt := buildTermTable(rows, density, treatment, snr)
		data, err := tt.Marshal()
		if err != nil {
			return errors.Wrapf(err, "termtable: marshal shard %d", shard)
		}
		out, err := d.Create(ctx, d.ShardPath(config.TermTable, shard))
		if err != nil {
			return err
		}
		if _, err := out.Writer(ctx).Write(data); err != nil {
			return err
		}
		if err := out.Close(ctx); err != nil {
			return err
		}
		if err := writeTermTableStatistics(ctx, d, shard, tt, len(rows)); err != nil {
			return err
		}
	}
}

// writeTermTableStatistics writes the human-readable
// TermTableStatistics-<shard>.txt summary for one built shard.
func writeTermTableStatistics(ctx context.Context, d config.Dir, shard int, tt *termtable.TermTable, termCount int) error {
	f, err := d.Create(ctx, d.ShardPath(config.TermTableStatistics, shard))
	if err != nil {
		return err
	}
	w := f.Writer(ctx)
	fmt.Fprintf(w, "shard: %d\n", shard)
	fmt.Fprintf(w, "terms: %d\n", termCount)
	fmt.Fprintf(w, "max rank used: %d\n", tt.GetMaxRankUsed())
	for r := rows.Rank(0); r <= rows.MaxRank; r++ {
		if !tt.IsRankUsed(r) && r != 0 {
			continue
		}
		fmt.Fprintf(w, "rank %d: %d rows, %.4f bytes/document\n",
			r, tt.GetTotalRowCount(r), tt.GetBytesPerDocument(r))
	}
	return f.Close(ctx)
}

var errNoSuchShard = errors.New("termtable: no such shard")

func readDocFreqTable(ctx context.Context, path string) ([]docFreqRow, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrap(errNoSuchShard, path)
	}
	defer f.Close(ctx) // nolint: errcheck

	var out []docFreqRow
	scanner := bufio.NewScanner(f.Reader(ctx))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 {
			continue
		}
		hash, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, err
		}
		df, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, docFreqRow{hash: term.Hash(hash), df: df})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// buildTermTable runs the full build-phase protocol (spec §4.B): terms at
// or above the snr-scaled threshold get their own explicit rank-0 row, the
// rest share an adhoc recipe sized by density. Every row is at rank 0; the
// `treatment` string is ignored.
func buildTermTable(freqs []docFreqRow, density float64, treatment string, snr float64) *termtable.TermTable {
	sort.Slice(freqs, func(i, j int) bool { return freqs[i].df > freqs[j].df })

	threshold := snrThreshold(freqs, snr)

	tt := termtable.New()
	explicitCount := 0
	var adhocTerms []docFreqRow
	for _, r := range freqs {
		if float64(r.df) >= threshold {
			tt.OpenTerm()
			tt.AddRowId(0, explicitCount)
			tt.CloseTerm(r.hash)
			explicitCount++
		} else {
			adhocTerms = append(adhocTerms, r)
		}
	}

	adhocCount := adhocRowCount(len(adhocTerms), density)
	if adhocCount > 0 {
		seen := map[adhocRecipeKey]bool{}
		for _, r := range adhocTerms {
			idf := idfFromDF(r.df, len(freqs))
			key := adhocRecipeKey{idf: idf, gram: 1}
			if seen[key] {
				continue
			}
			seen[key] = true
			tt.OpenTerm()
			tt.AddRowId(0, 0) // recipe rank only; RowIndex synthesized at read time
			tt.CloseAdhocTerm(idf, 1)
		}
	}

	tt.SetRowCounts(0, explicitCount, adhocCount)
	_ = treatment // treatment does not affect the build
	tt.SetFactCount(0)
	tt.Seal()
	return tt
}

type adhocRecipeKey struct {
	idf  term.IdfX10
	gram uint8
}

// snrThreshold picks the document-frequency cutoff above which a term
// earns an explicit row: terms denser than `snr` times the median
// frequency are "signal", everything else shares adhoc rows.
func snrThreshold(freqs []docFreqRow, snr float64) float64 {
	if len(freqs) == 0 {
		return 0
	}
	median := float64(freqs[len(freqs)/2].df)
	return median * snr
}

// adhocRowCount scales the shared adhoc row band with density: higher
// density packs more terms per row (fewer rows), matching the inverse
// relationship a real bit-density optimizer targets.
func adhocRowCount(numAdhocTerms int, density float64) int {
	if numAdhocTerms == 0 {
		return 0
	}
	if density <= 0 {
		density = 1
	}
	n := int(math.Ceil(float64(numAdhocTerms) / density))
	if n < 1 {
		n = 1
	}
	return n
}

// idfFromDF buckets a term's inverse document frequency into IdfX10: idf =
// 10 * log2((totalTerms+1)/df + 1), clamped to [0, MaxIdfX10]. totalTerms
// stands in for a document-count estimate (the statistics.Builder that
// would supply an exact corpus size is out of scope here).
func idfFromDF(df uint64, totalTerms int) term.IdfX10 {
	if df == 0 {
		df = 1
	}
	ratio := float64(totalTerms+1) / float64(df)
	idf := 10 * math.Log2(ratio+1)
	if idf < 0 {
		idf = 0
	}
	if idf > float64(term.MaxIdfX10) {
		idf = float64(term.MaxIdfX10)
	}
	return term.IdfX10(idf)
}
