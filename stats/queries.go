package stats

import (
	"context"
	"fmt"
	"strconv"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"

	"github.com/bitfunnel/bitfunnel/config"
)

// QueryStat is one query-log line's outcome: the query text, how many
// documents matched, and how much of the bit matrix the match visited.
type QueryStat struct {
	Query        string
	Matches      int
	WordsVisited int
	WordsSkipped int
	Failed       bool
}

// WriteQueryPipelineStatistics writes one QueryPipelineStatistics.csv row
// per executed query, in execution order.
func WriteQueryPipelineStatistics(ctx context.Context, d config.Dir, rows []QueryStat) error {
	path := d.Path(config.QueryPipelineStatistics)
	f, err := d.Create(ctx, path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(f.Writer(ctx))
	for _, r := range rows {
		w.WriteString(r.Query)
		w.WriteString(strconv.Itoa(r.Matches))
		w.WriteString(strconv.Itoa(r.WordsVisited))
		w.WriteString(strconv.Itoa(r.WordsSkipped))
		w.WriteString(strconv.FormatBool(r.Failed))
		if err := w.EndLine(); err != nil {
			return errors.Wrap(err, "stats: write QueryPipelineStatistics row")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "stats: flush QueryPipelineStatistics")
	}
	return f.Close(ctx)
}

// WriteRowDensity writes RowDensity-<shard>-<rank>.csv: one row per
// physical row at that rank, its index and the fraction of set bits over
// the shard's allocated columns.
func WriteRowDensity(ctx context.Context, d config.Dir, shard, rank int, densities []float64) error {
	path := d.Path(config.RowDensity, shard, rank)
	f, err := d.Create(ctx, path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(f.Writer(ctx))
	for row, density := range densities {
		w.WriteString(strconv.Itoa(row))
		w.WriteString(strconv.FormatFloat(density, 'f', 6, 64))
		if err := w.EndLine(); err != nil {
			return errors.Wrap(err, "stats: write RowDensity row")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "stats: flush RowDensity")
	}
	return f.Close(ctx)
}

// WriteColumnDensity writes ColumnDensity-<shard>.csv: one row per
// allocated document column, its index and the fraction of rank-0 rows set
// for it.
func WriteColumnDensity(ctx context.Context, d config.Dir, shard int, densities []float64) error {
	path := d.Path(config.ColumnDensity, shard)
	f, err := d.Create(ctx, path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(f.Writer(ctx))
	for col, density := range densities {
		w.WriteString(strconv.Itoa(col))
		w.WriteString(strconv.FormatFloat(density, 'f', 6, 64))
		if err := w.EndLine(); err != nil {
			return errors.Wrap(err, "stats: write ColumnDensity row")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "stats: flush ColumnDensity")
	}
	return f.Close(ctx)
}

// WriteQuerySummaryStatistics writes the aggregate QuerySummaryStatistics.txt
// for one query-log run.
func WriteQuerySummaryStatistics(ctx context.Context, d config.Dir, rows []QueryStat) error {
	var matches, visited, skipped, failed int
	for _, r := range rows {
		matches += r.Matches
		visited += r.WordsVisited
		skipped += r.WordsSkipped
		if r.Failed {
			failed++
		}
	}
	path := d.Path(config.QuerySummaryStatistics)
	f, err := d.Create(ctx, path)
	if err != nil {
		return err
	}
	w := f.Writer(ctx)
	fmt.Fprintf(w, "queries: %d\n", len(rows))
	fmt.Fprintf(w, "failed: %d\n", failed)
	fmt.Fprintf(w, "total matches: %d\n", matches)
	fmt.Fprintf(w, "words visited: %d\n", visited)
	fmt.Fprintf(w, "words skipped: %d\n", skipped)
	return f.Close(ctx)
}
