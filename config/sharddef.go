package config

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// WriteShardDefinition writes ShardDefinition.csv: one row per shard, the
// shard index and the minimum posting count it accepts, ascending. The
// artifact is what partitions documents by size across shards (spec §3).
func WriteShardDefinition(ctx context.Context, d Dir, minPostings []int) error {
	path := d.Path(ShardDefinition)
	f, err := d.Create(ctx, path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(f.Writer(ctx))
	for shard, min := range minPostings {
		w.WriteString(strconv.Itoa(shard))
		w.WriteString(strconv.Itoa(min))
		if err := w.EndLine(); err != nil {
			return errors.Wrap(err, "config: write ShardDefinition row")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "config: flush ShardDefinition")
	}
	return f.Close(ctx)
}

// ReadShardDefinition reads ShardDefinition.csv back into the per-shard
// minimum posting counts, in shard order. A missing artifact is an error;
// callers that treat the definition as optional should check for existence
// first.
func ReadShardDefinition(ctx context.Context, d Dir) ([]int, error) {
	path := d.Path(ShardDefinition)
	f, err := d.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close(ctx) // nolint: errcheck

	var out []int
	scanner := bufio.NewScanner(f.Reader(ctx))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 2 {
			continue
		}
		shard, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrap(err, "config: parse ShardDefinition shard")
		}
		min, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrap(err, "config: parse ShardDefinition min postings")
		}
		if shard != len(out) {
			return nil, errors.Errorf("config: ShardDefinition rows out of order at shard %d", shard)
		}
		out = append(out, min)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "config: read ShardDefinition")
	}
	return out, nil
}
