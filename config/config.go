// Package config names and locates the on-disk configuration artifacts a
// BitFunnel deployment reads and writes under a single config directory
// (spec §6): DocFreqTable-<shard>.csv, DocumentHistogram.csv,
// CumulativeTermCounts-<shard>.csv, TermToText.bin, ShardDefinition.csv,
// TermTable-<shard>.bin, TermTableStatistics-<shard>.txt, Manifest.txt,
// QueryLog.txt, QueryPipelineStatistics.csv, QuerySummaryStatistics.txt,
// plus the row/column density CSVs.
//
// Grounded on encoding/pam/pamutil's path-construction helpers
// (basename+field+extension parsing/formatting for a directory of
// per-shard artifacts).
package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// Artifact names a config-directory file kind. Name formats as
// "<basename>[-<p1>[-<p2>]].<ext>", matching spec §6's naming grammar.
type Artifact struct {
	Basename string
	Ext      string
}

// The fixed artifact kinds named in spec §6.
var (
	DocFreqTable            = Artifact{"DocFreqTable", "csv"}
	DocumentHistogram       = Artifact{"DocumentHistogram", "csv"}
	CumulativeTermCounts    = Artifact{"CumulativeTermCounts", "csv"}
	TermToText              = Artifact{"TermToText", "bin"}
	ShardDefinition         = Artifact{"ShardDefinition", "csv"}
	TermTable               = Artifact{"TermTable", "bin"}
	TermTableStatistics     = Artifact{"TermTableStatistics", "txt"}
	Manifest                = Artifact{"Manifest", "txt"}
	QueryLog                = Artifact{"QueryLog", "txt"}
	QueryPipelineStatistics = Artifact{"QueryPipelineStatistics", "csv"}
	QuerySummaryStatistics  = Artifact{"QuerySummaryStatistics", "txt"}
	RowDensity              = Artifact{"RowDensity", "csv"}
	ColumnDensity           = Artifact{"ColumnDensity", "csv"}
)

// Dir is a config directory: a root path plus the artifact naming scheme.
type Dir struct {
	Root string
}

// New wraps root as a config Dir.
func New(root string) Dir {
	return Dir{Root: root}
}

// Path formats a's filename under d, with up to two optional numeric
// qualifiers (e.g. a per-shard suffix). Zero qualifiers names the
// unqualified artifact ("Manifest.txt"); one names a per-shard artifact
// ("DocFreqTable-3.csv"); two names a doubly-qualified artifact.
func (d Dir) Path(a Artifact, qualifiers ...int) string {
	name := a.Basename
	for _, q := range qualifiers {
		name += "-" + strconv.Itoa(q)
	}
	return d.Root + "/" + name + "." + a.Ext
}

// ShardPath is shorthand for Path(a, shardID) — the common case of a
// per-shard artifact.
func (d Dir) ShardPath(a Artifact, shardID int) string {
	return d.Path(a, shardID)
}

// Open opens the artifact at path under d for reading.
func (d Dir) Open(ctx context.Context, path string) (file.File, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: open %s", path)
	}
	return f, nil
}

// Create opens the artifact at path under d for writing, creating or
// truncating it.
func (d Dir) Create(ctx context.Context, path string) (file.File, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: create %s", path)
	}
	return f, nil
}

// String implements fmt.Stringer for diagnostics.
func (d Dir) String() string {
	return fmt.Sprintf("config.Dir(%s)", d.Root)
}

// ParseShardSuffix extracts the shard id from a qualified basename like
// "DocFreqTable-3", or reports ok=false if name carries no qualifier.
func ParseShardSuffix(name string) (shard int, ok bool) {
	i := strings.LastIndexByte(name, '-')
	if i < 0 {
		return 0, false
	}
	v, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return 0, false
	}
	return v, true
}
