package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"v.io/x/lib/cmdline"

	"github.com/bitfunnel/bitfunnel/chunk"
	"github.com/bitfunnel/bitfunnel/config"
	"github.com/bitfunnel/bitfunnel/ingest"
	"github.com/bitfunnel/bitfunnel/query"
	"github.com/bitfunnel/bitfunnel/rows"
	"github.com/bitfunnel/bitfunnel/stats"
	"github.com/bitfunnel/bitfunnel/term"
	"github.com/bitfunnel/bitfunnel/termtable"
	"github.com/bitfunnel/bitfunnel/token"
	"github.com/bitfunnel/bitfunnel/worker"
)

// newCmdRepl wires the `repl <config-dir>` subcommand (spec §6): it loads
// the configured index (one TermTable-<shard>.bin per shard) and starts an
// interactive loop. Recoverable errors (malformed query, missing term, bad
// command) print "Error: <message>" and the loop continues; a fatal
// invariant violation propagates and the REPL exits non-zero (spec §7).
func newCmdRepl() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "repl",
		Short:    "Load a configured index and start an interactive query loop",
		ArgsName: "config-dir",
	}
	gramSize := cmd.Flags.Int("gramsize", 1, "maximum n-gram size for queries and ingestion")
	threads := cmd.Flags.Int("threads", 1, "worker threads for query fan-out")
	script := cmd.Flags.String("script", "", "run commands from this file instead of stdin, then exit")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("repl takes a config-dir, but found %v", argv)
		}
		return runRepl(argv[0], *gramSize, *threads, *script)
	})
	return cmd
}

// replStreams is the field-name map stream-qualified query terms resolve
// against: the chunk corpus convention puts body text in stream 1 and
// title text in stream 2 (stream 0 is reserved for system terms).
func replStreams() query.Streams {
	return query.Streams{
		Default: query.DefaultStream,
		ByName: map[string]term.StreamId{
			"body":  1,
			"title": 2,
		},
	}
}

// replState holds everything the interactive loop's commands operate on.
type replState struct {
	gramSize int
	threads  int
	minShard int
	maxShard int

	cfg     config.Dir
	streams query.Streams
	tokens  *token.Manager
	ing     *ingest.Ingestor

	// cache mirrors every loaded document for the verification oracle
	// (spec §8 property 1): Evaluate is checked against the matcher's bit-
	// level answer, independent of row/bloom-filter semantics.
	cache map[ingest.DocId]*term.Document

	failOnException bool
}

func runRepl(configDir string, gramSize, threads int, scriptPath string) error {
	ctx := context.Background()
	d := config.New(configDir)
	tts, err := loadTermTables(ctx, configDir)
	if err != nil {
		return err
	}
	var def ingest.ShardDefinition
	if mins, err := config.ReadShardDefinition(ctx, d); err == nil {
		def = ingest.ShardDefinition{MinPostings: mins}
	}
	if threads < 1 {
		threads = 1
	}
	st := &replState{
		gramSize: gramSize,
		threads:  threads,
		cfg:      d,
		streams:  replStreams(),
		tokens:   token.NewManager(),
		ing:      ingest.NewIngestor(tts, def),
		cache:    map[ingest.DocId]*term.Document{},
	}
	st.maxShard = st.ing.NumShards() - 1

	var in io.Reader = os.Stdin
	if scriptPath != "" {
		f, err := ioutil.ReadFile(scriptPath)
		if err != nil {
			return err
		}
		in = strings.NewReader(string(f))
	}

	scanner := bufio.NewScanner(in)
	for {
		if scriptPath == "" {
			fmt.Print("bitfunnel> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !st.dispatch(line) {
			break
		}
	}
	return scanner.Err()
}

func loadTermTables(ctx context.Context, configDir string) ([]*termtable.TermTable, error) {
	d := config.New(configDir)
	var out []*termtable.TermTable
	for shard := 0; ; shard++ {
		f, err := file.Open(ctx, d.ShardPath(config.TermTable, shard))
		if err != nil {
			if shard == 0 {
				// No TermTable artifacts yet: start with one empty, sealed
				// shard so the REPL is still usable against freshly
				// ingested ad-hoc documents in a test/demo setting.
				tt := termtable.New()
				tt.SetRowCounts(0, 0, 0)
				tt.SetFactCount(0)
				tt.Seal()
				return []*termtable.TermTable{tt}, nil
			}
			return out, nil
		}
		data, err := ioutil.ReadAll(f.Reader(ctx))
		if err != nil {
			return nil, err
		}
		if err := f.Close(ctx); err != nil {
			return nil, err
		}
		tt, err := termtable.Unmarshal(data)
		if err != nil {
			return nil, err
		}
		out = append(out, tt)
	}
}

// dispatch handles one REPL command line, returning false on `quit`.
func (st *replState) dispatch(line string) bool {
	fields := strings.Fields(line)
	cmdName := fields[0]
	args := fields[1:]

	switch cmdName {
	case "quit", "exit":
		return false
	case "help":
		printReplHelp()
	case "failOnException":
		st.failOnException = true
		fmt.Println("failOnException: on")
	case "threads":
		st.cmdThreads(args)
	case "shard":
		st.cmdShard(args)
	case "status":
		st.cmdStatus()
	case "load":
		st.guard(func() error { return st.cmdLoad(args, false) })
	case "cache":
		st.guard(func() error { return st.cmdLoad(args, true) })
	case "query":
		st.guard(func() error { return st.cmdQuery(args) })
	case "show":
		st.guard(func() error { return st.cmdShow(args) })
	case "verify":
		st.guard(func() error { return st.cmdVerify(args) })
	case "analyze":
		st.guard(func() error { return st.cmdAnalyze(args) })
	case "correlate":
		st.guard(func() error { return st.cmdCorrelate(args) })
	default:
		fmt.Printf("Error: unknown command %q\n", cmdName)
	}
	return true
}

// guard runs fn, printing "Error: <message>" on a recoverable error (spec
// §7). Fatal errors are not caught here: they propagate as panics, exactly
// as the rest of the core library signals programming-error invariant
// violations (log.Panicf), and the REPL exits.
func (st *replState) guard(fn func() error) {
	if err := fn(); err != nil {
		fmt.Printf("Error: %s\n", err)
		if st.failOnException {
			panic(err)
		}
	}
}

func (st *replState) cmdThreads(args []string) {
	if len(args) != 1 {
		fmt.Println("Error: usage: threads <n>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		fmt.Println("Error: threads takes a positive integer")
		return
	}
	st.threads = n
}

func (st *replState) cmdShard(args []string) {
	if len(args) < 1 {
		fmt.Println("Error: usage: shard <min> [<max>]")
		return
	}
	min, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("Error: shard: bad min")
		return
	}
	max := min
	if len(args) > 1 {
		max, err = strconv.Atoi(args[1])
		if err != nil {
			fmt.Println("Error: shard: bad max")
			return
		}
	}
	st.minShard, st.maxShard = min, max
}

func (st *replState) cmdStatus() {
	fmt.Printf("shards: %d (active range [%d,%d])\n", st.ing.NumShards(), st.minShard, st.maxShard)
	fmt.Printf("documents cached: %d\n", len(st.cache))
	fmt.Printf("documents registered: %d\n", st.ing.Registry().Len())
	fmt.Printf("tokens in flight: %d\n", st.tokens.InFlight())
	fmt.Printf("threads: %d\n", st.threads)
}

func (st *replState) cmdLoad(args []string, cache bool) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s (chunk|manifest) <path>", map[bool]string{true: "cache", false: "load"}[cache])
	}
	kind, path := args[0], args[1]

	var paths []string
	switch kind {
	case "chunk":
		paths = []string{path}
	case "manifest":
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}
		for _, l := range strings.Split(string(data), "\n") {
			l = strings.TrimSpace(l)
			if l != "" {
				paths = append(paths, l)
			}
		}
	default:
		return fmt.Errorf("unknown load kind %q, want chunk or manifest", kind)
	}

	// The token marks the ingestion pass's read-side critical section
	// against structural index mutation (spec §4.C step 1); per-slice
	// mutation is guarded separately by the shard's own locking.
	tok := st.tokens.RequestToken()
	defer tok.Drop()

	for _, p := range paths {
		data, err := ioutil.ReadFile(p)
		if err != nil {
			return err
		}
		r, err := chunk.Open(strings.NewReader(string(data)), strings.HasSuffix(p, ".zst"))
		if err != nil {
			return err
		}
		for {
			doc, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			if err := st.ingestChunkDocument(doc, cache); err != nil {
				return err
			}
		}
	}
	return nil
}

func (st *replState) ingestChunkDocument(doc *chunk.Document, cache bool) error {
	tdoc := term.NewDocument(uint8(st.gramSize))
	for _, s := range doc.Streams {
		for _, tok := range s.Tokens {
			tdoc.AddToken(s.StreamId, string(tok), 0)
		}
	}
	id := ingest.DocId(doc.DocId)
	if _, err := st.ing.Add(id, tdoc); err != nil {
		return err
	}
	if cache {
		st.cache[id] = tdoc
	}
	return nil
}

func (st *replState) cmdQuery(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: query (one <q>)|(log <file>)")
	}
	switch args[0] {
	case "one":
		q := strings.Join(args[1:], " ")
		results, _, err := st.runQuery(q, nil)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Println(r)
		}
		fmt.Printf("%d result(s)\n", len(results))
		return nil
	case "log":
		data, err := ioutil.ReadFile(args[1])
		if err != nil {
			return err
		}
		var statRows []stats.QueryStat
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			results, qs, err := st.runQuery(line, nil)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
				statRows = append(statRows, stats.QueryStat{Query: line, Failed: true})
				continue
			}
			fmt.Printf("%s -> %d result(s)\n", line, len(results))
			statRows = append(statRows, stats.QueryStat{
				Query:        line,
				Matches:      len(results),
				WordsVisited: qs.WordsVisited,
				WordsSkipped: qs.WordsSkipped,
			})
		}
		ctx := context.Background()
		if err := stats.WriteQueryPipelineStatistics(ctx, st.cfg, statRows); err != nil {
			return err
		}
		return stats.WriteQuerySummaryStatistics(ctx, st.cfg, statRows)
	default:
		return fmt.Errorf("unknown query kind %q", args[0])
	}
}

// runQuery parses q, compiles it per in-range shard, fans the match out
// across the worker pool (one task per shard, spec §4.G), and returns
// DocIds in ShardId-ascending, slice-order, docIndex-ascending order (spec
// §4.E "Termination / ordering"). ctr, when non-nil, instruments the match
// with cache-line counting; each shard task records into its own counter
// and the distinct-line totals are merged afterward, since a counter is
// not safe for concurrent use.
func (st *replState) runQuery(q string, ctr *query.CacheLineCounter) ([]ingest.DocId, query.Stats, error) {
	tok := st.tokens.RequestToken()
	defer tok.Drop()

	var total query.Stats
	tree, err := query.Parse(q, st.streams)
	if err != nil {
		return nil, total, err
	}
	if tree == nil {
		return nil, total, nil
	}

	var shardIdx []int
	for s := st.minShard; s <= st.maxShard && s < st.ing.NumShards(); s++ {
		shardIdx = append(shardIdx, s)
	}

	type shardResult struct {
		ids   []ingest.DocId
		stats query.Stats
		ctr   *query.CacheLineCounter
	}
	results := make([]shardResult, len(shardIdx))

	pool := worker.NewPool(st.threads)
	err = pool.Run(len(shardIdx), func(i int) error {
		shard := st.ing.Shard(shardIdx[i])
		plan := query.Compile(tree, shard.TermTable(), 0, uint8(st.gramSize))
		active := query.CompileDocumentActive(shard.TermTable())
		m := query.NewMatcher(plan, active)
		if ctr != nil {
			results[i].ctr = query.NewCacheLineCounter()
			m.SetCacheLineCounter(results[i].ctr)
		}
		for si := 0; si < shard.NumSlices(); si++ {
			slice := shard.Slice(si)
			cols, ms := m.Match(slice, ingest.SliceCapacity)
			results[i].stats.WordsVisited += ms.WordsVisited
			results[i].stats.WordsSkipped += ms.WordsSkipped
			results[i].stats.Matches += ms.Matches
			for _, col := range cols {
				results[i].ids = append(results[i].ids, slice.DocId(col))
			}
		}
		return nil
	})
	if err != nil {
		return nil, total, err
	}

	var out []ingest.DocId
	for _, r := range results {
		out = append(out, r.ids...)
		total.WordsVisited += r.stats.WordsVisited
		total.WordsSkipped += r.stats.WordsSkipped
		total.Matches += r.stats.Matches
		if ctr != nil && r.ctr != nil {
			ctr.Merge(r.ctr)
		}
	}
	return out, total, nil
}

func (st *replState) cmdShow(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: show (cache|rows|term) <term>")
	}
	switch args[0] {
	case "cache":
		fmt.Printf("%d documents cached\n", len(st.cache))
		return nil
	case "rows":
		if len(args) != 2 {
			return fmt.Errorf("usage: show rows <term>")
		}
		return st.showRows(args[1])
	case "term":
		if len(args) != 2 {
			return fmt.Errorf("usage: show term <term>")
		}
		t := term.New(args[1], st.streams.Default, 0)
		fmt.Printf("hash=%d stream=%d gram=%d\n", t.Hash, t.Stream, t.GramSize)
		return nil
	default:
		return fmt.Errorf("unknown show target %q", args[0])
	}
}

func (st *replState) showRows(text string) error {
	if st.ing.NumShards() == 0 {
		return fmt.Errorf("no shards loaded")
	}
	tt := st.ing.Shard(st.minShard).TermTable()
	t := term.New(text, st.streams.Default, 0)
	seq := tt.GetRows(t)
	if seq.Len() == 0 {
		fmt.Printf("%q: no rows (falls through to bloom-filter nonexistence)\n", text)
		return nil
	}
	for {
		row, ok := seq.Next()
		if !ok {
			break
		}
		fmt.Printf("  %s\n", row)
	}
	return nil
}

// cmdVerify checks the matcher's answer for `verify one <q>` against the
// independent Evaluate oracle over every cached document (spec §8 property
// 1: no false negatives).
func (st *replState) cmdVerify(args []string) error {
	if len(args) < 2 || args[0] != "one" {
		return fmt.Errorf("usage: verify one <q>")
	}
	q := strings.Join(args[1:], " ")
	tree, err := query.Parse(q, st.streams)
	if err != nil {
		return err
	}
	matched, _, err := st.runQuery(q, nil)
	if err != nil {
		return err
	}
	matchedSet := map[ingest.DocId]bool{}
	for _, id := range matched {
		matchedSet[id] = true
	}

	var falseNegatives int
	for id, doc := range st.cache {
		if tree != nil && tree.Evaluate(0, uint8(st.gramSize), doc) && !matchedSet[id] {
			falseNegatives++
			fmt.Printf("FALSE NEGATIVE: doc %d matches by evaluation but matcher missed it\n", id)
		}
	}
	fmt.Printf("verify %q: %d matched, %d false negatives\n", q, len(matched), falseNegatives)
	return nil
}

// cmdAnalyze runs one query with cache-line instrumentation attached and
// reports how much of the bit matrix it touched (spec §4.E "Cache-line
// counting mode").
func (st *replState) cmdAnalyze(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: analyze <q>")
	}
	q := strings.Join(args, " ")
	ctr := query.NewCacheLineCounter()
	matched, qs, err := st.runQuery(q, ctr)
	if err != nil {
		return err
	}
	fmt.Printf("analyze %q:\n", q)
	fmt.Printf("  matches:        %d\n", len(matched))
	fmt.Printf("  words visited:  %d\n", qs.WordsVisited)
	fmt.Printf("  words skipped:  %d\n", qs.WordsSkipped)
	fmt.Printf("  cache lines:    %d\n", ctr.Lines())
	return st.writeDensityReports()
}

// writeDensityReports dumps the in-range shards' row/column density CSVs,
// the research diagnostics the config directory reserves names for.
func (st *replState) writeDensityReports() error {
	ctx := context.Background()
	for s := st.minShard; s <= st.maxShard && s < st.ing.NumShards(); s++ {
		shard := st.ing.Shard(s)
		tt := shard.TermTable()
		for r := rows.Rank(0); r <= tt.GetMaxRankUsed(); r++ {
			if !tt.IsRankUsed(r) && r != 0 {
				continue
			}
			if err := stats.WriteRowDensity(ctx, st.cfg, s, int(r), shard.RowDensities(r)); err != nil {
				return err
			}
		}
		if err := stats.WriteColumnDensity(ctx, st.cfg, s, shard.ColumnDensities()); err != nil {
			return err
		}
	}
	return nil
}

// cmdCorrelate reads one term per line from a file and reports, for each
// pair, how many cached documents contain both — a small research tool for
// spotting terms whose co-occurrence would make them good row-sharing
// candidates.
func (st *replState) cmdCorrelate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: correlate <terms-file>")
	}
	data, err := ioutil.ReadFile(args[0])
	if err != nil {
		return err
	}
	var terms []string
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			terms = append(terms, l)
		}
	}
	if len(terms) < 2 {
		return fmt.Errorf("correlate needs at least two terms")
	}

	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			a := term.New(terms[i], st.streams.Default, 0)
			b := term.New(terms[j], st.streams.Default, 0)
			var both int
			for _, doc := range st.cache {
				if doc.Contains(a.Stream, a.Hash) && doc.Contains(b.Stream, b.Hash) {
					both++
				}
			}
			fmt.Printf("%s, %s: %d\n", terms[i], terms[j], both)
		}
	}
	return nil
}

func printReplHelp() {
	fmt.Println(`commands:
  cache|load (chunk|manifest) <path>
  query (one <q>)|(log <file>)
  verify one <q>
  show (cache|rows|term) <term>
  status
  analyze <q>
  correlate <terms-file>
  threads <n>
  shard <min> [<max>]
  failOnException
  quit`)
}
