package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"strings"
	"time"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"v.io/x/lib/cmdline"

	"github.com/bitfunnel/bitfunnel/chunk"
	"github.com/bitfunnel/bitfunnel/config"
	"github.com/bitfunnel/bitfunnel/stats"
	"github.com/bitfunnel/bitfunnel/term"
	"github.com/bitfunnel/bitfunnel/worker"
)

// newCmdStatistics wires the `statistics <manifest> <config-dir>` subcommand
// (spec §6): it scans every chunk file named in manifest and writes
// DocFreqTable-<shard>.csv, DocumentHistogram.csv,
// CumulativeTermCounts-<shard>.csv and, with -text, TermToText.bin under
// config-dir. The shard-definition builder that would split documents
// across shards by posting-count range is out of scope (spec §1 "excluded
// as external collaborators"); this tool always writes a single shard,
// shard 0.
func newCmdStatistics() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "statistics",
		Short:    "Scan a corpus manifest into a document-frequency table and related artifacts",
		ArgsName: "manifest config-dir",
	}
	withText := cmd.Flags.Bool("text", false, "also record a term-hash -> text map")
	gramSize := cmd.Flags.Int("gramsize", 1, "maximum n-gram size to compose while scanning")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("statistics takes a manifest and a config-dir, but found %v", argv)
		}
		return runStatistics(argv[0], argv[1], *withText, *gramSize)
	})
	return cmd
}

// scannedDoc is one parsed document's contribution, produced by a scan
// worker and consumed by the single builder goroutine.
type scannedDoc struct {
	postings []term.Term
	texts    map[term.Hash]string // nil unless -text
}

const statQueueTimeout = 100 * time.Millisecond

// runStatistics fans the chunk-file scan out across the worker pool, one
// task per chunk file (spec §4.G), with a blocking queue carrying parsed
// documents to the single goroutine that owns the (non-thread-safe)
// stats.Builder.
func runStatistics(manifestPath, configDir string, withText bool, gramSize int) error {
	ctx := context.Background()
	manifest, err := ioutil.ReadFile(manifestPath)
	if err != nil {
		return err
	}
	var paths []string
	scanner := bufio.NewScanner(strings.NewReader(string(manifest)))
	for scanner.Scan() {
		path := strings.TrimSpace(scanner.Text())
		if path == "" || strings.HasPrefix(path, "#") {
			continue
		}
		paths = append(paths, path)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	builder := stats.NewBuilder(withText)
	textMap := map[term.Hash]string{}
	queue := worker.NewBlockingQueue(64)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for {
			var item interface{}
			if !queue.TryDequeue(&item, statQueueTimeout) {
				select {
				case <-queue.Done():
					return
				default:
					continue
				}
			}
			doc := item.(scannedDoc)
			builder.AddDocument(doc.postings)
			for hash, text := range doc.texts {
				textMap[hash] = text
			}
		}
	}()

	pool := worker.NewPool(0)
	scanErr := pool.Run(len(paths), func(i int) error {
		return scanChunkFile(paths[i], gramSize, withText, queue)
	})
	queue.Shutdown()
	<-consumerDone
	if scanErr != nil {
		// A malformed or truncated chunk file is fatal, not a per-file
		// skip (spec §7): surface it after the workers have joined.
		log.Panicf("statistics: fatal error scanning corpus: %v", scanErr)
	}

	for hash, text := range textMap {
		builder.SetText(hash, text)
	}

	d := config.New(configDir)
	if err := builder.Flush(ctx, d, 0); err != nil {
		return err
	}
	if withText {
		return stats.WriteTermToText(ctx, d, textMap)
	}
	return nil
}

func scanChunkFile(path string, gramSize int, withText bool, queue *worker.BlockingQueue) error {
	f, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	r, err := chunk.Open(strings.NewReader(string(f)), strings.HasSuffix(path, ".zst"))
	if err != nil {
		return err
	}
	for {
		doc, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		tdoc := term.NewDocument(uint8(gramSize))
		var texts map[term.Hash]string
		if withText {
			texts = map[term.Hash]string{}
		}
		for _, s := range doc.Streams {
			for _, tok := range s.Tokens {
				text := string(tok)
				tdoc.AddToken(s.StreamId, text, 0)
				if withText {
					t := term.New(text, s.StreamId, 0)
					texts[t.Hash] = text
				}
			}
		}
		out := scannedDoc{postings: tdoc.Postings(), texts: texts}
		for !queue.TryEnqueue(out, statQueueTimeout) {
			select {
			case <-queue.Done():
				return nil // shut down mid-scan: coordinator is aborting
			default:
			}
		}
	}
}
