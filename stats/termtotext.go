package stats

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/bitfunnel/bitfunnel/config"
	"github.com/bitfunnel/bitfunnel/term"
)

// TermToText.bin is the hash -> literal text map a -text statistics run
// records (spec §6): a little-endian entry count, then per entry the
// 64-bit hash, a 32-bit text length, and the text bytes. Entries are
// written in ascending hash order so the artifact is deterministic for a
// given corpus.

// WriteTermToText writes texts to d's TermToText.bin.
func WriteTermToText(ctx context.Context, d config.Dir, texts map[term.Hash]string) error {
	hashes := make([]term.Hash, 0, len(texts))
	for h := range texts {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	path := d.Path(config.TermToText)
	f, err := d.Create(ctx, path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f.Writer(ctx))

	var scratch [12]byte
	binary.LittleEndian.PutUint64(scratch[:8], uint64(len(hashes)))
	if _, err := w.Write(scratch[:8]); err != nil {
		return errors.Wrap(err, "stats: write TermToText count")
	}
	for _, h := range hashes {
		text := texts[h]
		binary.LittleEndian.PutUint64(scratch[:8], uint64(h))
		binary.LittleEndian.PutUint32(scratch[8:12], uint32(len(text)))
		if _, err := w.Write(scratch[:12]); err != nil {
			return errors.Wrap(err, "stats: write TermToText entry header")
		}
		if _, err := w.WriteString(text); err != nil {
			return errors.Wrap(err, "stats: write TermToText entry text")
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "stats: flush TermToText")
	}
	return f.Close(ctx)
}

// ReadTermToText reads a TermToText.bin artifact back into a hash -> text
// map.
func ReadTermToText(ctx context.Context, d config.Dir) (map[term.Hash]string, error) {
	path := d.Path(config.TermToText)
	f, err := d.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close(ctx) // nolint: errcheck
	return readTermToText(bufio.NewReader(f.Reader(ctx)))
}

func readTermToText(r io.Reader) (map[term.Hash]string, error) {
	var scratch [12]byte
	if _, err := io.ReadFull(r, scratch[:8]); err != nil {
		return nil, errors.Wrap(err, "stats: read TermToText count")
	}
	count := binary.LittleEndian.Uint64(scratch[:8])

	out := make(map[term.Hash]string, count)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(r, scratch[:12]); err != nil {
			return nil, errors.Wrap(err, "stats: read TermToText entry header")
		}
		hash := term.Hash(binary.LittleEndian.Uint64(scratch[:8]))
		textLen := binary.LittleEndian.Uint32(scratch[8:12])
		text := make([]byte, textLen)
		if _, err := io.ReadFull(r, text); err != nil {
			return nil, errors.Wrap(err, "stats: read TermToText entry text")
		}
		out[hash] = string(text)
	}
	return out, nil
}
