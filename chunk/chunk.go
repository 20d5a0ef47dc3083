// Package chunk implements the BitFunnel chunk file format reader (spec
// §6): a read-only external format that must be parsed bit-exactly.
//
// Layout, all delimiters single NUL bytes, tokens opaque UTF-8 bytes:
//
//	<16 hex digits DocId> '\0'
//	  { <2 hex digits StreamId> '\0'
//	    { <token-bytes> '\0' }*
//	  '\0' }*
//	'\0'
//
// repeated per document, with a final trailing '\0' terminating the file.
//
// Grounded on encoding/bam/shardedbam.go's streaming-reader shape (a
// bufio.Reader wrapped in a small Next()-style iterator) and on
// cmd/bio-fusion/io.go's file.Open/recordiozstd usage for transparently
// reading a compressed manifest.
package chunk

import (
	"bufio"
	"encoding/hex"
	"io"
	"strconv"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/bitfunnel/bitfunnel/term"
)

// Stream is one (streamId, tokens) run within a document.
type Stream struct {
	StreamId term.StreamId
	Tokens   [][]byte
}

// Document is one parsed chunk-file document: its DocId and its ordered
// streams.
type Document struct {
	DocId   uint64
	Streams []Stream
}

// Reader parses a chunk file into a sequence of Documents. It is not safe
// for concurrent use.
type Reader struct {
	br  *bufio.Reader
	eof bool
}

// NewReader wraps r as a chunk file. r's bytes are assumed uncompressed;
// use Open to transparently handle a .zst-compressed chunk file.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Open wraps f as a chunk file; with compressed set (a ".zst" corpus
// file), the stream is transparently zstd-decompressed first.
func Open(f io.Reader, compressed bool) (*Reader, error) {
	if !compressed {
		return NewReader(f), nil
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "chunk: construct zstd reader")
	}
	return NewReader(zr.IOReadCloser()), nil
}

// readUntilNUL reads bytes up to (not including) the next NUL byte.
// Returns io.EOF only if zero bytes were read before end of input; a
// truncated document (EOF reached mid-field, after at least one byte) is
// fatal per spec §7 ("truncated chunk bytes past EOF" is a Fatal
// condition, not recoverable).
func (r *Reader) readUntilNUL() ([]byte, error) {
	b, err := r.br.ReadBytes(0)
	if err != nil {
		if err == io.EOF && len(b) == 0 {
			return nil, io.EOF
		}
		return nil, errors.Wrap(errTruncated, "chunk: unterminated field")
	}
	return b[:len(b)-1], nil
}

var errTruncated = errors.New("chunk: truncated input (EOF before field terminator)")

// Next parses the next document. Returns (nil, io.EOF) once the file's
// trailing NUL terminator is consumed and no further documents follow.
func (r *Reader) Next() (*Document, error) {
	if r.eof {
		return nil, io.EOF
	}

	docIdHex, err := r.readUntilNUL()
	if err != nil {
		if err == io.EOF {
			r.eof = true
			return nil, io.EOF
		}
		return nil, err
	}
	if len(docIdHex) == 0 {
		// The file's trailing terminator: an empty field where a DocId was
		// expected means there are no more documents.
		r.eof = true
		return nil, io.EOF
	}
	docId, err := parseHex(docIdHex, 16)
	if err != nil {
		return nil, errors.Wrap(err, "chunk: malformed DocId")
	}

	doc := &Document{DocId: docId}
	for {
		streamIdHex, err := r.readUntilNUL()
		if err != nil {
			return nil, err
		}
		if len(streamIdHex) == 0 {
			// Empty field terminates the document's stream list.
			break
		}
		sid, err := parseHex(streamIdHex, 2)
		if err != nil {
			return nil, errors.Wrap(err, "chunk: malformed StreamId")
		}
		stream := Stream{StreamId: term.StreamId(sid)}
		for {
			tok, err := r.readUntilNUL()
			if err != nil {
				return nil, err
			}
			if len(tok) == 0 {
				break
			}
			cp := make([]byte, len(tok))
			copy(cp, tok)
			stream.Tokens = append(stream.Tokens, cp)
		}
		doc.Streams = append(doc.Streams, stream)
	}
	return doc, nil
}

func parseHex(b []byte, width int) (uint64, error) {
	if len(b) != width {
		return 0, errors.Errorf("expected %d hex digits, got %q", width, b)
	}
	if _, err := hex.DecodeString(string(b)); err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(b), 16, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// ReadAll parses every document in r, in order.
func ReadAll(r *Reader) ([]*Document, error) {
	var out []*Document
	for {
		doc, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, doc)
	}
}
