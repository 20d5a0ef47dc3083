package chunk

import (
	"bufio"
	"encoding/hex"
	"io"
)

// Writer serializes Documents back to the chunk wire format, the write half
// of spec property #7 ("chunk round-trip": parse(write(parse(bytes))) ==
// parse(bytes)).
type Writer struct {
	bw *bufio.Writer
}

// NewWriter wraps w as a chunk file writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Write appends doc to the stream.
func (w *Writer) Write(doc *Document) error {
	if err := w.writeHex(doc.DocId, 16); err != nil {
		return err
	}
	for _, s := range doc.Streams {
		if err := w.writeHex(uint64(s.StreamId), 2); err != nil {
			return err
		}
		for _, tok := range s.Tokens {
			if _, err := w.bw.Write(tok); err != nil {
				return err
			}
			if err := w.bw.WriteByte(0); err != nil {
				return err
			}
		}
		if err := w.bw.WriteByte(0); err != nil { // end of this stream's tokens
			return err
		}
	}
	if err := w.bw.WriteByte(0); err != nil { // end of this document's streams
		return err
	}
	return nil
}

func (w *Writer) writeHex(v uint64, width int) error {
	s := hex.EncodeToString(encodeFixed(v, width/2))
	if _, err := w.bw.WriteString(s); err != nil {
		return err
	}
	return w.bw.WriteByte(0)
}

func encodeFixed(v uint64, bytes int) []byte {
	out := make([]byte, bytes)
	for i := bytes - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// Close flushes the writer and appends the file-trailing NUL terminator.
func (w *Writer) Close() error {
	if err := w.bw.WriteByte(0); err != nil {
		return err
	}
	return w.bw.Flush()
}

// WriteAll writes every document in docs, then closes w.
func WriteAll(w *Writer, docs []*Document) error {
	for _, d := range docs {
		if err := w.Write(d); err != nil {
			return err
		}
	}
	return w.Close()
}
