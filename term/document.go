package term

// Document accumulates the postings produced by a single pass over a
// document's per-stream token sequences (spec §4.D). For a configured
// maximum gram size K, each incoming token at position i causes emission of
// every term covering positions i-j..i for j in 0..K-1 — i.e. every n-gram
// ending at the token just seen, forward-only. Distinct (stream, hash)
// postings collapse to one (set semantics); duplicates within a document do
// not inflate posting counts.
//
// A Document is not safe for concurrent use; callers build one per document
// on a single goroutine, then hand its Postings() to the ingestor at close
// time.
type Document struct {
	maxGramSize uint8
	windows     map[StreamId][]Term
	postings    map[postingKey]Term
	order       []postingKey
}

type postingKey struct {
	stream StreamId
	hash   Hash
}

// NewDocument constructs an empty Document that will compose terms up to
// maxGramSize unigrams long. maxGramSize is clamped to [1, MaxGramSize].
func NewDocument(maxGramSize uint8) *Document {
	if maxGramSize < 1 {
		maxGramSize = 1
	}
	if maxGramSize > MaxGramSize {
		maxGramSize = MaxGramSize
	}
	return &Document{
		maxGramSize: maxGramSize,
		windows:     make(map[StreamId][]Term),
		postings:    make(map[postingKey]Term),
	}
}

// AddToken records the next token of stream, in document order, computing
// and recording every n-gram (up to maxGramSize) that ends at this token.
func (d *Document) AddToken(stream StreamId, text string, idf IdfX10) {
	uni := New(text, stream, idf)
	w := append(d.windows[stream], uni)
	if len(w) > int(d.maxGramSize) {
		w = w[len(w)-int(d.maxGramSize):]
	}
	d.windows[stream] = w

	// For each length L = 1..len(w), the term ending at the new token and
	// spanning L positions starts at index len(w)-L.
	for l := 1; l <= len(w); l++ {
		start := len(w) - l
		t := w[start]
		for k := start + 1; k < len(w); k++ {
			t = Compose(t, w[k])
		}
		d.record(t)
	}
}

func (d *Document) record(t Term) {
	key := postingKey{t.Stream, t.Hash}
	if _, ok := d.postings[key]; ok {
		return
	}
	d.postings[key] = t
	d.order = append(d.order, key)
}

// Postings returns the document's distinct postings in first-emitted order.
func (d *Document) Postings() []Term {
	out := make([]Term, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, d.postings[k])
	}
	return out
}

// Contains reports whether the exact (stream, hash) posting is present.
// Used only by the verification path (spec §8 property 1): the boolean
// evaluator consults the document cache via Contains, independent of the
// bloom-filter-style matcher.
func (d *Document) Contains(stream StreamId, hash Hash) bool {
	_, ok := d.postings[postingKey{stream, hash}]
	return ok
}

// NumPostings reports the number of distinct postings recorded so far.
func (d *Document) NumPostings() int {
	return len(d.order)
}
