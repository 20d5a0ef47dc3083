// Package term implements Term construction and n-gram composition (spec
// §4.D): given (text, streamId) it derives a raw hash, tracks bucketed IDF,
// and composes adjacent unigrams into higher-gram terms with an ordered,
// non-commutative mixing function.
package term

import (
	"encoding/binary"

	farm "github.com/dgryski/go-farm"
)

// MaxGramSize bounds how many adjacent unigrams may be composed into one
// term.
const MaxGramSize = 4

// StreamId names a field (e.g. "title", "body") that distinguishes terms
// carrying the same text.
type StreamId uint8

// SystemStreamId is the reserved stream carrying the three system terms
// (spec §4.B "System terms").
const SystemStreamId StreamId = 0

// Hash is Term's raw 64-bit hash, derived from stream id + text (or, for a
// composed term, from an ordered mix of its constituent hashes).
type Hash uint64

// The three system term hashes, reserved at SystemStreamId. These are
// process-wide invariants (spec §9 "Global system terms"), not mutable
// state, hence plain Hash constants rather than a registry.
const (
	HashDocumentActive Hash = 0
	HashMatchAll       Hash = 1
	HashMatchNone      Hash = 2
)

// IdfX10 is inverse document frequency * 10, bucketed, and saturating on
// overflow so composed-term IDF summation never wraps.
type IdfX10 uint16

// MaxIdfX10 is the saturation ceiling for IdfX10 addition.
const MaxIdfX10 = IdfX10(^uint16(0))

// Term is a single (possibly composed) query/posting term: a hash, the
// stream it was found in, how many adjacent unigrams it composes, and its
// bucketed IDF.
type Term struct {
	Hash     Hash
	Stream   StreamId
	GramSize uint8
	IdfX10   IdfX10
}

// New constructs a unigram Term for text in the given stream, with the
// caller-supplied IDF bucket (ordinarily looked up from the corpus
// statistics at ingestion/query-planning time).
func New(text string, stream StreamId, idf IdfX10) Term {
	return Term{
		Hash:     hashUnigram(text, stream),
		Stream:   stream,
		GramSize: 1,
		IdfX10:   idf,
	}
}

// hashUnigram derives the raw hash for a single token: FarmHash64 of the
// text, seeded with the stream id so the same text in different streams
// hashes differently.
func hashUnigram(text string, stream StreamId) Hash {
	return Hash(farm.Hash64WithSeed([]byte(text), uint64(stream)))
}

// Compose combines two adjacent unigrams A (first) then B (second, in
// document order) into a bigram-or-higher term. The mix is ordered: swapping
// a and b produces a different hash, so "thee compare" and "compare thee"
// hash differently — required for phrase matching to be order-sensitive
// (spec §4.D, §4.E phrase compilation).
//
// a and b need not themselves be unigrams: composing a gramSize-2 term with
// a unigram yields a gramSize-3 term, etc., up to MaxGramSize.
func Compose(a, b Term) Term {
	if a.Stream != b.Stream {
		panic("term: cannot compose terms from different streams")
	}
	gram := int(a.GramSize) + int(b.GramSize)
	if gram > MaxGramSize {
		panic("term: composed gram size exceeds MaxGramSize")
	}
	return Term{
		Hash:     mixOrdered(a.Hash, b.Hash),
		Stream:   a.Stream,
		GramSize: uint8(gram),
		IdfX10:   saturatingAdd(a.IdfX10, b.IdfX10),
	}
}

// mixOrdered hashes the concatenation of a then b, so the mix is
// non-commutative: FarmHash64(a||b) != FarmHash64(b||a) in general.
func mixOrdered(a, b Hash) Hash {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(a))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(b))
	return Hash(farm.Hash64(buf[:]))
}

func saturatingAdd(a, b IdfX10) IdfX10 {
	sum := uint32(a) + uint32(b)
	if sum > uint32(MaxIdfX10) {
		return MaxIdfX10
	}
	return IdfX10(sum)
}
