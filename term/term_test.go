package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeIsOrdered(t *testing.T) {
	a := New("shall", 1, 10)
	b := New("compare", 1, 10)
	ab := Compose(a, b)
	ba := Compose(b, a)
	assert.NotEqual(t, ab.Hash, ba.Hash, "composition must be order-sensitive")
	assert.Equal(t, uint8(2), ab.GramSize)
}

func TestComposeIdfSaturates(t *testing.T) {
	a := Term{IdfX10: MaxIdfX10 - 1}
	b := Term{IdfX10: 5}
	c := Compose(a, b)
	assert.Equal(t, MaxIdfX10, c.IdfX10)
}

func TestComposePanicsBeyondMaxGramSize(t *testing.T) {
	a := Term{GramSize: MaxGramSize}
	b := Term{GramSize: 1}
	assert.Panics(t, func() { Compose(a, b) })
}

func TestDocumentPostingsSetSemantics(t *testing.T) {
	d := NewDocument(2)
	d.AddToken(1, "love", 10)
	d.AddToken(1, "is", 10)
	d.AddToken(1, "love", 10) // duplicate unigram text later in doc

	postings := d.Postings()
	// "love" appears twice in the stream but must collapse to a single
	// distinct hash for the unigram posting.
	loveHash := New("love", 1, 10).Hash
	count := 0
	for _, p := range postings {
		if p.Hash == loveHash && p.GramSize == 1 {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDocumentContains(t *testing.T) {
	d := NewDocument(1)
	d.AddToken(2, "title", 10)
	require.True(t, d.Contains(2, New("title", 2, 10).Hash))
	assert.False(t, d.Contains(2, New("other", 2, 10).Hash))
	assert.False(t, d.Contains(1, New("title", 1, 10).Hash), "stream scoping must be exact")
}

func TestDocumentForwardOnlyBigrams(t *testing.T) {
	d := NewDocument(2)
	d.AddToken(1, "shall", 10)
	d.AddToken(1, "i", 10)
	d.AddToken(1, "compare", 10)

	shallI := Compose(New("shall", 1, 10), New("i", 1, 10))
	iCompare := Compose(New("i", 1, 10), New("compare", 1, 10))
	compareI := Compose(New("compare", 1, 10), New("i", 1, 10))

	assert.True(t, d.Contains(1, shallI.Hash))
	assert.True(t, d.Contains(1, iCompare.Hash))
	assert.False(t, d.Contains(1, compareI.Hash), "reversed bigram must not match")
}
