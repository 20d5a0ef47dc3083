package rows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackedRowIdSequenceRoundTrip(t *testing.T) {
	cases := []struct {
		start, count int
		kind         Kind
	}{
		{0, 0, Explicit},
		{1, 1, Adhoc},
		{MaxStart, MaxCount, Fact},
		{12345, 17, Explicit},
	}
	for _, c := range cases {
		p := Pack(c.start, c.count, c.kind)
		assert.Equal(t, c.start, p.Start())
		assert.Equal(t, c.count, p.Count())
		assert.Equal(t, c.kind, p.Kind())
	}
}

func TestPackOverflowPanics(t *testing.T) {
	assert.Panics(t, func() { Pack(MaxStart+1, 0, Explicit) })
	assert.Panics(t, func() { Pack(0, MaxCount+1, Explicit) })
}

func TestRowIdString(t *testing.T) {
	r := RowId{Rank: 3, Index: 42}
	assert.Contains(t, r.String(), "rank=3")
	assert.Contains(t, r.String(), "index=42")
}
