package bitmatrix

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetClearTestBit(t *testing.T) {
	b := NewRankBuffer(0, 4, 128)
	assert.False(t, b.TestBit(2, 70))
	b.SetBit(2, 70)
	assert.True(t, b.TestBit(2, 70))
	b.ClearBit(2, 70)
	assert.False(t, b.TestBit(2, 70))
}

func TestSetBitIsIdempotent(t *testing.T) {
	b := NewRankBuffer(0, 1, 64)
	b.SetBit(0, 5)
	b.SetBit(0, 5)
	assert.Equal(t, uint64(1<<5), b.Row(0)[0])
}

func TestRowsAreIndependent(t *testing.T) {
	b := NewRankBuffer(0, 2, 64)
	b.SetBit(0, 3)
	assert.False(t, b.TestBit(1, 3))
}

func TestConcurrentSetBitDisjointColumnsSameWord(t *testing.T) {
	b := NewRankBuffer(0, 1, 64)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(col int) {
			defer wg.Done()
			b.SetBit(0, col)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, ^uint64(0), b.Row(0)[0])
}

func TestFillRowSetsEveryBit(t *testing.T) {
	b := NewRankBuffer(0, 2, 128)
	b.FillRow(0)
	assert.True(t, b.TestBit(0, 0))
	assert.True(t, b.TestBit(0, 127))
	assert.False(t, b.TestBit(1, 0))
}

func TestRowPopCountBoundsByColumn(t *testing.T) {
	b := NewRankBuffer(0, 2, 128)
	b.FillRow(0)
	assert.Equal(t, 128, b.RowPopCount(0, 128))
	assert.Equal(t, 70, b.RowPopCount(0, 70))
	assert.Equal(t, 128, b.RowPopCount(0, 1000), "cols past the row clamp")

	b.SetBit(1, 3)
	b.SetBit(1, 90)
	assert.Equal(t, 1, b.RowPopCount(1, 64))
	assert.Equal(t, 2, b.RowPopCount(1, 128))
}

func TestNonMultipleOfWordSizePanics(t *testing.T) {
	assert.Panics(t, func() { NewRankBuffer(0, 1, 100) })
}

func TestRowOutOfRangePanics(t *testing.T) {
	b := NewRankBuffer(0, 1, 64)
	assert.Panics(t, func() { b.Row(1) })
}
