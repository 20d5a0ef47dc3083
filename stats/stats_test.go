package stats

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfunnel/bitfunnel/config"
	"github.com/bitfunnel/bitfunnel/term"
)

func TestBuilderFlushWritesArtifacts(t *testing.T) {
	dir, err := ioutil.TempDir("", "bitfunnel-stats")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	b := NewBuilder(false)
	love := term.New("love", 1, 0)
	time := term.New("time", 1, 0)
	b.AddDocument([]term.Term{love, time})
	b.AddDocument([]term.Term{love})

	ctx := context.Background()
	d := config.New(dir)
	require.NoError(t, b.Flush(ctx, d, 0))

	assert.FileExists(t, filepath.Join(dir, "DocFreqTable-0.csv"))
	assert.FileExists(t, filepath.Join(dir, "DocumentHistogram.csv"))
	assert.FileExists(t, filepath.Join(dir, "CumulativeTermCounts-0.csv"))
}

func TestTermToTextRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "bitfunnel-stats")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ctx := context.Background()
	d := config.New(dir)
	want := map[term.Hash]string{
		term.New("love", 1, 0).Hash: "love",
		term.New("time", 1, 0).Hash: "time",
		term.New("thee", 1, 0).Hash: "thee",
	}
	require.NoError(t, WriteTermToText(ctx, d, want))
	assert.FileExists(t, filepath.Join(dir, "TermToText.bin"))

	got, err := ReadTermToText(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
