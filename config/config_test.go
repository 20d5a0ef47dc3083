package config

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFormatting(t *testing.T) {
	d := New("/cfg")
	assert.Equal(t, "/cfg/Manifest.txt", d.Path(Manifest))
	assert.Equal(t, "/cfg/DocFreqTable-3.csv", d.Path(DocFreqTable, 3))
	assert.Equal(t, "/cfg/DocFreqTable-3.csv", d.ShardPath(DocFreqTable, 3))
	assert.Equal(t, "/cfg/TermTable-0.bin", d.Path(TermTable, 0))
}

func TestShardDefinitionRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "bitfunnel-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ctx := context.Background()
	d := New(dir)
	want := []int{0, 128, 4096}
	require.NoError(t, WriteShardDefinition(ctx, d, want))

	got, err := ReadShardDefinition(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadShardDefinitionMissingIsError(t *testing.T) {
	dir, err := ioutil.TempDir("", "bitfunnel-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	_, err = ReadShardDefinition(context.Background(), New(dir))
	assert.Error(t, err)
}

func TestParseShardSuffix(t *testing.T) {
	shard, ok := ParseShardSuffix("DocFreqTable-3")
	assert.True(t, ok)
	assert.Equal(t, 3, shard)

	_, ok = ParseShardSuffix("Manifest")
	assert.False(t, ok)
}
