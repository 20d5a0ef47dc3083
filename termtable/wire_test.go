package termtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfunnel/bitfunnel/term"
)

// TestTermTableWireRoundTrip is spec property #4: write(table); read() ==
// table, for a build sequence honoring the build/seal protocol.
func TestTermTableWireRoundTrip(t *testing.T) {
	tt := buildSimple(t)

	data, err := tt.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	wantExplicit := tt.GetRows(term.Term{Hash: term.Hash(100), Stream: 1, IdfX10: 30, GramSize: 1})
	gotExplicit := got.GetRows(term.Term{Hash: term.Hash(100), Stream: 1, IdfX10: 30, GramSize: 1})
	assert.Equal(t, wantExplicit.Len(), gotExplicit.Len())
	wr, _ := wantExplicit.Next()
	gr, _ := gotExplicit.Next()
	assert.Equal(t, wr, gr)

	assert.Equal(t, tt.GetTotalRowCount(0), got.GetTotalRowCount(0))
	assert.Equal(t, tt.DocumentActiveRow(), got.DocumentActiveRow())
}

func TestUnmarshalRejectsCorruptData(t *testing.T) {
	tt := buildSimple(t)
	data, err := tt.Marshal()
	require.NoError(t, err)

	corrupt := append([]byte(nil), data...)
	corrupt[len(corrupt)-1] ^= 0xff
	_, err = Unmarshal(corrupt)
	assert.Error(t, err)
}

func TestUnmarshalRejectsTruncatedData(t *testing.T) {
	_, err := Unmarshal([]byte{1, 2, 3})
	assert.Error(t, err)
}
