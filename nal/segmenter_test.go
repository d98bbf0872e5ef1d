package nal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamcore/esparser/esio"
)

func TestFetchSplitsAnnexB(t *testing.T) {
	stream := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0xAA, 0xBB, // SPS-ish
		0x00, 0x00, 0x01, 0x68, 0xCC, // PPS-ish
		0x00, 0x00, 0x01, 0x65, 0xDD, 0xEE, 0xFF, // IDR-ish
	}
	seg := NewSegmenter(esio.NewMemReader(stream))

	u1, err := seg.Fetch()
	require.NoError(t, err)
	require.Equal(t, 4, u1.StartCodeSize)
	require.Equal(t, []byte{0x67, 0xAA, 0xBB}, u1.Body)
	require.True(t, u1.Complete)

	u2, err := seg.Fetch()
	require.NoError(t, err)
	require.Equal(t, 3, u2.StartCodeSize)
	require.Equal(t, []byte{0x68, 0xCC}, u2.Body)

	u3, err := seg.Fetch()
	require.NoError(t, err)
	require.Equal(t, []byte{0x65, 0xDD, 0xEE, 0xFF}, u3.Body)
	require.True(t, u3.Complete)

	_, err = seg.Fetch()
	require.Error(t, err)
}
