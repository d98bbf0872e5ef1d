package poc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlushProducesPermutation(t *testing.T) {
	b := NewBuffer(2)
	pocs := []int32{0, 4, 2, 8, 6}
	for doc, p := range pocs {
		b.Add(doc, p, doc == 0)
	}
	b.Flush()

	seen := make(map[int]bool)
	for doc := range pocs {
		idx := b.outputIndex(doc)
		require.NotEqual(t, NotReady, idx)
		require.False(t, seen[idx], "output index %d assigned twice", idx)
		seen[idx] = true
	}
	require.Equal(t, len(pocs), len(seen))
	for i := 0; i < len(pocs); i++ {
		require.True(t, seen[i])
	}
}

func TestOutputIndexMatchesScenario2(t *testing.T) {
	// IDR(poc0), P(poc2), B(poc1), num_reorder_frames=1.
	b := NewBuffer(2)
	b.Add(0, 0, true)
	b.Add(1, 2, false)
	b.Add(2, 1, false)
	b.Flush()

	require.Equal(t, 0, b.outputIndex(0))
	require.Equal(t, 2, b.outputIndex(1))
	require.Equal(t, 1, b.outputIndex(2))
}
