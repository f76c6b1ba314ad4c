package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfidenceForSources(t *testing.T) {
	require.Equal(t, ConfidenceFloor, ConfidenceForSources(0))
	require.Equal(t, ConfidenceFloor, ConfidenceForSources(-1))
	require.Equal(t, ConfidenceBase, ConfidenceForSources(1))

	// monotonic, and never above the cap
	prev := 0.0
	for resolved := 0; resolved <= 10; resolved++ {
		score := ConfidenceForSources(resolved)
		require.GreaterOrEqual(t, score, prev)
		require.LessOrEqual(t, score, ConfidenceCap)
		prev = score
	}

	require.Equal(t, ConfidenceCap, ConfidenceForSources(100))
}
