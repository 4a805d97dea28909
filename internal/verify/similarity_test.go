package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreBestOfReferences(t *testing.T) {
	probe := []float32{1, 0, 0}
	refs := [][]float32{
		{0, 1, 0},
		{0.6, 0.8, 0},
		{1, 0, 0},
	}

	assert.InDelta(t, 1.0, Score(probe, refs), 1e-9)
}

func TestScoreEmptyReferences(t *testing.T) {
	assert.Equal(t, NoScore, Score([]float32{1, 0}, nil))
	assert.Equal(t, NoScore, Score([]float32{1, 0}, [][]float32{}))
}

func TestScoreNegativeSimilarity(t *testing.T) {
	probe := []float32{1, 0}
	refs := [][]float32{{-0.6, 0.8}}

	// A dissimilar reference still beats the sentinel.
	score := Score(probe, refs)
	require.Greater(t, score, NoScore)
	assert.InDelta(t, -0.6, score, 1e-6)
}

func TestDotMismatchedLengths(t *testing.T) {
	// Shorter side bounds the sum.
	assert.InDelta(t, 0.5, dot([]float32{0.5, 9}, []float32{1}), 1e-9)
	assert.InDelta(t, 0.5, dot([]float32{1}, []float32{0.5, 9}), 1e-9)
}
