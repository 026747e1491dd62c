package vectorstore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbqa/internal/domain"
)

func TestCosine(t *testing.T) {
	t.Run("Symmetric", func(t *testing.T) {
		a := []float64{1, 2, 3}
		b := []float64{-2, 0.5, 4}
		ab, err := Cosine(a, b)
		require.NoError(t, err)
		ba, err := Cosine(b, a)
		require.NoError(t, err)
		assert.Equal(t, ab, ba)
	})

	t.Run("Self similarity is one", func(t *testing.T) {
		for _, v := range [][]float64{{1}, {3, 4}, {-0.2, 0.7, 9.1, 1e-3}} {
			s, err := Cosine(v, v)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, s, 1e-12)
		}
	})

	t.Run("Orthogonal and opposite", func(t *testing.T) {
		s, _ := Cosine([]float64{1, 0}, []float64{0, 5})
		assert.InDelta(t, 0, s, 1e-12)
		s, _ = Cosine([]float64{1, 1}, []float64{-2, -2})
		assert.InDelta(t, -1, s, 1e-12)
	})

	t.Run("Zero norm gives zero", func(t *testing.T) {
		s, err := Cosine([]float64{0, 0}, []float64{1, 2})
		require.NoError(t, err)
		assert.Equal(t, 0.0, s)
		assert.False(t, math.IsNaN(s))
	})

	t.Run("Length mismatch is an error", func(t *testing.T) {
		_, err := Cosine([]float64{1, 2}, []float64{1, 2, 0})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})
}

func TestMean(t *testing.T) {
	m, err := Mean([][]float64{{1, 2}, {3, 6}})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, m)

	_, err = Mean([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestSearchModeFloor(t *testing.T) {
	assert.Equal(t, 0.5, SearchScored.Floor(0.5))
	assert.True(t, math.IsInf(SearchPlain.Floor(0.5), -1))
}
