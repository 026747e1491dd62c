// Package vectorstore holds the similarity primitives shared by the stores
// and the intent recognizer.
package vectorstore

import (
	"math"

	"kbqa/internal/domain"
)

// NoFloor disables the minimum score filter of a search.
var NoFloor = math.Inf(-1)

// SearchMode selects between score-filtered and plain top-k search.
type SearchMode string

const (
	SearchScored SearchMode = "scored"
	SearchPlain  SearchMode = "plain"
)

// Floor returns the minimum score a search in this mode should apply.
func (m SearchMode) Floor(minScore float64) float64 {
	if m == SearchPlain {
		return NoFloor
	}
	return minScore
}

// Cosine returns dot(a,b)/(|a||b|). A zero-norm vector yields 0. Vectors of
// different length are rejected with domain.ErrDimensionMismatch.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, domain.DimensionError(len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Mean returns the element-wise mean of vectors, which must all share a length.
func Mean(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	out := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, domain.DimensionError(dim, len(v))
		}
		for i, x := range v {
			out[i] += x
		}
	}
	n := float64(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out, nil
}
