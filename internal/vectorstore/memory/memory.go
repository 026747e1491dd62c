package memory

import (
	"errors"
	"slices"
	"sync"

	"kbqa/internal/domain"
	"kbqa/internal/vectorstore"
)

// Storage is an in-memory vector store using brute-force cosine similarity.
// vectors[i] belongs to chunks[i]; both slices only ever grow together.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	chunks    []domain.Chunk
}

func NewStorage() *Storage { return &Storage{} }

// Add appends one entry. The first vector fixes the store dimension.
func (s *Storage) Add(vector []float64, chunk domain.Chunk) error {
	if len(vector) == 0 {
		return errors.New("empty vector")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = len(vector)
	} else if len(vector) != s.dimension {
		return domain.DimensionError(s.dimension, len(vector))
	}
	s.vectors = append(s.vectors, slices.Clone(vector))
	s.chunks = append(s.chunks, chunk)
	return nil
}

// Search scores every entry against query and returns up to k results with
// score >= minScore, best first. Equal scores keep insertion order. k <= 0
// returns every qualifying entry.
func (s *Storage) Search(query []float64, k int, minScore float64) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, domain.DimensionError(s.dimension, len(query))
	}
	results := make([]domain.SearchResult, 0, len(s.vectors))
	for i, v := range s.vectors {
		score, err := vectorstore.Cosine(query, v)
		if err != nil {
			return nil, err
		}
		if score >= minScore {
			results = append(results, domain.SearchResult{Chunk: s.chunks[i], Score: score})
		}
	}
	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *Storage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}
