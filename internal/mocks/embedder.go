// Package mocks provides deterministic embedders and generators for tests.
package mocks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "my": {}, "i": {}, "do": {}, "how": {}, "what": {}, "to": {},
}

// WordEmbedder is a bag-of-words embedder over a fixed vocabulary. Texts that
// share vocabulary words point in similar directions; unknown words are ignored.
type WordEmbedder struct {
	vocab map[string]int

	mu      sync.Mutex
	fail    map[string]error
	vectors map[string][]float64
	calls   int
}

func NewWordEmbedder(vocabulary ...string) *WordEmbedder {
	m := &WordEmbedder{
		vocab:   make(map[string]int),
		fail:    make(map[string]error),
		vectors: make(map[string][]float64),
	}
	for _, w := range vocabulary {
		w = strings.ToLower(w)
		if _, ok := m.vocab[w]; !ok {
			m.vocab[w] = len(m.vocab)
		}
	}
	return m
}

// WithFailure makes Embed fail for text.
func (m *WordEmbedder) WithFailure(text string, err error) *WordEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[text] = err
	return m
}

// WithVector pins the vector returned for text.
func (m *WordEmbedder) WithVector(text string, v []float64) *WordEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = v
	return m
}

// Calls returns how many times Embed was invoked.
func (m *WordEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *WordEmbedder) Name() string           { return "words" }
func (m *WordEmbedder) Prepare([]string) error { return nil }
func (m *WordEmbedder) Dimension() int         { return len(m.vocab) }

func (m *WordEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	m.calls++
	err, failing := m.fail[text]
	pinned, ok := m.vectors[text]
	m.mu.Unlock()
	if failing {
		if err == nil {
			err = errors.New("embedding backend unavailable")
		}
		return nil, err
	}
	if ok {
		return pinned, nil
	}
	vec := make([]float64, len(m.vocab))
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		if i, ok := m.vocab[w]; ok {
			vec[i]++
		}
	}
	return vec, nil
}
