// Package intent matches queries against a small set of named intents, each
// represented by the centroid of its example embeddings.
package intent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kbqa/internal/domain"
	"kbqa/internal/vectorstore"
)

// DefaultThreshold favours falling through to document retrieval over
// returning a wrong canned answer.
const DefaultThreshold = 0.85

// Recognizer holds registered intents in registration order. It is safe for
// concurrent use, but is meant to be filled once and then only read.
type Recognizer struct {
	embedder domain.Embedder

	mu      sync.RWMutex
	intents []domain.Intent
	byName  map[string]int
}

func NewRecognizer(embedder domain.Embedder) *Recognizer {
	return &Recognizer{
		embedder: embedder,
		byName:   make(map[string]int),
	}
}

// Register embeds every example and stores their mean under name. Nothing is
// stored unless every example embeds. Registering an existing name replaces
// it in place.
func (r *Recognizer) Register(ctx context.Context, name string, examples []string, answer string) error {
	if name == "" {
		return errors.New("intent name must not be empty")
	}
	if len(examples) == 0 {
		return fmt.Errorf("intent %q: no example queries", name)
	}
	vectors := make([][]float64, 0, len(examples))
	for _, ex := range examples {
		v, err := r.embedder.Embed(ctx, ex)
		if err != nil {
			return fmt.Errorf("intent %q: embed example %q: %w", name, ex, err)
		}
		vectors = append(vectors, v)
	}
	centroid, err := vectorstore.Mean(vectors)
	if err != nil {
		return fmt.Errorf("intent %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	in := domain.Intent{Name: name, Centroid: centroid, Answer: answer}
	if i, ok := r.byName[name]; ok {
		r.intents[i] = in
		return nil
	}
	r.byName[name] = len(r.intents)
	r.intents = append(r.intents, in)
	return nil
}

// Classify embeds query and returns the best intent scoring at least
// threshold, or nil when none does.
func (r *Recognizer) Classify(ctx context.Context, query string, threshold float64) (*domain.IntentMatch, error) {
	if r.Len() == 0 {
		return nil, nil
	}
	v, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.Match(v, threshold)
}

// Match is Classify for an already embedded query. The first registered
// intent wins ties.
func (r *Recognizer) Match(vector []float64, threshold float64) (*domain.IntentMatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best := -1
	bestScore := 0.0
	for i, in := range r.intents {
		score, err := vectorstore.Cosine(vector, in.Centroid)
		if err != nil {
			return nil, fmt.Errorf("intent %q: %w", in.Name, err)
		}
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < threshold {
		return nil, nil
	}
	in := r.intents[best]
	return &domain.IntentMatch{Name: in.Name, Score: bestScore, Answer: in.Answer}, nil
}

// Len returns the number of registered intents.
func (r *Recognizer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.intents)
}

// Names returns the intent names in registration order.
func (r *Recognizer) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.intents))
	for i, in := range r.intents {
		names[i] = in.Name
	}
	return names
}
