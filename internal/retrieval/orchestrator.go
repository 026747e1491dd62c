// Package retrieval decides, per query, between a canned intent answer and
// ranked document chunks.
package retrieval

import (
	"context"
	"fmt"

	"kbqa/internal/domain"
	"kbqa/internal/intent"
	"kbqa/internal/vectorstore"
)

// Kind is the terminal state a query reached.
type Kind string

const (
	KindIntent    Kind = "intent"
	KindNoResults Kind = "no_results"
	KindRanked    Kind = "ranked"
)

// Retrieval defaults.
const (
	DefaultK        = 3
	DefaultMinScore = 0.75
)

// Options are the per-deployment retrieval knobs.
type Options struct {
	K               int
	MinScore        float64
	Mode            vectorstore.SearchMode
	IntentThreshold float64
}

// Outcome is the result of Retrieve. Exactly one of Intent or Results is set
// for KindIntent and KindRanked; neither for KindNoResults.
type Outcome struct {
	Kind    Kind
	Intent  *domain.IntentMatch
	Results []domain.SearchResult
	Sources []string
}

// Engine is an index built once and read concurrently afterwards.
type Engine struct {
	embedder domain.Embedder
	store    domain.VectorStore
	intents  *intent.Recognizer
	opts     Options
}

func NewEngine(embedder domain.Embedder, store domain.VectorStore, intents *intent.Recognizer, opts Options) *Engine {
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.Mode == "" {
		opts.Mode = vectorstore.SearchScored
	}
	return &Engine{embedder: embedder, store: store, intents: intents, opts: opts}
}

// Retrieve runs Classify, then Retrieve when no intent is confident. The
// query is embedded once for both steps.
func (e *Engine) Retrieve(ctx context.Context, query string) (*Outcome, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if e.intents != nil {
		match, err := e.intents.Match(vec, e.opts.IntentThreshold)
		if err != nil {
			return nil, fmt.Errorf("classify: %w", err)
		}
		if match != nil {
			return &Outcome{Kind: KindIntent, Intent: match}, nil
		}
	}

	results, err := e.store.Search(vec, e.opts.K, e.opts.Mode.Floor(e.opts.MinScore))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		return &Outcome{Kind: KindNoResults}, nil
	}
	return &Outcome{Kind: KindRanked, Results: results, Sources: Sources(results)}, nil
}

// Sources returns the distinct chunk sources in first-seen order.
func Sources(results []domain.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	var out []string
	for _, r := range results {
		src := r.Chunk.Source()
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}

func (e *Engine) Store() domain.VectorStore { return e.store }

func (e *Engine) Intents() *intent.Recognizer { return e.intents }

func (e *Engine) Options() Options { return e.opts }
