// Package service builds the knowledge index and answers questions against it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"kbqa/internal/domain"
	"kbqa/internal/intent"
	"kbqa/internal/loader"
	"kbqa/internal/metrics"
	"kbqa/internal/retrieval"
	"kbqa/internal/summarizer"
	"kbqa/internal/vectorstore/memory"
)

// EmbedderFactory returns a fresh embedder for each index build. Embedders
// that learn from the corpus must not be shared between builds.
type EmbedderFactory func() (domain.Embedder, error)

// IntentDef is a predefined intent registered on every build.
type IntentDef struct {
	Name     string
	Examples []string
	Answer   string
}

// Persona shapes prompts and the messages returned without generation.
type Persona struct {
	Name             string
	Tone             string
	Language         string
	Guidelines       []string
	FallbackMessage  string
	NoResultsMessage string
	MaxSentences     int
}

// Options configure a Service.
type Options struct {
	KnowledgeDir string
	Retrieval    retrieval.Options
	Intents      []IntentDef
	Persona      Persona
	Generate     domain.GenerateOptions
}

// Stats describes the live index.
type Stats struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Skipped   int           `json:"skipped"`
	Intents   int           `json:"intents"`
	Duration  time.Duration `json:"-"`
	BuiltAt   time.Time     `json:"built_at"`
}

type index struct {
	engine *retrieval.Engine
	stats  Stats
}

// Service owns the live index. Queries read it lock-free; Reindex replaces it.
type Service struct {
	newEmbedder EmbedderFactory
	chunker     domain.Chunker
	loader      *loader.Loader
	generator   domain.Generator
	summarizer  *summarizer.FrequencySummarizer
	opts        Options
	logger      *slog.Logger
	metrics     *metrics.Metrics

	current atomic.Pointer[index]
	group   singleflight.Group
}

// New creates a service with no index; call Reindex before answering.
// generator and m may be nil.
func New(newEmbedder EmbedderFactory, chunker domain.Chunker, ldr *loader.Loader, generator domain.Generator, opts Options, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Persona.MaxSentences <= 0 {
		opts.Persona.MaxSentences = 3
	}
	return &Service{
		newEmbedder: newEmbedder,
		chunker:     chunker,
		loader:      ldr,
		generator:   generator,
		summarizer:  summarizer.NewFrequencySummarizer(),
		opts:        opts,
		logger:      logger,
		metrics:     m,
	}
}

// Ready reports whether an index has been built.
func (s *Service) Ready() bool { return s.current.Load() != nil }

// Stats returns the live index statistics, or false before the first build.
func (s *Service) Stats() (Stats, bool) {
	idx := s.current.Load()
	if idx == nil {
		return Stats{}, false
	}
	return idx.stats, true
}

// Reindex builds a new index from the knowledge directory and swaps it in.
// Concurrent calls share one build. On failure the previous index stays live.
func (s *Service) Reindex(ctx context.Context) (Stats, error) {
	v, err, shared := s.group.Do("reindex", func() (any, error) {
		idx, err := s.build(ctx)
		if err != nil {
			return nil, err
		}
		s.current.Store(idx)
		return idx.stats, nil
	})
	if shared {
		s.logger.Debug("service: joined in-flight reindex")
	}
	if err != nil {
		return Stats{}, err
	}
	return v.(Stats), nil
}

// LoadDocuments indexes the given documents directly, bypassing the
// knowledge directory.
func (s *Service) LoadDocuments(ctx context.Context, docs []domain.Document) (Stats, error) {
	idx, err := s.index(ctx, docs, 0, time.Now())
	if err != nil {
		return Stats{}, err
	}
	s.current.Store(idx)
	return idx.stats, nil
}

func (s *Service) build(ctx context.Context) (*index, error) {
	start := time.Now()
	docs, skips, err := s.loader.Load(s.opts.KnowledgeDir)
	if err != nil {
		s.logger.Error("service: knowledge directory unreadable", "dir", s.opts.KnowledgeDir, "error", err)
		return nil, err
	}
	for _, skip := range skips {
		s.logger.Warn("service: file skipped", "error", skip)
	}
	return s.index(ctx, docs, len(skips), start)
}

func (s *Service) index(ctx context.Context, docs []domain.Document, skipped int, start time.Time) (*index, error) {
	var (
		all    []domain.Chunk
		corpus []string
	)
	for _, d := range docs {
		chunks, err := s.chunker.Chunk(d)
		if err != nil {
			skipped++
			s.logger.Warn("service: chunking failed", "error", &domain.IngestionItemError{Source: d.Source, Chunk: -1, Err: err})
			continue
		}
		if len(chunks) == 0 {
			s.logger.Warn("service: document produced no chunks", "source", d.Source)
			continue
		}
		all = append(all, chunks...)
		for _, ch := range chunks {
			corpus = append(corpus, ch.Text)
		}
	}
	for _, in := range s.opts.Intents {
		corpus = append(corpus, in.Examples...)
	}

	embedder, err := s.newEmbedder()
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	if len(corpus) > 0 {
		if err := embedder.Prepare(corpus); err != nil {
			return nil, fmt.Errorf("prepare embedder: %w", err)
		}
	}

	store := memory.NewStorage()
	for _, ch := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := embedder.Embed(ctx, ch.Text)
		if err == nil {
			err = store.Add(vec, ch)
		}
		if err != nil {
			skipped++
			s.logger.Warn("service: chunk skipped", "error", &domain.IngestionItemError{Source: ch.Source(), Chunk: ch.Index, Err: err})
			continue
		}
	}

	recognizer := intent.NewRecognizer(embedder)
	for _, in := range s.opts.Intents {
		if err := recognizer.Register(ctx, in.Name, in.Examples, in.Answer); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.logger.Warn("service: intent skipped", "intent", in.Name, "error", err)
		}
	}

	stats := Stats{
		Documents: len(docs),
		Chunks:    store.Len(),
		Skipped:   skipped,
		Intents:   recognizer.Len(),
		Duration:  time.Since(start),
		BuiltAt:   time.Now(),
	}
	if s.metrics != nil {
		s.metrics.DocumentsIngested.Add(float64(stats.Documents))
		s.metrics.ChunksIndexed.Add(float64(stats.Chunks))
		s.metrics.IngestionErrors.Add(float64(stats.Skipped))
		s.metrics.IndexDuration.Observe(stats.Duration.Seconds())
		s.metrics.IndexedChunks.Set(float64(stats.Chunks))
	}
	s.logger.Info("service: index built",
		"embedder", embedder.Name(),
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"skipped", stats.Skipped,
		"intents", stats.Intents,
		"duration_ms", stats.Duration.Milliseconds())

	return &index{
		engine: retrieval.NewEngine(embedder, store, recognizer, s.opts.Retrieval),
		stats:  stats,
	}, nil
}
