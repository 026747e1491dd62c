package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kbqa/internal/chunker"
	"kbqa/internal/config"
	"kbqa/internal/domain"
	"kbqa/internal/embedding"
	"kbqa/internal/embedding/ollama"
	"kbqa/internal/embedding/openai"
	"kbqa/internal/embedding/tfidf"
	"kbqa/internal/generation"
	genollama "kbqa/internal/generation/ollama"
	genopenai "kbqa/internal/generation/openai"
	"kbqa/internal/loader"
	"kbqa/internal/metrics"
	"kbqa/internal/retrieval"
	"kbqa/internal/service"
	"kbqa/internal/vectorstore"
)

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// newEmbedderFactory returns a factory producing the configured embedder
// behind the retrying gateway.
func newEmbedderFactory(cfg *config.AppConfig, logger *slog.Logger, m *metrics.Metrics) service.EmbedderFactory {
	return func() (domain.Embedder, error) {
		var emb domain.Embedder
		switch cfg.Embedder.Type {
		case "tfidf", "":
			emb = tfidf.NewEmbedder()
		case "openai":
			c := cfg.Embedder.OpenAI
			client, err := openai.NewClient(openai.Config{
				BaseURL:    c.BaseURL,
				APIKeyEnv:  c.APIKeyEnv,
				Model:      c.Model,
				Dimensions: c.Dimensions,
				Timeout:    seconds(c.TimeoutSecs),
			})
			if err != nil {
				return nil, fmt.Errorf("openai embedder init failed: %w", err)
			}
			emb = client
		case "ollama":
			c := cfg.Embedder.Ollama
			emb = ollama.NewClient(ollama.Config{
				BaseURL: c.BaseURL,
				Model:   c.Model,
				Timeout: seconds(c.TimeoutSecs),
			})
		default:
			return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
		}
		retries := config.DefaultRetries
		if cfg.Embedder.Retries != nil {
			retries = *cfg.Embedder.Retries
		}
		opts := []embedding.Option{
			embedding.WithTimeout(seconds(cfg.Embedder.TimeoutSecs)),
			embedding.WithRetries(retries),
			embedding.WithLogger(logger),
		}
		if m != nil {
			opts = append(opts, embedding.WithFailureCounter(m.EmbeddingFailures))
		}
		return embedding.NewGateway(emb, opts...), nil
	}
}

// newGenerator returns nil when generation is disabled.
func newGenerator(cfg *config.AppConfig, logger *slog.Logger) (domain.Generator, error) {
	var gen domain.Generator
	switch cfg.Generator.Type {
	case "none", "":
		return nil, nil
	case "openai":
		c := cfg.Generator.OpenAI
		client, err := genopenai.NewClient(genopenai.Config{
			BaseURL:   c.BaseURL,
			APIKeyEnv: c.APIKeyEnv,
			Model:     c.Model,
			Timeout:   seconds(c.TimeoutSecs),
		})
		if err != nil {
			return nil, fmt.Errorf("openai generator init failed: %w", err)
		}
		gen = client
	case "ollama":
		c := cfg.Generator.Ollama
		gen = genollama.NewClient(genollama.Config{
			BaseURL: c.BaseURL,
			Model:   c.Model,
			Timeout: seconds(c.TimeoutSecs),
		})
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Generator.Type)
	}
	return generation.NewGuard(gen, seconds(cfg.Generator.TimeoutSecs), logger), nil
}

func newChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	return chunker.New(chunker.Options{
		Type:       chunker.Strategy(cfg.Chunker.Type),
		Fallback:   chunker.Strategy(cfg.Chunker.Fallback),
		MinChars:   cfg.Chunker.MinChunkChars,
		WindowSize: cfg.Chunker.WindowSize,
		Overlap:    cfg.Chunker.Overlap,
	})
}

// newService assembles the service from cfg. reg may be nil to skip metrics.
func newService(cfg *config.AppConfig, logger *slog.Logger, reg prometheus.Registerer) (*service.Service, error) {
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}
	ch, err := newChunker(cfg)
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}

	intents := make([]service.IntentDef, len(cfg.Intent.Intents))
	for i, in := range cfg.Intent.Intents {
		intents[i] = service.IntentDef{Name: in.Name, Examples: in.Examples, Answer: in.Answer}
	}
	p := cfg.Persona
	opts := service.Options{
		KnowledgeDir: cfg.Knowledge.Dir,
		Retrieval: retrieval.Options{
			K:               cfg.Retrieval.K,
			MinScore:        cfg.Retrieval.MinScore,
			Mode:            vectorstore.SearchMode(cfg.Retrieval.SearchMode),
			IntentThreshold: cfg.Intent.Threshold,
		},
		Intents: intents,
		Persona: service.Persona{
			Name:             p.Name,
			Tone:             p.Tone,
			Language:         p.Language,
			Guidelines:       p.Guidelines,
			FallbackMessage:  p.FallbackMessage,
			NoResultsMessage: p.NoResultsMessage,
			MaxSentences:     p.MaxSentences,
		},
		Generate: domain.GenerateOptions{
			Temperature: cfg.Generator.Temperature,
			MaxTokens:   cfg.Generator.MaxTokens,
		},
	}
	return service.New(
		newEmbedderFactory(cfg, logger, m),
		ch,
		loader.New(cfg.Knowledge.Extensions, logger),
		gen,
		opts,
		logger,
		m,
	), nil
}
