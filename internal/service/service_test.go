package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbqa/internal/chunker"
	"kbqa/internal/domain"
	"kbqa/internal/loader"
	"kbqa/internal/logging"
	"kbqa/internal/metrics"
	"kbqa/internal/mocks"
	"kbqa/internal/retrieval"
)

const faq = "Q: How long does a refund take?\nA: Refunds take five days.\nQ: How long is shipping?\nA: Shipping takes two days."

var testPersona = Persona{
	Name:             "Helper",
	Tone:             "friendly",
	Guidelines:       []string{"Be brief."},
	FallbackMessage:  "Sorry, something went wrong.",
	NoResultsMessage: "Nothing found.",
	MaxSentences:     3,
}

type fixture struct {
	svc      *Service
	embedder *mocks.WordEmbedder
	metrics  *metrics.Metrics
	dir      string
}

func newFixture(t *testing.T, gen domain.Generator) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "faq.txt"), []byte(faq), 0o644))

	emb := mocks.NewWordEmbedder("password", "reset", "forgot", "refund", "days", "shipping", "weather")
	ch, err := chunker.New(chunker.Options{Type: chunker.StrategyQA})
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())
	logger := logging.Discard()

	svc := New(
		func() (domain.Embedder, error) { return emb, nil },
		ch,
		loader.New(nil, logger),
		gen,
		Options{
			KnowledgeDir: dir,
			Retrieval:    retrieval.Options{K: 3, MinScore: 0.75, IntentThreshold: 0.7},
			Intents: []IntentDef{{
				Name:     "password_reset",
				Examples: []string{"reset password", "forgot password"},
				Answer:   "Use the reset link.",
			}},
			Persona: testPersona,
		},
		logger,
		m,
	)
	return &fixture{svc: svc, embedder: emb, metrics: m, dir: dir}
}

func TestReindex(t *testing.T) {
	t.Run("Builds index from directory", func(t *testing.T) {
		f := newFixture(t, nil)
		assert.False(t, f.svc.Ready())

		stats, err := f.svc.Reindex(context.Background())
		require.NoError(t, err)
		assert.True(t, f.svc.Ready())
		assert.Equal(t, 1, stats.Documents)
		assert.Equal(t, 2, stats.Chunks)
		assert.Equal(t, 1, stats.Intents)
		assert.Zero(t, stats.Skipped)
		assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.IndexedChunks))

		live, ok := f.svc.Stats()
		require.True(t, ok)
		assert.Equal(t, stats, live)
	})

	t.Run("Chunk embedding failure is skipped", func(t *testing.T) {
		f := newFixture(t, nil)
		f.embedder.WithFailure("Q: How long is shipping? A: Shipping takes two days.", nil)

		stats, err := f.svc.Reindex(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Chunks)
		assert.Equal(t, 1, stats.Skipped)
	})

	t.Run("Missing directory keeps service not ready", func(t *testing.T) {
		f := newFixture(t, nil)
		require.NoError(t, os.RemoveAll(f.dir))

		_, err := f.svc.Reindex(context.Background())
		var fatal *domain.IngestionFatalError
		require.True(t, errors.As(err, &fatal))
		assert.False(t, f.svc.Ready())
	})

	t.Run("Failed rebuild keeps previous index", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Reindex(context.Background())
		require.NoError(t, err)
		require.NoError(t, os.RemoveAll(f.dir))

		_, err = f.svc.Reindex(context.Background())
		require.Error(t, err)
		assert.True(t, f.svc.Ready())
		assert.Equal(t, []string{"faq.txt"}, f.svc.AnswerQuery(context.Background(), "refund days").Sources)
	})

	t.Run("Concurrent reindex", func(t *testing.T) {
		f := newFixture(t, nil)
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.Reindex(context.Background())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		stats, ok := f.svc.Stats()
		require.True(t, ok)
		assert.Equal(t, 2, stats.Chunks)
	})
}

func TestAnswerQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("Ranked answer without generator", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Reindex(ctx)
		require.NoError(t, err)

		ans := f.svc.AnswerQuery(ctx, "refund days")
		assert.Equal(t, []string{"faq.txt"}, ans.Sources)
		assert.Equal(t, "Refunds take five days.", ans.Answer)
		assert.Empty(t, ans.Intent)
		assert.Empty(t, ans.Error)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Queries.WithLabelValues("ranked")))
	})

	t.Run("Ranked answer is generated from context", func(t *testing.T) {
		gen := mocks.NewGenerator("Refunds need five days.")
		f := newFixture(t, gen)
		_, err := f.svc.Reindex(ctx)
		require.NoError(t, err)

		ans := f.svc.AnswerQuery(ctx, "refund days")
		assert.Equal(t, "Refunds need five days.", ans.Answer)
		require.Len(t, gen.Prompts(), 1)
		prompt := gen.Prompts()[0]
		assert.Contains(t, prompt, "You are Helper, a friendly assistant.")
		assert.Contains(t, prompt, "- Be brief.")
		assert.Contains(t, prompt, "Answer using this context:\nQ: How long does a refund take? A: Refunds take five days.")
		assert.Contains(t, prompt, "Question: refund days")
		assert.Contains(t, prompt, "1-3 short sentences")
	})

	t.Run("Single identical chunk", func(t *testing.T) {
		emb := mocks.NewWordEmbedder("refund").
			WithVector("Refunds are issued within five business days of the request.", []float64{0.3, 0.4}).
			WithVector("when do refunds arrive", []float64{0.3, 0.4})
		ch, err := chunker.New(chunker.Options{Type: chunker.StrategyStructural})
		require.NoError(t, err)
		svc := New(func() (domain.Embedder, error) { return emb, nil }, ch, loader.New(nil, nil), nil,
			Options{Persona: testPersona}, logging.Discard(), nil)
		_, err = svc.LoadDocuments(ctx, []domain.Document{{
			ID: "1", Source: "faq.txt", Content: "Refunds are issued within five business days of the request.",
		}})
		require.NoError(t, err)

		ans := svc.AnswerQuery(ctx, "when do refunds arrive")
		assert.Equal(t, []string{"faq.txt"}, ans.Sources)
		assert.NotEmpty(t, ans.Answer)
	})

	t.Run("Intent answer is phrased", func(t *testing.T) {
		gen := mocks.NewGenerator("Click the reset link.")
		f := newFixture(t, gen)
		_, err := f.svc.Reindex(ctx)
		require.NoError(t, err)

		ans := f.svc.AnswerQuery(ctx, "forgot password")
		assert.Equal(t, "password_reset", ans.Intent)
		assert.Equal(t, "Click the reset link.", ans.Answer)
		assert.Empty(t, ans.Sources)
		assert.NotNil(t, ans.Sources)
		require.Len(t, gen.Prompts(), 1)
		assert.Contains(t, gen.Prompts()[0], `Based on the intent "password_reset" (confidence: 0.87)`)
		assert.Contains(t, gen.Prompts()[0], "Use the reset link.")
		assert.Contains(t, gen.Prompts()[0], "Answer this question: forgot password")
	})

	t.Run("Generation failure falls back to canned answer", func(t *testing.T) {
		gen := mocks.NewGenerator("").WithError(errors.New("model offline"))
		f := newFixture(t, gen)
		_, err := f.svc.Reindex(ctx)
		require.NoError(t, err)

		ans := f.svc.AnswerQuery(ctx, "forgot password")
		assert.Equal(t, "Use the reset link.", ans.Answer)
		assert.Equal(t, "password_reset", ans.Intent)
		assert.Contains(t, ans.Error, "model offline")
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GenerationFailures))
	})

	t.Run("Generation failure falls back to extract", func(t *testing.T) {
		gen := mocks.NewGenerator("").WithError(errors.New("model offline"))
		f := newFixture(t, gen)
		_, err := f.svc.Reindex(ctx)
		require.NoError(t, err)

		ans := f.svc.AnswerQuery(ctx, "refund days")
		assert.Equal(t, "Refunds take five days.", ans.Answer)
		assert.Equal(t, []string{"faq.txt"}, ans.Sources)
		assert.Contains(t, ans.Error, "model offline")
	})

	t.Run("No relevant results", func(t *testing.T) {
		gen := mocks.NewGenerator("unused")
		f := newFixture(t, gen)
		_, err := f.svc.Reindex(ctx)
		require.NoError(t, err)

		ans := f.svc.AnswerQuery(ctx, "weather")
		assert.Equal(t, "Nothing found.", ans.Answer)
		assert.Empty(t, ans.Sources)
		assert.Empty(t, ans.Error)
		assert.Empty(t, gen.Prompts())
	})

	t.Run("Embedding failure returns fallback", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Reindex(ctx)
		require.NoError(t, err)
		f.embedder.WithFailure("refund days", nil)

		ans := f.svc.AnswerQuery(ctx, "refund days")
		assert.Equal(t, "Sorry, something went wrong.", ans.Answer)
		assert.Contains(t, ans.Error, "embedding backend unavailable")
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Queries.WithLabelValues("error")))
	})

	t.Run("Not ready", func(t *testing.T) {
		f := newFixture(t, nil)
		ans := f.svc.AnswerQuery(ctx, "refund days")
		assert.Equal(t, "Sorry, something went wrong.", ans.Answer)
		assert.Equal(t, domain.ErrNotReady.Error(), ans.Error)
	})

	t.Run("Empty question", func(t *testing.T) {
		f := newFixture(t, nil)
		ans := f.svc.AnswerQuery(ctx, "   ")
		assert.Equal(t, domain.ErrEmptyQuery.Error(), ans.Error)
		assert.Empty(t, ans.Answer)
	})
}
