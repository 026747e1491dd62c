package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbqa/internal/domain"
	"kbqa/internal/mocks"
)

func vocabulary() []string {
	return []string{"reset", "password", "forgot", "change", "weather", "shipping", "order", "track"}
}

func TestRecognizerRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Centroid is the mean of examples", func(t *testing.T) {
		r := NewRecognizer(mocks.NewWordEmbedder(vocabulary()...))
		require.NoError(t, r.Register(ctx, "pw", []string{"reset password", "forgot password"}, "answer"))

		m, err := r.Match([]float64{0.5, 1, 0.5, 0, 0, 0, 0, 0}, 0.999)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "pw", m.Name)
		assert.InDelta(t, 1.0, m.Score, 1e-9)
	})

	t.Run("Empty examples", func(t *testing.T) {
		r := NewRecognizer(mocks.NewWordEmbedder(vocabulary()...))
		assert.Error(t, r.Register(ctx, "pw", nil, "answer"))
		assert.Equal(t, 0, r.Len())
	})

	t.Run("Embedding failure registers nothing", func(t *testing.T) {
		emb := mocks.NewWordEmbedder(vocabulary()...).WithFailure("forgot password", errors.New("down"))
		r := NewRecognizer(emb)
		err := r.Register(ctx, "pw", []string{"reset password", "forgot password"}, "answer")
		assert.ErrorContains(t, err, "down")
		assert.Equal(t, 0, r.Len())
	})

	t.Run("Mismatched example dimensions", func(t *testing.T) {
		emb := mocks.NewWordEmbedder(vocabulary()...).WithVector("odd", []float64{1, 2})
		r := NewRecognizer(emb)
		err := r.Register(ctx, "pw", []string{"reset password", "odd"}, "answer")
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("Re-registering keeps position", func(t *testing.T) {
		r := NewRecognizer(mocks.NewWordEmbedder(vocabulary()...))
		require.NoError(t, r.Register(ctx, "a", []string{"reset"}, "1"))
		require.NoError(t, r.Register(ctx, "b", []string{"track"}, "2"))
		require.NoError(t, r.Register(ctx, "a", []string{"change"}, "3"))
		assert.Equal(t, []string{"a", "b"}, r.Names())
	})
}

func TestRecognizerClassify(t *testing.T) {
	ctx := context.Background()
	newRecognizer := func(t *testing.T) *Recognizer {
		r := NewRecognizer(mocks.NewWordEmbedder(vocabulary()...))
		require.NoError(t, r.Register(ctx, "password_reset",
			[]string{"reset my password", "forgot password", "change my password"},
			"Go to Settings > Security > Reset"))
		require.NoError(t, r.Register(ctx, "order_tracking",
			[]string{"track my order", "where is my order"},
			"Open Orders > Track"))
		return r
	}

	t.Run("Password question matches", func(t *testing.T) {
		m, err := newRecognizer(t).Classify(ctx, "how do I change my password", 0.7)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "password_reset", m.Name)
		assert.Equal(t, "Go to Settings > Security > Reset", m.Answer)
		assert.GreaterOrEqual(t, m.Score, 0.7)
	})

	t.Run("Unrelated question does not match", func(t *testing.T) {
		m, err := newRecognizer(t).Classify(ctx, "what is the weather", 0.9)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("Score below threshold does not match", func(t *testing.T) {
		m, err := newRecognizer(t).Classify(ctx, "password shipping weather track", 0.85)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("First registered wins ties", func(t *testing.T) {
		r := NewRecognizer(mocks.NewWordEmbedder(vocabulary()...))
		require.NoError(t, r.Register(ctx, "first", []string{"shipping"}, "1"))
		require.NoError(t, r.Register(ctx, "second", []string{"shipping"}, "2"))
		m, err := r.Classify(ctx, "shipping", 0.5)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "first", m.Name)
	})

	t.Run("No intents means no match and no embedding call", func(t *testing.T) {
		emb := mocks.NewWordEmbedder(vocabulary()...)
		m, err := NewRecognizer(emb).Classify(ctx, "reset password", 0)
		require.NoError(t, err)
		assert.Nil(t, m)
		assert.Equal(t, 0, emb.Calls())
	})

	t.Run("Embedding failure surfaces", func(t *testing.T) {
		r := newRecognizer(t)
		r.embedder = mocks.NewWordEmbedder(vocabulary()...).WithFailure("boom", nil)
		_, err := r.Classify(ctx, "boom", 0.5)
		assert.Error(t, err)
	})

	t.Run("Query of wrong dimension", func(t *testing.T) {
		_, err := newRecognizer(t).Match([]float64{1, 2, 3}, 0.5)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})
}
