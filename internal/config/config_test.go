package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Equal(t, "none", cfg.Generator.Type)
	assert.Equal(t, "qa", cfg.Chunker.Type)
	assert.Equal(t, 50, cfg.Chunker.MinChunkChars)
	assert.Equal(t, 3, cfg.Retrieval.K)
	assert.Equal(t, 0.75, cfg.Retrieval.MinScore)
	assert.Equal(t, DefaultTFIDFIntentThreshold, cfg.Intent.Threshold)
	require.NotNil(t, cfg.Embedder.Retries)
	assert.Equal(t, 1, *cfg.Embedder.Retries)
	require.Len(t, cfg.Intent.Intents, 1)
	assert.Equal(t, "password_reset", cfg.Intent.Intents[0].Name)
	assert.Len(t, cfg.Intent.Intents[0].Examples, 8)
	assert.NotEmpty(t, cfg.Persona.FallbackMessage)
}

func TestParse(t *testing.T) {
	t.Run("Provider defaults filled in", func(t *testing.T) {
		cfg, err := Parse([]byte(`
embedder:
  type: ollama
generator:
  type: openai
  openai:
    model: gpt-4o
retrieval:
  k: 5
intent:
  intents: []
`))
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())
		require.NotNil(t, cfg.Embedder.Ollama)
		assert.Equal(t, "http://localhost:11434", cfg.Embedder.Ollama.BaseURL)
		assert.Equal(t, "nomic-embed-text", cfg.Embedder.Ollama.Model)
		assert.Equal(t, "gpt-4o", cfg.Generator.OpenAI.Model)
		assert.Equal(t, "OPENAI_API_KEY", cfg.Generator.OpenAI.APIKeyEnv)
		assert.Equal(t, 5, cfg.Retrieval.K)
		assert.Empty(t, cfg.Intent.Intents, "explicit empty list disables intents")
	})

	t.Run("Explicit zero retries is kept", func(t *testing.T) {
		cfg, err := Parse([]byte("embedder:\n  retries: 0\n"))
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())
		require.NotNil(t, cfg.Embedder.Retries)
		assert.Equal(t, 0, *cfg.Embedder.Retries)
	})

	t.Run("Intent threshold depends on embedder", func(t *testing.T) {
		cfg, err := Parse([]byte("embedder:\n  type: openai\n"))
		require.NoError(t, err)
		assert.Equal(t, DefaultIntentThreshold, cfg.Intent.Threshold)

		cfg, err = Parse([]byte("intent:\n  threshold: 0.7\n"))
		require.NoError(t, err)
		assert.Equal(t, 0.7, cfg.Intent.Threshold)
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		_, err := Parse([]byte("embedder: ["))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"unknown embedder", func(c *AppConfig) { c.Embedder.Type = "bert" }, "unknown embedder"},
		{"unknown generator", func(c *AppConfig) { c.Generator.Type = "gpt" }, "unknown generator"},
		{"unknown chunker", func(c *AppConfig) { c.Chunker.Type = "sentence" }, "unknown chunker"},
		{"overlap equals window", func(c *AppConfig) { c.Chunker.WindowSize, c.Chunker.Overlap = 3, 3 }, "overlap"},
		{"non-positive k", func(c *AppConfig) { c.Retrieval.K = -1 }, "retrieval.k"},
		{"min score out of range", func(c *AppConfig) { c.Retrieval.MinScore = 1.5 }, "min_score"},
		{"unknown search mode", func(c *AppConfig) { c.Retrieval.SearchMode = "ann" }, "search mode"},
		{"negative retries", func(c *AppConfig) { n := -1; c.Embedder.Retries = &n }, "retries"},
		{"threshold out of range", func(c *AppConfig) { c.Intent.Threshold = -2 }, "threshold"},
		{"intent without examples", func(c *AppConfig) { c.Intent.Intents = []IntentEntry{{Name: "x", Answer: "y"}} }, "example"},
		{"duplicate intent", func(c *AppConfig) {
			c.Intent.Intents = append(c.Intent.Intents, c.Intent.Intents[0])
		}, "duplicate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}

func TestLoadAndSave(t *testing.T) {
	t.Run("Missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("Round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "config.yaml")
		cfg := Default()
		cfg.Knowledge.Dir = "/srv/kb"
		require.NoError(t, Save(path, cfg))

		_, err := os.Stat(path)
		require.NoError(t, err)
		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, cfg, loaded)
	})
}
