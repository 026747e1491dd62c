package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds configuration for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OllamaConfig holds configuration for a local Ollama server.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string        `yaml:"type"`
	TimeoutSecs int           `yaml:"timeout_secs"`
	Retries     *int          `yaml:"retries,omitempty"`
	OpenAI      *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama      *OllamaConfig `yaml:"ollama,omitempty"`
}

// GeneratorConfig selects the model that phrases final answers.
type GeneratorConfig struct {
	Type        string        `yaml:"type"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	TimeoutSecs int           `yaml:"timeout_secs"`
	OpenAI      *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama      *OllamaConfig `yaml:"ollama,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type          string `yaml:"type"`
	Fallback      string `yaml:"fallback"`
	MinChunkChars int    `yaml:"min_chunk_chars"`
	WindowSize    int    `yaml:"window_size"`
	Overlap       int    `yaml:"overlap"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	K          int     `yaml:"k"`
	MinScore   float64 `yaml:"min_score"`
	SearchMode string  `yaml:"search_mode"`
}

// IntentEntry is a predefined intent with its example phrasings.
type IntentEntry struct {
	Name     string   `yaml:"name"`
	Examples []string `yaml:"examples"`
	Answer   string   `yaml:"answer"`
}

// IntentConfig configures intent recognition.
type IntentConfig struct {
	Threshold float64       `yaml:"threshold"`
	Intents   []IntentEntry `yaml:"intents"`
}

// KnowledgeConfig points at the documents to index.
type KnowledgeConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
}

// PersonaConfig shapes how answers are phrased.
type PersonaConfig struct {
	Name             string   `yaml:"name"`
	Tone             string   `yaml:"tone"`
	Language         string   `yaml:"language"`
	Guidelines       []string `yaml:"guidelines"`
	FallbackMessage  string   `yaml:"fallback_message"`
	NoResultsMessage string   `yaml:"no_results_message"`
	MaxSentences     int      `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	ReadTimeoutSecs    int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs   int    `yaml:"write_timeout_secs"`
	ReindexTimeoutSecs int    `yaml:"reindex_timeout_secs"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Intent    IntentConfig    `yaml:"intent"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Persona   PersonaConfig   `yaml:"persona"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML on top of an empty config and fills in defaults.
// Sections left out of the document get their defaults; an omitted intent
// list gets the built-in intents.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/kbqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/kbqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kbqa", "config.yaml"), nil
}

// Default returns the built-in configuration: offline TF-IDF embeddings,
// extractive answers and the password reset intent.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

// DefaultIntents are registered when the config does not list any.
func DefaultIntents() []IntentEntry {
	return []IntentEntry{{
		Name: "password_reset",
		Examples: []string{
			"How to reset password?",
			"Change password instructions",
			"Forgot password recovery",
			"Password reset procedure",
			"Update my password",
			"Need to change my login",
			"How do I reset my pass?",
			"Password recovery help",
		},
		Answer: "Open Settings > Account > Password and follow the reset link sent to your email.",
	}}
}

const (
	// DefaultRetries applies when embedder.retries is absent; an explicit 0
	// disables retrying.
	DefaultRetries = 1

	// DefaultIntentThreshold suits dense neural embeddings.
	DefaultIntentThreshold = 0.85
	// DefaultTFIDFIntentThreshold is lower because sparse TF-IDF vectors of
	// paraphrases share few terms and rarely score above 0.8.
	DefaultTFIDFIntentThreshold = 0.4
)

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.Retries == nil {
		retries := DefaultRetries
		cfg.Embedder.Retries = &retries
	}
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		openAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
	case "ollama":
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaConfig{}
		}
		ollamaDefaults(cfg.Embedder.Ollama, "nomic-embed-text")
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "none"
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 120
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 256
	}
	switch cfg.Generator.Type {
	case "openai":
		if cfg.Generator.OpenAI == nil {
			cfg.Generator.OpenAI = &OpenAIConfig{}
		}
		openAIDefaults(cfg.Generator.OpenAI, "gpt-4o-mini")
	case "ollama":
		if cfg.Generator.Ollama == nil {
			cfg.Generator.Ollama = &OllamaConfig{}
		}
		ollamaDefaults(cfg.Generator.Ollama, "llama2")
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "qa"
	}
	if cfg.Chunker.Fallback == "" {
		cfg.Chunker.Fallback = "structural"
	}
	if cfg.Chunker.MinChunkChars == 0 {
		cfg.Chunker.MinChunkChars = 50
	}
	if cfg.Chunker.WindowSize == 0 {
		cfg.Chunker.WindowSize = 5
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = 1
		}
	}

	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 3
	}
	if cfg.Retrieval.MinScore == 0 {
		cfg.Retrieval.MinScore = 0.75
	}
	if cfg.Retrieval.SearchMode == "" {
		cfg.Retrieval.SearchMode = "scored"
	}

	if cfg.Intent.Threshold == 0 {
		cfg.Intent.Threshold = DefaultIntentThreshold
		if cfg.Embedder.Type == "tfidf" {
			cfg.Intent.Threshold = DefaultTFIDFIntentThreshold
		}
	}
	if cfg.Intent.Intents == nil {
		cfg.Intent.Intents = DefaultIntents()
	}

	if cfg.Knowledge.Dir == "" {
		cfg.Knowledge.Dir = "knowledge"
	}
	if len(cfg.Knowledge.Extensions) == 0 {
		cfg.Knowledge.Extensions = []string{".txt", ".md", ".pdf"}
	}

	p := &cfg.Persona
	if p.Name == "" {
		p.Name = "Support Assistant"
	}
	if p.Tone == "" {
		p.Tone = "friendly and concise"
	}
	if p.Language == "" {
		p.Language = "English"
	}
	if p.Guidelines == nil {
		p.Guidelines = []string{
			"Only use facts from the provided context.",
			"Say so when the context does not contain the answer.",
		}
	}
	if p.FallbackMessage == "" {
		p.FallbackMessage = "Sorry, I can't answer that right now. Please try again later."
	}
	if p.NoResultsMessage == "" {
		p.NoResultsMessage = "I couldn't find anything about that in the knowledge base."
	}
	if p.MaxSentences == 0 {
		p.MaxSentences = 3
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":3000"
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = 30
	}
	if cfg.Server.WriteTimeoutSecs == 0 {
		cfg.Server.WriteTimeoutSecs = 180
	}
	if cfg.Server.ReindexTimeoutSecs == 0 {
		cfg.Server.ReindexTimeoutSecs = 300
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func openAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
}

func ollamaDefaults(c *OllamaConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 120
	}
}

// Validate reports the first invalid setting.
func (c *AppConfig) Validate() error {
	if !oneOf(c.Embedder.Type, "tfidf", "openai", "ollama") {
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	if c.Embedder.Retries != nil && *c.Embedder.Retries < 0 {
		return errors.New("embedder.retries must not be negative")
	}
	if !oneOf(c.Generator.Type, "none", "openai", "ollama") {
		return fmt.Errorf("unknown generator: %s", c.Generator.Type)
	}
	if !oneOf(c.Chunker.Type, "qa", "structural", "window") {
		return fmt.Errorf("unknown chunker: %s", c.Chunker.Type)
	}
	if !oneOf(c.Chunker.Fallback, "structural", "window") {
		return fmt.Errorf("unknown chunker fallback: %s", c.Chunker.Fallback)
	}
	if c.Chunker.WindowSize <= 0 {
		return errors.New("chunker.window_size must be positive")
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.WindowSize {
		return fmt.Errorf("chunker.overlap must be in [0, %d)", c.Chunker.WindowSize)
	}
	if c.Retrieval.K <= 0 {
		return errors.New("retrieval.k must be positive")
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		return errors.New("retrieval.min_score must be within [-1, 1]")
	}
	if !oneOf(c.Retrieval.SearchMode, "scored", "plain") {
		return fmt.Errorf("unknown search mode: %s", c.Retrieval.SearchMode)
	}
	if c.Intent.Threshold < -1 || c.Intent.Threshold > 1 {
		return errors.New("intent.threshold must be within [-1, 1]")
	}
	seen := map[string]bool{}
	for i, in := range c.Intent.Intents {
		if strings.TrimSpace(in.Name) == "" {
			return fmt.Errorf("intent %d: name is required", i)
		}
		if seen[in.Name] {
			return fmt.Errorf("intent %s: duplicate name", in.Name)
		}
		seen[in.Name] = true
		if len(in.Examples) == 0 {
			return fmt.Errorf("intent %s: at least one example is required", in.Name)
		}
		if strings.TrimSpace(in.Answer) == "" {
			return fmt.Errorf("intent %s: answer is required", in.Name)
		}
	}
	if c.Knowledge.Dir == "" {
		return errors.New("knowledge.dir is required")
	}
	if c.Persona.MaxSentences < 0 {
		return errors.New("persona.max_sentences must not be negative")
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
