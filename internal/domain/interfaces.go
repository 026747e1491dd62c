package domain

import "context"

// Metadata keys every chunk carries.
const (
	MetaSource = "source"
	MetaIsQA   = "isQA"
)

// Document represents a single knowledge-base file after text extraction.
type Document struct {
	ID      string
	Path    string
	Source  string
	Content string
}

// Chunk is a retrievable unit of document text. Chunks are produced by a Chunker
// and never modified afterwards.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
	Metadata   map[string]any
}

// Source returns the originating document identifier.
func (c Chunk) Source() string {
	s, _ := c.Metadata[MetaSource].(string)
	return s
}

// IsQA reports whether the chunk was cut from a question/answer block.
func (c Chunk) IsQA() bool {
	v, _ := c.Metadata[MetaIsQA].(bool)
	return v
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Intent is a named classification target with a canned answer.
type Intent struct {
	Name     string
	Centroid []float64
	Answer   string
}

// IntentMatch is a confident classification of a query.
type IntentMatch struct {
	Name   string
	Score  float64
	Answer string
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorStore holds vectors alongside their chunks and supports similarity search.
type VectorStore interface {
	Add(vector []float64, chunk Chunk) error
	Search(query []float64, k int, minScore float64) ([]SearchResult, error)
	Len() int
	Dimension() int
}

// GenerateOptions are the sampling options passed to a Generator.
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
}

// Generator phrases a final answer from a prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// Summarizer produces a brief extractive summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
