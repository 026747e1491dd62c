// Package chunker turns raw document text into retrievable chunks.
package chunker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"kbqa/internal/domain"
)

// Strategy selects how documents are split.
type Strategy string

const (
	// StrategyQA extracts Q:/A: blocks and falls back to another strategy
	// for documents that contain none.
	StrategyQA Strategy = "qa"
	// StrategyStructural splits on headings and blank lines.
	StrategyStructural Strategy = "structural"
	// StrategyWindow emits fixed-size sentence windows with overlap.
	StrategyWindow Strategy = "window"
)

// DefaultMinChars is the length a structural piece must exceed to be kept.
const DefaultMinChars = 50

// Options configures New.
type Options struct {
	Type       Strategy
	Fallback   Strategy
	MinChars   int
	WindowSize int
	Overlap    int
}

// New builds the chunker selected by opts.
func New(opts Options) (domain.Chunker, error) {
	switch opts.Type {
	case StrategyQA, "":
		fb := opts.Fallback
		if fb == StrategyQA || fb == "" {
			fb = StrategyStructural
		}
		fallback, err := New(Options{Type: fb, MinChars: opts.MinChars, WindowSize: opts.WindowSize, Overlap: opts.Overlap})
		if err != nil {
			return nil, err
		}
		return NewQAChunker(fallback), nil
	case StrategyStructural:
		return NewStructuralChunker(opts.MinChars), nil
	case StrategyWindow:
		return NewWindowChunker(opts.WindowSize, opts.Overlap)
	default:
		return nil, fmt.Errorf("unknown chunker: %s", opts.Type)
	}
}

var newlineRun = regexp.MustCompile(`\s*\n\s*`)

// normalize trims s and collapses every run of newlines into one space.
func normalize(s string) string {
	return newlineRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

func buildChunks(document domain.Document, pieces []string, isQA bool) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(pieces))
	for _, text := range pieces {
		idx := len(chunks)
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Text:       text,
			Index:      idx,
			Metadata: map[string]any{
				domain.MetaSource: document.Source,
				domain.MetaIsQA:   isQA,
			},
		})
	}
	return chunks
}
