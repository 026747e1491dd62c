package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"kbqa/internal/domain"
)

// WindowChunker splits text into fixed-size sentence windows with overlap.
type WindowChunker struct {
	windowSize int
	overlap    int
	splitter   *regexp.Regexp
}

// NewWindowChunker validates the window geometry; overlap must be smaller than
// the window so every step advances.
func NewWindowChunker(windowSize, overlap int) (*WindowChunker, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if overlap < 0 || overlap >= windowSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", windowSize, overlap)
	}
	return &WindowChunker{
		windowSize: windowSize,
		overlap:    overlap,
		splitter:   regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}, nil
}

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	text := normalize(document.Content)
	if text == "" {
		return nil, nil
	}
	var sentences []string
	last := 0
	for _, loc := range c.splitter.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}

	var pieces []string
	for i := 0; i < len(sentences); i += c.windowSize - c.overlap {
		end := min(i+c.windowSize, len(sentences))
		pieces = append(pieces, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
	}
	return buildChunks(document, pieces, false), nil
}
