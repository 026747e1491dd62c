package chunker

import (
	"strings"
	"unicode/utf8"

	"kbqa/internal/domain"
)

// StructuralChunker splits text before markdown headings and on blank lines.
// Pieces not longer than minChars are dropped as noise.
type StructuralChunker struct {
	minChars int
}

func NewStructuralChunker(minChars int) *StructuralChunker {
	if minChars < 0 {
		minChars = DefaultMinChars
	}
	return &StructuralChunker{minChars: minChars}
}

func (c *StructuralChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	return buildChunks(document, c.Split(document.Content), false), nil
}

// Split returns the normalized sections of text that pass the length filter.
func (c *StructuralChunker) Split(text string) []string {
	var pieces []string
	var current strings.Builder

	flush := func() {
		clean := normalize(current.String())
		current.Reset()
		if utf8.RuneCountInString(clean) > c.minChars {
			pieces = append(pieces, clean)
		}
	}

	// Lines have no length cap; a single huge line must not end the scan.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.TrimSpace(line) == "":
			flush()
			continue
		case isHeading(line):
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()
	return pieces
}

func isHeading(line string) bool {
	trimmed := strings.TrimLeft(line, "#")
	return len(trimmed) < len(line) && strings.HasPrefix(trimmed, " ")
}
