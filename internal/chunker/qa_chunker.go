package chunker

import (
	"unicode"

	"kbqa/internal/domain"
)

// QAChunker cuts "Q: ... A: ..." blocks out of a document. Each block runs
// until the next line starting with Q: or the end of the text. Documents
// without any block are handed to the fallback chunker.
type QAChunker struct {
	fallback domain.Chunker
}

func NewQAChunker(fallback domain.Chunker) *QAChunker {
	return &QAChunker{fallback: fallback}
}

func (c *QAChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	pieces := SplitQA(document.Content)
	if len(pieces) > 0 {
		return buildChunks(document, pieces, true), nil
	}
	if c.fallback == nil {
		return nil, nil
	}
	return c.fallback.Chunk(document)
}

// SplitQA returns the normalized question/answer blocks found in text.
// Markers are matched ASCII case-insensitively on the original bytes, so
// offsets stay valid for any input, including invalid UTF-8.
func SplitQA(text string) []string {
	var out []string
	pos := 0
	for pos < len(text) {
		q := indexMarker(text, "q:", pos)
		if q < 0 {
			break
		}
		// A question needs at least one character before its answer marker,
		// and an answer at least one character of its own.
		a := indexMarker(text, "a:", q+3)
		if a < 0 || a+3 > len(text) {
			break
		}
		end := len(text)
		if next := indexFold(text, "\nq:", a+3); next >= 0 {
			end = next
		}
		if block := normalize(text[q:end]); block != "" {
			out = append(out, block)
		}
		pos = end
	}
	return out
}

// indexMarker finds marker at or after from, only where it starts a word.
func indexMarker(s, marker string, from int) int {
	for {
		i := indexFold(s, marker, from)
		if i < 0 {
			return -1
		}
		if i == 0 || !isWordByte(s[i-1]) {
			return i
		}
		from = i + 1
	}
}

// indexFold is strings.Index for a lower-case ASCII marker, ignoring ASCII
// case in s. Non-ASCII bytes never match.
func indexFold(s, marker string, from int) int {
	for i := max(from, 0); i+len(marker) <= len(s); i++ {
		match := true
		for j := 0; j < len(marker); j++ {
			b := s[i+j]
			if 'A' <= b && b <= 'Z' {
				b += 'a' - 'A'
			}
			if b != marker[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func isWordByte(b byte) bool {
	r := rune(b)
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
