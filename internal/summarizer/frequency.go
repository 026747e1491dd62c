package summarizer

import (
	"math"
	"regexp"
	"slices"
	"strings"

	"kbqa/internal/domain"
)

var _ domain.Summarizer = (*FrequencySummarizer)(nil)

var (
	tokenRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	answerRe   = regexp.MustCompile(`(?is)^\s*q:.*?\ba:\s*`)
)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
// It backs the extractive answer used when no generator is available.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords()}
}

// Summarize returns up to maxSentences of the highest ranked sentences in
// their original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	return s.rank(text, nil, maxSentences), nil
}

// SummarizeFor is Summarize with sentences sharing words with query ranked first.
// A chunk cut from a Q/A block is reduced to its answer part before ranking.
func (s *FrequencySummarizer) SummarizeFor(query, text string, maxSentences int) string {
	if loc := answerRe.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}
	return s.rank(text, s.tokenSet(query), maxSentences)
}

func (s *FrequencySummarizer) rank(text string, query map[string]struct{}, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
			if _, ok := query[tok]; ok {
				score += 1
			}
		}
		// normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	slices.SortStableFunc(scores, func(a, b pair) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})
	maxSentences = min(maxSentences, len(scores))

	// keep original order among selected
	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	slices.Sort(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " ")
}

// splitSentences returns the trimmed sentences of text, including an
// unterminated trailing one.
func splitSentences(text string) []string {
	var out []string
	end := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		end = loc[1]
	}
	if tail := strings.TrimSpace(text[end:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

func (s *FrequencySummarizer) tokenSet(text string) map[string]struct{} {
	m := map[string]struct{}{}
	for _, t := range s.tokens(text) {
		if _, ok := s.stopwords[t]; ok {
			continue
		}
		m[t] = struct{}{}
	}
	return m
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"i", "my", "me", "do", "how", "what", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
