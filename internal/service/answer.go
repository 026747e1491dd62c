package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"kbqa/internal/domain"
	"kbqa/internal/retrieval"
)

// Answer is the result of AnswerQuery. Intent is empty when no intent matched.
// Error carries the failure text when Answer is a fallback.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Intent  string   `json:"intent,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// AnswerQuery answers question from the live index. It never fails: provider
// errors produce the persona fallback message with Error set.
func (s *Service) AnswerQuery(ctx context.Context, question string) Answer {
	start := time.Now()
	ans, outcome := s.answer(ctx, strings.TrimSpace(question))
	if s.metrics != nil {
		s.metrics.Queries.WithLabelValues(outcome).Inc()
		s.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}
	if ans.Sources == nil {
		ans.Sources = []string{}
	}
	return ans
}

func (s *Service) answer(ctx context.Context, question string) (Answer, string) {
	persona := s.opts.Persona
	if question == "" {
		return Answer{Error: domain.ErrEmptyQuery.Error()}, "invalid"
	}
	idx := s.current.Load()
	if idx == nil {
		return Answer{Answer: persona.FallbackMessage, Error: domain.ErrNotReady.Error()}, "not_ready"
	}

	out, err := idx.engine.Retrieve(ctx, question)
	if err != nil {
		s.logger.Error("service: retrieval failed", "error", err)
		return Answer{Answer: persona.FallbackMessage, Error: err.Error()}, "error"
	}

	switch out.Kind {
	case retrieval.KindIntent:
		m := out.Intent
		s.logger.Debug("service: intent matched", "intent", m.Name, "score", m.Score)
		ans := Answer{Intent: m.Name}
		ans.Answer, ans.Error = s.phrase(ctx, intentPrompt(persona, m, question), m.Answer)
		return ans, string(out.Kind)

	case retrieval.KindNoResults:
		return Answer{Answer: persona.NoResultsMessage}, string(out.Kind)

	default:
		texts := make([]string, len(out.Results))
		for i, r := range out.Results {
			texts[i] = r.Chunk.Text
		}
		fallback := s.summarizer.SummarizeFor(question, texts[0], persona.MaxSentences)
		ans := Answer{Sources: out.Sources}
		ans.Answer, ans.Error = s.phrase(ctx, documentPrompt(persona, texts, question), fallback)
		return ans, string(out.Kind)
	}
}

// phrase runs the generator, returning fallback and the error text when it
// is unavailable or fails.
func (s *Service) phrase(ctx context.Context, prompt, fallback string) (string, string) {
	if s.generator == nil {
		return fallback, ""
	}
	text, err := s.generator.Generate(ctx, prompt, s.opts.Generate)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty response")
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.GenerationFailures.Inc()
		}
		s.logger.Warn("service: generation failed, using fallback answer", "error", err)
		return fallback, err.Error()
	}
	return strings.TrimSpace(text), ""
}
