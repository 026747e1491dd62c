// Package generation phrases final answers through an external text model.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kbqa/internal/domain"
)

// Guard bounds a Generator with a timeout and reports failures as
// domain.ErrGenerationProvider.
type Guard struct {
	inner   domain.Generator
	timeout time.Duration
	logger  *slog.Logger
}

func NewGuard(inner domain.Generator, timeout time.Duration, logger *slog.Logger) *Guard {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{inner: inner, timeout: timeout, logger: logger}
}

func (g *Guard) Name() string { return g.inner.Name() }

func (g *Guard) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	g.logger.Debug("generation: request", "provider", g.inner.Name(), "prompt_length", len(prompt))
	text, err := g.inner.Generate(ctx, prompt, opts)
	if err != nil {
		g.logger.Error("generation: request failed", "provider", g.inner.Name(), "error", err)
		return "", fmt.Errorf("%w: %s: %v", domain.ErrGenerationProvider, g.inner.Name(), err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: %s: empty response", domain.ErrGenerationProvider, g.inner.Name())
	}
	g.logger.Debug("generation: response", "provider", g.inner.Name(), "content_length", len(text), "duration_ms", time.Since(start).Milliseconds())
	return text, nil
}
