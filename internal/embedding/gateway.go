// Package embedding wraps the configured embedding provider with the timeout,
// retry and error classification every caller relies on.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"kbqa/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 1
	baseDelay      = 200 * time.Millisecond
)

// Gateway is a domain.Embedder that bounds each provider call with a timeout,
// retries once and reports every final failure as domain.ErrEmbeddingProvider.
type Gateway struct {
	inner    domain.Embedder
	timeout  time.Duration
	retries  int
	logger   *slog.Logger
	failures prometheus.Counter
	sleep    func(context.Context, time.Duration) error
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRetries sets how many times a failed call is retried.
func WithRetries(n int) Option {
	return func(g *Gateway) {
		if n >= 0 {
			g.retries = n
		}
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithFailureCounter counts calls that failed after all retries.
func WithFailureCounter(c prometheus.Counter) Option {
	return func(g *Gateway) { g.failures = c }
}

func NewGateway(inner domain.Embedder, opts ...Option) *Gateway {
	g := &Gateway{
		inner:   inner,
		timeout: defaultTimeout,
		retries: defaultRetries,
		logger:  slog.Default(),
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Name() string { return g.inner.Name() }

func (g *Gateway) Prepare(corpus []string) error { return g.inner.Prepare(corpus) }

func (g *Gateway) Dimension() int { return g.inner.Dimension() }

// Embed returns the provider's vector for text. It never substitutes a zero
// vector on failure.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("embedding: retrying", "provider", g.inner.Name(), "attempt", attempt, "error", lastErr)
			if err := g.sleep(ctx, retryDelay(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}
		vec, err := g.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if g.failures != nil {
		g.failures.Inc()
	}
	return nil, fmt.Errorf("%w: %s: %v", domain.ErrEmbeddingProvider, g.inner.Name(), lastErr)
}

func (g *Gateway) embedOnce(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	vec, err := g.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, errors.New("empty embedding")
	}
	return vec, nil
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// exponential backoff capped at 5s
	d := baseDelay << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
