package mocks

import (
	"context"
	"sync"

	"kbqa/internal/domain"
)

// Generator records prompts and returns a canned response or error.
type Generator struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func NewGenerator(response string) *Generator {
	return &Generator{response: response}
}

// WithError makes every Generate call fail with err.
func (g *Generator) WithError(err error) *Generator {
	g.err = err
	return g
}

// Prompts returns every prompt received so far.
func (g *Generator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

func (g *Generator) Name() string { return "mock" }

func (g *Generator) Generate(_ context.Context, prompt string, _ domain.GenerateOptions) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}
