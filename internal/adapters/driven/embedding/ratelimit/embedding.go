// Package ratelimit wraps an embedding generator with a token bucket so
// remote providers are not called faster than their quota allows.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure EmbeddingGenerator implements the interface.
var _ driven.EmbeddingGenerator = (*EmbeddingGenerator)(nil)

// Config holds the token bucket settings. Each Generate or GenerateBatch
// call consumes one token.
type Config struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// EmbeddingGenerator delays calls to the wrapped generator to stay within
// the configured rate.
type EmbeddingGenerator struct {
	next    driven.EmbeddingGenerator
	limiter *rate.Limiter
}

// Wrap returns next limited to cfg. A nil generator or a non-positive
// rate returns next unchanged.
func Wrap(next driven.EmbeddingGenerator, cfg Config) driven.EmbeddingGenerator {
	if next == nil || cfg.RequestsPerSecond <= 0 {
		return next
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return &EmbeddingGenerator{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Dimensions returns the wrapped generator's vector size.
func (g *EmbeddingGenerator) Dimensions() int {
	return g.next.Dimensions()
}

// Generate waits for a token, then embeds text.
func (g *EmbeddingGenerator) Generate(ctx context.Context, text string) (domain.Embedding, error) {
	if err := g.wait(ctx); err != nil {
		return domain.Embedding{}, err
	}
	return g.next.Generate(ctx, text)
}

// GenerateBatch waits for a token, then embeds the batch in one call.
func (g *EmbeddingGenerator) GenerateBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return g.next.GenerateBatch(ctx, texts)
}

// ModelName returns the wrapped generator's model name.
func (g *EmbeddingGenerator) ModelName() string {
	return g.next.ModelName()
}

// Ping is not rate limited.
func (g *EmbeddingGenerator) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}

// Close closes the wrapped generator.
func (g *EmbeddingGenerator) Close() error {
	return g.next.Close()
}

func (g *EmbeddingGenerator) wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}
