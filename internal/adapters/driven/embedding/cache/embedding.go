// Package cache wraps an embedding generator with an expiring LRU cache so
// repeated texts (re-ingestion, repeated queries) are embedded once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure EmbeddingGenerator implements the interface.
var _ driven.EmbeddingGenerator = (*EmbeddingGenerator)(nil)

// EmbeddingGenerator is a caching decorator around another generator.
type EmbeddingGenerator struct {
	next  driven.EmbeddingGenerator
	cache *expirable.LRU[string, []float32]
}

// Wrap returns next decorated with a cache of size entries that expire
// after ttl. A nil generator or a non-positive size or ttl returns next
// unchanged.
func Wrap(next driven.EmbeddingGenerator, size int, ttl time.Duration) driven.EmbeddingGenerator {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &EmbeddingGenerator{
		next:  next,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// Dimensions returns the wrapped generator's vector size.
func (g *EmbeddingGenerator) Dimensions() int {
	return g.next.Dimensions()
}

// Generate returns a cached embedding or computes and caches one.
func (g *EmbeddingGenerator) Generate(ctx context.Context, text string) (domain.Embedding, error) {
	key := g.key(text)
	if cached, ok := g.cache.Get(key); ok {
		logger.Debug("Embedding cache hit")
		return domain.NewEmbedding(clone(cached)), nil
	}
	e, err := g.next.Generate(ctx, text)
	if err != nil {
		return domain.Embedding{}, err
	}
	g.cache.Add(key, clone(e.Values))
	return e, nil
}

// GenerateBatch serves hits from the cache and sends all misses to the
// wrapped generator in a single call. Output order matches input order.
func (g *EmbeddingGenerator) GenerateBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, len(texts))
	keys := make([]string, len(texts))

	// Distinct missing texts, and the output positions each one fills.
	var misses []string
	positions := make(map[string][]int)
	for i, text := range texts {
		keys[i] = g.key(text)
		if cached, ok := g.cache.Get(keys[i]); ok {
			out[i] = domain.NewEmbedding(clone(cached))
			continue
		}
		if _, seen := positions[keys[i]]; !seen {
			misses = append(misses, text)
		}
		positions[keys[i]] = append(positions[keys[i]], i)
	}
	logger.Debug("Embedding cache: %d of %d texts cached", len(texts)-countPositions(positions), len(texts))
	if len(misses) == 0 {
		return out, nil
	}

	computed, err := g.next.GenerateBatch(ctx, misses)
	if err != nil {
		return nil, err
	}
	if len(computed) != len(misses) {
		return nil, fmt.Errorf("%w: %d embeddings for %d texts", domain.ErrBatchMismatch, len(computed), len(misses))
	}
	for j, text := range misses {
		key := g.key(text)
		g.cache.Add(key, clone(computed[j].Values))
		for _, i := range positions[key] {
			out[i] = domain.Embedding{Values: clone(computed[j].Values), Dimensions: computed[j].Dimensions}
		}
	}
	return out, nil
}

// ModelName returns the wrapped generator's model name.
func (g *EmbeddingGenerator) ModelName() string {
	return g.next.ModelName()
}

// Ping pings the wrapped generator.
func (g *EmbeddingGenerator) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}

// Close purges the cache and closes the wrapped generator.
func (g *EmbeddingGenerator) Close() error {
	g.cache.Purge()
	return g.next.Close()
}

// Len returns the number of cached embeddings.
func (g *EmbeddingGenerator) Len() int {
	return g.cache.Len()
}

func (g *EmbeddingGenerator) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return g.next.ModelName() + ":" + hex.EncodeToString(sum[:])
}

func countPositions(positions map[string][]int) int {
	n := 0
	for _, p := range positions {
		n += len(p)
	}
	return n
}

func clone(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float32, len(values))
	copy(out, values)
	return out
}
