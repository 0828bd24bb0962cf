// Package hashing provides a local embedding generator based on feature
// hashing. It needs no model or network and is deterministic, which makes
// it the default for offline use and tests.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure EmbeddingGenerator implements the interface.
var _ driven.EmbeddingGenerator = (*EmbeddingGenerator)(nil)

// DefaultDimensions is the vector size used when none is configured.
const DefaultDimensions = 384

// EmbeddingGenerator hashes word unigrams and bigrams into a fixed number
// of signed buckets and normalises the result to unit length.
type EmbeddingGenerator struct {
	dimensions int
}

// NewEmbeddingGenerator creates a hashing generator. A non-positive
// dimensions value selects DefaultDimensions.
func NewEmbeddingGenerator(dimensions int) *EmbeddingGenerator {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingGenerator{dimensions: dimensions}
}

// Dimensions returns the embedding vector size.
func (g *EmbeddingGenerator) Dimensions() int {
	return g.dimensions
}

// Generate embeds a single text.
func (g *EmbeddingGenerator) Generate(ctx context.Context, text string) (domain.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return domain.Embedding{}, err
	}
	return domain.NewEmbedding(g.vector(text)), nil
}

// GenerateBatch embeds every text in order.
func (g *EmbeddingGenerator) GenerateBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = domain.NewEmbedding(g.vector(text))
	}
	return out, nil
}

// ModelName identifies the generator and its size.
func (g *EmbeddingGenerator) ModelName() string {
	return fmt.Sprintf("hashing-%d", g.dimensions)
}

// Ping always succeeds.
func (g *EmbeddingGenerator) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (g *EmbeddingGenerator) Close() error {
	return nil
}

func (g *EmbeddingGenerator) vector(text string) []float32 {
	v := make([]float32, g.dimensions)
	words := Tokens(text)
	for i, w := range words {
		g.add(v, w, 1)
		if i > 0 {
			g.add(v, words[i-1]+" "+w, 0.5)
		}
	}
	vecmath.Normalize(v)
	return v
}

func (g *EmbeddingGenerator) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := int(sum % uint64(g.dimensions))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[bucket] += weight
}

// Tokens lowercases text and splits it into runs of letters and digits.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
