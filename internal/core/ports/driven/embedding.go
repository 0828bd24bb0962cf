package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// EmbeddingGenerator generates vector embeddings from text.
//
// Note: This is separate from VectorMemory which stores and searches vectors.
// EmbeddingGenerator produces vectors; VectorMemory persists them.
//
// Implementations may include:
//   - Local feature hashing (no network, deterministic)
//   - Ollama (nomic-embed-text, all-minilm)
//   - Gemini (text-embedding-004, gemini-embedding-001)
type EmbeddingGenerator interface {
	// Dimensions returns the embedding vector size. Fixed for the lifetime
	// of the generator and must match the VectorMemory configuration.
	Dimensions() int

	// Generate produces an embedding for a single text.
	Generate(ctx context.Context, text string) (domain.Embedding, error)

	// GenerateBatch produces one embedding per input, in input order.
	// The batch succeeds or fails as a unit; partial results are never returned.
	GenerateBatch(ctx context.Context, texts []string) ([]domain.Embedding, error)

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
