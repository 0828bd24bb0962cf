// Package gemini provides an embedding generator backed by the Gemini API.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure EmbeddingGenerator implements the interface.
var _ driven.EmbeddingGenerator = (*EmbeddingGenerator)(nil)

// Default configuration values.
const (
	DefaultModel      = "gemini-embedding-001"
	DefaultDimensions = 768
	DefaultTaskType   = "RETRIEVAL_DOCUMENT"

	// MaxBatch is the largest number of texts sent in one request.
	MaxBatch = 100
)

// Config holds configuration for the Gemini embedding generator.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the embedding model (default: gemini-embedding-001).
	Model string

	// Dimensions is the requested output dimensionality.
	Dimensions int

	// TaskType tunes the embedding for its use (default: RETRIEVAL_DOCUMENT).
	TaskType string

	// BaseURL overrides the API endpoint.
	BaseURL string
}

// contentEmbedder is the part of the genai client this adapter uses.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// EmbeddingGenerator generates embeddings with genai's EmbedContent.
type EmbeddingGenerator struct {
	models     contentEmbedder
	model      string
	dimensions int
	taskType   string
}

// NewEmbeddingGenerator creates a Gemini embedding generator.
func NewEmbeddingGenerator(ctx context.Context, cfg Config) (*EmbeddingGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", domain.ErrEmbeddingUnavailable)
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newWithModels(client.Models, cfg), nil
}

func newWithModels(models contentEmbedder, cfg Config) *EmbeddingGenerator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.TaskType == "" {
		cfg.TaskType = DefaultTaskType
	}
	return &EmbeddingGenerator{
		models:     models,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		taskType:   cfg.TaskType,
	}
}

// Generate produces an embedding for a single text.
func (g *EmbeddingGenerator) Generate(ctx context.Context, text string) (domain.Embedding, error) {
	out, err := g.GenerateBatch(ctx, []string{text})
	if err != nil {
		return domain.Embedding{}, err
	}
	return out[0], nil
}

// GenerateBatch embeds texts in requests of at most MaxBatch contents.
// Any failed request fails the whole batch.
func (g *EmbeddingGenerator) GenerateBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	dims := int32(g.dimensions)
	config := &genai.EmbedContentConfig{
		TaskType:             g.taskType,
		OutputDimensionality: &dims,
	}

	out := make([]domain.Embedding, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatch {
		end := min(start+MaxBatch, len(texts))
		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
		}

		resp, err := g.models.EmbedContent(ctx, g.model, contents, config)
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if resp == nil || len(resp.Embeddings) != len(contents) {
			got := 0
			if resp != nil {
				got = len(resp.Embeddings)
			}
			return nil, fmt.Errorf("%w: gemini returned %d embeddings for %d texts",
				domain.ErrBatchMismatch, got, len(contents))
		}
		for _, emb := range resp.Embeddings {
			if emb == nil {
				return nil, fmt.Errorf("%w: gemini returned an empty embedding", domain.ErrBatchMismatch)
			}
			e := domain.NewEmbedding(append([]float32(nil), emb.Values...))
			if err := e.Check(g.dimensions); err != nil {
				return nil, fmt.Errorf("gemini model %s: %w", g.model, err)
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (g *EmbeddingGenerator) Dimensions() int {
	return g.dimensions
}

// ModelName returns the name of the embedding model being used.
func (g *EmbeddingGenerator) ModelName() string {
	return g.model
}

// Ping embeds a short probe text.
func (g *EmbeddingGenerator) Ping(ctx context.Context) error {
	if _, err := g.Generate(ctx, "ping"); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}

// Close releases resources.
func (g *EmbeddingGenerator) Close() error {
	return nil
}
