// Package app is the composition root: it turns a loaded configuration into
// the embedding generator, the vector memory and the services on top of them.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/cache"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/gemini"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/ratelimit"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/splitters/hierarchical"
)

// App holds the wired components. Close releases the store and the embedder.
type App struct {
	Config    *file.Config
	Embedder  driven.EmbeddingGenerator
	Memory    driven.VectorMemory
	Ingestion *services.IngestionService
	Retrieval *services.RetrievalService
}

// Build wires every component described by cfg.
func Build(ctx context.Context, cfg *file.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", domain.ErrInvalidOptions)
	}
	defer logger.Timed("Wiring services")()

	embedder, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mem, err := NewVectorMemory(ctx, cfg, embedder)
	if err != nil {
		embedder.Close() //nolint:errcheck
		return nil, err
	}

	exts := extractors.New(extractors.Config{TextExtensions: cfg.Ingest.TextExtensions})
	return &App{
		Config:    cfg,
		Embedder:  embedder,
		Memory:    mem,
		Ingestion: services.NewIngestionService(exts, hierarchical.New(), embedder, mem),
		Retrieval: services.NewRetrievalService(mem, cfg.RetrieveOptions()),
	}, nil
}

// NewEmbedder creates the configured provider, wrapped by the rate limiter
// and then the cache so cache hits are never throttled.
func NewEmbedder(ctx context.Context, cfg *file.Config) (driven.EmbeddingGenerator, error) {
	ec := cfg.Embedding

	var base driven.EmbeddingGenerator
	switch ec.Provider {
	case file.ProviderHashing, "":
		base = hashing.NewEmbeddingGenerator(ec.Dimensions)
	case file.ProviderOllama:
		base = ollama.NewEmbeddingGenerator(ollama.Config{
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Timeout:    cfg.EmbeddingTimeout(),
			Dimensions: ec.Dimensions,
		})
	case file.ProviderOpenAI:
		g, err := openai.NewEmbeddingGenerator(openai.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Timeout:    cfg.EmbeddingTimeout(),
			Dimensions: ec.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		base = g
	case file.ProviderGemini:
		g, err := gemini.NewEmbeddingGenerator(ctx, gemini.Config{
			APIKey:     ec.APIKey,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			BaseURL:    ec.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		base = g
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidOptions, ec.Provider)
	}
	logger.Debug("Embedding provider %s (%s, %d dimensions)", ec.Provider, base.ModelName(), base.Dimensions())

	limited := ratelimit.Wrap(base, ratelimit.Config{
		RequestsPerSecond: ec.RequestsPerSecond,
		BurstSize:         ec.BurstSize,
	})
	return cache.Wrap(limited, ec.CacheSize, cfg.CacheTTL()), nil
}

// NewVectorMemory opens the configured store with the embedder's dimensions.
func NewVectorMemory(
	ctx context.Context, cfg *file.Config, embedder driven.EmbeddingGenerator,
) (driven.VectorMemory, error) {
	dims := embedder.Dimensions()

	switch cfg.Storage.Backend {
	case file.BackendSQLite, "":
		store, err := sqlite.NewStore(cfg.Storage.Path, dims, embedder)
		if err != nil {
			return nil, err
		}
		logger.Debug("Vector memory: sqlite at %s", store.Path())
		return store, nil
	case file.BackendPostgres:
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:        cfg.Storage.DSN,
			Table:      cfg.Storage.Table,
			Dimensions: dims,
		}, embedder)
		if err != nil {
			return nil, err
		}
		return store, nil
	case file.BackendMemory:
		store, err := memory.NewVectorStore(dims, embedder)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidOptions, cfg.Storage.Backend)
	}
}

// Close releases the vector memory and the embedder.
func (a *App) Close() error {
	var errs []error
	if a.Memory != nil {
		errs = append(errs, a.Memory.Close())
	}
	if a.Embedder != nil {
		errs = append(errs, a.Embedder.Close())
	}
	return errors.Join(errs...)
}
