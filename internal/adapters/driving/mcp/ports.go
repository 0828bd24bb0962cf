package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Index is the read-only view of the vector memory used by count_chunks and
// the resources. driven.VectorMemory satisfies it.
type Index interface {
	Dimensions() int
	Count(ctx context.Context) (int64, error)
	ChunkIDs(ctx context.Context, documentKey string) ([]string, error)
}

// Ports aggregates the services the MCP server exposes.
type Ports struct {
	// Retriever answers retrieve calls. Required.
	Retriever driving.Retriever

	// Ingestion enables ingest_text and remove_document.
	Ingestion driving.IngestionService

	// Index enables count_chunks and the resources.
	Index Index
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	return nil
}
