package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Retriever answers similarity queries against the vector memory.
type Retriever interface {
	// Retrieve returns at most topK hits, best first, after optional
	// deduplication and text trimming.
	Retrieve(ctx context.Context, query string, topK int, filter domain.Filter) ([]domain.SearchHit, error)
}
