package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// VectorMemory is durable chunk storage with similarity search.
// Consistency for concurrent writers is the implementation's concern:
// upserts are last-write-wins per record ID.
type VectorMemory interface {
	// Dimensions is fixed at construction. Every stored and queried
	// vector must have exactly this length.
	Dimensions() int

	// Upsert inserts or fully replaces one record by ID.
	Upsert(ctx context.Context, record domain.VectorRecord) error

	// UpsertBatch inserts or replaces all records in a single call.
	// Either every record is written or none is.
	UpsertBatch(ctx context.Context, records []domain.VectorRecord) error

	// DeleteByDocument removes every record with the given document key,
	// whatever its ID. Succeeds when nothing matched.
	DeleteByDocument(ctx context.Context, documentKey string) error

	// DeleteIDs removes the records with the given IDs. Unknown IDs are ignored.
	DeleteIDs(ctx context.Context, ids []string) error

	// ChunkIDs lists the record IDs stored for a document key.
	ChunkIDs(ctx context.Context, documentKey string) ([]string, error)

	// Purge drops all records.
	Purge(ctx context.Context) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// SearchByVector returns at most topK hits ordered best-first.
	// topK <= 0 fails with domain.ErrInvalidInput.
	SearchByVector(ctx context.Context, query domain.Embedding, topK int, filter domain.Filter) ([]domain.SearchHit, error)

	// Search embeds the query with the generator the memory was built with,
	// then behaves like SearchByVector.
	Search(ctx context.Context, query string, topK int, filter domain.Filter) ([]domain.SearchHit, error)

	// Close releases resources.
	Close() error
}
