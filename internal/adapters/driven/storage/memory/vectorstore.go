package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorMemory = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorMemory.
// Search is a brute-force cosine scan.
type VectorStore struct {
	mu         sync.RWMutex
	dimensions int
	embedder   driven.EmbeddingGenerator
	records    map[string]domain.VectorRecord
	byDocument map[string]map[string]struct{}
}

// NewVectorStore creates an empty store. The embedder is used by Search
// and may be nil when only SearchByVector is needed.
func NewVectorStore(dimensions int, embedder driven.EmbeddingGenerator) (*VectorStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, dimensions)
	}
	if embedder != nil && embedder.Dimensions() != dimensions {
		return nil, fmt.Errorf("%w: embedder produces %d, store expects %d",
			domain.ErrDimensionMismatch, embedder.Dimensions(), dimensions)
	}
	return &VectorStore{
		dimensions: dimensions,
		embedder:   embedder,
		records:    make(map[string]domain.VectorRecord),
		byDocument: make(map[string]map[string]struct{}),
	}, nil
}

// Dimensions returns the vector size fixed at construction.
func (s *VectorStore) Dimensions() int {
	return s.dimensions
}

// Upsert inserts or replaces one record.
func (s *VectorStore) Upsert(ctx context.Context, record domain.VectorRecord) error {
	return s.UpsertBatch(ctx, []domain.VectorRecord{record})
}

// UpsertBatch validates every record before writing any of them.
func (s *VectorStore) UpsertBatch(_ context.Context, records []domain.VectorRecord) error {
	for _, rec := range records {
		if err := vecmath.CheckRecord(rec, s.dimensions); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if old, ok := s.records[rec.ID]; ok && old.DocumentKey != rec.DocumentKey {
			s.unindex(old.DocumentKey, old.ID)
		}
		s.records[rec.ID] = cloneRecord(rec)
		ids, ok := s.byDocument[rec.DocumentKey]
		if !ok {
			ids = make(map[string]struct{})
			s.byDocument[rec.DocumentKey] = ids
		}
		ids[rec.ID] = struct{}{}
	}
	return nil
}

// DeleteByDocument removes every record of the document key.
func (s *VectorStore) DeleteByDocument(_ context.Context, documentKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.byDocument[documentKey] {
		delete(s.records, id)
	}
	delete(s.byDocument, documentKey)
	return nil
}

// DeleteIDs removes the given records. Unknown IDs are ignored.
func (s *VectorStore) DeleteIDs(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		rec, ok := s.records[id]
		if !ok {
			continue
		}
		delete(s.records, id)
		s.unindex(rec.DocumentKey, id)
	}
	return nil
}

// ChunkIDs lists the record IDs of a document in sorted order.
func (s *VectorStore) ChunkIDs(_ context.Context, documentKey string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.byDocument[documentKey]))
	for id := range s.byDocument[documentKey] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Purge drops all records.
func (s *VectorStore) Purge(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]domain.VectorRecord)
	s.byDocument = make(map[string]map[string]struct{})
	return nil
}

// Count returns the number of stored records.
func (s *VectorStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// SearchByVector ranks the matching records by cosine similarity.
func (s *VectorStore) SearchByVector(
	ctx context.Context, query domain.Embedding, topK int, filter domain.Filter,
) ([]domain.SearchHit, error) {
	if err := vecmath.CheckSearch(query, s.dimensions, topK); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	top := vecmath.NewTopK(topK)
	scan := func(rec domain.VectorRecord) {
		if !filter.Matches(rec) {
			return
		}
		top.Offer(domain.SearchHit{
			ChunkID:  rec.ID,
			Document: rec.Document(),
			Text:     rec.Text,
			Score:    vecmath.Cosine(query.Values, rec.Embedding),
			Metadata: rec.Metadata.Clone(),
		})
	}

	if key, ok := filter.DocumentKey(); ok {
		for id := range s.byDocument[key] {
			scan(s.records[id])
		}
	} else {
		for _, rec := range s.records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			scan(rec)
		}
	}
	return top.Results(), nil
}

// Search embeds the query and calls SearchByVector.
func (s *VectorStore) Search(
	ctx context.Context, query string, topK int, filter domain.Filter,
) ([]domain.SearchHit, error) {
	emb, err := vecmath.EmbedQuery(ctx, s.embedder, s.dimensions, query)
	if err != nil {
		return nil, err
	}
	return s.SearchByVector(ctx, emb, topK, filter)
}

// Close is a no-op.
func (s *VectorStore) Close() error {
	return nil
}

// unindex must be called with the write lock held.
func (s *VectorStore) unindex(documentKey, id string) {
	ids := s.byDocument[documentKey]
	delete(ids, id)
	if len(ids) == 0 {
		delete(s.byDocument, documentKey)
	}
}

func cloneRecord(rec domain.VectorRecord) domain.VectorRecord {
	out := rec
	out.Metadata = rec.Metadata.Clone()
	out.Embedding = append([]float32(nil), rec.Embedding...)
	return out
}
