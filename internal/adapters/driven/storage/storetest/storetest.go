// Package storetest holds the behaviour every driven.VectorMemory
// implementation must share. Adapter tests call Run with a constructor.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Dimensions is the vector size the conformance suite uses.
const Dimensions = 3

// Opener returns an empty store of Dimensions size whose Search uses embedder.
type Opener func(t *testing.T, embedder driven.EmbeddingGenerator) driven.VectorMemory

// AxisEmbedder maps each known word to a unit axis; unknown text maps to
// the first axis at half length.
type AxisEmbedder struct{}

// Words lists the words AxisEmbedder knows, by axis.
var Words = map[string]int{"refund": 0, "shipping": 1, "privacy": 2}

// Dimensions returns Dimensions.
func (AxisEmbedder) Dimensions() int { return Dimensions }

// Generate embeds text.
func (AxisEmbedder) Generate(_ context.Context, text string) (domain.Embedding, error) {
	v := make([]float32, Dimensions)
	if i, ok := Words[text]; ok {
		v[i] = 1
	} else {
		v[0] = 0.5
	}
	return domain.NewEmbedding(v), nil
}

// GenerateBatch embeds texts in order.
func (e AxisEmbedder) GenerateBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, len(texts))
	for i, t := range texts {
		out[i], _ = e.Generate(ctx, t)
	}
	return out, nil
}

// ModelName returns "axis".
func (AxisEmbedder) ModelName() string { return "axis" }

// Ping succeeds.
func (AxisEmbedder) Ping(context.Context) error { return nil }

// Close succeeds.
func (AxisEmbedder) Close() error { return nil }

// Record builds a record with a derived ID.
func Record(key string, index int, text string, vec ...float32) domain.VectorRecord {
	return domain.VectorRecord{
		ID:          domain.ChunkID(key, index, text),
		Text:        text,
		DocumentKey: key,
		DisplayName: key + " name",
		ContentType: "text/plain",
		Metadata:    domain.Metadata{"lang": "en"},
		Embedding:   vec,
	}
}

// Run exercises the VectorMemory contract.
func Run(t *testing.T, open Opener) {
	ctx := context.Background()

	t.Run("upsert count and chunk ids", func(t *testing.T) {
		s := open(t, AxisEmbedder{})
		a0 := Record("a", 0, "alpha", 1, 0, 0)
		a1 := Record("a", 1, "beta", 0, 1, 0)
		b0 := Record("b", 0, "gamma", 0, 0, 1)
		require.NoError(t, s.UpsertBatch(ctx, []domain.VectorRecord{a1, a0, b0}))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		ids, err := s.ChunkIDs(ctx, "a")
		require.NoError(t, err)
		want := []string{a0.ID, a1.ID}
		if want[0] > want[1] {
			want[0], want[1] = want[1], want[0]
		}
		assert.Equal(t, want, ids)

		ids, err = s.ChunkIDs(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, ids)
		assert.Equal(t, Dimensions, s.Dimensions())
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		s := open(t, AxisEmbedder{})
		rec := Record("a", 0, "alpha", 1, 0, 0)
		require.NoError(t, s.Upsert(ctx, rec))

		rec.DisplayName = "renamed"
		rec.Metadata = domain.Metadata{"lang": "de"}
		rec.Embedding = []float32{0, 1, 0}
		require.NoError(t, s.Upsert(ctx, rec))

		n, _ := s.Count(ctx)
		assert.Equal(t, int64(1), n)

		hits, err := s.SearchByVector(ctx, domain.NewEmbedding([]float32{0, 1, 0}), 1, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "renamed", hits[0].Document.DisplayName)
		assert.Equal(t, "de", hits[0].Metadata["lang"])
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	})

	t.Run("batch is all or nothing", func(t *testing.T) {
		s := open(t, AxisEmbedder{})
		good := Record("a", 0, "alpha", 1, 0, 0)
		bad := Record("a", 1, "beta", 1, 0)

		err := s.UpsertBatch(ctx, []domain.VectorRecord{good, bad})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		noKey := Record("", 0, "x", 1, 0, 0)
		assert.ErrorIs(t, s.Upsert(ctx, noKey), domain.ErrInvalidInput)

		n, _ := s.Count(ctx)
		assert.Zero(t, n)
		assert.NoError(t, s.UpsertBatch(ctx, nil))
	})

	t.Run("delete by document", func(t *testing.T) {
		s := open(t, AxisEmbedder{})
		require.NoError(t, s.UpsertBatch(ctx, []domain.VectorRecord{
			Record("a", 0, "alpha", 1, 0, 0),
			Record("a", 7, "orphan", 1, 1, 0),
			Record("b", 0, "gamma", 0, 0, 1),
		}))

		require.NoError(t, s.DeleteByDocument(ctx, "a"))
		require.NoError(t, s.DeleteByDocument(ctx, "never-ingested"))

		n, _ := s.Count(ctx)
		assert.Equal(t, int64(1), n)
		ids, _ := s.ChunkIDs(ctx, "a")
		assert.Empty(t, ids)
	})

	t.Run("delete ids and purge", func(t *testing.T) {
		s := open(t, AxisEmbedder{})
		a0 := Record("a", 0, "alpha", 1, 0, 0)
		a1 := Record("a", 1, "beta", 0, 1, 0)
		require.NoError(t, s.UpsertBatch(ctx, []domain.VectorRecord{a0, a1}))

		require.NoError(t, s.DeleteIDs(ctx, []string{a0.ID, "unknown"}))
		ids, _ := s.ChunkIDs(ctx, "a")
		assert.Equal(t, []string{a1.ID}, ids)
		require.NoError(t, s.DeleteIDs(ctx, nil))

		require.NoError(t, s.Purge(ctx))
		n, _ := s.Count(ctx)
		assert.Zero(t, n)
		require.NoError(t, s.Upsert(ctx, a0), "store stays usable after purge")
	})

	t.Run("search by vector ranks best first", func(t *testing.T) {
		s := open(t, AxisEmbedder{})
		require.NoError(t, s.UpsertBatch(ctx, []domain.VectorRecord{
			Record("a", 0, "exact", 1, 0, 0),
			Record("b", 0, "close", 1, 0.2, 0),
			Record("c", 0, "far", 0, 0, 1),
			Record("d", 0, "twin-2", 1, 1, 0),
			Record("d", 1, "twin-1", 1, 1, 0),
		}))

		hits, err := s.SearchByVector(ctx, domain.NewEmbedding([]float32{1, 0, 0}), 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 5)
		assert.Equal(t, "exact", hits[0].Text)
		assert.Equal(t, "close", hits[1].Text)
		assert.Equal(t, "far", hits[4].Text)
		for i := 1; i < len(hits); i++ {
			assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
		}
		assert.Less(t, hits[2].ChunkID, hits[3].ChunkID, "ties ordered by chunk id")
		assert.Equal(t, "a name", hits[0].Document.DisplayName)
		assert.Equal(t, "text/plain", hits[0].Document.ContentType)

		hits, err = s.SearchByVector(ctx, domain.NewEmbedding([]float32{1, 0, 0}), 2, nil)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("filters", func(t *testing.T) {
		s := open(t, AxisEmbedder{})
		other := Record("b", 0, "beta", 1, 0, 0)
		other.ContentType = "text/markdown"
		other.Metadata = domain.Metadata{"lang": "de", "page": 2}
		require.NoError(t, s.UpsertBatch(ctx, []domain.VectorRecord{Record("a", 0, "alpha", 1, 0, 0), other}))
		query := domain.NewEmbedding([]float32{1, 0, 0})

		tests := []struct {
			name   string
			filter domain.Filter
			want   []string
		}{
			{"nil", nil, []string{"a", "b"}},
			{"document key", domain.Filter{domain.FilterDocumentKey: "b"}, []string{"b"}},
			{"content type", domain.Filter{domain.FilterContentType: "text/plain"}, []string{"a"}},
			{"metadata", domain.Filter{"lang": "de"}, []string{"b"}},
			{"numeric metadata", domain.Filter{"page": 2}, []string{"b"}},
			{"combined miss", domain.Filter{domain.FilterDocumentKey: "a", "lang": "de"}, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				hits, err := s.SearchByVector(ctx, query, 10, tt.filter)
				require.NoError(t, err)
				var keys []string
				for _, h := range hits {
					keys = append(keys, h.Document.Key)
				}
				assert.ElementsMatch(t, tt.want, keys)
			})
		}
	})

	t.Run("search arguments", func(t *testing.T) {
		s := open(t, AxisEmbedder{})
		query := domain.NewEmbedding([]float32{1, 0, 0})

		_, err := s.SearchByVector(ctx, query, 0, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = s.SearchByVector(ctx, query, -1, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = s.SearchByVector(ctx, domain.NewEmbedding([]float32{1, 0}), 1, nil)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		_, err = s.Search(ctx, "   ", 1, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		hits, err := s.SearchByVector(ctx, query, 3, nil)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("search embeds the query", func(t *testing.T) {
		s := open(t, AxisEmbedder{})
		require.NoError(t, s.UpsertBatch(ctx, []domain.VectorRecord{
			Record("refunds.md", 0, "Refunds within 30 days", 1, 0, 0),
			Record("shipping.md", 0, "Ships in two days", 0, 1, 0),
		}))

		hits, err := s.Search(ctx, "shipping", 1, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "shipping.md", hits[0].Document.Key)
	})

	t.Run("search without embedder", func(t *testing.T) {
		s := open(t, nil)
		_, err := s.Search(ctx, "refund", 1, nil)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}
