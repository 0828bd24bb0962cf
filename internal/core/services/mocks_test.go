package services

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingGenerator with a letter-frequency
// vector so similar texts land close together.
type mockEmbedder struct {
	mu         sync.Mutex
	dims       int
	batchSizes []int
	err        error
	dropLast   bool
	wrongDims  bool
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dims: 8}
}

func (m *mockEmbedder) vector(text string) domain.Embedding {
	n := m.dims
	if m.wrongDims {
		n = m.dims + 1
	}
	v := make([]float32, n)
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) {
			v[int(r)%n]++
		}
	}
	v[0] += 0.01
	return domain.NewEmbedding(v)
}

func (m *mockEmbedder) Dimensions() int { return m.dims }

func (m *mockEmbedder) Generate(_ context.Context, text string) (domain.Embedding, error) {
	if m.err != nil {
		return domain.Embedding{}, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) GenerateBatch(_ context.Context, texts []string) ([]domain.Embedding, error) {
	m.mu.Lock()
	m.batchSizes = append(m.batchSizes, len(texts))
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Embedding, 0, len(texts))
	for _, t := range texts {
		out = append(out, m.vector(t))
	}
	if m.dropLast && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *mockEmbedder) batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batchSizes)
}

func (m *mockEmbedder) ModelName() string            { return "mock" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// mockExtractor implements driven.ContentExtractor over a fixed set of results.
type mockExtractor struct {
	ext     string
	results map[string]*domain.ExtractionResult
	errs    map[string]error
	calls   []string
}

func (m *mockExtractor) Name() string { return "mock" + m.ext }

func (m *mockExtractor) CanHandle(pathOrURI string) bool {
	return strings.HasSuffix(pathOrURI, m.ext)
}

func (m *mockExtractor) Extract(_ context.Context, pathOrURI string) (*domain.ExtractionResult, error) {
	m.calls = append(m.calls, pathOrURI)
	if err := m.errs[pathOrURI]; err != nil {
		return nil, err
	}
	if res, ok := m.results[pathOrURI]; ok {
		return res, nil
	}
	return nil, domain.ErrNotFound
}

// faultyMemory wraps a real vector memory and injects failures.
type faultyMemory struct {
	driven.VectorMemory
	upsertErr   error
	chunkIDsErr error
	deleteErr   error
	upserts     int
}

func (m *faultyMemory) UpsertBatch(ctx context.Context, records []domain.VectorRecord) error {
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	return m.VectorMemory.UpsertBatch(ctx, records)
}

func (m *faultyMemory) ChunkIDs(ctx context.Context, key string) ([]string, error) {
	if m.chunkIDsErr != nil {
		return nil, m.chunkIDsErr
	}
	return m.VectorMemory.ChunkIDs(ctx, key)
}

func (m *faultyMemory) DeleteByDocument(ctx context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	return m.VectorMemory.DeleteByDocument(ctx, key)
}

// mockSearchMemory implements driven.VectorMemory returning canned hits.
type mockSearchMemory struct {
	hits       []domain.SearchHit
	err        error
	lastQuery  string
	lastTopK   int
	lastFilter domain.Filter
}

func (m *mockSearchMemory) Dimensions() int { return 8 }
func (m *mockSearchMemory) Upsert(context.Context, domain.VectorRecord) error {
	return nil
}
func (m *mockSearchMemory) UpsertBatch(context.Context, []domain.VectorRecord) error {
	return nil
}
func (m *mockSearchMemory) DeleteByDocument(context.Context, string) error { return nil }
func (m *mockSearchMemory) DeleteIDs(context.Context, []string) error      { return nil }
func (m *mockSearchMemory) ChunkIDs(context.Context, string) ([]string, error) {
	return nil, nil
}
func (m *mockSearchMemory) Purge(context.Context) error           { return nil }
func (m *mockSearchMemory) Count(context.Context) (int64, error)  { return int64(len(m.hits)), nil }
func (m *mockSearchMemory) Close() error                          { return nil }
func (m *mockSearchMemory) SearchByVector(context.Context, domain.Embedding, int, domain.Filter) ([]domain.SearchHit, error) {
	return m.hits, m.err
}

func (m *mockSearchMemory) Search(_ context.Context, query string, topK int, filter domain.Filter) ([]domain.SearchHit, error) {
	m.lastQuery, m.lastTopK, m.lastFilter = query, topK, filter
	if m.err != nil {
		return nil, m.err
	}
	if topK < len(m.hits) {
		return m.hits[:topK], nil
	}
	return m.hits, nil
}

// recordingSink collects progress messages.
type recordingSink struct {
	messages []string
}

func (r *recordingSink) Report(message string) {
	r.messages = append(r.messages, message)
}
