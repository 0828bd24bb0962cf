package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// mockRetriever is a mock implementation of driving.Retriever.
type mockRetriever struct {
	hits []domain.SearchHit
	err  error

	query  string
	topK   int
	filter domain.Filter
}

func (m *mockRetriever) Retrieve(
	_ context.Context, query string, topK int, filter domain.Filter,
) ([]domain.SearchHit, error) {
	m.query, m.topK, m.filter = query, topK, filter
	return m.hits, m.err
}

// mockIngestion is a mock implementation of driving.IngestionService.
type mockIngestion struct {
	result *domain.IngestResult
	err    error

	document domain.DocumentReference
	text     string
	opts     *domain.IngestOptions
	removed  []string
}

func (m *mockIngestion) Ingest(
	_ context.Context, _ string, _ *domain.IngestOptions, _ driven.ProgressSink,
) (*domain.IngestResult, error) {
	return m.result, m.err
}

func (m *mockIngestion) IngestFolder(
	_ context.Context, _ string, _ domain.FolderOptions, _ *domain.IngestOptions, _ driven.ProgressSink,
) (*domain.FolderReport, error) {
	return &domain.FolderReport{}, m.err
}

func (m *mockIngestion) Reindex(
	_ context.Context, _ string, _ *domain.IngestOptions, _ driven.ProgressSink,
) (*domain.IngestResult, error) {
	return m.result, m.err
}

func (m *mockIngestion) Remove(_ context.Context, documentKey string) error {
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, documentKey)
	return nil
}

func (m *mockIngestion) IngestText(
	_ context.Context, document domain.DocumentReference, text string,
	opts *domain.IngestOptions, _ driven.ProgressSink,
) (*domain.IngestResult, error) {
	m.document, m.text, m.opts = document, text, opts
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.IngestResult{Document: document, Status: domain.IngestIndexed, Chunks: 1}, nil
}

func (m *mockIngestion) IngestPack(
	_ context.Context, _ string, _ []domain.TextDocument, _ *domain.IngestOptions, _ driven.ProgressSink,
) (*domain.FolderReport, error) {
	return &domain.FolderReport{}, m.err
}

// mockIndex is a mock implementation of Index.
type mockIndex struct {
	count int64
	ids   map[string][]string
	err   error
}

func (m *mockIndex) Dimensions() int { return 384 }

func (m *mockIndex) Count(_ context.Context) (int64, error) {
	return m.count, m.err
}

func (m *mockIndex) ChunkIDs(_ context.Context, documentKey string) ([]string, error) {
	return m.ids[documentKey], m.err
}
