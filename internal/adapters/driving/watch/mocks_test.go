package watch

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// mockIngestion records Ingest and Remove calls.
type mockIngestion struct {
	mu       sync.Mutex
	ingested []string
	removed  []string
	err      error
}

func (m *mockIngestion) Ingest(
	_ context.Context, pathOrURI string, _ *domain.IngestOptions, _ driven.ProgressSink,
) (*domain.IngestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.ingested = append(m.ingested, pathOrURI)
	return &domain.IngestResult{
		Document: domain.DocumentReference{Key: pathOrURI},
		Status:   domain.IngestIndexed,
		Chunks:   1,
	}, nil
}

func (m *mockIngestion) IngestFolder(
	_ context.Context, _ string, _ domain.FolderOptions, _ *domain.IngestOptions, _ driven.ProgressSink,
) (*domain.FolderReport, error) {
	return &domain.FolderReport{}, nil
}

func (m *mockIngestion) Reindex(
	_ context.Context, _ string, _ *domain.IngestOptions, _ driven.ProgressSink,
) (*domain.IngestResult, error) {
	return nil, nil
}

func (m *mockIngestion) Remove(_ context.Context, documentKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, documentKey)
	return nil
}

func (m *mockIngestion) IngestText(
	_ context.Context, _ domain.DocumentReference, _ string, _ *domain.IngestOptions, _ driven.ProgressSink,
) (*domain.IngestResult, error) {
	return nil, nil
}

func (m *mockIngestion) IngestPack(
	_ context.Context, _ string, _ []domain.TextDocument, _ *domain.IngestOptions, _ driven.ProgressSink,
) (*domain.FolderReport, error) {
	return nil, nil
}
