package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
	"github.com/custodia-labs/sercha-rag/internal/splitters/hierarchical"
)

type fixture struct {
	svc      *IngestionService
	embedder *mockEmbedder
	store    *memory.VectorStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	emb := newMockEmbedder()
	store, err := memory.NewVectorStore(emb.Dimensions(), emb)
	require.NoError(t, err)
	return &fixture{
		svc:      NewIngestionService(extractors.Defaults(), hierarchical.New(), emb, store),
		embedder: emb,
		store:    store,
	}
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	return n
}

func (f *fixture) ids(t *testing.T, key string) []string {
	t.Helper()
	ids, err := f.store.ChunkIDs(context.Background(), key)
	require.NoError(t, err)
	return ids
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// longText builds roughly 3.6k characters of prose in ten paragraphs.
func longText(word string) string {
	var b strings.Builder
	for p := 0; p < 10; p++ {
		if p > 0 {
			b.WriteString("\n\n")
		}
		for s := 0; s < 6; s++ {
			if s > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s %d line %d describes the refund policy in detail.", word, p, s)
		}
	}
	return b.String()
}

func TestIngest_SplitsLongDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := longText("Paragraph")
	require.GreaterOrEqual(t, len(text), 3500)
	path := writeFile(t, t.TempDir(), "handbook.txt", text)

	opts := domain.DefaultIngestOptions()
	res, err := f.svc.Ingest(ctx, path, &opts, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.IngestIndexed, res.Status)
	assert.GreaterOrEqual(t, res.Chunks, 3)
	assert.Equal(t, path, res.Document.Key)

	ids := f.ids(t, path)
	require.Len(t, ids, res.Chunks)
	for i := 0; i < res.Chunks; i++ {
		prefix := fmt.Sprintf("%s::%d::", path, i)
		found := false
		for _, id := range ids {
			if strings.HasPrefix(id, prefix) {
				found = true
			}
		}
		assert.True(t, found, "missing id with prefix %s", prefix)
	}

	hits, err := f.store.Search(ctx, "refund policy", 100, nil)
	require.NoError(t, err)
	require.Len(t, hits, res.Chunks)
	for _, h := range hits {
		assert.LessOrEqual(t, utf8.RuneCountInString(h.Text), 1200)
		index, ok := h.Metadata[MetaChunkIndex].(int)
		require.True(t, ok)
		assert.Equal(t, domain.ChunkID(path, index, h.Text), h.ChunkID)
		assert.Equal(t, "text", h.Metadata["format"])
		assert.Equal(t, "handbook.txt", h.Document.DisplayName)
	}
	assert.Equal(t, []int{res.Chunks}, f.embedder.batchSizes)
}

func TestIngest_IdempotentIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "handbook.txt", longText("Paragraph"))

	opts := domain.DefaultIngestOptions()
	opts.SkipIfUnchanged = false

	_, err := f.svc.Ingest(ctx, path, &opts, nil)
	require.NoError(t, err)
	first := f.ids(t, path)
	count := f.count(t)

	res, err := f.svc.Ingest(ctx, path, &opts, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.IngestIndexed, res.Status)
	assert.Equal(t, first, f.ids(t, path))
	assert.Equal(t, count, f.count(t))
	assert.Equal(t, 2, f.embedder.batches())
}

func TestIngest_SkipIfUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "handbook.txt", longText("Paragraph"))

	res, err := f.svc.Ingest(ctx, path, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestIndexed, res.Status)

	sink := &recordingSink{}
	res, err = f.svc.Ingest(ctx, path, nil, sink)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestUnchanged, res.Status)
	assert.Equal(t, 1, f.embedder.batches())
	assert.Contains(t, sink.messages[len(sink.messages)-1], "Unchanged")
}

func TestReindex_ReembedsUnchangedContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "handbook.txt", longText("Paragraph"))

	_, err := f.svc.Ingest(ctx, path, nil, nil)
	require.NoError(t, err)
	before := f.ids(t, path)

	res, err := f.svc.Reindex(ctx, path, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.IngestIndexed, res.Status)
	assert.Zero(t, res.Pruned)
	assert.Equal(t, 2, f.embedder.batches())
	assert.Equal(t, before, f.ids(t, path))
}

func TestReindex_IgnoresCallerSkipFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "handbook.txt", longText("Paragraph"))

	opts := domain.DefaultIngestOptions()
	opts.SkipIfUnchanged = true

	_, err := f.svc.Ingest(ctx, path, &opts, nil)
	require.NoError(t, err)
	res, err := f.svc.Reindex(ctx, path, &opts, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.IngestIndexed, res.Status)
	assert.True(t, opts.SkipIfUnchanged, "caller options must not be mutated")
}

func TestChangedContent_OrphansThenReindexPrunesThenRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeFile(t, dir, "handbook.txt", longText("Paragraph"))

	first, err := f.svc.Ingest(ctx, path, nil, nil)
	require.NoError(t, err)

	writeFile(t, dir, "handbook.txt", longText("Section"))
	second, err := f.svc.Ingest(ctx, path, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestIndexed, second.Status)
	assert.Len(t, f.ids(t, path), first.Chunks+second.Chunks, "plain ingest leaves stale chunks")

	res, err := f.svc.Reindex(ctx, path, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Chunks, res.Pruned)
	assert.Len(t, f.ids(t, path), res.Chunks)

	// Leave stale records again, then remove everything by key.
	writeFile(t, dir, "handbook.txt", longText("Chapter"))
	_, err = f.svc.Ingest(ctx, path, nil, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(ctx, path))
	assert.Empty(t, f.ids(t, path))
	assert.Zero(t, f.count(t))
}

func TestIngest_SkipsAndFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported relative path reports the absolute key", func(t *testing.T) {
		f := newFixture(t)
		dir := t.TempDir()
		writeFile(t, dir, "slides.pptx", "binary")
		t.Chdir(dir)

		res, err := f.svc.Ingest(ctx, "slides.pptx", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestUnsupported, res.Status)
		assert.Equal(t, filepath.Join(dir, "slides.pptx"), res.Document.Key)
	})

	t.Run("unsupported type is skipped", func(t *testing.T) {
		f := newFixture(t)
		path := writeFile(t, t.TempDir(), "report.docx", "binary")

		res, err := f.svc.Ingest(ctx, path, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestUnsupported, res.Status)
		assert.Zero(t, f.embedder.batches())
		assert.Zero(t, f.count(t))
	})

	t.Run("empty file is a no-op", func(t *testing.T) {
		f := newFixture(t)
		path := writeFile(t, t.TempDir(), "empty.txt", "  \n\t\n")

		res, err := f.svc.Ingest(ctx, path, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestEmpty, res.Status)
		assert.Zero(t, f.embedder.batches())
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Ingest(ctx, filepath.Join(t.TempDir(), "missing.txt"), nil, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unreadable file", func(t *testing.T) {
		f := newFixture(t)
		path := writeFile(t, t.TempDir(), "blob.txt", "a\x00b")
		_, err := f.svc.Ingest(ctx, path, nil, nil)
		assert.ErrorIs(t, err, domain.ErrUnreadableSource)
	})

	t.Run("invalid options fail before extraction", func(t *testing.T) {
		ex := &mockExtractor{ext: ".mock"}
		emb := newMockEmbedder()
		store, err := memory.NewVectorStore(emb.Dimensions(), emb)
		require.NoError(t, err)
		svc := NewIngestionService([]driven.ContentExtractor{ex}, hierarchical.New(), emb, store)

		_, err = svc.Ingest(ctx, "a.mock", &domain.IngestOptions{ChunkSize: 100, ChunkOverlap: 100}, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidOptions)
		assert.Empty(t, ex.calls)
	})

	t.Run("batch size mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.embedder.dropLast = true
		path := writeFile(t, t.TempDir(), "a.txt", longText("Paragraph"))

		_, err := f.svc.Ingest(ctx, path, nil, nil)
		assert.ErrorIs(t, err, domain.ErrBatchMismatch)
		assert.Zero(t, f.count(t))
	})

	t.Run("embedding dimension mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.embedder.wrongDims = true
		path := writeFile(t, t.TempDir(), "a.txt", "short text")

		_, err := f.svc.Ingest(ctx, path, nil, nil)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		assert.Zero(t, f.count(t))
	})

	t.Run("embedder failure propagates", func(t *testing.T) {
		f := newFixture(t)
		boom := errors.New("model offline")
		f.embedder.err = boom
		path := writeFile(t, t.TempDir(), "a.txt", "short text")

		_, err := f.svc.Ingest(ctx, path, nil, nil)
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, f.count(t))
	})

	t.Run("upsert failure propagates", func(t *testing.T) {
		emb := newMockEmbedder()
		store, err := memory.NewVectorStore(emb.Dimensions(), emb)
		require.NoError(t, err)
		boom := errors.New("disk full")
		faulty := &faultyMemory{VectorMemory: store, upsertErr: boom}
		svc := NewIngestionService(extractors.Defaults(), hierarchical.New(), emb, faulty)
		path := writeFile(t, t.TempDir(), "a.txt", "short text")

		_, err = svc.Ingest(ctx, path, nil, nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, faulty.upserts)
	})

	t.Run("chunk id lookup failure propagates", func(t *testing.T) {
		emb := newMockEmbedder()
		store, err := memory.NewVectorStore(emb.Dimensions(), emb)
		require.NoError(t, err)
		boom := errors.New("locked")
		svc := NewIngestionService(extractors.Defaults(), hierarchical.New(), emb,
			&faultyMemory{VectorMemory: store, chunkIDsErr: boom})
		path := writeFile(t, t.TempDir(), "a.txt", "short text")

		_, err = svc.Ingest(ctx, path, nil, nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing collaborators", func(t *testing.T) {
		store, err := memory.NewVectorStore(8, nil)
		require.NoError(t, err)

		svc := NewIngestionService(extractors.Defaults(), hierarchical.New(), nil, store)
		_, err = svc.Ingest(ctx, "a.txt", nil, nil)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

		svc = NewIngestionService(extractors.Defaults(), hierarchical.New(), newMockEmbedder(), nil)
		_, err = svc.Ingest(ctx, "a.txt", nil, nil)
		assert.ErrorIs(t, err, domain.ErrVectorMemoryUnavailable)
	})
}

func TestIngest_FirstMatchingExtractorWins(t *testing.T) {
	first := &mockExtractor{ext: ".txt", results: map[string]*domain.ExtractionResult{
		"a.txt": {Document: domain.DocumentReference{Key: "a.txt"}, Text: "from first"},
	}}
	second := &mockExtractor{ext: ".txt"}
	emb := newMockEmbedder()
	store, err := memory.NewVectorStore(emb.Dimensions(), emb)
	require.NoError(t, err)
	svc := NewIngestionService([]driven.ContentExtractor{first, second}, hierarchical.New(), emb, store)

	res, err := svc.Ingest(context.Background(), "a.txt", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestIndexed, res.Status)
	assert.Equal(t, []string{"a.txt"}, first.calls)
	assert.Empty(t, second.calls)
}

func TestIngest_ProgressMessages(t *testing.T) {
	f := newFixture(t)
	path := writeFile(t, t.TempDir(), "a.txt", "A short note about refunds.")
	sink := &recordingSink{}

	_, err := f.svc.Ingest(context.Background(), path, nil, sink)
	require.NoError(t, err)

	assert.Equal(t, []string{
		fmt.Sprintf("Ingesting %s ...", path),
		fmt.Sprintf("Ingested 1 chunks for %s", path),
	}, sink.messages)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("empty key", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.svc.Remove(ctx, "  "), domain.ErrInvalidInput)
	})

	t.Run("unknown key succeeds", func(t *testing.T) {
		f := newFixture(t)
		assert.NoError(t, f.svc.Remove(ctx, "/nowhere.txt"))
	})

	t.Run("store failure propagates", func(t *testing.T) {
		emb := newMockEmbedder()
		store, err := memory.NewVectorStore(emb.Dimensions(), emb)
		require.NoError(t, err)
		boom := errors.New("io")
		svc := NewIngestionService(nil, hierarchical.New(), emb, &faultyMemory{VectorMemory: store, deleteErr: boom})
		assert.ErrorIs(t, svc.Remove(ctx, "k"), boom)
	})
}

func TestIngestFolder(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) string {
		dir := t.TempDir()
		writeFile(t, dir, "a.txt", "Alpha notes about shipping.")
		writeFile(t, dir, "b.md", "# Beta\n\nRefund policy details.")
		writeFile(t, dir, "broken.txt", "bin\x00ary")
		writeFile(t, dir, "notes.docx", "ignored")
		writeFile(t, dir, filepath.Join("sub", "c.txt"), "Gamma notes about privacy.")
		return dir
	}

	t.Run("recursive with default patterns", func(t *testing.T) {
		f := newFixture(t)
		dir := setup(t)
		sink := &recordingSink{}

		report, err := f.svc.IngestFolder(ctx, dir, domain.DefaultFolderOptions(), nil, sink)
		require.NoError(t, err)

		assert.Equal(t, 4, report.Matched)
		assert.Equal(t, 3, report.Indexed)
		require.Len(t, report.Failed, 1)
		assert.Equal(t, filepath.Join(dir, "broken.txt"), report.Failed[0].Path)
		assert.ErrorIs(t, report.Failed[0].Err, domain.ErrUnreadableSource)
		assert.Equal(t, int64(3), f.count(t))
		assert.Contains(t, sink.messages[0], "a.txt")
	})

	t.Run("non-recursive", func(t *testing.T) {
		f := newFixture(t)
		dir := setup(t)

		report, err := f.svc.IngestFolder(ctx, dir, domain.FolderOptions{Recursive: false}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Matched)
		assert.Equal(t, 2, report.Indexed)
	})

	t.Run("custom patterns and unsupported files", func(t *testing.T) {
		f := newFixture(t)
		dir := setup(t)

		report, err := f.svc.IngestFolder(ctx, dir, domain.FolderOptions{Patterns: []string{"*.md", "*.docx"}}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Matched)
		assert.Equal(t, 1, report.Indexed)
		assert.Equal(t, 1, report.Skipped)
	})

	t.Run("second run is unchanged", func(t *testing.T) {
		f := newFixture(t)
		dir := setup(t)

		_, err := f.svc.IngestFolder(ctx, dir, domain.DefaultFolderOptions(), nil, nil)
		require.NoError(t, err)
		report, err := f.svc.IngestFolder(ctx, dir, domain.DefaultFolderOptions(), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Unchanged)
		assert.Equal(t, int64(3), f.count(t))
	})

	t.Run("missing folder", func(t *testing.T) {
		f := newFixture(t)
		report, err := f.svc.IngestFolder(ctx, filepath.Join(t.TempDir(), "nope"), domain.DefaultFolderOptions(), nil, nil)
		require.NoError(t, err)
		assert.Zero(t, report.Matched)
		assert.Zero(t, f.count(t))
	})

	t.Run("bad pattern", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.IngestFolder(ctx, t.TempDir(), domain.FolderOptions{Patterns: []string{"["}}, nil, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidOptions)
	})

	t.Run("cancelled between files", func(t *testing.T) {
		f := newFixture(t)
		dir := setup(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		report, err := f.svc.IngestFolder(cctx, dir, domain.DefaultFolderOptions(), nil, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, report.Indexed)
		assert.Zero(t, f.count(t))
	})
}

func TestIngestText(t *testing.T) {
	ctx := context.Background()
	doc := domain.DocumentReference{Key: "text://note-1", DisplayName: "Note", ContentType: "text/plain"}

	t.Run("normalizes whitespace", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.IngestText(ctx, doc, "Line one   \r\n\r\n\r\n\r\nLine two\r\n", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestIndexed, res.Status)

		hits, err := f.store.Search(ctx, "line", 5, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "Line one\n\nLine two", hits[0].Text)
		assert.Equal(t, doc, hits[0].Document)
	})

	t.Run("normalization disabled", func(t *testing.T) {
		f := newFixture(t)
		opts := domain.DefaultIngestOptions()
		opts.NormalizeWhitespace = false
		_, err := f.svc.IngestText(ctx, doc, "a  \r\nb", &opts, nil)
		require.NoError(t, err)

		hits, err := f.store.Search(ctx, "a b", 5, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "a  \r\nb", hits[0].Text)
	})

	t.Run("metadata layering", func(t *testing.T) {
		f := newFixture(t)
		opts := domain.DefaultIngestOptions()
		opts.DefaultMetadata = domain.Metadata{"source": "manual", MetaChunkIndex: 99}
		_, err := f.svc.IngestText(ctx, doc, "refund policy", &opts, nil)
		require.NoError(t, err)

		hits, err := f.store.Search(ctx, "refund", 1, domain.Filter{"source": "manual"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, 0, hits[0].Metadata[MetaChunkIndex])
		assert.Equal(t, "paragraph", hits[0].Metadata[hierarchical.MetaSplitLevel])
	})

	t.Run("empty text", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.svc.IngestText(ctx, doc, " \r\n ", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestEmpty, res.Status)
		assert.Zero(t, f.embedder.batches())
	})

	t.Run("empty key", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.IngestText(ctx, domain.DocumentReference{}, "text", nil, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("progress", func(t *testing.T) {
		f := newFixture(t)
		sink := &recordingSink{}
		_, err := f.svc.IngestText(ctx, doc, "hello", nil, sink)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Ingesting text://note-1 ...",
			"Ingested 1 chunks for text://note-1",
		}, sink.messages)
	})

	t.Run("concurrent writers converge", func(t *testing.T) {
		f := newFixture(t)
		opts := domain.DefaultIngestOptions()
		opts.SkipIfUnchanged = false
		text := longText("Paragraph")

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.IngestText(ctx, doc, text, &opts, nil)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		chunks := hierarchical.New().Split(domain.ExtractionResult{Document: doc, Text: text}, opts.ChunkSize, opts.ChunkOverlap)
		assert.Equal(t, int64(len(chunks)), f.count(t))
	})
}

func TestIngestPack(t *testing.T) {
	f := newFixture(t)
	docs := []domain.TextDocument{
		{Document: domain.DocumentReference{Key: "pack://faq/refunds.md"}, Text: "Refunds take 30 days."},
		{Document: domain.DocumentReference{Key: "pack://faq/shipping.md"}, Text: "Shipping is free."},
		{Document: domain.DocumentReference{}, Text: "no key"},
	}

	report, err := f.svc.IngestPack(context.Background(), "faq", docs, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "faq", report.Folder)
	assert.Equal(t, 3, report.Matched)
	assert.Equal(t, 2, report.Indexed)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, domain.ErrInvalidInput)
	assert.Equal(t, int64(2), f.count(t))
}
