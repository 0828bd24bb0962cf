package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/textnorm"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// MetaChunkIndex is the record metadata key holding the chunk position.
const MetaChunkIndex = "chunk_index"

// IngestionService runs extract, split, embed and upsert for documents.
// It holds no mutable state; concurrent calls for the same document rely
// on the vector memory's last-write-wins upsert.
type IngestionService struct {
	extractors []driven.ContentExtractor
	splitter   driven.TextSplitter
	embedder   driven.EmbeddingGenerator
	memory     driven.VectorMemory
}

// NewIngestionService creates an ingestion service. Extractors are tried in
// the given order.
func NewIngestionService(
	extractors []driven.ContentExtractor,
	splitter driven.TextSplitter,
	embedder driven.EmbeddingGenerator,
	memory driven.VectorMemory,
) *IngestionService {
	return &IngestionService{
		extractors: extractors,
		splitter:   splitter,
		embedder:   embedder,
		memory:     memory,
	}
}

// Ingest extracts and indexes one file or URI.
func (s *IngestionService) Ingest(
	ctx context.Context, pathOrURI string, opts *domain.IngestOptions, progress driven.ProgressSink,
) (*domain.IngestResult, error) {
	o, err := s.prepare(opts)
	if err != nil {
		return nil, err
	}
	return s.ingestOne(ctx, pathOrURI, o, progress)
}

// Reindex re-embeds a document even when its chunks are unchanged and
// removes records the new content no longer produces.
func (s *IngestionService) Reindex(
	ctx context.Context, pathOrURI string, opts *domain.IngestOptions, progress driven.ProgressSink,
) (*domain.IngestResult, error) {
	o, err := s.prepare(opts)
	if err != nil {
		return nil, err
	}
	o.SkipIfUnchanged = false
	o.PruneStale = true
	return s.ingestOne(ctx, pathOrURI, o, progress)
}

// Remove deletes every record stored for the document key.
func (s *IngestionService) Remove(ctx context.Context, documentKey string) error {
	if strings.TrimSpace(documentKey) == "" {
		return fmt.Errorf("%w: empty document key", domain.ErrInvalidInput)
	}
	if s.memory == nil {
		return domain.ErrVectorMemoryUnavailable
	}
	logger.Debug("Removing document %s", documentKey)
	if err := s.memory.DeleteByDocument(ctx, documentKey); err != nil {
		return fmt.Errorf("remove %s: %w", documentKey, err)
	}
	return nil
}

// IngestText indexes caller-supplied text under the given document.
func (s *IngestionService) IngestText(
	ctx context.Context, document domain.DocumentReference, text string,
	opts *domain.IngestOptions, progress driven.ProgressSink,
) (*domain.IngestResult, error) {
	o, err := s.prepare(opts)
	if err != nil {
		return nil, err
	}
	return s.ingestText(ctx, document, text, o, progress)
}

// IngestFolder walks folder once in lexical order and ingests every file
// whose base name matches one of the patterns.
func (s *IngestionService) IngestFolder(
	ctx context.Context, folder string, folderOpts domain.FolderOptions,
	opts *domain.IngestOptions, progress driven.ProgressSink,
) (*domain.FolderReport, error) {
	o, err := s.prepare(opts)
	if err != nil {
		return nil, err
	}

	patterns := folderOpts.Patterns
	if len(patterns) == 0 {
		patterns = domain.DefaultFolderPatterns
	}
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q", domain.ErrInvalidOptions, p)
		}
	}

	logger.Section("Folder Ingest")
	report := &domain.FolderReport{Folder: folder}

	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		logger.Warn("Folder %s does not exist, nothing to ingest", folder)
		return report, nil
	}

	files := collectFiles(folder, patterns, folderOpts.Recursive)
	report.Matched = len(files)
	logger.Debug("Matched %d files under %s (patterns %v, recursive=%t)",
		len(files), folder, patterns, folderOpts.Recursive)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := s.ingestOne(ctx, path, o, progress)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return report, err
			}
			logger.Warn("Failed to ingest %s: %v", path, err)
			report.Failed = append(report.Failed, domain.FolderFailure{Path: path, Err: err})
			continue
		}
		report.Record(res)
	}

	logger.Info("Folder %s: %d matched, %d indexed, %d unchanged, %d skipped, %d failed",
		folder, report.Matched, report.Indexed, report.Unchanged, report.Skipped, len(report.Failed))
	return report, nil
}

// IngestPack indexes a bundle of in-memory documents.
func (s *IngestionService) IngestPack(
	ctx context.Context, pack string, docs []domain.TextDocument,
	opts *domain.IngestOptions, progress driven.ProgressSink,
) (*domain.FolderReport, error) {
	o, err := s.prepare(opts)
	if err != nil {
		return nil, err
	}

	logger.Section("Knowledge Pack")
	report := &domain.FolderReport{Folder: pack, Matched: len(docs)}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := s.ingestText(ctx, doc.Document, doc.Text, o, progress)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return report, err
			}
			logger.Warn("Failed to ingest %s: %v", doc.Document.Key, err)
			report.Failed = append(report.Failed, domain.FolderFailure{Path: doc.Document.Key, Err: err})
			continue
		}
		report.Record(res)
	}
	return report, nil
}

// prepare resolves nil options to defaults, validates them and checks the
// collaborators before any I/O happens.
func (s *IngestionService) prepare(opts *domain.IngestOptions) (domain.IngestOptions, error) {
	o := domain.DefaultIngestOptions()
	if opts != nil {
		o = *opts
	}
	if err := o.Validate(); err != nil {
		return o, err
	}
	if s.embedder == nil {
		return o, domain.ErrEmbeddingUnavailable
	}
	if s.memory == nil {
		return o, domain.ErrVectorMemoryUnavailable
	}
	if s.splitter == nil {
		return o, fmt.Errorf("%w: no text splitter configured", domain.ErrInvalidOptions)
	}
	return o, nil
}

func (s *IngestionService) ingestOne(
	ctx context.Context, pathOrURI string, o domain.IngestOptions, progress driven.ProgressSink,
) (*domain.IngestResult, error) {
	extractor := s.extractorFor(pathOrURI)
	if extractor == nil {
		logger.Warn("No extractor handles %s, skipping", pathOrURI)
		return &domain.IngestResult{
			Document: domain.DocumentReference{Key: domain.DocumentKeyFor(pathOrURI)},
			Status:   domain.IngestUnsupported,
		}, nil
	}
	logger.Debug("Extractor %s selected for %s", extractor.Name(), pathOrURI)

	extraction, err := extractor.Extract(ctx, pathOrURI)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", pathOrURI, err)
	}
	if strings.TrimSpace(extraction.Text) == "" {
		logger.Info("No text extracted from %s, skipping", extraction.Document.Key)
		return &domain.IngestResult{Document: extraction.Document, Status: domain.IngestEmpty}, nil
	}
	return s.index(ctx, *extraction, o, progress)
}

func (s *IngestionService) ingestText(
	ctx context.Context, document domain.DocumentReference, text string,
	o domain.IngestOptions, progress driven.ProgressSink,
) (*domain.IngestResult, error) {
	if strings.TrimSpace(document.Key) == "" {
		return nil, fmt.Errorf("%w: empty document key", domain.ErrInvalidInput)
	}
	if o.NormalizeWhitespace {
		text = textnorm.Whitespace(text)
	}
	if strings.TrimSpace(text) == "" {
		logger.Info("Empty text for %s, skipping", document.Key)
		return &domain.IngestResult{Document: document, Status: domain.IngestEmpty}, nil
	}
	return s.index(ctx, domain.ExtractionResult{Document: document, Text: text}, o, progress)
}

// index is the shared split, embed and upsert pipeline. Embedding and
// upsert are each a single batch call so chunks and vectors stay aligned
// and a document is never half written.
func (s *IngestionService) index(
	ctx context.Context, extraction domain.ExtractionResult, o domain.IngestOptions, progress driven.ProgressSink,
) (*domain.IngestResult, error) {
	doc := extraction.Document
	key := doc.Key
	emitProgress(progress, fmt.Sprintf("Ingesting %s ...", key))

	chunks := s.splitter.Split(extraction, o.ChunkSize, o.ChunkOverlap)
	result := &domain.IngestResult{Document: doc, Chunks: len(chunks)}
	if len(chunks) == 0 {
		logger.Info("No chunks produced for %s, skipping", key)
		result.Status = domain.IngestEmpty
		return result, nil
	}

	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = domain.ChunkID(key, c.Index, c.Text)
		texts[i] = c.Text
	}

	var existing []string
	if o.SkipIfUnchanged || o.PruneStale {
		var err error
		existing, err = s.memory.ChunkIDs(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("list chunks of %s: %w", key, err)
		}
	}
	if o.SkipIfUnchanged && sameSet(existing, ids) {
		logger.Debug("%s unchanged (%d chunks), skipping embed", key, len(ids))
		result.Status = domain.IngestUnchanged
		emitProgress(progress, fmt.Sprintf("Unchanged %s (%d chunks)", key, len(ids)))
		return result, nil
	}

	done := logger.Timed(fmt.Sprintf("Embedding %d chunks of %s", len(texts), key))
	embeddings, err := s.embedder.GenerateBatch(ctx, texts)
	done()
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", key, err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("%w: %d embeddings for %d chunks of %s",
			domain.ErrBatchMismatch, len(embeddings), len(chunks), key)
	}

	dims := s.memory.Dimensions()
	records := make([]domain.VectorRecord, 0, len(chunks))
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := embeddings[i].Check(dims); err != nil {
			return nil, fmt.Errorf("chunk %d of %s: %w", c.Index, key, err)
		}
		records = append(records, domain.VectorRecord{
			ID:          ids[i],
			Text:        c.Text,
			DocumentKey: key,
			DisplayName: doc.DisplayName,
			ContentType: doc.ContentType,
			Metadata: domain.MergeMetadata(
				o.DefaultMetadata,
				extraction.Metadata,
				c.Metadata,
				domain.Metadata{MetaChunkIndex: c.Index},
			),
			Embedding: embeddings[i].Values,
		})
	}

	if err := s.memory.UpsertBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", key, err)
	}

	if o.PruneStale {
		if stale := difference(existing, ids); len(stale) > 0 {
			if err := s.memory.DeleteIDs(ctx, stale); err != nil {
				return nil, fmt.Errorf("prune %s: %w", key, err)
			}
			result.Pruned = len(stale)
			logger.Debug("Pruned %d stale chunks of %s", len(stale), key)
		}
	}

	result.Status = domain.IngestIndexed
	emitProgress(progress, fmt.Sprintf("Ingested %d chunks for %s", len(records), key))
	return result, nil
}

func (s *IngestionService) extractorFor(pathOrURI string) driven.ContentExtractor {
	for _, ex := range s.extractors {
		if ex.CanHandle(pathOrURI) {
			return ex
		}
	}
	return nil
}

// collectFiles lists matching files in lexical order. Unreadable entries
// are logged and skipped.
func collectFiles(folder string, patterns []string, recursive bool) []string {
	var files []string
	_ = filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Cannot read %s: %v", path, err)
			if d != nil && d.IsDir() && path != folder {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != folder && !recursive {
				return fs.SkipDir
			}
			return nil
		}
		if matchesAny(patterns, d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	return files
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

func emitProgress(sink driven.ProgressSink, message string) {
	if sink != nil {
		sink.Report(message)
	}
}

// sameSet reports whether a and b hold the same non-empty set of IDs.
func sameSet(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// difference returns the IDs in a that are not in b.
func difference(a, b []string) []string {
	keep := make(map[string]struct{}, len(b))
	for _, id := range b {
		keep[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
