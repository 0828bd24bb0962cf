package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// IngestionService puts content into the vector memory.
// A nil *domain.IngestOptions means domain.DefaultIngestOptions().
// A nil progress sink is allowed.
type IngestionService interface {
	// Ingest extracts, splits, embeds and upserts one file or URI.
	// Unsupported formats and empty content are reported in the result, not as errors.
	Ingest(ctx context.Context, pathOrURI string, opts *domain.IngestOptions,
		progress driven.ProgressSink) (*domain.IngestResult, error)

	// IngestFolder ingests every matching file under folder, sequentially.
	// Per-file failures are collected in the report; a missing folder yields
	// an empty report. Only cancellation aborts the batch.
	IngestFolder(ctx context.Context, folder string, folderOpts domain.FolderOptions,
		opts *domain.IngestOptions, progress driven.ProgressSink) (*domain.FolderReport, error)

	// Reindex is Ingest with SkipIfUnchanged forced off and stale records pruned.
	Reindex(ctx context.Context, pathOrURI string, opts *domain.IngestOptions,
		progress driven.ProgressSink) (*domain.IngestResult, error)

	// Remove deletes every record of the document key.
	Remove(ctx context.Context, documentKey string) error

	// IngestText runs the pipeline on text supplied by the caller, skipping extraction.
	IngestText(ctx context.Context, document domain.DocumentReference, text string,
		opts *domain.IngestOptions, progress driven.ProgressSink) (*domain.IngestResult, error)

	// IngestPack runs IngestText over a bundle of documents sequentially,
	// collecting per-document failures in the report.
	IngestPack(ctx context.Context, pack string, docs []domain.TextDocument,
		opts *domain.IngestOptions, progress driven.ProgressSink) (*domain.FolderReport, error)
}
