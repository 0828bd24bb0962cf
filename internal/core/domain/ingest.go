package domain

import "fmt"

// Default ingestion values.
const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 200
)

// DefaultFolderPatterns are the file patterns used by folder ingestion when none are given.
var DefaultFolderPatterns = []string{"*.txt", "*.md", "*.pdf"}

// IngestOptions controls chunking and indexing behaviour for one ingestion call.
type IngestOptions struct {
	// ChunkSize is the maximum number of characters per chunk.
	ChunkSize int

	// ChunkOverlap is the number of characters repeated between adjacent
	// chunks when a split falls inside a paragraph. Must be < ChunkSize.
	ChunkOverlap int

	// SkipIfUnchanged skips embedding when the stored chunk IDs for the
	// document already equal the freshly computed ones.
	SkipIfUnchanged bool

	// NormalizeWhitespace cleans raw text before splitting (IngestText only).
	NormalizeWhitespace bool

	// PruneStale removes records of the document whose IDs are no longer
	// produced after a successful upsert. Reindex always sets it.
	PruneStale bool

	// DefaultMetadata is attached to every chunk; chunk metadata wins on conflicts.
	DefaultMetadata Metadata
}

// DefaultIngestOptions returns the documented defaults.
func DefaultIngestOptions() IngestOptions {
	return IngestOptions{
		ChunkSize:           DefaultChunkSize,
		ChunkOverlap:        DefaultChunkOverlap,
		SkipIfUnchanged:     true,
		NormalizeWhitespace: true,
	}
}

// Validate reports configuration errors. A zero ChunkSize is accepted and
// means "use the splitter default".
func (o IngestOptions) Validate() error {
	if o.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk size %d is negative", ErrInvalidOptions, o.ChunkSize)
	}
	if o.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap %d is negative", ErrInvalidOptions, o.ChunkOverlap)
	}
	if o.ChunkSize > 0 && o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be less than chunk size %d",
			ErrInvalidOptions, o.ChunkOverlap, o.ChunkSize)
	}
	return nil
}

// IngestStatus describes what happened to a single item.
type IngestStatus string

// Ingestion outcomes.
const (
	// IngestIndexed means chunks were embedded and upserted.
	IngestIndexed IngestStatus = "indexed"

	// IngestUnchanged means stored chunk IDs matched and nothing was written.
	IngestUnchanged IngestStatus = "unchanged"

	// IngestEmpty means the content produced no chunks.
	IngestEmpty IngestStatus = "empty"

	// IngestUnsupported means no extractor claimed the input.
	IngestUnsupported IngestStatus = "unsupported"
)

// IngestResult reports the outcome for one document.
type IngestResult struct {
	Document DocumentReference
	Status   IngestStatus

	// Chunks is the number of chunks produced by the splitter.
	Chunks int

	// Pruned is the number of stale records removed (reindex only).
	Pruned int
}

// FolderOptions controls folder enumeration.
type FolderOptions struct {
	// Patterns are glob patterns matched against file base names.
	// Empty means DefaultFolderPatterns.
	Patterns []string

	// Recursive descends into subdirectories.
	Recursive bool
}

// DefaultFolderOptions returns recursive enumeration with the default patterns.
func DefaultFolderOptions() FolderOptions {
	return FolderOptions{Patterns: DefaultFolderPatterns, Recursive: true}
}

// FolderFailure records one file that failed during a folder batch.
type FolderFailure struct {
	Path string
	Err  error
}

// FolderReport summarises a folder batch. Per-file failures are collected,
// not returned as errors.
type FolderReport struct {
	Folder    string
	Matched   int
	Indexed   int
	Unchanged int
	Skipped   int
	Failed    []FolderFailure
}

// Record tallies one item result.
func (r *FolderReport) Record(res *IngestResult) {
	if res == nil {
		return
	}
	switch res.Status {
	case IngestIndexed:
		r.Indexed++
	case IngestUnchanged:
		r.Unchanged++
	default:
		r.Skipped++
	}
}

// RetrieveOptions configures post-processing of retrieval results.
type RetrieveOptions struct {
	// EnableDedup keeps one hit per (document key, normalised text) pair.
	EnableDedup bool

	// EnableTextTrim trims surrounding whitespace from hit text.
	EnableTextTrim bool
}

// DefaultRetrieveOptions enables both dedup and trimming.
func DefaultRetrieveOptions() RetrieveOptions {
	return RetrieveOptions{EnableDedup: true, EnableTextTrim: true}
}
