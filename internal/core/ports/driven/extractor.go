package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ContentExtractor turns a path or URI into plain text.
// Extractors are registered in a fixed order; the first whose CanHandle
// returns true is used.
type ContentExtractor interface {
	// Name identifies the extractor in logs.
	Name() string

	// CanHandle is a cheap, side-effect-free check on extension or URI scheme.
	// It must not touch the filesystem.
	CanHandle(pathOrURI string) bool

	// Extract reads the source. Missing files fail with domain.ErrNotFound,
	// undecodable ones with domain.ErrUnreadableSource.
	Extract(ctx context.Context, pathOrURI string) (*domain.ExtractionResult, error)
}
