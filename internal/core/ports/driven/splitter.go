package driven

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// TextSplitter turns extracted text into ordered chunks.
type TextSplitter interface {
	// Split returns chunks no longer than chunkSize characters with gapless
	// indices starting at 0. A chunkSize <= 0 or negative overlap selects the
	// splitter's defaults. Empty or whitespace-only text yields no chunks.
	Split(extraction domain.ExtractionResult, chunkSize, chunkOverlap int) []domain.SplitChunk
}
