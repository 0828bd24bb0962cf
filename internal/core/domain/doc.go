// Package domain defines the core entities of the retrieval pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - DocumentReference: Stable identity of a source document
//   - ExtractionResult: Plain text produced by a content extractor
//   - SplitChunk: A bounded, ordered piece of extracted text
//   - Embedding: A dense vector for a piece of text
//   - VectorRecord: The persisted unit, one per chunk
//   - SearchHit: A ranked similarity search result
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
