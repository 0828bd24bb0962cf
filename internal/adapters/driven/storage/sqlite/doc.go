// Package sqlite provides the reference file-based implementation of
// driven.VectorMemory.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Records live in a single table keyed by
// chunk ID with an index on the document key. Embeddings are stored as
// little-endian float32 blobs and metadata as a JSON object.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// The embedding dimensions are recorded on first open; reopening with a different
// value fails with domain.ErrDimensionMismatch.
//
// # Search
//
// Similarity search is a brute-force cosine scan over the rows that pass the
// document key and content type filters, which SQLite evaluates.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-rag/data/vectors.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode; upserts are last-write-wins per record ID.
package sqlite
