package domain

import "errors"

// Domain errors represent pipeline failures that callers can match with errors.Is.
// These are distinct from infrastructure errors, which adapters wrap around them.
var (
	// ErrNotFound indicates a source path or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnreadableSource indicates a recognised format that could not be decoded.
	// The file exists but is corrupt, encrypted, or otherwise unreadable.
	ErrUnreadableSource = errors.New("unreadable source")

	// ErrUnsupportedType indicates no extractor claims the input.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidOptions indicates ingestion options that cannot be honoured.
	// Surfaced before any I/O takes place.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// dimensionality the vector memory was created with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrBatchMismatch indicates an embedding batch whose length differs from its input.
	ErrBatchMismatch = errors.New("embedding batch size mismatch")

	// ErrEmbeddingUnavailable indicates the embedding generator is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorMemoryUnavailable indicates the vector memory is not configured.
	ErrVectorMemoryUnavailable = errors.New("vector memory unavailable")
)
