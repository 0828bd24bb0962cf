package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Embedding is a dense vector for one piece of text.
type Embedding struct {
	Values     []float32
	Dimensions int
}

// NewEmbedding wraps values, deriving Dimensions from their length.
func NewEmbedding(values []float32) Embedding {
	return Embedding{Values: values, Dimensions: len(values)}
}

// Check verifies the embedding is consistent and has the expected dimensionality.
func (e Embedding) Check(dimensions int) error {
	if len(e.Values) != e.Dimensions || e.Dimensions != dimensions {
		return fmt.Errorf("%w: got %d values (declared %d), want %d",
			ErrDimensionMismatch, len(e.Values), e.Dimensions, dimensions)
	}
	return nil
}

// VectorRecord is the persisted unit: one record per chunk.
// Upserting a record replaces every field stored under its ID.
type VectorRecord struct {
	// ID is derived with ChunkID, never assigned by callers.
	ID string

	Text string

	// DocumentKey scopes deletion; stores index it.
	DocumentKey string

	DisplayName string
	ContentType string

	// Metadata is persisted as a serialised JSON object.
	Metadata Metadata

	Embedding []float32
}

// Document returns the reference the record was created from.
func (r VectorRecord) Document() DocumentReference {
	return DocumentReference{Key: r.DocumentKey, DisplayName: r.DisplayName, ContentType: r.ContentType}
}

// SearchHit is a ranked similarity search result.
type SearchHit struct {
	ChunkID  string            `json:"chunk_id"`
	Document DocumentReference `json:"document"`
	Text     string            `json:"text"`

	// Score is a similarity; higher means more similar.
	Score float64 `json:"score"`

	Metadata Metadata `json:"metadata,omitempty"`
}

// ChunkID builds the identity of a chunk: key::index::SHA-256(text).
// Unchanged text at the same index always yields the same ID.
func ChunkID(documentKey string, index int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return documentKey + "::" + strconv.Itoa(index) + "::" + strings.ToUpper(hex.EncodeToString(sum[:]))
}
