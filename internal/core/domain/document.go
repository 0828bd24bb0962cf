package domain

// Metadata holds arbitrary key-value pairs attached to documents and chunks.
// Values must be JSON-serialisable.
type Metadata map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	dst := make(Metadata, len(m))
	for k, v := range m {
		dst[k] = v
	}
	return dst
}

// MergeMetadata layers the given maps left to right; later keys win.
// The result is never nil.
func MergeMetadata(layers ...Metadata) Metadata {
	merged := make(Metadata)
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}

// DocumentReference identifies a source document.
// Key is stable per source (absolute path or URI) and is never derived from content.
type DocumentReference struct {
	// Key is the identity used for delete and reindex.
	Key string `json:"key"`

	// DisplayName is a human-readable name, usually the file name.
	DisplayName string `json:"display_name,omitempty"`

	// ContentType is the MIME type of the source, when known.
	ContentType string `json:"content_type,omitempty"`
}

// Name returns the display name, falling back to the key.
func (d DocumentReference) Name() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Key
}

// ExtractionResult is the plain text produced by a content extractor.
// It is created once per extraction call and not modified afterwards.
type ExtractionResult struct {
	Document DocumentReference

	// Text is the full extracted text.
	Text string

	// Pages holds per-page text for paged formats such as PDF.
	Pages []string

	// Metadata carries extractor-specific attributes (title, page count).
	Metadata Metadata
}

// SplitChunk is one bounded piece of extracted text.
// Index values are 0-based and gapless; ordering by Index reconstructs reading order.
type SplitChunk struct {
	Document DocumentReference

	// Index is the position of the chunk within its document.
	Index int

	// Text is trimmed and never empty.
	Text string

	// Metadata contains chunk-specific key-value pairs.
	Metadata Metadata
}

// TextDocument is text supplied directly by a caller, bypassing extraction.
type TextDocument struct {
	Document DocumentReference
	Text     string
}
