// Package plaintext extracts text from plain text files.
package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/extractors/localfile"
)

// Ensure Extractor implements the interface.
var _ driven.ContentExtractor = (*Extractor)(nil)

// Extensions handled by default.
var Extensions = []string{".txt", ".log", ".csv"}

// binarySniffLen is how many leading bytes are checked for NUL.
const binarySniffLen = 8000

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor handles plain text files.
type Extractor struct {
	extensions []string
}

// Option configures the extractor.
type Option func(*Extractor)

// WithExtensions replaces the handled extensions. Entries are lower-cased
// and given a leading dot if missing.
func WithExtensions(exts ...string) Option {
	return func(e *Extractor) {
		if len(exts) == 0 {
			return
		}
		e.extensions = make([]string, 0, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			e.extensions = append(e.extensions, ext)
		}
	}
}

// New creates a new plain text extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{extensions: Extensions}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "plaintext"
}

// CanHandle reports whether the input has a plain text extension.
func (e *Extractor) CanHandle(pathOrURI string) bool {
	return localfile.HasExtension(pathOrURI, e.extensions)
}

// Extract reads the file as UTF-8 text. Files with NUL bytes near the start
// are treated as binary and rejected; invalid sequences are replaced.
func (e *Extractor) Extract(_ context.Context, pathOrURI string) (*domain.ExtractionResult, error) {
	f, err := localfile.Open(pathOrURI)
	if err != nil {
		return nil, err
	}

	data := bytes.TrimPrefix(f.Data, utf8BOM)
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return nil, fmt.Errorf("%w: %s looks binary", domain.ErrUnreadableSource, f.Path)
	}

	return &domain.ExtractionResult{
		Document: f.Reference(contentType(f.Path)),
		Text:     strings.ToValidUTF8(string(data), "�"),
		Metadata: f.Metadata("text"),
	}, nil
}

func contentType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return "text/csv"
	}
	return "text/plain"
}
