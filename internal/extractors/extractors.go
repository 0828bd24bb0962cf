// Package extractors wires the built-in content extractors in their
// selection order.
package extractors

import (
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/extractors/html"
	"github.com/custodia-labs/sercha-rag/internal/extractors/markdown"
	"github.com/custodia-labs/sercha-rag/internal/extractors/pdf"
	"github.com/custodia-labs/sercha-rag/internal/extractors/plaintext"
)

// Config adjusts the built-in extractors.
type Config struct {
	// TextExtensions replaces the plain text extension list when set.
	TextExtensions []string

	// TempDir is where PDF page content is dumped.
	TempDir string
}

// Defaults returns the plain text, Markdown, HTML and PDF extractors in
// selection order.
func Defaults() []driven.ContentExtractor {
	return New(Config{})
}

// New builds the built-in extractors from cfg.
func New(cfg Config) []driven.ContentExtractor {
	return []driven.ContentExtractor{
		plaintext.New(plaintext.WithExtensions(cfg.TextExtensions...)),
		markdown.New(),
		html.New(),
		pdf.New(pdf.WithTempDir(cfg.TempDir)),
	}
}
