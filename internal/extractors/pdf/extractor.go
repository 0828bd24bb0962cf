// Package pdf extracts text from PDF files.
//
// pdfcpu parses and validates the document and dumps each page's decoded
// content stream; the text-showing operators in those streams are turned
// back into lines. Each page is whitespace-normalised and pages are
// joined with a blank line.
package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/extractors/localfile"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/textnorm"
)

// Ensure Extractor implements the interface.
var _ driven.ContentExtractor = (*Extractor)(nil)

// Extensions handled by default.
var Extensions = []string{".pdf"}

// MetaPageCount holds the number of pages in the document.
const MetaPageCount = "page_count"

// contentPageMarker precedes the page number in pdfcpu's content dump names.
const contentPageMarker = "Content_page_"

// Extractor handles PDF documents.
type Extractor struct {
	tempDir string
}

// Option configures the extractor.
type Option func(*Extractor)

// WithTempDir sets where page content is dumped during extraction.
func WithTempDir(dir string) Option {
	return func(e *Extractor) {
		if dir != "" {
			e.tempDir = dir
		}
	}
}

// New creates a new PDF extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{tempDir: os.TempDir()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "pdf"
}

// CanHandle reports whether the input has a .pdf extension.
func (e *Extractor) CanHandle(pathOrURI string) bool {
	return localfile.HasExtension(pathOrURI, Extensions)
}

// Extract parses the document and returns its text with page boundaries.
// Corrupt or encrypted files fail with domain.ErrUnreadableSource.
func (e *Extractor) Extract(ctx context.Context, pathOrURI string) (*domain.ExtractionResult, error) {
	f, err := localfile.Stat(pathOrURI)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdfCtx, err := api.ReadContextFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnreadableSource, f.Path, err)
	}

	outDir, err := os.MkdirTemp(e.tempDir, "sercha-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(f.Path, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnreadableSource, f.Path, err)
	}

	streams, err := readPageStreams(outDir)
	if err != nil {
		return nil, err
	}

	pageCount := pdfCtx.PageCount
	if n := len(streams); pageCount < n {
		pageCount = n
	}

	pages := make([]string, pageCount)
	var nonEmpty []string
	for i := range pages {
		pages[i] = textnorm.Whitespace(decodeText(streams[i+1]))
		if pages[i] != "" {
			nonEmpty = append(nonEmpty, pages[i])
		}
	}
	logger.Debug("pdf: %s has %d pages, %d with text", f.Path, pageCount, len(nonEmpty))

	md := f.Metadata("pdf")
	md[MetaPageCount] = pageCount

	return &domain.ExtractionResult{
		Document: f.Reference("application/pdf"),
		Text:     strings.Join(nonEmpty, "\n\n"),
		Pages:    pages,
		Metadata: md,
	}, nil
}

// readPageStreams loads the dumped content streams keyed by 1-based page.
// A page with several streams has them concatenated in name order.
func readPageStreams(dir string) (map[int][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read content dump: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	streams := make(map[int][]byte)
	for _, name := range names {
		page, ok := pageNumber(name)
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read content dump: %w", err)
		}
		if prev := streams[page]; len(prev) > 0 {
			data = append(append(prev, '\n'), data...)
		}
		streams[page] = data
	}
	return streams, nil
}

// pageNumber parses names such as "report_Content_page_3.txt".
func pageNumber(name string) (int, bool) {
	idx := strings.Index(name, contentPageMarker)
	if idx < 0 {
		return 0, false
	}
	rest := name[idx+len(contentPageMarker):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
