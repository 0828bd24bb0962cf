// Package markdown extracts readable text from Markdown files.
//
// The source is parsed with goldmark (GFM extensions enabled) and flattened
// block by block: paragraphs and headings become blank-line separated
// blocks, list items and table rows become lines, fenced code is kept
// verbatim and raw HTML is dropped.
package markdown

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/extractors/localfile"
)

// Ensure Extractor implements the interface.
var _ driven.ContentExtractor = (*Extractor)(nil)

// Extensions handled by default.
var Extensions = []string{".md", ".markdown"}

// MetaTitle is set from the first level-one heading.
const MetaTitle = "title"

// Extractor handles Markdown documents.
type Extractor struct {
	md goldmark.Markdown
}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "markdown"
}

// CanHandle reports whether the input has a Markdown extension.
func (e *Extractor) CanHandle(pathOrURI string) bool {
	return localfile.HasExtension(pathOrURI, Extensions)
}

// Extract reads the file and flattens it to plain text.
func (e *Extractor) Extract(_ context.Context, pathOrURI string) (*domain.ExtractionResult, error) {
	f, err := localfile.Open(pathOrURI)
	if err != nil {
		return nil, err
	}

	plain, title := e.Flatten(f.Data)

	md := f.Metadata("markdown")
	if title != "" {
		md[MetaTitle] = title
	}

	return &domain.ExtractionResult{
		Document: f.Reference("text/markdown"),
		Text:     plain,
		Metadata: md,
	}, nil
}

// Flatten converts Markdown source to plain text and returns the first
// level-one heading, if any.
func (e *Extractor) Flatten(src []byte) (string, string) {
	doc := e.md.Parser().Parse(text.NewReader(src))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			title = strings.TrimSpace(inlineText(h, src))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(blocks(doc, src), "\n\n"), title
}

func blocks(n ast.Node, src []byte) []string {
	switch node := n.(type) {
	case *ast.Document, *ast.Blockquote:
		return childBlocks(node, src)

	case *ast.List:
		var items []string
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if item := strings.Join(childBlocks(c, src), "\n"); item != "" {
				items = append(items, item)
			}
		}
		return nonEmpty(strings.Join(items, "\n"))

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var b strings.Builder
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		return nonEmpty(strings.TrimRight(b.String(), "\n"))

	case *east.Table:
		var rows []string
		for r := node.FirstChild(); r != nil; r = r.NextSibling() {
			var cells []string
			for c := r.FirstChild(); c != nil; c = c.NextSibling() {
				cells = append(cells, strings.TrimSpace(inlineText(c, src)))
			}
			rows = append(rows, strings.Join(cells, " | "))
		}
		return nonEmpty(strings.Join(rows, "\n"))

	case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
		return nonEmpty(strings.TrimSpace(inlineText(node, src)))

	case *ast.HTMLBlock, *ast.ThematicBreak:
		return nil
	}

	if n.Type() == ast.TypeBlock && n.HasChildren() {
		return childBlocks(n, src)
	}
	return nil
}

func childBlocks(n ast.Node, src []byte) []string {
	var out []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, blocks(c, src)...)
	}
	return out
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
