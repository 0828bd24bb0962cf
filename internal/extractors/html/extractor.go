// Package html extracts readable text from HTML pages.
package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/extractors/localfile"
)

// Ensure Extractor implements the interface.
var _ driven.ContentExtractor = (*Extractor)(nil)

// Extensions handled by the extractor.
var Extensions = []string{".html", ".htm", ".xhtml"}

// MetaTitle is the metadata key for the <title> text.
const MetaTitle = "title"

// Extractor handles HTML files.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name returns the extractor name.
func (e *Extractor) Name() string {
	return "html"
}

// CanHandle reports whether the input has an HTML extension.
func (e *Extractor) CanHandle(pathOrURI string) bool {
	return localfile.HasExtension(pathOrURI, Extensions)
}

// Extract strips markup and returns the visible text, one block per line.
func (e *Extractor) Extract(_ context.Context, pathOrURI string) (*domain.ExtractionResult, error) {
	f, err := localfile.Open(pathOrURI)
	if err != nil {
		return nil, err
	}

	src := strings.ToValidUTF8(string(f.Data), "�")
	md := f.Metadata("html")
	if title := Title(src); title != "" {
		md[MetaTitle] = title
	}

	return &domain.ExtractionResult{
		Document: f.Reference("text/html"),
		Text:     Strip(src),
		Metadata: md,
	}, nil
}

var (
	titleTag        = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTag       = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag        = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag     = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag         = regexp.MustCompile(`(?is)<head(\s[^>]*)?>.*?</head>`)
	svgTag          = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	comments        = regexp.MustCompile(`(?s)<!--.*?-->`)
	closeBlockTags  = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockTags   = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)(\s[^>]*)?>`)
	breakTags       = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	anyTag          = regexp.MustCompile(`<[^>]+>`)
	horizontalSpace = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// Title returns the decoded <title> text, or "".
func Title(src string) string {
	m := titleTag.FindStringSubmatch(src)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(horizontalSpace.ReplaceAllString(html.UnescapeString(m[1]), " "))
}

// Strip removes markup and non-visible elements. Block elements end a
// line; blank lines are dropped.
func Strip(src string) string {
	for _, re := range []*regexp.Regexp{scriptTag, styleTag, noscriptTag, headTag, svgTag, comments} {
		src = re.ReplaceAllString(src, "")
	}
	src = openBlockTags.ReplaceAllString(src, "\n")
	src = closeBlockTags.ReplaceAllString(src, "\n")
	src = breakTags.ReplaceAllString(src, "\n")
	src = anyTag.ReplaceAllString(src, "")
	src = html.UnescapeString(src)

	lines := strings.Split(src, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
