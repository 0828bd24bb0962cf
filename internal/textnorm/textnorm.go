// Package textnorm holds the whitespace clean-up shared by extractors and
// raw-text ingestion.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// Whitespace converts CRLF and lone CR to LF, strips spaces and tabs before
// each newline, collapses three or more newlines to a single blank line and
// trims both ends.
func Whitespace(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Newlines converts CRLF and lone CR to LF without touching anything else.
func Newlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
