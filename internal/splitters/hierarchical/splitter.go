// Package hierarchical splits extracted text into bounded, overlapping chunks.
//
// Text is cut on a fixed ladder of separators, coarse to fine: paragraph
// break, line break, sentence terminator, space, and finally raw rune
// windows. At each level the pieces are greedily repacked into buckets of
// at most chunkSize runes; a piece that is still too large is handed to the
// next level. The ladder has a fixed depth, so splitting always terminates
// and never recurses.
package hierarchical

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// MetaSplitLevel is the chunk metadata key naming the ladder level that produced it.
const MetaSplitLevel = "split_level"

// DefaultSentenceTerminators end a sentence when followed by a space.
const DefaultSentenceTerminators = ".!?"

var _ driven.TextSplitter = (*Splitter)(nil)

type level int

const (
	levelParagraph level = iota
	levelLine
	levelSentence
	levelWord
	levelChar
)

var levelNames = [...]string{"paragraph", "line", "sentence", "word", "char"}

func (l level) String() string { return levelNames[l] }

// separator is the joiner used when repacking pieces at a level.
func (l level) separator() string {
	switch l {
	case levelParagraph:
		return "\n\n"
	case levelLine:
		return "\n"
	case levelSentence, levelWord:
		return " "
	default:
		return ""
	}
}

// Splitter implements the separator ladder.
type Splitter struct {
	terminators string
}

// Option configures the splitter.
type Option func(*Splitter)

// WithSentenceTerminators sets the runes that end a sentence.
func WithSentenceTerminators(t string) Option {
	return func(s *Splitter) {
		if t != "" {
			s.terminators = t
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{terminators: DefaultSentenceTerminators}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the splitter name.
func (s *Splitter) Name() string {
	return "hierarchical"
}

// Bounds clamps a requested size and overlap into a usable pair.
// A non-positive size falls back to the default, a negative overlap becomes
// zero and an overlap that is not smaller than size is clamped to size-1.
func Bounds(chunkSize, chunkOverlap int) (int, int) {
	if chunkSize <= 0 {
		chunkSize = domain.DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return chunkSize, chunkOverlap
}

// work is a span of text waiting to be emitted or split at its level.
type work struct {
	text  string
	level level
}

// Split turns the extraction text into chunks of at most chunkSize runes.
// Overlap is carried between adjacent chunks only when a cut falls below
// paragraph level; paragraph boundaries are never duplicated.
func (s *Splitter) Split(extraction domain.ExtractionResult, chunkSize, chunkOverlap int) []domain.SplitChunk {
	size, overlap := Bounds(chunkSize, chunkOverlap)
	if strings.TrimSpace(extraction.Text) == "" {
		return nil
	}

	var chunks []domain.SplitChunk
	emit := func(text string, lvl level) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		chunks = append(chunks, domain.SplitChunk{
			Document: extraction.Document,
			Index:    len(chunks),
			Text:     text,
			Metadata: domain.Metadata{MetaSplitLevel: lvl.String()},
		})
	}

	// Explicit LIFO stack; pushed in reverse so reading order is kept.
	stack := []work{{text: extraction.Text, level: levelParagraph}}
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if runeLen(strings.TrimSpace(w.text)) <= size {
			emit(w.text, w.level)
			continue
		}
		if w.level == levelChar {
			for _, win := range windows(w.text, size, overlap) {
				emit(win, levelChar)
			}
			continue
		}

		out := repack(s.pieces(w.text, w.level), w.level, size, overlap)
		for i := len(out) - 1; i >= 0; i-- {
			stack = append(stack, out[i])
		}
	}
	return chunks
}

// pieces cuts text on the separator of lvl. Blank pieces are dropped.
func (s *Splitter) pieces(text string, lvl level) []string {
	var raw []string
	if lvl == levelSentence {
		raw = s.sentences(text)
	} else {
		raw = strings.Split(text, lvl.separator())
	}

	out := raw[:0]
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentences cuts after a terminator that is followed by a space. The
// terminator stays with its sentence and the single space is consumed.
func (s *Splitter) sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if !strings.ContainsRune(s.terminators, r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		if end < len(text) && text[end] == ' ' {
			out = append(out, text[start:end])
			start = end + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// repack greedily packs pieces into buckets of at most size runes.
// Pieces that alone exceed size are returned for the next level.
func repack(pieces []string, lvl level, size, overlap int) []work {
	sep := lvl.separator()
	sepLen := runeLen(sep)
	carry := overlap > 0 && lvl != levelParagraph

	var (
		out    []work
		bucket []string
		lens   []int
		total  int
	)
	flush := func() {
		if len(bucket) > 0 {
			out = append(out, work{text: strings.Join(bucket, sep), level: lvl})
		}
	}

	for _, p := range pieces {
		pl := runeLen(p)

		if pl > size {
			flush()
			bucket, lens, total = nil, nil, 0
			out = append(out, work{text: p, level: lvl + 1})
			continue
		}
		if len(bucket) == 0 {
			bucket, lens, total = []string{p}, []int{pl}, pl
			continue
		}
		if total+sepLen+pl <= size {
			bucket = append(bucket, p)
			lens = append(lens, pl)
			total += sepLen + pl
			continue
		}

		flush()

		// Carry whole trailing pieces up to overlap runes, never the full bucket.
		keep, carried := 0, 0
		if carry {
			for k := len(bucket) - 1; k >= 1; k-- {
				add := lens[k]
				if keep > 0 {
					add += sepLen
				}
				if carried+add > overlap {
					break
				}
				carried += add
				keep++
			}
		}
		bucket = append([]string(nil), bucket[len(bucket)-keep:]...)
		lens = append([]int(nil), lens[len(lens)-keep:]...)
		total = carried

		for len(bucket) > 0 && total+sepLen+pl > size {
			total -= lens[0]
			if len(bucket) > 1 {
				total -= sepLen
			}
			bucket, lens = bucket[1:], lens[1:]
		}

		if len(bucket) == 0 {
			total = pl
		} else {
			total += sepLen + pl
		}
		bucket = append(bucket, p)
		lens = append(lens, pl)
	}
	flush()
	return out
}

// windows cuts text into rune windows of size, stepping size-overlap.
func windows(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
