package hierarchical

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func extraction(text string) domain.ExtractionResult {
	return domain.ExtractionResult{
		Document: domain.DocumentReference{Key: "/docs/handbook.txt"},
		Text:     text,
	}
}

// assertWellFormed checks the size, ordering and non-empty guarantees.
func assertWellFormed(t *testing.T, chunks []domain.SplitChunk, size int) {
	t.Helper()
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "index gap at %d", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), size, "chunk %d too large", i)
		assert.NotEmpty(t, strings.TrimSpace(c.Text), "chunk %d blank", i)
		assert.Equal(t, c.Text, strings.TrimSpace(c.Text), "chunk %d not trimmed", i)
		assert.Equal(t, "/docs/handbook.txt", c.Document.Key)
	}
}

func longDocument(paragraphs int) string {
	var b strings.Builder
	for p := 0; p < paragraphs; p++ {
		if p > 0 {
			b.WriteString("\n\n")
		}
		for s := 0; s < 6; s++ {
			if s > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "Paragraph %d sentence %d explains the refund policy in detail.", p, s)
		}
	}
	return b.String()
}

func TestNew(t *testing.T) {
	t.Run("default terminators", func(t *testing.T) {
		s := New()
		assert.Equal(t, DefaultSentenceTerminators, s.terminators)
		assert.Equal(t, "hierarchical", s.Name())
	})

	t.Run("custom terminators", func(t *testing.T) {
		s := New(WithSentenceTerminators("。"))
		assert.Equal(t, "。", s.terminators)
	})

	t.Run("empty terminators ignored", func(t *testing.T) {
		s := New(WithSentenceTerminators(""))
		assert.Equal(t, DefaultSentenceTerminators, s.terminators)
	})
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name            string
		size, overlap   int
		wantSize, wantO int
	}{
		{"valid", 1200, 200, 1200, 200},
		{"default size", 0, 10, domain.DefaultChunkSize, 10},
		{"negative overlap", 100, -5, 100, 0},
		{"overlap equals size", 100, 100, 100, 99},
		{"overlap exceeds size", 100, 150, 100, 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, overlap := Bounds(tt.size, tt.overlap)
			assert.Equal(t, tt.wantSize, size)
			assert.Equal(t, tt.wantO, overlap)
		})
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	s := New()
	assert.Empty(t, s.Split(extraction(""), 100, 10))
	assert.Empty(t, s.Split(extraction(" \n\n\t \n"), 100, 10))
}

func TestSplit_SmallInputSingleChunk(t *testing.T) {
	s := New()
	chunks := s.Split(extraction("  Hello world.  \n"), 100, 10)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "paragraph", chunks[0].Metadata[MetaSplitLevel])
}

func TestSplit_3500CharDocument(t *testing.T) {
	text := longDocument(10)
	require.GreaterOrEqual(t, len(text), 3500)

	chunks := New().Split(extraction(text), 1200, 200)

	assert.GreaterOrEqual(t, len(chunks), 3)
	assertWellFormed(t, chunks, 1200)
}

func TestSplit_ParagraphsNotOverlapped(t *testing.T) {
	paras := []string{
		strings.Repeat("a", 60),
		strings.Repeat("b", 60),
		strings.Repeat("c", 60),
	}
	chunks := New().Split(extraction(strings.Join(paras, "\n\n")), 100, 30)

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, paras[i], c.Text)
	}
}

func TestSplit_ParagraphsRepacked(t *testing.T) {
	text := "one\n\ntwo\n\nthree\n\n" + strings.Repeat("x", 40)
	chunks := New().Split(extraction(text), 20, 0)

	require.Len(t, chunks, 3)
	assert.Equal(t, "one\n\ntwo\n\nthree", chunks[0].Text)
	assert.Equal(t, strings.Repeat("x", 20), chunks[1].Text)
	assert.Equal(t, strings.Repeat("x", 20), chunks[2].Text)
	assert.Equal(t, "char", chunks[2].Metadata[MetaSplitLevel])
}

func TestSplit_WordOverlap(t *testing.T) {
	words := make([]string, 60)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	chunks := New().Split(extraction(strings.Join(words, " ")), 100, 20)

	require.Greater(t, len(chunks), 1)
	assertWellFormed(t, chunks, 100)
	for i := 1; i < len(chunks); i++ {
		first := strings.Fields(chunks[i].Text)[0]
		prev := strings.Fields(chunks[i-1].Text)
		assert.Contains(t, prev[len(prev)-3:], first, "chunk %d should start inside the previous tail", i)
	}
	assert.Equal(t, "word", chunks[0].Metadata[MetaSplitLevel])
}

func TestSplit_WordsNoOverlap(t *testing.T) {
	words := make([]string, 60)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	chunks := New().Split(extraction(strings.Join(words, " ")), 100, 0)

	var rebuilt []string
	for _, c := range chunks {
		rebuilt = append(rebuilt, strings.Fields(c.Text)...)
	}
	assert.Equal(t, words, rebuilt)
}

func TestSplit_SentenceLevel(t *testing.T) {
	text := "First sentence is here. Second one follows! Third asks why? Fourth ends it."
	chunks := New().Split(extraction(text), 45, 0)

	require.Len(t, chunks, 2)
	assert.Equal(t, "First sentence is here. Second one follows!", chunks[0].Text)
	assert.Equal(t, "Third asks why? Fourth ends it.", chunks[1].Text)
	assert.Equal(t, "sentence", chunks[0].Metadata[MetaSplitLevel])
}

func TestSplit_CharWindows(t *testing.T) {
	token := strings.Repeat("abcdefghij", 25)
	chunks := New().Split(extraction(token), 100, 10)

	require.Len(t, chunks, 3)
	assert.Equal(t, token[0:100], chunks[0].Text)
	assert.Equal(t, token[90:190], chunks[1].Text)
	assert.Equal(t, token[180:], chunks[2].Text)
}

func TestSplit_MultibyteCountsRunes(t *testing.T) {
	token := strings.Repeat("é", 30)
	chunks := New().Split(extraction(token), 10, 0)

	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Equal(t, 10, utf8.RuneCountInString(c.Text))
	}
}

func TestSplit_ClampedOverlapTerminates(t *testing.T) {
	token := strings.Repeat("z", 30)
	chunks := New().Split(extraction(token), 10, 50)

	assert.Len(t, chunks, 21)
	assertWellFormed(t, chunks, 10)
}

func TestSplit_Deterministic(t *testing.T) {
	text := longDocument(8)
	s := New()
	assert.Equal(t, s.Split(extraction(text), 300, 50), s.Split(extraction(text), 300, 50))
}

func TestSplit_Properties(t *testing.T) {
	texts := []string{
		longDocument(3),
		strings.Repeat("line of text\n", 200),
		strings.Repeat("word ", 700),
		strings.Repeat("x", 2000),
		"Mixed.\n\nShort para.\nThen a very long line " + strings.Repeat("token ", 300),
	}
	sizes := [][2]int{{50, 0}, {50, 10}, {200, 199}, {1200, 200}, {7, 3}}

	s := New()
	for ti, text := range texts {
		for _, sz := range sizes {
			t.Run(fmt.Sprintf("text%d_%d_%d", ti, sz[0], sz[1]), func(t *testing.T) {
				chunks := s.Split(extraction(text), sz[0], sz[1])
				require.NotEmpty(t, chunks)
				assertWellFormed(t, chunks, sz[0])
			})
		}
	}
}
