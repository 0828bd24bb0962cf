package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/textnorm"
)

// Ensure RetrievalService implements the interface.
var _ driving.Retriever = (*RetrievalService)(nil)

// RetrievalService is a thin layer over the vector memory's text search
// that removes duplicate hits and trims their text.
type RetrievalService struct {
	memory driven.VectorMemory
	opts   domain.RetrieveOptions
}

// NewRetrievalService creates a retriever over memory.
func NewRetrievalService(memory driven.VectorMemory, opts domain.RetrieveOptions) *RetrievalService {
	return &RetrievalService{memory: memory, opts: opts}
}

// Retrieve searches the vector memory and post-processes the hits. Dedup
// only looks at the hits already returned; it never queries again.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query string, topK int, filter domain.Filter,
) ([]domain.SearchHit, error) {
	if s.memory == nil {
		return nil, domain.ErrVectorMemoryUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInvalidInput, topK)
	}

	logger.Section("Retrieve")
	logger.Debug("Query: %q, topK: %d, filter: %v", query, topK, filter)

	found, err := s.memory.Search(ctx, query, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]domain.SearchHit, len(found))
	copy(hits, found)

	if s.opts.EnableDedup {
		before := len(hits)
		hits = Dedup(hits)
		logger.Debug("Dedup kept %d of %d hits", len(hits), before)
	}
	if s.opts.EnableTextTrim {
		for i := range hits {
			hits[i].Text = strings.TrimSpace(hits[i].Text)
		}
	}
	return hits, nil
}

// Dedup keeps the highest-scoring hit for each (document key, normalised
// text) pair. Group order follows first appearance and the result is
// ordered best first.
func Dedup(hits []domain.SearchHit) []domain.SearchHit {
	type group struct {
		key  string
		text string
	}
	index := make(map[group]int, len(hits))
	out := make([]domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		g := group{key: h.Document.Key, text: strings.TrimSpace(textnorm.Newlines(h.Text))}
		if i, ok := index[g]; ok {
			if h.Score > out[i].Score {
				out[i] = h
			}
			continue
		}
		index[g] = len(out)
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// FormatHits renders hits as numbered context blocks for a prompt:
//
//	[1] handbook.md (score 0.873)
//	chunk text...
func FormatHits(hits []domain.SearchHit) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s (score %.3f)\n%s", i+1, h.Document.Name(), h.Score, strings.TrimSpace(h.Text))
	}
	return b.String()
}
