// Package vecmath holds the similarity and ranking helpers shared by the
// vector memory adapters that search in process.
package vecmath

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// CheckSearch validates the arguments of a vector search.
func CheckSearch(query domain.Embedding, dimensions, topK int) error {
	if topK <= 0 {
		return fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInvalidInput, topK)
	}
	return query.Check(dimensions)
}

// EmbedQuery embeds a text query with gen and checks it against dimensions.
func EmbedQuery(ctx context.Context, gen driven.EmbeddingGenerator, dimensions int, query string) (domain.Embedding, error) {
	if strings.TrimSpace(query) == "" {
		return domain.Embedding{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if gen == nil {
		return domain.Embedding{}, domain.ErrEmbeddingUnavailable
	}
	emb, err := gen.Generate(ctx, query)
	if err != nil {
		return domain.Embedding{}, fmt.Errorf("embed query: %w", err)
	}
	if err := emb.Check(dimensions); err != nil {
		return domain.Embedding{}, err
	}
	return emb, nil
}

// TopK keeps the k best hits seen so far.
// Ties are broken by chunk ID so results are deterministic.
type TopK struct {
	k    int
	hits hitHeap
}

// NewTopK creates a collector for at most k hits.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, hits: make(hitHeap, 0, k)}
}

// Offer considers one hit.
func (t *TopK) Offer(hit domain.SearchHit) {
	if t.k <= 0 {
		return
	}
	if len(t.hits) < t.k {
		heap.Push(&t.hits, hit)
		return
	}
	if worse(t.hits[0], hit) {
		t.hits[0] = hit
		heap.Fix(&t.hits, 0)
	}
}

// Results returns the collected hits ordered best first.
func (t *TopK) Results() []domain.SearchHit {
	out := make([]domain.SearchHit, len(t.hits))
	h := make(hitHeap, len(t.hits))
	copy(h, t.hits)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(domain.SearchHit)
	}
	return out
}

// worse reports whether a ranks below b.
func worse(a, b domain.SearchHit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ChunkID > b.ChunkID
}

// hitHeap is a min-heap with the worst hit at the root.
type hitHeap []domain.SearchHit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) { *h = append(*h, x.(domain.SearchHit)) }

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// CheckRecord validates a record before it is written.
func CheckRecord(rec domain.VectorRecord, dimensions int) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record without id", domain.ErrInvalidInput)
	}
	if rec.DocumentKey == "" {
		return fmt.Errorf("%w: record %s without document key", domain.ErrInvalidInput, rec.ID)
	}
	if len(rec.Embedding) != dimensions {
		return fmt.Errorf("%w: record %s has %d values, want %d",
			domain.ErrDimensionMismatch, rec.ID, len(rec.Embedding), dimensions)
	}
	return nil
}
