package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

type stubGenerator struct {
	calls int
}

func (s *stubGenerator) Dimensions() int { return 1 }
func (s *stubGenerator) Generate(context.Context, string) (domain.Embedding, error) {
	s.calls++
	return domain.NewEmbedding([]float32{1}), nil
}
func (s *stubGenerator) GenerateBatch(_ context.Context, texts []string) ([]domain.Embedding, error) {
	s.calls++
	out := make([]domain.Embedding, len(texts))
	for i := range out {
		out[i] = domain.NewEmbedding([]float32{1})
	}
	return out, nil
}
func (s *stubGenerator) ModelName() string          { return "stub" }
func (s *stubGenerator) Ping(context.Context) error { return nil }
func (s *stubGenerator) Close() error               { return nil }

func TestWrap_Disabled(t *testing.T) {
	next := &stubGenerator{}
	assert.Same(t, next, Wrap(next, Config{}))
	assert.Nil(t, Wrap(nil, Config{RequestsPerSecond: 1}))
}

func TestBurstThenWait(t *testing.T) {
	next := &stubGenerator{}
	g := Wrap(next, Config{RequestsPerSecond: 20, BurstSize: 2})
	ctx := context.Background()

	start := time.Now()
	_, err := g.Generate(ctx, "a")
	require.NoError(t, err)
	_, err = g.GenerateBatch(ctx, []string{"b", "c"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 40*time.Millisecond, "burst is immediate")

	_, err = g.Generate(ctx, "d")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 3, next.calls)
}

func TestCancelledWhileWaiting(t *testing.T) {
	next := &stubGenerator{}
	g := Wrap(next, Config{RequestsPerSecond: 0.01, BurstSize: 1})

	_, err := g.Generate(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.GenerateBatch(ctx, []string{"b"})
	require.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestDelegates(t *testing.T) {
	g := Wrap(&stubGenerator{}, Config{RequestsPerSecond: 1})
	assert.Equal(t, 1, g.Dimensions())
	assert.Equal(t, "stub", g.ModelName())
	assert.NoError(t, g.Ping(context.Background()))
	assert.NoError(t, g.Close())
}
