package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// fakeModels returns one vector per content whose first value is the
// position of the content in the overall batch.
type fakeModels struct {
	dims     int
	calls    []int
	lastCfg  *genai.EmbedContentConfig
	lastName string
	short    bool
	err      error
	offset   int
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content,
	config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.calls = append(f.calls, len(contents))
	f.lastCfg, f.lastName = config, model
	if f.err != nil {
		return nil, f.err
	}
	resp := &genai.EmbedContentResponse{}
	for range contents {
		v := make([]float32, f.dims)
		v[0] = float32(f.offset)
		f.offset++
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: v})
	}
	if f.short {
		resp.Embeddings = resp.Embeddings[1:]
	}
	return resp, nil
}

func TestNewEmbeddingGenerator_RequiresKey(t *testing.T) {
	_, err := NewEmbeddingGenerator(context.Background(), Config{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestDefaults(t *testing.T) {
	g := newWithModels(&fakeModels{}, Config{})
	assert.Equal(t, DefaultModel, g.ModelName())
	assert.Equal(t, DefaultDimensions, g.Dimensions())
	assert.Equal(t, DefaultTaskType, g.taskType)
}

func TestGenerateBatch_SplitsRequestsAndKeepsOrder(t *testing.T) {
	fake := &fakeModels{dims: 4}
	g := newWithModels(fake, Config{Model: "text-embedding-004", Dimensions: 4})

	texts := make([]string, MaxBatch+5)
	for i := range texts {
		texts[i] = "t"
	}
	out, err := g.GenerateBatch(context.Background(), texts)
	require.NoError(t, err)

	assert.Equal(t, []int{MaxBatch, 5}, fake.calls)
	require.Len(t, out, len(texts))
	for i, e := range out {
		assert.Equal(t, float32(i), e.Values[0])
	}
	assert.Equal(t, "text-embedding-004", fake.lastName)
	require.NotNil(t, fake.lastCfg.OutputDimensionality)
	assert.Equal(t, int32(4), *fake.lastCfg.OutputDimensionality)
}

func TestGenerateBatch_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("short response", func(t *testing.T) {
		g := newWithModels(&fakeModels{dims: 4, short: true}, Config{Dimensions: 4})
		_, err := g.GenerateBatch(ctx, []string{"a", "b"})
		assert.ErrorIs(t, err, domain.ErrBatchMismatch)
	})

	t.Run("wrong dimensions", func(t *testing.T) {
		g := newWithModels(&fakeModels{dims: 3}, Config{Dimensions: 4})
		_, err := g.Generate(ctx, "a")
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("api failure", func(t *testing.T) {
		boom := errors.New("quota exceeded")
		g := newWithModels(&fakeModels{err: boom}, Config{Dimensions: 4})
		_, err := g.Generate(ctx, "a")
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, g.Ping(ctx), domain.ErrEmbeddingUnavailable)
	})

	t.Run("empty input", func(t *testing.T) {
		fake := &fakeModels{dims: 4}
		out, err := newWithModels(fake, Config{Dimensions: 4}).GenerateBatch(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Empty(t, fake.calls)
	})
}
