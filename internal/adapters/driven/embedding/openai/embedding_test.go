package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

type datum struct {
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

func newServer(t *testing.T, respond func(req embeddingRequest) (int, any)) (*httptest.Server, *http.Header) {
	t.Helper()
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		if r.URL.Path == "/models" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		var req embeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		status, body := respond(req)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &headers
}

func TestNewEmbeddingGenerator(t *testing.T) {
	_, err := NewEmbeddingGenerator(Config{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	g, err := NewEmbeddingGenerator(Config{APIKey: "k", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, g.Dimensions())

	g, err = NewEmbeddingGenerator(Config{APIKey: "k", Model: "custom"})
	require.NoError(t, err)
	assert.Equal(t, 1536, g.Dimensions())
}

func TestGenerateBatch_ReordersByIndex(t *testing.T) {
	var got embeddingRequest
	srv, headers := newServer(t, func(req embeddingRequest) (int, any) {
		got = req
		return http.StatusOK, map[string]any{"data": []datum{
			{Embedding: []float64{0, 2}, Index: 1},
			{Embedding: []float64{1, 0}, Index: 0},
		}}
	})
	g, err := NewEmbeddingGenerator(Config{APIKey: "secret", BaseURL: srv.URL, Dimensions: 2})
	require.NoError(t, err)

	out, err := g.GenerateBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.Equal(t, 2, got.Dimensions)
	assert.Equal(t, []float32{1, 0}, out[0].Values)
	assert.Equal(t, []float32{0, 2}, out[1].Values)
}

func TestGenerateBatch_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		status  int
		body    any
		wantIs  error
		wantMsg string
	}{
		{
			name:   "missing item",
			status: http.StatusOK,
			body:   map[string]any{"data": []datum{{Embedding: []float64{1, 0}, Index: 0}}},
			wantIs: domain.ErrBatchMismatch,
		},
		{
			name:   "duplicate index",
			status: http.StatusOK,
			body: map[string]any{"data": []datum{
				{Embedding: []float64{1, 0}, Index: 0},
				{Embedding: []float64{1, 0}, Index: 0},
			}},
			wantIs: domain.ErrBatchMismatch,
		},
		{
			name:   "wrong dimensions",
			status: http.StatusOK,
			body: map[string]any{"data": []datum{
				{Embedding: []float64{1}, Index: 0},
				{Embedding: []float64{1}, Index: 1},
			}},
			wantIs: domain.ErrDimensionMismatch,
		},
		{
			name:    "api error",
			status:  http.StatusUnauthorized,
			body:    map[string]any{"error": map[string]string{"message": "bad key"}},
			wantMsg: "bad key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, func(embeddingRequest) (int, any) { return tt.status, tt.body })
			g, err := NewEmbeddingGenerator(Config{APIKey: "k", BaseURL: srv.URL, Dimensions: 2})
			require.NoError(t, err)

			_, err = g.GenerateBatch(ctx, []string{"a", "b"})
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestPing(t *testing.T) {
	srv, headers := newServer(t, nil)
	g, err := NewEmbeddingGenerator(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	assert.NoError(t, g.Ping(context.Background()))
	assert.Equal(t, "Bearer k", headers.Get("Authorization"))
}
