package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
	"github.com/custodia-labs/sercha-rag/internal/splitters/hierarchical"
)

// setupTestServices wires an in-memory pipeline into the package-level
// services and returns a cleanup function restoring the previous state.
func setupTestServices() func() {
	prevCfg, prevIngest, prevRetriever := appConfig, ingestionService, retriever
	prevMemory, prevEmbedder, prevStore := vectorMemory, embedder, configStore

	cfg := file.Default()
	cfg.Storage.Backend = file.BackendMemory
	cfg.Embedding.Dimensions = 64

	emb := hashing.NewEmbeddingGenerator(cfg.Embedding.Dimensions)
	mem, err := memory.NewVectorStore(emb.Dimensions(), emb)
	if err != nil {
		panic(err)
	}

	appConfig = &cfg
	embedder = emb
	vectorMemory = mem
	ingestionService = services.NewIngestionService(extractors.Defaults(), hierarchical.New(), emb, mem)
	retriever = services.NewRetrievalService(mem, cfg.RetrieveOptions())
	configStore = memory.NewConfigStore(nil)

	return func() {
		appConfig, ingestionService, retriever = prevCfg, prevIngest, prevRetriever
		vectorMemory, embedder, configStore = prevMemory, prevEmbedder, prevStore
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), input, args...)
}

func executeContext(t *testing.T, ctx context.Context, input string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(bytes.NewBufferString(input))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags()
	}()

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

// resetFlags restores flag variables that persist between executions.
func resetFlags() {
	for _, f := range []*ingestFlags{
		&ingestFileFlags, &ingestFolderFlags, &ingestTextFlags, &ingestPackFlags, &reindexFlags, &watchFlags,
	} {
		f.reset()
	}
	ingestPatterns, ingestNoRecursive = nil, false
	ingestTextKey, ingestTextName, ingestPackName = "", "", ""
	searchTopK, searchJSON, searchContext, searchFilter = 0, false, false, map[string]string{}
	statsJSON, purgeYes = false, false
	watchPatterns, watchNoRecursive, watchInitial = nil, false, false
	verbose = false
}

func chunkCount(t *testing.T) int64 {
	t.Helper()
	n, err := vectorMemory.Count(context.Background())
	require.NoError(t, err)
	return n
}

// failingRetriever returns err from every call.
type failingRetriever struct{ err error }

func (f failingRetriever) Retrieve(context.Context, string, int, domain.Filter) ([]domain.SearchHit, error) {
	return nil, f.err
}

var errBoom = errors.New("boom")
