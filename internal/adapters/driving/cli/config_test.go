package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
)

func TestConfigCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range configCmd.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"show", "get", "set", "list", "path"}, names)
}

func TestConfigShowCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	appConfig.Embedding.Provider = file.ProviderOpenAI
	appConfig.Embedding.APIKey = "sk-1234567890abcd"

	out, err := execute(t, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "[Storage]")
	assert.Contains(t, out, "Backend: memory")
	assert.Contains(t, out, "API Key: sk-1...abcd")
	assert.NotContains(t, out, "sk-1234567890abcd")
	assert.Contains(t, out, "Chunk size: 1200")
	assert.Contains(t, out, "Patterns: *.txt *.md *.pdf")
	assert.Contains(t, out, "Top K: 5")
	assert.Contains(t, out, "Transport: stdio")
}

func TestConfigSetGetList(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No values set")

	_, err = execute(t, "config", "set", "retrieval.top_k", "8")
	require.NoError(t, err)
	_, err = execute(t, "config", "set", "ingest.patterns", "*.md, *.txt")
	require.NoError(t, err)
	_, err = execute(t, "config", "set", "embedding.api_key", "sk-abcdefghijkl")
	require.NoError(t, err)

	assert.Equal(t, 8, configStore.GetInt("retrieval.top_k"))
	assert.Equal(t, []string{"*.md", "*.txt"}, configStore.GetStringSlice("ingest.patterns"))

	out, err = execute(t, "config", "get", "retrieval.top_k")
	require.NoError(t, err)
	assert.Equal(t, "8\n", out)

	out, err = execute(t, "config", "get", "embedding.api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-a...ijkl\n", out)

	out, err = execute(t, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ingest.patterns = *.md,*.txt")
	assert.Contains(t, out, "retrieval.top_k = 8")
	assert.NotContains(t, out, "sk-abcdefghijkl")

	_, err = execute(t, "config", "get", "missing.key")
	assert.ErrorContains(t, err, "is not set")

	out, err = execute(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, ":memory:\n", out)
}

func TestConfigSet_FileStoreWarnsOnInvalidConfig(t *testing.T) {
	prevStore, prevFile := configStore, cfgFile
	defer func() { configStore, cfgFile = prevStore, prevFile }()
	configStore = nil
	cfgFile = filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "--config", cfgFile, "config", "set", "retrieval.top_k", "0")

	require.NoError(t, err)
	assert.Contains(t, out, "Set retrieval.top_k = 0")
	assert.Contains(t, out, "warning:")

	out, err = execute(t, "--config", cfgFile, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, cfgFile)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"false", false},
		{"42", int64(42)},
		{"2.5", 2.5},
		{"a,b", []string{"a", "b"}},
		{"*.md, ,*.txt", []string{"*.md", "*.txt"}},
		{"ollama", "ollama"},
		{"TRUE", "TRUE"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestMasking(t *testing.T) {
	assert.Equal(t, "(not set)", maskAPIKey(""))
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "sk-1...5678", maskAPIKey("sk-12345678"))

	assert.Equal(t, "postgres://rag:****@db:5432/rag", maskDSN("postgres://rag:secret@db:5432/rag"))
	assert.Equal(t, "postgres://rag@db/rag", maskDSN("postgres://rag@db/rag"))
	assert.Equal(t, "host=db user=rag", maskDSN("host=db user=rag"))
}
