package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Environment variables that override file settings.
const (
	EnvEmbeddingAPIKey = "SERCHA_RAG_EMBEDDING_API_KEY"
	EnvStorageDSN      = "SERCHA_RAG_STORAGE_DSN"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Embedding providers.
const (
	ProviderHashing = "hashing"
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
)

// Config is the typed application configuration.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Ingest    IngestConfig    `toml:"ingest"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	MCP       MCPConfig       `toml:"mcp"`
}

// StorageConfig selects and configures the vector store.
type StorageConfig struct {
	Backend string `toml:"backend" validate:"oneof=sqlite postgres memory"`
	Path    string `toml:"path"`
	DSN     string `toml:"dsn" validate:"required_if=Backend postgres"`
	Table   string `toml:"table"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider          string  `toml:"provider" validate:"oneof=hashing ollama openai gemini"`
	Model             string  `toml:"model"`
	BaseURL           string  `toml:"base_url" validate:"omitempty,url"`
	APIKey            string  `toml:"api_key"`
	Dimensions        int     `toml:"dimensions" validate:"gte=0"`
	TimeoutSeconds    int     `toml:"timeout_seconds" validate:"gte=0"`
	CacheSize         int     `toml:"cache_size" validate:"gte=0"`
	CacheTTLSeconds   int     `toml:"cache_ttl_seconds" validate:"gte=0"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gte=0"`
	BurstSize         int     `toml:"burst_size" validate:"gte=0"`
}

// IngestConfig holds chunking and folder defaults.
type IngestConfig struct {
	ChunkSize           int      `toml:"chunk_size" validate:"gte=0"`
	ChunkOverlap        int      `toml:"chunk_overlap" validate:"gte=0"`
	SkipIfUnchanged     bool     `toml:"skip_if_unchanged"`
	NormalizeWhitespace bool     `toml:"normalize_whitespace"`
	Patterns            []string `toml:"patterns"`
	Recursive           bool     `toml:"recursive"`
	TextExtensions      []string `toml:"text_extensions" validate:"dive,startswith=."`
}

// RetrievalConfig holds search defaults.
type RetrievalConfig struct {
	TopK           int  `toml:"top_k" validate:"gte=1"`
	EnableDedup    bool `toml:"enable_dedup"`
	EnableTextTrim bool `toml:"enable_text_trim"`
}

// MCPConfig configures the MCP server.
type MCPConfig struct {
	Name string `toml:"name" validate:"required"`
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	ingest := domain.DefaultIngestOptions()
	folder := domain.DefaultFolderOptions()
	retrieve := domain.DefaultRetrieveOptions()
	return Config{
		Storage: StorageConfig{Backend: BackendSQLite},
		Embedding: EmbeddingConfig{
			Provider:       ProviderHashing,
			TimeoutSeconds: 60,
		},
		Ingest: IngestConfig{
			ChunkSize:           ingest.ChunkSize,
			ChunkOverlap:        ingest.ChunkOverlap,
			SkipIfUnchanged:     ingest.SkipIfUnchanged,
			NormalizeWhitespace: ingest.NormalizeWhitespace,
			Patterns:            append([]string(nil), folder.Patterns...),
			Recursive:           folder.Recursive,
		},
		Retrieval: RetrievalConfig{
			TopK:           5,
			EnableDedup:    retrieve.EnableDedup,
			EnableTextTrim: retrieve.EnableTextTrim,
		},
		MCP: MCPConfig{Name: "sercha-rag"},
	}
}

// DefaultDir returns ~/.sercha-rag.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sercha-rag"), nil
}

// DefaultPath returns ~/.sercha-rag/config.toml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads path over the defaults. An empty path means DefaultPath; a
// missing file is not an error. A .env file next to the config and one in
// the working directory are loaded without overriding the real environment,
// then SERCHA_RAG_* variables are applied and the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	for _, env := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		if err := godotenv.Load(env); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", env, err)
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidOptions, path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEmbeddingAPIKey); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv(EnvStorageDSN); v != "" {
		c.Storage.DSN = v
	}
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidOptions, strings.Join(msgs, "; "))
		}
		return err
	}
	if err := c.IngestOptions().Validate(); err != nil {
		return err
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderGemini:
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("%w: embedding provider %s needs an API key (set %s)",
				domain.ErrInvalidOptions, c.Embedding.Provider, EnvEmbeddingAPIKey)
		}
	}
	return nil
}

// IngestOptions converts the [ingest] section.
func (c *Config) IngestOptions() domain.IngestOptions {
	return domain.IngestOptions{
		ChunkSize:           c.Ingest.ChunkSize,
		ChunkOverlap:        c.Ingest.ChunkOverlap,
		SkipIfUnchanged:     c.Ingest.SkipIfUnchanged,
		NormalizeWhitespace: c.Ingest.NormalizeWhitespace,
	}
}

// FolderOptions converts the folder fields of [ingest].
func (c *Config) FolderOptions() domain.FolderOptions {
	return domain.FolderOptions{
		Patterns:  append([]string(nil), c.Ingest.Patterns...),
		Recursive: c.Ingest.Recursive,
	}
}

// RetrieveOptions converts the [retrieval] section.
func (c *Config) RetrieveOptions() domain.RetrieveOptions {
	return domain.RetrieveOptions{
		EnableDedup:    c.Retrieval.EnableDedup,
		EnableTextTrim: c.Retrieval.EnableTextTrim,
	}
}

// EmbeddingTimeout returns the provider request timeout.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSeconds) * time.Second
}

// CacheTTL returns the embedding cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Embedding.CacheTTLSeconds) * time.Second
}

// Save writes cfg to path with restricted permissions.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
