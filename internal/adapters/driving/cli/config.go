package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and edit configuration",
	Long: `Show the effective configuration or edit config.toml by dotted key.

Keys follow the file sections, for example:
  sercha-rag config set embedding.provider ollama
  sercha-rag config set retrieval.top_k 8
  sercha-rag config set ingest.patterns "*.md,*.txt"`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a value stored in the config file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a value in the config file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the keys stored in the config file",
	RunE:  runConfigList,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st := newStyles(cmd.OutOrStdout())

	cmd.Println(st.Title("[Storage]"))
	cmd.Printf("  Backend: %s\n", cfg.Storage.Backend)
	switch cfg.Storage.Backend {
	case file.BackendSQLite:
		path := cfg.Storage.Path
		if path == "" {
			path = "(default)"
		}
		cmd.Printf("  Path: %s\n", path)
	case file.BackendPostgres:
		cmd.Printf("  DSN: %s\n", maskDSN(cfg.Storage.DSN))
		if cfg.Storage.Table != "" {
			cmd.Printf("  Table: %s\n", cfg.Storage.Table)
		}
	}
	cmd.Println()

	cmd.Println(st.Title("[Embedding]"))
	cmd.Printf("  Provider: %s\n", cfg.Embedding.Provider)
	if cfg.Embedding.Model != "" {
		cmd.Printf("  Model: %s\n", cfg.Embedding.Model)
	}
	if cfg.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", cfg.Embedding.BaseURL)
	}
	if cfg.Embedding.Provider == file.ProviderOpenAI || cfg.Embedding.Provider == file.ProviderGemini {
		cmd.Printf("  API Key: %s\n", maskAPIKey(cfg.Embedding.APIKey))
	}
	if cfg.Embedding.Dimensions > 0 {
		cmd.Printf("  Dimensions: %d\n", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.CacheSize > 0 {
		cmd.Printf("  Cache: %d entries, %ds TTL\n", cfg.Embedding.CacheSize, cfg.Embedding.CacheTTLSeconds)
	}
	if cfg.Embedding.RequestsPerSecond > 0 {
		cmd.Printf("  Rate limit: %g/s (burst %d)\n", cfg.Embedding.RequestsPerSecond, cfg.Embedding.BurstSize)
	}
	cmd.Println()

	cmd.Println(st.Title("[Ingest]"))
	cmd.Printf("  Chunk size: %d\n", cfg.Ingest.ChunkSize)
	cmd.Printf("  Chunk overlap: %d\n", cfg.Ingest.ChunkOverlap)
	cmd.Printf("  Skip if unchanged: %t\n", cfg.Ingest.SkipIfUnchanged)
	cmd.Printf("  Normalize whitespace: %t\n", cfg.Ingest.NormalizeWhitespace)
	cmd.Printf("  Patterns: %s\n", strings.Join(cfg.Ingest.Patterns, " "))
	cmd.Printf("  Recursive: %t\n", cfg.Ingest.Recursive)
	cmd.Println()

	cmd.Println(st.Title("[Retrieval]"))
	cmd.Printf("  Top K: %d\n", cfg.Retrieval.TopK)
	cmd.Printf("  Dedup: %t\n", cfg.Retrieval.EnableDedup)
	cmd.Printf("  Trim: %t\n", cfg.Retrieval.EnableTextTrim)
	cmd.Println()

	cmd.Println(st.Title("[MCP]"))
	cmd.Printf("  Name: %s\n", cfg.MCP.Name)
	if cfg.MCP.Port > 0 {
		cmd.Printf("  Port: %d\n", cfg.MCP.Port)
	} else {
		cmd.Println("  Transport: stdio")
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	store, err := ensureConfigStore()
	if err != nil {
		return err
	}
	val, ok := store.Get(args[0])
	if !ok {
		return fmt.Errorf("key %q is not set", args[0])
	}
	if strings.HasSuffix(args[0], "api_key") {
		cmd.Println(maskAPIKey(store.GetString(args[0])))
		return nil
	}
	cmd.Println(formatValue(val))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	store, err := ensureConfigStore()
	if err != nil {
		return err
	}
	key, value := args[0], parseValue(args[1])
	if err := store.Set(key, value); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	cmd.Printf("Set %s = %s\n", key, formatValue(value))

	// Report a broken file now rather than on the next command.
	if path := store.Path(); strings.HasSuffix(path, ".toml") {
		if _, err := file.Load(path); err != nil {
			cmd.Printf("%s %v\n", newStyles(cmd.OutOrStdout()).Warning("warning:"), err)
		}
	}
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	store, err := ensureConfigStore()
	if err != nil {
		return err
	}
	keys := store.Keys()
	if len(keys) == 0 {
		cmd.Println("No values set; defaults apply.")
		return nil
	}
	for _, k := range keys {
		val, _ := store.Get(k)
		if strings.HasSuffix(k, "api_key") {
			val = maskAPIKey(store.GetString(k))
		}
		cmd.Printf("%s = %s\n", k, formatValue(val))
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	store, err := ensureConfigStore()
	if err != nil {
		return err
	}
	cmd.Println(store.Path())
	return nil
}

// parseValue converts a command line value to the TOML type it looks like:
// bool, integer, float, comma-separated list, otherwise string.
func parseValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		return list
	}
	return s
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// maskDSN hides the password of a postgres URL.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":****" + dsn[at:]
	}
	return dsn
}
