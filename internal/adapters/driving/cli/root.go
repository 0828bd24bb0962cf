// Package cli provides the sercha-rag command line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/app"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

var (
	cfgFile string
	verbose bool
)

// Services used by the commands. They are built from the configuration on
// first use unless already set (tests inject mocks).
var (
	appConfig        *file.Config
	ingestionService driving.IngestionService
	retriever        driving.Retriever
	vectorMemory     driven.VectorMemory
	embedder         driven.EmbeddingGenerator
	configStore      driven.ConfigStore

	closeServices = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Local retrieval-augmented generation pipeline",
	Long: `sercha-rag indexes local documents into a vector memory and retrieves the
passages most relevant to a question.

Documents are extracted (text, Markdown, PDF), split into overlapping chunks,
embedded and stored. Search embeds the query and returns the closest chunks,
ready to paste into a prompt or serve over MCP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.sercha-rag/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command and releases any services it built.
func Execute(ctx context.Context) error {
	defer func() {
		if err := closeServices(); err != nil {
			logger.Warn("Closing services: %v", err)
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig loads the configuration once per process.
func loadConfig() (*file.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	cfg, err := file.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	appConfig = cfg
	return cfg, nil
}

// ensureServices builds the pipeline from the configuration when no
// services have been set.
func ensureServices(ctx context.Context) error {
	if ingestionService != nil && retriever != nil && vectorMemory != nil {
		return nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	ingestionService = a.Ingestion
	retriever = a.Retrieval
	vectorMemory = a.Memory
	embedder = a.Embedder
	closeServices = a.Close
	return nil
}

// ensureConfigStore opens the dotted-key view of the config file.
func ensureConfigStore() (driven.ConfigStore, error) {
	if configStore != nil {
		return configStore, nil
	}
	store, err := file.NewConfigStore(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	configStore = store
	return store, nil
}

// commandContext returns the command context, or Background when the command
// was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
