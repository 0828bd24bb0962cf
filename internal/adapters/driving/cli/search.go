package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

var (
	searchTopK    int
	searchJSON    bool
	searchContext bool
	searchFilter  map[string]string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve passages similar to a query",
	Long: `Embeds the query and returns the most similar chunks from the vector memory.
Duplicate passages of the same document are collapsed to the best-scoring one.

Filters match document_key, content_type or any metadata field exactly:
  sercha-rag search "refund window" --filter content_type=text/markdown`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "maximum number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchContext, "context", false, "output a prompt-ready context block")
	searchCmd.Flags().StringToStringVar(&searchFilter, "filter", nil, "exact-match filter (key=value)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	ctx := commandContext(cmd)
	if err := ensureServices(ctx); err != nil {
		return err
	}

	topK := searchTopK
	if topK <= 0 {
		topK = 5
		if appConfig != nil {
			topK = appConfig.Retrieval.TopK
		}
	}

	var filter domain.Filter
	if len(searchFilter) > 0 {
		filter = make(domain.Filter, len(searchFilter))
		for k, v := range searchFilter {
			filter[k] = v
		}
	}

	hits, err := retriever.Retrieve(ctx, query, topK, filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	switch {
	case searchJSON:
		return outputSearchJSON(cmd, hits)
	case searchContext:
		cmd.Println(services.FormatHits(hits))
		return nil
	default:
		return outputSearchTable(cmd, hits)
	}
}

func outputSearchJSON(cmd *cobra.Command, hits []domain.SearchHit) error {
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, hits []domain.SearchHit) error {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title("Results:"))
	cmd.Println()
	for i := range hits {
		// Format: [N] Name (Score)
		cmd.Printf("  [%d] %s %s\n", i+1, st.Name(hits[i].Document.Name()),
			st.Muted(fmt.Sprintf("(%.3f)", hits[i].Score)))
		if hits[i].Document.Key != hits[i].Document.Name() {
			cmd.Printf("      %s\n", st.Muted(hits[i].Document.Key))
		}
		cmd.Printf("      %s\n", snippet(hits[i].Text, 240))
		cmd.Println()
	}
	return nil
}

// snippet collapses whitespace and cuts text to at most limit runes.
func snippet(text string, limit int) string {
	s := strings.Join(strings.Fields(text), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "..."
}
