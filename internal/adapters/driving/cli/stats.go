package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	statsJSON bool
	purgeYes  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector memory statistics",
	RunE:  runStats,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every chunk in the vector memory",
	Long:  `Removes all stored chunks. Asks for confirmation unless --yes is given.`,
	RunE:  runPurge,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	purgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(purgeCmd)
}

type statsOutput struct {
	Chunks     int64  `json:"chunks"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model,omitempty"`
	Backend    string `json:"backend,omitempty"`
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	if err := ensureServices(ctx); err != nil {
		return err
	}

	n, err := vectorMemory.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}
	out := statsOutput{Chunks: n, Dimensions: vectorMemory.Dimensions()}
	if embedder != nil {
		out.Model = embedder.ModelName()
	}
	if appConfig != nil {
		out.Backend = appConfig.Storage.Backend
	}

	if statsJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title("Vector Memory"))
	cmd.Printf("  Chunks:     %d\n", out.Chunks)
	cmd.Printf("  Dimensions: %d\n", out.Dimensions)
	if out.Model != "" {
		cmd.Printf("  Model:      %s\n", out.Model)
	}
	if out.Backend != "" {
		cmd.Printf("  Backend:    %s\n", out.Backend)
	}
	return nil
}

func runPurge(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	if err := ensureServices(ctx); err != nil {
		return err
	}

	if !purgeYes {
		cmd.Print("Delete every stored chunk? [y/N]: ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	if err := vectorMemory.Purge(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	cmd.Println(newStyles(cmd.OutOrStdout()).Success("Vector memory purged."))
	return nil
}
