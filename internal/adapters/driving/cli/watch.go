package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/watch"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	watchFlags       ingestFlags
	watchPatterns    []string
	watchNoRecursive bool
	watchInitial     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep the vector memory in sync with a folder",
	Long: `Watches a folder and re-ingests files as they are created or modified.
Deleted or renamed files are removed from the vector memory.

Use --initial to ingest the folder once before watching. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchFlags.register(watchCmd)
	watchCmd.Flags().StringSliceVarP(&watchPatterns, "pattern", "p", nil, "file name patterns (default from config)")
	watchCmd.Flags().BoolVar(&watchNoRecursive, "no-recursive", false, "do not watch subfolders")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "ingest the folder before watching")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	if err := ensureServices(ctx); err != nil {
		return err
	}

	folderOpts := domain.DefaultFolderOptions()
	if appConfig != nil {
		folderOpts = appConfig.FolderOptions()
	}
	if len(watchPatterns) > 0 {
		folderOpts.Patterns = watchPatterns
	}
	if watchNoRecursive {
		folderOpts.Recursive = false
	}
	opts := watchFlags.options()

	w, err := watch.New(ingestionService, args[0], folderOpts, opts)
	if err != nil {
		return err
	}

	if watchInitial {
		report, err := ingestionService.IngestFolder(ctx, w.Root(), folderOpts, opts, watchFlags.progress(cmd))
		if report != nil {
			printReport(cmd, report)
		}
		if err != nil {
			return err
		}
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", st.Name(w.Root()))
	return w.Run(ctx, func(out watch.Outcome) {
		switch {
		case out.Err != nil:
			cmd.Printf("%s %s: %v\n", st.Failure("failed"), out.Change.Path, out.Err)
		case out.Change.Type == watch.ChangeDelete:
			cmd.Printf("%s %s\n", st.Warning("removed"), out.Change.Path)
		case out.Result != nil:
			printResult(cmd, st, out.Result)
		}
	})
}
