package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/knowledge"
)

// textKeyScheme prefixes generated keys for ingested text.
const textKeyScheme = "text://"

// ingestFlags are the chunking flags shared by the ingest commands.
type ingestFlags struct {
	chunkSize    int
	chunkOverlap int
	force        bool
	noNormalize  bool
	quiet        bool
	metadata     map[string]string
}

func (f *ingestFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", 0, "maximum characters per chunk (default from config)")
	cmd.Flags().IntVar(&f.chunkOverlap, "chunk-overlap", -1, "characters shared by adjacent chunks (default from config)")
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "re-embed even when content is unchanged")
	cmd.Flags().BoolVar(&f.noNormalize, "no-normalize", false, "keep whitespace of supplied text as is")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print progress")
	cmd.Flags().StringToStringVarP(&f.metadata, "meta", "m", nil, "metadata attached to every chunk (key=value)")
}

// reset restores flag defaults between executions of the same command.
func (f *ingestFlags) reset() {
	*f = ingestFlags{chunkOverlap: -1, metadata: map[string]string{}}
}

// options layers the flags over the configured defaults.
func (f *ingestFlags) options() *domain.IngestOptions {
	opts := domain.DefaultIngestOptions()
	if appConfig != nil {
		opts = appConfig.IngestOptions()
	}
	if f.chunkSize > 0 {
		opts.ChunkSize = f.chunkSize
	}
	if f.chunkOverlap >= 0 {
		opts.ChunkOverlap = f.chunkOverlap
	}
	if f.force {
		opts.SkipIfUnchanged = false
	}
	if f.noNormalize {
		opts.NormalizeWhitespace = false
	}
	if len(f.metadata) > 0 {
		opts.DefaultMetadata = make(domain.Metadata, len(f.metadata))
		for k, v := range f.metadata {
			opts.DefaultMetadata[k] = v
		}
	}
	return &opts
}

// progress returns a sink writing to the command's stderr, or nil when quiet.
func (f *ingestFlags) progress(cmd *cobra.Command) driven.ProgressSink {
	if f.quiet {
		return nil
	}
	st := newStyles(cmd.ErrOrStderr())
	return driven.ProgressFunc(func(msg string) {
		fmt.Fprintln(cmd.ErrOrStderr(), st.Muted(msg))
	})
}

var (
	ingestFileFlags   ingestFlags
	ingestFolderFlags ingestFlags
	ingestTextFlags   ingestFlags
	ingestPackFlags   ingestFlags
	reindexFlags      ingestFlags

	ingestPatterns    []string
	ingestNoRecursive bool
	ingestTextKey     string
	ingestTextName    string
	ingestPackName    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index documents into the vector memory",
	Long: `Extract, split, embed and store documents.

Unchanged documents are skipped unless --force is given. Ingesting changed
content of an existing document leaves chunks that are no longer produced;
use "reindex" to prune them.`,
}

var ingestFileCmd = &cobra.Command{
	Use:   "file [path...]",
	Short: "Ingest one or more files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngestFile,
}

var ingestFolderCmd = &cobra.Command{
	Use:   "folder [dir]",
	Short: "Ingest every matching file in a folder",
	Long: `Walks the folder and ingests every file whose name matches a pattern.
Per-file failures are reported and do not stop the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestFolder,
}

var ingestTextCmd = &cobra.Command{
	Use:   "text [text]",
	Short: "Ingest text from an argument or stdin",
	Long: `Ingests the given text, or standard input when no argument or "-" is given.
The document key defaults to a generated text://<uuid>.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngestText,
}

var ingestPackCmd = &cobra.Command{
	Use:   "pack [dir]",
	Short: "Ingest a knowledge pack directory",
	Long: `Ingests every text and Markdown file of a directory as a knowledge pack.
Documents are keyed pack://<name>/<relative path>.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestPack,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex [path...]",
	Short: "Re-embed files and prune stale chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReindex,
}

var removeCmd = &cobra.Command{
	Use:   "remove [document-key...]",
	Short: "Delete every chunk of the given documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemove,
}

func init() {
	ingestFileFlags.register(ingestFileCmd)
	ingestFolderFlags.register(ingestFolderCmd)
	ingestTextFlags.register(ingestTextCmd)
	ingestPackFlags.register(ingestPackCmd)
	reindexFlags.register(reindexCmd)

	ingestFolderCmd.Flags().StringSliceVarP(&ingestPatterns, "pattern", "p", nil,
		"file name patterns (default from config, *.txt *.md *.pdf)")
	ingestFolderCmd.Flags().BoolVar(&ingestNoRecursive, "no-recursive", false, "do not descend into subfolders")
	ingestTextCmd.Flags().StringVar(&ingestTextKey, "key", "", "document key (default text://<uuid>)")
	ingestTextCmd.Flags().StringVar(&ingestTextName, "name", "", "display name")
	ingestPackCmd.Flags().StringVar(&ingestPackName, "name", "", "pack name (default: directory name)")

	ingestCmd.AddCommand(ingestFileCmd)
	ingestCmd.AddCommand(ingestFolderCmd)
	ingestCmd.AddCommand(ingestTextCmd)
	ingestCmd.AddCommand(ingestPackCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(removeCmd)
}

func runIngestFile(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	if err := ensureServices(ctx); err != nil {
		return err
	}

	opts := ingestFileFlags.options()
	progress := ingestFileFlags.progress(cmd)
	st := newStyles(cmd.OutOrStdout())
	failed := 0
	for _, path := range args {
		res, err := ingestionService.Ingest(ctx, path, opts, progress)
		if err != nil {
			failed++
			cmd.Printf("%s %s: %v\n", st.Failure("failed"), path, err)
			continue
		}
		printResult(cmd, st, res)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	if err := ensureServices(ctx); err != nil {
		return err
	}

	opts := reindexFlags.options()
	progress := reindexFlags.progress(cmd)
	st := newStyles(cmd.OutOrStdout())
	failed := 0
	for _, path := range args {
		res, err := ingestionService.Reindex(ctx, path, opts, progress)
		if err != nil {
			failed++
			cmd.Printf("%s %s: %v\n", st.Failure("failed"), path, err)
			continue
		}
		printResult(cmd, st, res)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func runIngestFolder(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	if err := ensureServices(ctx); err != nil {
		return err
	}

	folderOpts := domain.DefaultFolderOptions()
	if appConfig != nil {
		folderOpts = appConfig.FolderOptions()
	}
	if len(ingestPatterns) > 0 {
		folderOpts.Patterns = ingestPatterns
	}
	if ingestNoRecursive {
		folderOpts.Recursive = false
	}

	report, err := ingestionService.IngestFolder(ctx, args[0], folderOpts,
		ingestFolderFlags.options(), ingestFolderFlags.progress(cmd))
	if report != nil {
		printReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("ingest folder failed: %w", err)
	}
	return nil
}

func runIngestText(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	if err := ensureServices(ctx); err != nil {
		return err
	}

	var text string
	if len(args) == 1 && args[0] != "-" {
		text = args[0]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	key := strings.TrimSpace(ingestTextKey)
	if key == "" {
		key = textKeyScheme + uuid.NewString()
	}
	doc := domain.DocumentReference{Key: key, DisplayName: ingestTextName, ContentType: "text/plain"}

	res, err := ingestionService.IngestText(ctx, doc, text, ingestTextFlags.options(), ingestTextFlags.progress(cmd))
	if err != nil {
		return fmt.Errorf("ingest text failed: %w", err)
	}
	printResult(cmd, newStyles(cmd.OutOrStdout()), res)
	return nil
}

func runIngestPack(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	if err := ensureServices(ctx); err != nil {
		return err
	}

	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}
	name := ingestPackName
	if name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		name = filepath.Base(abs)
	}

	docs, err := knowledge.Load(os.DirFS(dir), name)
	if err != nil {
		return fmt.Errorf("loading pack: %w", err)
	}
	report, err := ingestionService.IngestPack(ctx, name, docs, ingestPackFlags.options(), ingestPackFlags.progress(cmd))
	if report != nil {
		printReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("ingest pack failed: %w", err)
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	if err := ensureServices(ctx); err != nil {
		return err
	}

	st := newStyles(cmd.OutOrStdout())
	for _, arg := range args {
		key := arg
		if strings.TrimSpace(arg) != "" {
			key = domain.DocumentKeyFor(arg)
		}
		if vectorMemory != nil && strings.TrimSpace(key) != "" {
			ids, err := vectorMemory.ChunkIDs(ctx, key)
			if err != nil {
				return fmt.Errorf("remove %s failed: %w", key, err)
			}
			if len(ids) == 0 {
				cmd.Printf("%s %s (nothing stored)\n", st.Warning("skipped"), key)
				continue
			}
		}
		if err := ingestionService.Remove(ctx, key); err != nil {
			return fmt.Errorf("remove %s failed: %w", key, err)
		}
		cmd.Printf("%s %s\n", st.Success("removed"), key)
	}
	return nil
}

func printResult(cmd *cobra.Command, st *styles, res *domain.IngestResult) {
	status := string(res.Status)
	switch res.Status {
	case domain.IngestIndexed:
		status = st.Success(status)
	case domain.IngestUnchanged:
		status = st.Muted(status)
	default:
		status = st.Warning(status)
	}
	cmd.Printf("%s %s (%d chunks", status, res.Document.Key, res.Chunks)
	if res.Pruned > 0 {
		cmd.Printf(", %d pruned", res.Pruned)
	}
	cmd.Println(")")
}

func printReport(cmd *cobra.Command, report *domain.FolderReport) {
	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.Title(report.Folder))
	cmd.Printf("  Matched:   %d\n", report.Matched)
	cmd.Printf("  Indexed:   %d\n", report.Indexed)
	cmd.Printf("  Unchanged: %d\n", report.Unchanged)
	cmd.Printf("  Skipped:   %d\n", report.Skipped)
	cmd.Printf("  Failed:    %d\n", len(report.Failed))
	for _, f := range report.Failed {
		cmd.Printf("    %s %s: %v\n", st.Failure("x"), f.Path, f.Err)
	}
}
