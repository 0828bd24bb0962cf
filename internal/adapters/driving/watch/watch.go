// Package watch keeps the vector memory in sync with a folder by reacting to
// filesystem events.
//
// Create and write events re-ingest the file (unchanged content is skipped by
// the ingestion service). Remove and rename events delete the document,
// since the old path no longer exists.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watch: watcher closed")

// ChangeType classifies a filesystem change.
type ChangeType string

// Change types.
const (
	ChangeUpsert ChangeType = "upsert"
	ChangeDelete ChangeType = "delete"
)

// Change is one relevant event for a file under the root.
type Change struct {
	Type ChangeType

	// Path is absolute and equals the document key of the file.
	Path string
}

// Outcome reports what applying a Change did.
type Outcome struct {
	Change Change
	Result *domain.IngestResult
	Err    error
}

// Watcher watches a folder and applies changes through the ingestion service.
type Watcher struct {
	root       string
	folderOpts domain.FolderOptions
	opts       *domain.IngestOptions
	service    driving.IngestionService

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// New creates a watcher for root. Patterns and recursion follow folderOpts;
// opts are passed to every Ingest call.
func New(
	service driving.IngestionService, root string, folderOpts domain.FolderOptions, opts *domain.IngestOptions,
) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, root, err)
	}
	if len(folderOpts.Patterns) == 0 {
		folderOpts.Patterns = domain.DefaultFolderPatterns
	}
	for _, p := range folderOpts.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q", domain.ErrInvalidOptions, p)
		}
	}
	return &Watcher{
		root:       abs,
		folderOpts: folderOpts,
		opts:       opts,
		service:    service,
	}, nil
}

// Root returns the absolute watched folder.
func (w *Watcher) Root() string {
	return w.root
}

// Watch starts watching and returns a channel of relevant changes. The
// channel is closed when ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", w.root)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.addTree(fw, w.root); err != nil {
		fw.Close() //nolint:errcheck
		return nil, err
	}
	w.watcher = fw

	changes := make(chan Change)
	go w.loop(ctx, fw, changes)
	return changes, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, changes chan<- Change) {
	defer close(changes)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if w.folderOpts.Recursive && ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !w.hiddenBelowRoot(ev.Name) {
					if err := w.addTree(fw, ev.Name); err != nil {
						logger.Warn("Cannot watch %s: %v", ev.Name, err)
					}
				}
			}
			change := w.handleFsEvent(ev)
			if change == nil {
				continue
			}
			select {
			case changes <- *change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("Watch error: %v", err)
		}
	}
}

// addTree watches dir and, when recursive, every non-hidden subdirectory.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	if !w.folderOpts.Recursive {
		return fw.Add(dir)
	}
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}

// handleFsEvent maps a raw event to a Change, or nil when the event is
// irrelevant (directories, hidden files, unmatched names, chmod).
func (w *Watcher) handleFsEvent(ev fsnotify.Event) *Change {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || isHidden(rel) {
		return nil
	}
	if !w.folderOpts.Recursive && strings.ContainsRune(rel, filepath.Separator) {
		return nil
	}
	if !w.matches(filepath.Base(ev.Name)) {
		return nil
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return &Change{Type: ChangeDelete, Path: ev.Name}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		return &Change{Type: ChangeUpsert, Path: ev.Name}
	default:
		return nil
	}
}

func (w *Watcher) matches(name string) bool {
	for _, p := range w.folderOpts.Patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Apply runs one change through the ingestion service.
func (w *Watcher) Apply(ctx context.Context, change Change) Outcome {
	out := Outcome{Change: change}
	switch change.Type {
	case ChangeDelete:
		out.Err = w.service.Remove(ctx, change.Path)
	default:
		out.Result, out.Err = w.service.Ingest(ctx, change.Path, w.opts, nil)
	}
	return out
}

// Run watches until ctx is cancelled or the watcher is closed, applying every change and passing the
// outcome to report, which may be nil. Per-file failures do not stop the loop.
func (w *Watcher) Run(ctx context.Context, report func(Outcome)) error {
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	defer w.Close() //nolint:errcheck

	logger.Info("Watching %s", w.root)
	for change := range changes {
		out := w.Apply(ctx, change)
		if out.Err != nil {
			logger.Warn("Failed to apply %s %s: %v", change.Type, change.Path, out.Err)
		}
		if report != nil {
			report(out)
		}
	}
	return nil
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

// hiddenBelowRoot reports whether path has a hidden element after the
// root. Paths outside the root count as hidden.
func (w *Watcher) hiddenBelowRoot(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	return isHidden(rel)
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part != "" && part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
