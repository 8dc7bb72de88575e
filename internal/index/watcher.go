package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vibhup/docrag/internal/errors"
)

// DefaultDebounceWindow coalesces rapid saves of the same file so a
// document is re-indexed once, not once per write syscall.
const DefaultDebounceWindow = 500 * time.Millisecond

// Watcher re-indexes markdown files as they change on disk.
type Watcher struct {
	indexer *Indexer
	fs      *fsnotify.Watcher
	window  time.Duration
	logger  *slog.Logger
}

// NewWatcher creates a watcher over the indexer's documentation
// directory.
func NewWatcher(indexer *Indexer, window time.Duration, logger *slog.Logger) (*Watcher, error) {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.InternalError("failed to create file watcher", err)
	}
	// fsnotify watches are not recursive; every subdirectory needs its
	// own watch, matching the directory walk the indexer performs.
	if err := watchTree(fsw, indexer.config.DocsDir); err != nil {
		_ = fsw.Close()
		return nil, errors.New(errors.ErrCodeFileNotFound, "failed to watch documentation directory", err)
	}

	return &Watcher{
		indexer: indexer,
		fs:      fsw,
		window:  window,
		logger:  logger,
	}, nil
}

// watchTree adds root and every directory below it to the watcher.
func watchTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fsw.Add(path)
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// watchNewDir starts watching a directory created under the watched tree
// and returns the markdown files already inside it.
func (w *Watcher) watchNewDir(dir string) []string {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fs.Add(path)
		}
		if IsMarkdown(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("failed to watch new directory",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
	}
	return found
}

// Run watches until the context is cancelled. Changed files are batched
// within the debounce window and re-indexed; a document that fails to
// index is logged and the watcher keeps running.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}

			changed := []string{ev.Name}
			if !IsMarkdown(ev.Name) {
				if ev.Op&fsnotify.Create == 0 || !isDir(ev.Name) {
					continue
				}
				// A new subdirectory: watch it and pick up any markdown
				// that landed before the watch attached.
				changed = w.watchNewDir(ev.Name)
			}

			for _, path := range changed {
				pending[path] = struct{}{}
			}
			if len(pending) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.window)
				timerC = timer.C
			} else {
				timer.Reset(w.window)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-timerC:
			batch := pending
			pending = make(map[string]struct{})
			timer = nil
			timerC = nil

			for path := range batch {
				if _, err := w.indexer.IndexDocument(ctx, path); err != nil {
					w.logger.Error("re-index failed",
						slog.String("file", path),
						slog.String("error", err.Error()))
					continue
				}
				w.logger.Info("re-indexed", slog.String("file", path))
			}
		}
	}
}
