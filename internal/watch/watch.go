// Package watch re-triggers screening when documents appear or change in
// watched folders or when watched documents are rewritten.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"cvscreen/internal/errors"
	"cvscreen/internal/utils"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = time.Second

// ChangeFunc is called once per quiet period with the documents that changed
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher coalesces document events under a set of folders
type Watcher struct {
	roots      []string
	recursive  bool
	skipHidden bool
	debounce   time.Duration
	logger     *errors.Logger

	fsWatcher *fsnotify.Watcher
	// folders whose every document is reported
	dirs map[string]struct{}
	// documents named directly; their parent folder is watched for them only
	files map[string]struct{}
}

// Options configures a Watcher
type Options struct {
	Recursive  bool
	SkipHidden bool
	Debounce   time.Duration
}

// New creates a watcher over roots. A root may be a folder or a single
// document; for a document only its own changes are reported.
func New(roots []string, opts Options, logger *errors.Logger) (*Watcher, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no folders or documents to watch")
	}
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		roots:      roots,
		recursive:  opts.Recursive,
		skipHidden: opts.SkipHidden,
		debounce:   opts.Debounce,
		logger:     logger,
		fsWatcher:  fsWatcher,
		dirs:       make(map[string]struct{}),
		files:      make(map[string]struct{}),
	}

	for _, root := range roots {
		if err := w.addRoot(root); err != nil {
			w.close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return w.addFile(root)
	}

	if !w.recursive {
		return w.addDir(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.skipHidden && utils.IsHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.addDir(path)
	})
}

func (w *Watcher) addDir(path string) error {
	if err := w.fsWatcher.Add(path); err != nil {
		return fmt.Errorf("cannot watch %s: %w", path, err)
	}
	w.dirs[filepath.Clean(path)] = struct{}{}
	return nil
}

func (w *Watcher) addFile(path string) error {
	if !utils.IsDocumentFile(path) {
		return fmt.Errorf("cannot watch %s: not a .pdf or .docx document", path)
	}
	if err := w.fsWatcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("cannot watch %s: %w", path, err)
	}
	w.files[filepath.Clean(path)] = struct{}{}
	return nil
}

// Run delivers debounced changes to onChange until ctx is done. onChange
// runs on the watching goroutine, so events arriving meanwhile are held
// until it returns.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	defer w.close()

	w.logger.Info("Watching for document changes",
		"roots", w.roots,
		"recursive", w.recursive,
		"debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(event) {
				pending[event.Name] = struct{}{}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "error", err.Error())

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			clear(pending)
			slices.Sort(changed)

			w.logger.Info("Documents changed", "count", len(changed))
			onChange(ctx, changed)
		}
	}
}

// handleEvent tracks new subfolders and reports whether event concerns a
// document worth rescreening
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if w.skipHidden && utils.IsHidden(name) {
		return false
	}

	path := filepath.Clean(event.Name)
	if _, ok := w.dirs[filepath.Dir(path)]; !ok {
		_, named := w.files[path]
		return named && isContentChange(event)
	}

	if w.recursive && event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDir(event.Name); err != nil {
				w.logger.Warn("Failed to watch new folder", "folder", event.Name, "error", err.Error())
			}
			return false
		}
	}

	if !utils.IsDocumentFile(name) {
		return false
	}
	return isContentChange(event)
}

func isContentChange(event fsnotify.Event) bool {
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}

func (w *Watcher) close() {
	if err := w.fsWatcher.Close(); err != nil {
		w.logger.Warn("Failed to close file watcher", "error", err.Error())
	}
}
