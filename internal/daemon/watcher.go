package daemon

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// sourceExtensions are the files whose change triggers a rebuild. No build
// output matches.
var sourceExtensions = map[string]struct{}{
	".tex": {}, ".ltx": {}, ".bib": {}, ".sty": {}, ".cls": {}, ".bst": {},
	".bbx": {}, ".cbx": {}, ".def": {}, ".cfg": {}, ".tikz": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".eps": {}, ".svg": {},
}

// Watcher reports changes of LaTeX sources below a directory.
type Watcher struct {
	dir      string
	fsw      *fsnotify.Watcher
	onChange func(path string)
}

// NewWatcher watches dir and its subdirectories. Hidden directories are skipped.
func NewWatcher(dir string, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	w := &Watcher{dir: dir, fsw: fsw, onChange: onChange}
	if err := w.addTree(dir); err != nil {
		_ = fsw.Close()
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to watch source directory").
			WithContext("dir", dir).Build()
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if path == root {
				return err
			}
			slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// Run dispatches events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	slog.Info("Watching sources", logfields.Path(w.dir))
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("File watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if !strings.HasPrefix(filepath.Base(ev.Name), ".") {
				_ = w.addTree(ev.Name)
			}
			return
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}
	if !isSource(ev.Name) {
		return
	}
	slog.Debug("Source change detected", logfields.File(ev.Name), slog.String("op", ev.Op.String()))
	w.onChange(ev.Name)
}

// isSource reports whether path names a LaTeX source the build depends on.
func isSource(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	_, ok := sourceExtensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
