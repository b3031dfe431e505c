// Package watch re-runs scenarios when feature files below a root change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"scenctl/internal/feature"
	"scenctl/pkg/logging"
)

const subsystem = "Watch"

// DefaultDebounce is the quiet period after the last change before a re-run
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a scenario root (a directory tree or a single feature
// file) for changes to feature files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	file     string
	debounce time.Duration
}

// New creates a watcher for root. Directories are watched recursively,
// skipping hidden ones; a file root watches only that file.
func New(root string, debounce time.Duration) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat watch root %q: %w", root, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{watcher: watcher, root: root, debounce: debounce}
	if !info.IsDir() {
		// Editors replace files on save, so the parent directory is watched
		w.file = filepath.Clean(root)
		if err := watcher.Add(filepath.Dir(w.file)); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", root, err)
		}
		return w, nil
	}

	if err := w.addTree(root); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

// addTree adds dir and every non-hidden directory below it
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %q: %w", path, err)
		}
		logging.Debug(subsystem, "Watching %s", path)
		return nil
	})
}

// relevant reports whether an event should trigger a re-run
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}
	if w.file != "" {
		return filepath.Clean(event.Name) == w.file
	}
	return feature.IsFeatureFile(event.Name)
}

// Run calls onChange after feature files changed and the debounce period
// passed without further changes. Calls never overlap. Run blocks until ctx
// is cancelled and then closes the watcher.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context)) error {
	defer w.watcher.Close()

	trigger := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-trigger:
			logging.Info(subsystem, "Feature files changed, re-running scenarios")
			onChange(ctx)

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.file == "" && event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
					if err := w.addTree(event.Name); err != nil {
						logging.Warn(subsystem, "Could not watch new directory %s: %v", event.Name, err)
					}
				}
			}
			if !w.relevant(event) {
				continue
			}
			logging.Debug(subsystem, "Change detected: %s", event)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error(subsystem, err, "File watcher error")
		}
	}
}

// Close stops watching without running
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
