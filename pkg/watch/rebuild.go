// Package watch reruns an index build whenever one of its input files
// changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/fsnotify.v1"

	"github.com/coolbeans/kgindex/pkg/logger"
)

// DefaultDebounce is how long the input must stay quiet before a rebuild.
const DefaultDebounce = 500 * time.Millisecond

// RebuildFunc runs one complete build.
type RebuildFunc func(ctx context.Context) error

// InputWatcher triggers rebuilds when watched files are written, created
// or replaced.
type InputWatcher struct {
	files    map[string]bool
	debounce time.Duration
	rebuild  RebuildFunc
	watcher  *fsnotify.Watcher
	rebuilds int
}

// NewInputWatcher starts watching the directories that hold paths. Watching
// directories rather than files keeps working when a file is replaced by a
// rename.
func NewInputWatcher(paths []string, debounce time.Duration, rebuild RebuildFunc) (*InputWatcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	inputWatcher := &InputWatcher{
		files:    make(map[string]bool),
		debounce: debounce,
		rebuild:  rebuild,
		watcher:  watcher,
	}

	directories := make(map[string]bool)
	for _, path := range paths {
		absolute, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
		inputWatcher.files[absolute] = true

		directory := filepath.Dir(absolute)
		if directories[directory] {
			continue
		}
		directories[directory] = true
		if err := watcher.Add(directory); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watching directory %s: %w", directory, err)
		}
	}

	return inputWatcher, nil
}

// Run handles file system events until ctx is done. Rebuild failures are
// logged and do not stop the loop.
func (w *InputWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug("Input changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.rebuilds++
			logger.Info("Rebuilding index", "rebuild", w.rebuilds)
			if err := w.rebuild(ctx); err != nil {
				logger.Error("Rebuild failed", "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error", "error", err)
		}
	}
}

func (w *InputWatcher) relevant(event fsnotify.Event) bool {
	absolute, err := filepath.Abs(event.Name)
	if err != nil || !w.files[absolute] {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}
