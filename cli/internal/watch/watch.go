// Package watch reruns a command when its input files change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is how long the watcher waits for writes to settle
var Debounce = 300 * time.Millisecond

// Watcher watches files for changes
type Watcher struct {
	files    map[string]bool
	callback func() error
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher calling callback after any of files is
// written
func NewWatcher(files []string, callback func() error) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{files: make(map[string]bool), callback: callback, watcher: watcher}
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		w.files[abs] = true
		// editors replace files, so the directory is watched
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch directory: %w", err)
		}
	}
	return w, nil
}

// Run calls the callback once, then after every change, until ctx ends.
// Callback errors are reported and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	if err := w.callback(); err != nil {
		fmt.Fprintf(os.Stderr, "Watch callback error: %v\n", err)
	}

	timer := time.NewTimer(Debounce)
	timer.Stop()
	var pending <-chan time.Time
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if path, err := filepath.Abs(event.Name); err == nil && w.files[path] {
				timer.Reset(Debounce)
				pending = timer.C
			}

		case <-pending:
			pending = nil
			if err := w.callback(); err != nil {
				fmt.Fprintf(os.Stderr, "Watch callback error: %v\n", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-ctx.Done():
			return nil
		}
	}
}
