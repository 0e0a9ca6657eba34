package trigger

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher runs a sync after files matching a glob are created, written or renamed. Bursts of
// events within the debounce window cause one run.
type Watcher struct {
	pattern  string
	base     string
	debounce time.Duration
	run      RunFunc
	logger   ectologger.Logger
	ready    chan struct{}
}

func NewWatcher(pattern string, debounce time.Duration, run RunFunc, logger ectologger.Logger) (*Watcher, error) {
	if pattern == "" {
		return nil, fmt.Errorf("a file pattern is required to watch")
	}
	pattern = filepath.Clean(pattern)
	if !doublestar.ValidatePathPattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
	return &Watcher{
		pattern:  pattern,
		base:     filepath.FromSlash(base),
		debounce: debounce,
		run:      run,
		logger:   logger,
		ready:    make(chan struct{}),
	}, nil
}

// Ready is closed once the directories are being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run blocks until ctx is cancelled. Runs happen on the watch loop, one at a time; events that
// arrive during a run schedule another.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.base); err != nil {
		return err
	}
	close(w.ready)
	w.logger.Infof("Watching %s for changes", w.pattern)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.handle(watcher, event) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.WithError(err).Error("File watcher error")

		case <-timer.C:
			w.logger.WithContext(ctx).Info("Input changed, running sync")
			if err := w.run(ctx); err != nil {
				w.logger.WithContext(ctx).WithError(err).Error("Sync after file change failed")
			}
		}
	}
}

// handle reports whether the event touches a matching file. New directories are watched too.
func (w *Watcher) handle(watcher *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(watcher, event.Name); err != nil {
				w.logger.WithError(err).Errorf("Failed to watch new directory %s", event.Name)
			}
			return false
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}

	matched, err := doublestar.PathMatch(w.pattern, filepath.Clean(event.Name))
	return err == nil && matched
}

func (w *Watcher) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
