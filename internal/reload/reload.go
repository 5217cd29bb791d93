// Package reload watches configuration files and triggers a reload after
// writes settle.
package reload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is the quiet period after the last write before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Reloadable is anything that can re-read its configuration.
type Reloadable interface {
	Reload() error
}

// Watcher watches files for changes and calls Reload on the target.
type Watcher struct {
	watcher  *fsnotify.Watcher
	target   Reloadable
	paths    map[string]bool
	debounce time.Duration

	mu      sync.Mutex
	reloads int
}

// New creates a watcher for the given paths. Empty and missing paths are
// skipped. The parent directory is watched so editors that replace files
// on save are still seen.
func New(target Reloadable, paths []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		target:   target,
		paths:    make(map[string]bool),
		debounce: DefaultDebounce,
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		w.paths[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
		}
		dirs[dir] = true
	}
	return w, nil
}

// Watching returns the number of files being watched.
func (w *Watcher) Watching() int { return len(w.paths) }

// Reloads returns how many reloads have run.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Run watches for file changes until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.paths[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()

	if err := w.target.Reload(); err != nil {
		log.Error().Err(err).Msg("hot-reload failed")
		return
	}
	log.Info().Msg("hot-reload: configuration reloaded")
}
