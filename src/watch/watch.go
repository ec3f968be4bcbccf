// Package watch turns file system events under the package source roots
// into batches of changed root-relative paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/romdo/go-debounce"
	"github.com/sofmeright/themeforge/src/fileset"
)

const (
	// DefaultWait coalesces bursts of events such as an editor's save.
	DefaultWait = 200 * time.Millisecond
	// DefaultMaxWait bounds how long a steady stream of events can defer a cycle.
	DefaultMaxWait = time.Second
)

// ignoredDirs are never watched.
var ignoredDirs = map[string]bool{
	".git":         true,
	".themeforge":  true,
	"node_modules": true,
}

// Watcher reports changes to files matching Patterns under Root.
// OnChange is called serially; events arriving while it runs are batched
// into the next call.
type Watcher struct {
	Root     string
	Patterns []string
	Wait     time.Duration
	MaxWait  time.Duration
	OnChange func(ctx context.Context, changed []string)

	mu      sync.Mutex
	pending map[string]bool
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	logger := log.FromContext(ctx)

	absRoot, err := filepath.Abs(w.Root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	dirs := 0
	for _, base := range fileset.Bases(w.Patterns) {
		n, err := w.addTree(fw, filepath.Join(absRoot, filepath.FromSlash(base)))
		if err != nil {
			return err
		}
		dirs += n
	}
	logger.Info("watching for changes", "dirs", dirs)

	ready := make(chan struct{}, 1)
	debounced, cancel := debounce.NewWithMaxWait(w.wait(), w.maxWait(), func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if _, err := w.addTree(fw, event.Name); err != nil {
						logger.Warn("watching new directory failed", "dir", event.Name, "err", err)
					}
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			rel, err := filepath.Rel(absRoot, event.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !fileset.Match(w.Patterns, rel) {
				continue
			}
			logger.Debug("change detected", "file", rel, "op", event.Op.String())
			w.add(rel)
			debounced()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "err", err)
		case <-ready:
			if changed := w.take(); len(changed) > 0 && w.OnChange != nil {
				w.OnChange(ctx, changed)
			}
		}
	}
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && ignoredDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		n++
		return nil
	})
	return n, err
}

func (w *Watcher) add(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		w.pending = make(map[string]bool)
	}
	w.pending[rel] = true
}

// take drains the pending set in sorted order.
func (w *Watcher) take() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.pending))
	for p := range w.pending {
		out = append(out, p)
	}
	w.pending = nil
	sort.Strings(out)
	return out
}

func (w *Watcher) wait() time.Duration {
	if w.Wait > 0 {
		return w.Wait
	}
	return DefaultWait
}

func (w *Watcher) maxWait() time.Duration {
	if w.MaxWait > 0 {
		return w.MaxWait
	}
	return DefaultMaxWait
}
