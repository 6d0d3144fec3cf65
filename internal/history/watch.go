package history

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/thiagokokada/qgit-go/internal/debounce"
)

type watchState struct {
	mu       sync.Mutex
	enabled  bool
	watcher  *fsnotify.Watcher
	debounce *debounce.Debouncer
}

// EnableWatch reloads the main history whenever the git directory
// changes, once things have been quiet for the configured delay.
func (c *Controller) EnableWatch() error {
	s, err := c.current()
	if err != nil {
		return err
	}
	c.watch.mu.Lock()
	defer c.watch.mu.Unlock()
	if c.watch.enabled {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	for _, path := range watchPaths(s.Repo.GitDir) {
		slog.Debug("adding path to FS watcher", slog.String("path", path))
		if err := watcher.Add(path); err != nil {
			err := errors.Join(err, watcher.Close())
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	debounce.Ensure(&c.watch.debounce, c.cfg.ReloadDelay, func() {
		c.poster.Post(func() {
			switch err := c.Reload(); {
			case errors.Is(err, ErrBusy):
				slog.Debug("auto reload skipped, previous load still stopping")
			case err != nil:
				slog.Error("auto reload", slog.Any("error", err))
			}
		})
	})
	c.watch.watcher = watcher
	c.watch.enabled = true
	go c.watchLoop(watcher)
	return nil
}

func (c *Controller) DisableWatch() {
	c.watch.mu.Lock()
	defer c.watch.mu.Unlock()
	if c.watch.debounce != nil {
		c.watch.debounce.Stop()
		c.watch.debounce = nil
	}
	if c.watch.watcher != nil {
		if err := c.watch.watcher.Close(); err != nil {
			slog.Error("watcher close", slog.Any("error", err))
		}
		c.watch.watcher = nil
	}
	c.watch.enabled = false
}

func (c *Controller) watching() bool {
	c.watch.mu.Lock()
	defer c.watch.mu.Unlock()
	return c.watch.enabled
}

func (c *Controller) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if shouldIgnoreWatchPath(ev.Name) {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			c.scheduleReload()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

func (c *Controller) scheduleReload() {
	c.watch.mu.Lock()
	defer c.watch.mu.Unlock()
	if !c.watch.enabled || c.watch.debounce == nil {
		return
	}
	slog.Debug("auto reload scheduled")
	c.watch.debounce.Trigger()
}

// watchPaths is the git directory plus the reference directories a commit
// or a fetch writes to; fsnotify does not recurse.
func watchPaths(gitDir string) []string {
	if gitDir == "" {
		return nil
	}
	paths := []string{gitDir}
	for _, sub := range []string{"refs/heads", "refs/tags", "refs/remotes"} {
		p := filepath.Join(gitDir, filepath.FromSlash(sub))
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			paths = append(paths, p)
		}
	}
	return paths
}

func shouldIgnoreWatchPath(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".lock" || ext == ".ipc"
}
