// internal/watcher/watcher.go
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/snitchlint/internal/config"
	"github.com/xkilldash9x/snitchlint/internal/discovery"
)

// ChangeFunc is called with the sorted, de-duplicated paths that changed
// since the previous call.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher reports batches of changed source files under a set of roots.
// Events are debounced and batches are rate limited so that a burst of saves
// triggers a single rescan.
type Watcher struct {
	scope    discovery.ScopeManager
	debounce time.Duration
	limiter  *rate.Limiter
	logger   *zap.Logger
	ready    chan struct{}
	// trees holds the directories registered by addTree. Only Run touches it.
	trees map[string]struct{}
}

// New creates a watcher that filters paths through scope.
func New(cfg config.WatchConfig, scope discovery.ScopeManager, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(cfg.MaxRescansPerSecond)
	if cfg.MaxRescansPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Watcher{
		scope:    scope,
		debounce: cfg.Debounce,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger.Named("watcher"),
		ready:    make(chan struct{}),
		trees:    make(map[string]struct{}),
	}
}

// Ready is closed once the initial watches are registered.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches roots until ctx is cancelled. Directories are watched
// recursively, including ones created later; files named explicitly are
// watched through their parent directory. Run returns nil on cancellation.
// A Watcher runs once.
func (w *Watcher) Run(ctx context.Context, roots []string, onChange ChangeFunc) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	explicit := make(map[string]struct{})
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("cannot watch %s: %w", root, err)
		}
		if info.IsDir() {
			if err := w.addTree(fsw, root, true); err != nil {
				return err
			}
			continue
		}
		clean := filepath.Clean(root)
		explicit[clean] = struct{}{}
		if err := fsw.Add(filepath.Dir(clean)); err != nil {
			return fmt.Errorf("cannot watch %s: %w", root, err)
		}
	}
	w.logger.Info("Watching for changes", zap.Strings("roots", roots), zap.Int("directories", len(fsw.WatchList())))
	close(w.ready)

	pending := make(map[string]struct{})
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.handle(fsw, event, explicit, pending) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)

			if err := w.limiter.Wait(ctx); err != nil {
				// Only fails when ctx is done or the wait could never succeed.
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			w.logger.Debug("Change batch ready", zap.Int("files", len(changed)))
			onChange(ctx, changed)
		}
	}
}

// handle records the paths affected by event and reports whether any were
// added to pending.
func (w *Watcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event, explicit, pending map[string]struct{}) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	path := filepath.Clean(event.Name)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.underWatchedTree(path) || w.scope.SkipDir(path) {
				return false
			}
			if err := w.addTree(fsw, path, false); err != nil {
				w.logger.Warn("Failed to watch new directory", zap.String("path", path), zap.Error(err))
			}
			// Files may have landed before the watch was in place.
			return w.collect(path, pending)
		}
	}

	if len(explicit) > 0 {
		if _, ok := explicit[path]; ok {
			pending[path] = struct{}{}
			return true
		}
	}
	if w.scope.IsInScope(path) && w.underWatchedTree(path) {
		pending[path] = struct{}{}
		return true
	}
	return false
}

// underWatchedTree rejects siblings of explicitly watched files: their parent
// directory is watched but was never walked.
func (w *Watcher) underWatchedTree(path string) bool {
	_, ok := w.trees[filepath.Dir(path)]
	return ok
}

// addTree watches dir and every in-scope directory below it. The root of a
// scan is watched even when the scope would skip it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string, isRoot bool) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("Skipping unreadable directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if !(isRoot && path == dir) && w.scope.SkipDir(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return fmt.Errorf("cannot watch %s: %w", path, err)
		}
		w.trees[filepath.Clean(path)] = struct{}{}
		return nil
	})
}

// collect adds the in-scope files under dir to pending.
func (w *Watcher) collect(dir string, pending map[string]struct{}) bool {
	added := false
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if path != dir && w.scope.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() && w.scope.IsInScope(path) {
			pending[filepath.Clean(path)] = struct{}{}
			added = true
		}
		return nil
	})
	return added
}
