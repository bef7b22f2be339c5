// internal/discovery/discovery.go
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript/syntax"
	"github.com/xkilldash9x/snitchlint/internal/config"
)

// Discoverer expands scan roots into the list of files to analyze.
type Discoverer struct {
	scope       ScopeManager
	changedOnly bool
	logger      *zap.Logger
}

// New creates a Discoverer from the discovery section of the configuration.
func New(cfg config.DiscoveryConfig, logger *zap.Logger) (*Discoverer, error) {
	scope, err := NewBasicScopeManager(cfg.Exclude, cfg.IncludeHidden)
	if err != nil {
		return nil, err
	}
	d := NewWithScope(scope, logger)
	d.changedOnly = cfg.ChangedOnly
	return d, nil
}

// NewWithScope creates a Discoverer with a custom scope.
func NewWithScope(scope ScopeManager, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{scope: scope, logger: logger.Named("discovery")}
}

// Scope returns the scope used to filter paths.
func (d *Discoverer) Scope() ScopeManager {
	return d.scope
}

// Discover walks roots and returns the sorted, de-duplicated list of files in
// scope. Files named explicitly in roots are kept whenever their language is
// supported, even if an exclude pattern matches them. Unreadable
// sub-directories are logged and skipped; a missing root is an error.
func (d *Discoverer) Discover(ctx context.Context, roots []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		clean := filepath.Clean(path)
		if _, dup := seen[clean]; dup {
			return
		}
		seen[clean] = struct{}{}
		files = append(files, clean)
	}

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("cannot access scan path %s: %w", root, err)
		}

		keep, err := d.changeFilter(root, info.IsDir())
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			if _, err := syntax.LanguageFor(root); err != nil {
				d.logger.Debug("Skipping unsupported file", zap.String("path", root))
				continue
			}
			if keep(root) {
				add(root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if walkErr != nil {
				if path == root {
					return walkErr
				}
				d.logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(walkErr))
				if entry != nil && entry.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if entry.IsDir() {
				if path != root && d.scope.SkipDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !entry.Type().IsRegular() {
				return nil
			}
			if d.scope.IsInScope(path) && keep(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	sort.Strings(files)
	d.logger.Debug("Discovery complete", zap.Int("files", len(files)), zap.Strings("roots", roots))
	return files, nil
}
