// internal/discovery/scope.go
package discovery

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript/syntax"
)

// ScopeManager decides which paths take part in a scan.
type ScopeManager interface {
	// SkipDir reports whether a directory should not be descended into.
	SkipDir(path string) bool
	// IsInScope reports whether a regular file should be analyzed.
	IsInScope(path string) bool
}

// BasicScopeManager applies exclude patterns and extension filtering.
type BasicScopeManager struct {
	exclude       []string
	extensions    map[string]struct{}
	includeHidden bool
}

// NewBasicScopeManager validates the exclude patterns. Patterns are matched
// with filepath.Match against the base name, so "node_modules" and "*.min.js"
// both work.
func NewBasicScopeManager(exclude []string, includeHidden bool) (*BasicScopeManager, error) {
	for _, pattern := range exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	exts := make(map[string]struct{})
	for _, ext := range syntax.SupportedExtensions() {
		exts[ext] = struct{}{}
	}
	return &BasicScopeManager{
		exclude:       append([]string(nil), exclude...),
		extensions:    exts,
		includeHidden: includeHidden,
	}, nil
}

// SkipDir implements ScopeManager.
func (s *BasicScopeManager) SkipDir(path string) bool {
	base := filepath.Base(path)
	if !s.includeHidden && isHidden(base) {
		return true
	}
	return s.excluded(base)
}

// IsInScope implements ScopeManager.
func (s *BasicScopeManager) IsInScope(path string) bool {
	base := filepath.Base(path)
	if !s.includeHidden && isHidden(base) {
		return false
	}
	if _, ok := s.extensions[strings.ToLower(filepath.Ext(base))]; !ok {
		return false
	}
	return !s.excluded(base)
}

func (s *BasicScopeManager) excluded(base string) bool {
	for _, pattern := range s.exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// isHidden treats dot-prefixed names as hidden. "." and ".." are not hidden.
func isHidden(base string) bool {
	return len(base) > 1 && base[0] == '.' && base != ".."
}
