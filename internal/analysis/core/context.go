// internal/analysis/core/context.go
package core

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript/syntax"
)

// FileContext carries everything an analyzer needs to inspect one file. The
// tree is parsed once by the engine and shared read-only between analyzers.
type FileContext struct {
	Path   string
	Source []byte
	Tree   *syntax.Tree
	// Logger is scoped to the file being analyzed.
	Logger *zap.Logger
}

// NewFileContext bundles a parsed tree with its path. A nil logger is replaced
// by a no-op logger.
func NewFileContext(path string, tree *syntax.Tree, logger *zap.Logger) *FileContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	fc := &FileContext{
		Path:   path,
		Tree:   tree,
		Logger: logger.With(zap.String("file", path)),
	}
	if tree != nil {
		fc.Source = tree.Source
	}
	return fc
}
