// Filename: javascript/analyzer.go
package javascript

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
)

// ErrNoTree is returned when a FileContext carries no parsed tree.
var ErrNoTree = errors.New("file has no syntax tree")

// TaintAnalyzer runs the two-pass taint engine for one Rule.
type TaintAnalyzer struct {
	*core.BaseAnalyzer
	rule    Rule
	sources SourceMatcher
}

// Option customises a TaintAnalyzer.
type Option func(*TaintAnalyzer)

// WithSourceMatcher replaces the prefix matching of the rule's source catalog.
func WithSourceMatcher(m SourceMatcher) Option {
	return func(a *TaintAnalyzer) {
		if m != nil {
			a.sources = m
		}
	}
}

// NewTaintAnalyzer validates rule and wraps it as a core.Analyzer.
func NewTaintAnalyzer(rule Rule, logger *zap.Logger, opts ...Option) (*TaintAnalyzer, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	a := &TaintAnalyzer{
		BaseAnalyzer: core.NewBaseAnalyzer(rule.ID, rule.Description, core.TypeStatic, logger),
		rule:         rule,
		sources:      rule.Sources,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Rule returns the rule the analyzer was built from.
func (a *TaintAnalyzer) Rule() Rule {
	return a.rule
}

// Analyze implements core.Analyzer.
func (a *TaintAnalyzer) Analyze(ctx context.Context, file *core.FileContext) ([]core.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if file == nil || file.Tree == nil || file.Tree.Root == nil {
		return nil, ErrNoTree
	}

	logger := a.Logger.With(zap.String("file", file.Path))
	root := file.Tree.Root

	state := collectTaint(root, a.sources, logger)
	logger.Debug("Propagation pass complete", zap.Int("tainted_symbols", state.Len()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	findings := scanSinks(root, state, a.rule.Sinks, logger)
	for i := range findings {
		a.decorate(&findings[i], file)
	}

	if len(findings) > 0 {
		logger.Warn("Taint flow detected",
			zap.String("rule", a.rule.ID),
			zap.Int("findings", len(findings)),
		)
	}
	return findings, nil
}

func (a *TaintAnalyzer) decorate(f *core.Finding, file *core.FileContext) {
	f.RuleID = a.rule.ID
	f.CWE = a.rule.CWE
	f.File = file.Path
	f.Message = fmt.Sprintf("Potential %s: tainted data from %q used in method %q argument %d",
		a.rule.Title, f.Origin, f.Sink, f.ArgumentIndex+1)

	src := file.Source
	if src == nil {
		src = file.Tree.Source
	}
	f.Snippet = lineSnippet(src, byteOffset(src, f.Start))
}

// byteOffset converts a 1-based position back into a byte offset in src.
func byteOffset(src []byte, pos core.Position) int {
	line := 1
	for i, b := range src {
		if line == pos.Line {
			return i + pos.Column - 1
		}
		if b == '\n' {
			line++
		}
	}
	return len(src)
}
