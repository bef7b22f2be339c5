// Filename: javascript/walker.go
// The two passes of the taint engine. Pass 1 (CollectTaint) walks the tree in
// pre-order and marks names bound to tainted values. Pass 2 (ScanSinks) walks
// it again and reports tainted arguments of sink calls. There is no fixpoint:
// a use that precedes the tainting assignment in source order is not seen.
package javascript

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript/syntax"
)

// CollectTaint runs the propagation pass over root and returns a fresh state.
func CollectTaint(root syntax.Node, sources SourceMatcher) *TaintState {
	return collectTaint(root, sources, zap.NewNop())
}

// ScanSinks runs the sink pass over root. Findings are returned in pre-order
// of the calls, then by argument index. Only the engine fields are populated;
// callers add the rule and file details.
func ScanSinks(root syntax.Node, state *TaintState, sinks SinkCatalog) []core.Finding {
	return scanSinks(root, state, sinks, zap.NewNop())
}

type propagator struct {
	sources SourceMatcher
	state   *TaintState
	logger  *zap.Logger
}

func collectTaint(root syntax.Node, sources SourceMatcher, logger *zap.Logger) *TaintState {
	p := &propagator{
		sources: sources,
		state:   NewTaintState(),
		logger:  logger,
	}
	if sources == nil {
		p.sources = SourceCatalog(nil)
	}
	syntax.Walk(root, p.visit)
	return p.state
}

func (p *propagator) visit(n syntax.Node) bool {
	switch v := n.(type) {
	case *syntax.Declarator:
		p.handleVarDecl(v)
	case *syntax.Assignment:
		p.handleAssignment(v)
	}
	// Always descend: closures and nested blocks share the one state.
	return true
}

func (p *propagator) handleVarDecl(decl *syntax.Declarator) {
	if decl.Init == nil {
		return
	}
	sym, ok := p.classify(decl.Init)
	if !ok {
		return
	}
	sym.Line = decl.Span().Start.Row + 1
	for _, name := range boundNames(decl.Binding) {
		sym.Name = name
		p.mark(sym, "declaration")
	}
}

func (p *propagator) handleAssignment(assign *syntax.Assignment) {
	target, ok := assign.Target.(*syntax.Identifier)
	if !ok || assign.Value == nil {
		return
	}
	sym, ok := p.classify(assign.Value)
	if !ok {
		return
	}
	sym.Name = target.Name
	sym.Line = assign.Span().Start.Row + 1
	p.mark(sym, "assignment")
}

// classify decides whether expr taints the names it is bound to. Direct source
// matches are checked before propagation from already tainted symbols.
func (p *propagator) classify(expr syntax.Node) (TaintedSymbol, bool) {
	text := expr.Text()
	if pattern, ok := p.sources.MatchSource(text); ok {
		return TaintedSymbol{Origin: text, Source: pattern}, true
	}
	if origin, ok := EvaluateTaint(expr, p.state); ok {
		sym := TaintedSymbol{Origin: origin}
		if parent, found := p.state.Lookup(origin); found {
			sym.Source = parent.Source
		}
		return sym, true
	}
	return TaintedSymbol{}, false
}

func (p *propagator) mark(sym TaintedSymbol, via string) {
	if p.state.Mark(sym) {
		p.logger.Debug("Tainted symbol",
			zap.String("name", sym.Name),
			zap.String("origin", sym.Origin),
			zap.String("source", sym.Source),
			zap.Int("line", sym.Line),
			zap.String("via", via),
		)
	}
}

// boundNames lists the names a tainted declaration marks. For a destructuring
// pattern these are the plain identifiers of its own elements; names inside
// nested patterns stay untainted.
func boundNames(binding syntax.Node) []string {
	switch b := binding.(type) {
	case *syntax.Identifier:
		return []string{b.Name}
	case *syntax.Pattern:
		names := make([]string, 0, len(b.Direct))
		for _, id := range b.Direct {
			names = append(names, id.Name)
		}
		return names
	}
	return nil
}

type sinkScanner struct {
	state    *TaintState
	sinks    SinkCatalog
	logger   *zap.Logger
	findings []core.Finding
}

func scanSinks(root syntax.Node, state *TaintState, sinks SinkCatalog, logger *zap.Logger) []core.Finding {
	s := &sinkScanner{
		state:    state,
		sinks:    sinks,
		logger:   logger,
		findings: []core.Finding{},
	}
	syntax.Walk(root, s.visit)
	return s.findings
}

func (s *sinkScanner) visit(n syntax.Node) bool {
	if call, ok := n.(*syntax.Call); ok {
		s.handleCall(call)
	}
	return true
}

func (s *sinkScanner) handleCall(call *syntax.Call) {
	callee, ok := call.Callee.(*syntax.Member)
	if !ok || !s.sinks.Contains(callee.Property) {
		return
	}

	for idx, arg := range call.Args {
		origin, tainted := EvaluateTaint(arg, s.state)
		if !tainted {
			continue
		}
		span := arg.Span()
		finding := core.Finding{
			Start:         toPosition(span.Start),
			End:           toPosition(span.End),
			Sink:          callee.Property,
			ArgumentIndex: idx,
			Origin:        origin,
			Severity:      core.SeverityWarning,
			Message:       fmt.Sprintf("Tainted data from %q used in method %q argument %d", origin, callee.Property, idx+1),
		}
		if sym, found := s.state.Lookup(origin); found {
			finding.Source = sym.Source
		}
		s.logger.Debug("Tainted argument reaches sink",
			zap.String("sink", callee.Property),
			zap.Int("argument_index", idx),
			zap.String("origin", origin),
			zap.Int("line", finding.Start.Line),
		)
		s.findings = append(s.findings, finding)
	}
}
