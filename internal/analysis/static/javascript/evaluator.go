// Filename: javascript/evaluator.go
package javascript

import (
	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript/syntax"
)

// EvaluateTaint reports whether expr carries taint according to state, and if
// so returns the name of the tainted symbol it was derived from. Rules are
// tried in order and the first match wins:
//
//   - an identifier is tainted when its name is in state;
//   - a property chain a.b.c is tainted when its base identifier is;
//   - a `+` expression checks its left operand, then its right;
//   - a template string checks its substitutions left to right.
//
// Everything else (calls, indexing, literals, other operators, parenthesized
// expressions, spreads, new, tagged templates) is untainted. EvaluateTaint never modifies state.
func EvaluateTaint(expr syntax.Node, state *TaintState) (string, bool) {
	switch n := expr.(type) {
	case *syntax.Identifier:
		if state.IsTainted(n.Name) {
			return n.Name, true
		}

	case *syntax.Member:
		if base, ok := memberBase(n).(*syntax.Identifier); ok && state.IsTainted(base.Name) {
			return base.Name, true
		}

	case *syntax.Binary:
		if n.Operator != "+" {
			return "", false
		}
		if origin, ok := EvaluateTaint(n.Left, state); ok {
			return origin, true
		}
		return EvaluateTaint(n.Right, state)

	case *syntax.Template:
		for _, sub := range n.Substitutions {
			if origin, ok := EvaluateTaint(sub, state); ok {
				return origin, true
			}
		}
	}
	return "", false
}

// memberBase follows the Object links of a dotted chain down to its base.
func memberBase(m *syntax.Member) syntax.Node {
	var current syntax.Node = m
	for {
		next, ok := current.(*syntax.Member)
		if !ok {
			return current
		}
		current = next.Object
	}
}
