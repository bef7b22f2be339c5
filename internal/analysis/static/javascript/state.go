// Filename: javascript/state.go
// Defines the per-run taint store. A TaintState belongs to exactly one analysis
// run; it is never shared between files or goroutines.
package javascript

// TaintedSymbol records why a name was marked tainted.
type TaintedSymbol struct {
	Name string
	// Origin is the source expression text for direct taint, or the name of
	// the tainted symbol it was derived from.
	Origin string
	// Source is the catalog entry at the root of the taint chain.
	Source string
	// Line is the 1-based line where taint was established.
	Line int
}

// TaintState is the set of tainted symbol names produced by CollectTaint. It
// only grows: there is no way to remove or overwrite a symbol.
type TaintState struct {
	symbols map[string]TaintedSymbol
	order   []string
}

// NewTaintState returns an empty state.
func NewTaintState() *TaintState {
	return &TaintState{symbols: make(map[string]TaintedSymbol)}
}

// Mark adds sym to the state. If the name is already tainted the first record
// is kept and Mark reports false.
func (s *TaintState) Mark(sym TaintedSymbol) bool {
	if sym.Name == "" {
		return false
	}
	if s.symbols == nil {
		s.symbols = make(map[string]TaintedSymbol)
	}
	if _, exists := s.symbols[sym.Name]; exists {
		return false
	}
	s.symbols[sym.Name] = sym
	s.order = append(s.order, sym.Name)
	return true
}

// IsTainted reports whether name is in the state. It is safe to call on a nil state.
func (s *TaintState) IsTainted(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.symbols[name]
	return ok
}

// Lookup returns the record for name.
func (s *TaintState) Lookup(name string) (TaintedSymbol, bool) {
	if s == nil {
		return TaintedSymbol{}, false
	}
	sym, ok := s.symbols[name]
	return sym, ok
}

// Len returns the number of tainted names.
func (s *TaintState) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Names returns the tainted names in the order they were first marked.
func (s *TaintState) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Symbols returns the tainted records in the order they were first marked.
func (s *TaintState) Symbols() []TaintedSymbol {
	if s == nil {
		return nil
	}
	out := make([]TaintedSymbol, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.symbols[name])
	}
	return out
}
