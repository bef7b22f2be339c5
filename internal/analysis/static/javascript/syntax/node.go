// Filename: javascript/syntax/node.go
// Package syntax provides the typed syntax tree consumed by the taint engine.
// Trees are produced by lowering a tree-sitter concrete syntax tree (see Parse)
// into a small closed set of node kinds, so the engine never touches grammar
// specific node names.
package syntax

// Kind tags the shape of a Node.
type Kind uint8

const (
	// KindOther covers every construct the engine has no special rule for.
	KindOther Kind = iota
	KindProgram
	// KindDeclarator is a single `name = init` inside a var/let/const declaration.
	KindDeclarator
	// KindPattern is a destructuring pattern (object, array, or one of their elements).
	KindPattern
	// KindAssignment is a plain `target = value` assignment.
	KindAssignment
	// KindCall is a call with a regular argument list.
	KindCall
	KindIdentifier
	// KindMember is a dotted property access (`a.b`, `a?.b`).
	KindMember
	KindBinary
	// KindTemplate is a template string, with or without substitutions.
	KindTemplate
	KindLiteral
	KindParen
)

var kindNames = [...]string{
	KindOther:      "other",
	KindProgram:    "program",
	KindDeclarator: "declarator",
	KindPattern:    "pattern",
	KindAssignment: "assignment",
	KindCall:       "call",
	KindIdentifier: "identifier",
	KindMember:     "member",
	KindBinary:     "binary",
	KindTemplate:   "template",
	KindLiteral:    "literal",
	KindParen:      "paren",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Point is a zero-based row/column position. Columns are byte offsets within the row.
type Point struct {
	Row    int
	Column int
}

// Span locates a node in its source file.
type Span struct {
	StartByte int
	EndByte   int
	Start     Point
	End       Point
}

// Node is implemented by every node kind in this package. The set is closed.
type Node interface {
	Kind() Kind
	Span() Span
	// Text returns the exact source text covered by the node.
	Text() string
	// Children returns the direct syntactic children in source order.
	Children() []Node
	sealed()
}

// base carries the data shared by all node kinds. Text is sliced lazily from
// the shared source buffer.
type base struct {
	src      []byte
	span     Span
	children []Node
}

func (b *base) Span() Span       { return b.span }
func (b *base) Children() []Node { return b.children }
func (b *base) sealed()          {}

func (b *base) Text() string {
	if b.span.StartByte < 0 || b.span.EndByte > len(b.src) || b.span.StartByte > b.span.EndByte {
		return ""
	}
	return string(b.src[b.span.StartByte:b.span.EndByte])
}

// Program is the root of every tree.
type Program struct{ base }

// Declarator binds Binding (an *Identifier or a *Pattern) to Init. Init is nil
// for declarations without an initializer (`let x;`).
type Declarator struct {
	base
	Binding Node
	Init    Node
}

// Pattern is a destructuring pattern. Names lists every identifier bound by the
// pattern, including those bound by nested patterns, in source order. Direct
// lists only the identifiers bound by the pattern's own elements (`a`, `b: c`,
// `d = 1`, `...rest`) and skips names inside nested patterns. Default values
// and computed keys never contribute names.
type Pattern struct {
	base
	Names  []*Identifier
	Direct []*Identifier
}

// Assignment is `Target = Value`. Compound assignments (`+=`) are not lowered
// to this kind.
type Assignment struct {
	base
	Target Node
	Value  Node
}

// Call is `Callee(Args...)`. Tagged templates are not lowered to this kind.
type Call struct {
	base
	Callee Node
	Args   []Node
}

// Identifier is a reference to, or binding of, a name.
type Identifier struct {
	base
	Name string
}

// Member is `Object.Property`.
type Member struct {
	base
	Object   Node
	Property string
}

// Binary is `Left Operator Right`.
type Binary struct {
	base
	Operator string
	Left     Node
	Right    Node
}

// Template is a template string; Substitutions holds the `${...}` expressions
// in source order.
type Template struct {
	base
	Substitutions []Node
}

// Literal is a string, number, boolean, null, undefined or regex literal.
type Literal struct{ base }

// Paren is a parenthesized expression.
type Paren struct {
	base
	Expr Node
}

// Other is any construct without a dedicated kind. Type holds the grammar's
// node type name for diagnostics.
type Other struct {
	base
	Type string
}

func (*Program) Kind() Kind    { return KindProgram }
func (*Declarator) Kind() Kind { return KindDeclarator }
func (*Pattern) Kind() Kind    { return KindPattern }
func (*Assignment) Kind() Kind { return KindAssignment }
func (*Call) Kind() Kind       { return KindCall }
func (*Identifier) Kind() Kind { return KindIdentifier }
func (*Member) Kind() Kind     { return KindMember }
func (*Binary) Kind() Kind     { return KindBinary }
func (*Template) Kind() Kind   { return KindTemplate }
func (*Literal) Kind() Kind    { return KindLiteral }
func (*Paren) Kind() Kind      { return KindParen }
func (*Other) Kind() Kind      { return KindOther }

// Walk visits n and its descendants depth-first in pre-order. If fn returns
// false the children of the current node are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, child := range n.Children() {
		Walk(child, fn)
	}
}
