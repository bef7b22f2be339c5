package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, filename, code string) *Tree {
	t.Helper()
	tree, err := ParseString(filename, code)
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	return tree
}

// firstOf returns the first node of type T found in pre-order.
func firstOf[T Node](root Node) T {
	var found T
	done := false
	Walk(root, func(n Node) bool {
		if done {
			return false
		}
		if v, ok := n.(T); ok {
			found = v
			done = true
			return false
		}
		return true
	})
	return found
}

func allOf[T Node](root Node) []T {
	var out []T
	Walk(root, func(n Node) bool {
		if v, ok := n.(T); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}

func TestLanguageFor(t *testing.T) {
	tests := []struct {
		name    string
		want    Language
		wantErr bool
	}{
		{"app.js", LanguageJavaScript, false},
		{"component.JSX", LanguageJavaScript, false},
		{"esm.mjs", LanguageJavaScript, false},
		{"legacy.cjs", LanguageJavaScript, false},
		{"server.ts", LanguageTypeScript, false},
		{"mod.mts", LanguageTypeScript, false},
		{"view.tsx", LanguageTSX, false},
		{"README.md", "", true},
		{"Makefile", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LanguageFor(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedLanguage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	assert.Contains(t, exts, ".js")
	assert.Contains(t, exts, ".tsx")
	assert.IsIncreasing(t, exts)
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := Parse(context.Background(), "style.css", []byte("body {}"))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestParse_Declarator(t *testing.T) {
	tree := mustParse(t, "a.js", "const id = req.query.id;")
	assert.False(t, tree.HasErrors)

	decl := firstOf[*Declarator](tree.Root)
	require.NotNil(t, decl)
	ident, ok := decl.Binding.(*Identifier)
	require.True(t, ok)
	assert.Equal(t, "id", ident.Name)
	require.NotNil(t, decl.Init)
	assert.Equal(t, "req.query.id", decl.Init.Text())

	member, ok := decl.Init.(*Member)
	require.True(t, ok)
	assert.Equal(t, "id", member.Property)
	inner, ok := member.Object.(*Member)
	require.True(t, ok)
	assert.Equal(t, "query", inner.Property)
}

func TestParse_DeclaratorWithoutInit(t *testing.T) {
	tree := mustParse(t, "a.js", "let x;")
	decl := firstOf[*Declarator](tree.Root)
	require.NotNil(t, decl)
	assert.Nil(t, decl.Init)
}

func TestParse_PatternNames(t *testing.T) {
	tests := []struct {
		code   string
		want   []string
		direct []string
	}{
		{"const { a, b } = obj;", []string{"a", "b"}, []string{"a", "b"}},
		{"const [x, y] = arr;", []string{"x", "y"}, []string{"x", "y"}},
		{"const { a: renamed, b = 1 } = obj;", []string{"renamed", "b"}, []string{"renamed", "b"}},
		{"const { a: { deep }, ...rest } = obj;", []string{"deep", "rest"}, []string{"rest"}},
		{"const [first, [second], ...others] = arr;", []string{"first", "second", "others"}, []string{"first", "others"}},
		{"const [p = fallback] = arr;", []string{"p"}, []string{"p"}},
		{"const { a: { b: { c } } } = obj;", []string{"c"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			tree := mustParse(t, "a.js", tt.code)
			decl := firstOf[*Declarator](tree.Root)
			require.NotNil(t, decl)
			pattern, ok := decl.Binding.(*Pattern)
			require.True(t, ok, "binding is %T", decl.Binding)
			var names, direct []string
			for _, id := range pattern.Names {
				names = append(names, id.Name)
			}
			for _, id := range pattern.Direct {
				direct = append(direct, id.Name)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, tt.direct, direct)
		})
	}
}

func TestParse_Assignment(t *testing.T) {
	tree := mustParse(t, "a.js", "x = y; z += w;")
	assigns := allOf[*Assignment](tree.Root)
	require.Len(t, assigns, 1, "compound assignments are not lowered to Assignment")
	assert.Equal(t, "x", assigns[0].Target.Text())
	assert.Equal(t, "y", assigns[0].Value.Text())
}

func TestParse_Call(t *testing.T) {
	tree := mustParse(t, "a.js", "db.query(sql, [a, b], cb);")
	call := firstOf[*Call](tree.Root)
	require.NotNil(t, call)

	callee, ok := call.Callee.(*Member)
	require.True(t, ok)
	assert.Equal(t, "query", callee.Property)
	assert.Equal(t, "db", callee.Object.Text())

	require.Len(t, call.Args, 3)
	assert.Equal(t, "sql", call.Args[0].Text())
	assert.Equal(t, "[a, b]", call.Args[1].Text())
	assert.Equal(t, KindOther, call.Args[1].Kind())
	assert.Equal(t, KindIdentifier, call.Args[2].Kind())
}

func TestParse_CallArgumentsSkipComments(t *testing.T) {
	tree := mustParse(t, "a.js", "db.query(/* first */ a, b);")
	call := firstOf[*Call](tree.Root)
	require.NotNil(t, call)
	require.Len(t, call.Args, 2)
	assert.Equal(t, "a", call.Args[0].Text())
}

func TestParse_TaggedTemplateIsNotCall(t *testing.T) {
	tree := mustParse(t, "a.js", "sql`SELECT ${id}`;")
	assert.Nil(t, firstOf[*Call](tree.Root))
	tmpl := firstOf[*Template](tree.Root)
	require.NotNil(t, tmpl)
}

func TestParse_BinaryAndTemplate(t *testing.T) {
	tree := mustParse(t, "a.js", "const s = 'a' + b; const t = `x ${c} y ${d.e}`;")

	bin := firstOf[*Binary](tree.Root)
	require.NotNil(t, bin)
	assert.Equal(t, "+", bin.Operator)
	assert.Equal(t, KindLiteral, bin.Left.Kind())
	assert.Equal(t, "b", bin.Right.Text())

	tmpl := firstOf[*Template](tree.Root)
	require.NotNil(t, tmpl)
	require.Len(t, tmpl.Substitutions, 2)
	assert.Equal(t, "c", tmpl.Substitutions[0].Text())
	assert.Equal(t, KindMember, tmpl.Substitutions[1].Kind())
}

func TestParse_Paren(t *testing.T) {
	tree := mustParse(t, "a.js", "const v = (a + b);")
	paren := firstOf[*Paren](tree.Root)
	require.NotNil(t, paren)
	assert.Equal(t, KindBinary, paren.Expr.Kind())
}

func TestParse_OptionalChain(t *testing.T) {
	tree := mustParse(t, "a.js", "const v = req?.body?.name;")
	member := firstOf[*Member](tree.Root)
	require.NotNil(t, member)
	assert.Equal(t, "name", member.Property)
}

func TestParse_TypeScript(t *testing.T) {
	code := `
const id: string = req.params.id as string;
function handler(x: number): void { db.query(` + "`${id}`" + `); }
`
	tree := mustParse(t, "a.ts", code)
	assert.Equal(t, LanguageTypeScript, tree.Language)
	assert.False(t, tree.HasErrors)

	decl := firstOf[*Declarator](tree.Root)
	require.NotNil(t, decl)
	assert.Equal(t, "id", decl.Binding.Text())

	call := firstOf[*Call](tree.Root)
	require.NotNil(t, call)
	require.Len(t, call.Args, 1)
	assert.Equal(t, KindTemplate, call.Args[0].Kind())
}

func TestParse_TSX(t *testing.T) {
	tree := mustParse(t, "a.tsx", "const el = <div>{name}</div>; el.append(name);")
	assert.Equal(t, LanguageTSX, tree.Language)
	call := firstOf[*Call](tree.Root)
	require.NotNil(t, call)
}

func TestParse_SyntaxErrors(t *testing.T) {
	tree := mustParse(t, "a.js", "const = ;; db.query(x")
	assert.True(t, tree.HasErrors)
}

func TestSpan(t *testing.T) {
	tree := mustParse(t, "a.js", "\n  foo.bar(baz);")
	call := firstOf[*Call](tree.Root)
	require.NotNil(t, call)
	arg := call.Args[0]
	span := arg.Span()
	assert.Equal(t, Point{Row: 1, Column: 10}, span.Start)
	assert.Equal(t, Point{Row: 1, Column: 13}, span.End)
	assert.Equal(t, "baz", string(tree.Source[span.StartByte:span.EndByte]))
}

func TestWalk_Prune(t *testing.T) {
	tree := mustParse(t, "a.js", "a.b(c.d(e));")
	var calls int
	Walk(tree.Root, func(n Node) bool {
		if n.Kind() == KindCall {
			calls++
			return false
		}
		return true
	})
	assert.Equal(t, 1, calls)
	assert.Len(t, allOf[*Call](tree.Root), 2)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "call", KindCall.String())
	assert.Equal(t, "other", KindOther.String())
	assert.Equal(t, "unknown", Kind(200).String())
}
