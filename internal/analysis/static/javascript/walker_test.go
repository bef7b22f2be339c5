// Filename: javascript/walker_test.go
package javascript

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript/syntax"
)

// -- Test Helpers --

var (
	testSources = SourceCatalog{"source.body", "req.body", "req.query", "req.params"}
	testSinks   = SinkCatalog{"query", "execute"}
)

func parseRoot(t *testing.T, code string) syntax.Node {
	t.Helper()
	tree, err := syntax.ParseString("test_case.js", code)
	require.NoError(t, err)
	require.False(t, tree.HasErrors, "test code must parse cleanly")
	return tree.Root
}

func runEngine(t *testing.T, code string) (*TaintState, []core.Finding) {
	t.Helper()
	root := parseRoot(t, code)
	state := CollectTaint(root, testSources)
	return state, ScanSinks(root, state, testSinks)
}

type flow struct {
	Sink   string
	Index  int
	Origin string
}

func flows(findings []core.Finding) []flow {
	out := []flow{}
	for _, f := range findings {
		out = append(out, flow{Sink: f.Sink, Index: f.ArgumentIndex, Origin: f.Origin})
	}
	return out
}

// -- Reference Scenarios --

func TestScenarioA_DirectSourceThenConcatenation(t *testing.T) {
	_, findings := runEngine(t, `const id = source.body.id; sink.query("SELECT "+id);`)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, "query", f.Sink)
	assert.Equal(t, 0, f.ArgumentIndex)
	assert.Contains(t, f.Origin, "id")
	assert.Equal(t, core.SeverityWarning, f.Severity)
	assert.Equal(t, "source.body", f.Source)
}

func TestScenarioB_LiteralIsUntainted(t *testing.T) {
	state, findings := runEngine(t, `const id = "123"; sink.query("SELECT "+id);`)
	assert.Empty(t, findings)
	assert.Zero(t, state.Len())
}

func TestScenarioC_Destructuring(t *testing.T) {
	_, findings := runEngine(t, `const {username} = source.body; sink.query(username);`)
	require.Len(t, findings, 1)
	assert.Equal(t, "username", findings[0].Origin)
}

func TestScenarioD_MultipleTaintedArguments(t *testing.T) {
	code := `
		const a = source.body.a;
		const b = source.body.b;
		sink.query(a, b);
	`
	_, findings := runEngine(t, code)
	want := []flow{{"query", 0, "a"}, {"query", 1, "b"}}
	if diff := cmp.Diff(want, flows(findings)); diff != "" {
		t.Errorf("findings mismatch (-want +got):\n%s", diff)
	}
}

// -- Propagation Rules --

func TestCollectTaint(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		tainted   []string
		untainted []string
	}{
		{
			name:    "direct member source",
			code:    `const id = req.query.id;`,
			tainted: []string{"id"},
		},
		{
			name:    "source prefix covers calls on the source",
			code:    `const raw = req.body.toString();`,
			tainted: []string{"raw"},
		},
		{
			name:      "source match is case sensitive",
			code:      `const id = REQ.query.id;`,
			untainted: []string{"id"},
		},
		{
			name:    "transitive through identifier",
			code:    `const a = req.body; const b = a;`,
			tainted: []string{"a", "b"},
		},
		{
			name:    "transitive through property chain",
			code:    `const body = req.body; const name = body.user.name;`,
			tainted: []string{"body", "name"},
		},
		{
			name:    "transitive through optional chain",
			code:    `const body = req.body; const name = body?.user?.name;`,
			tainted: []string{"body", "name"},
		},
		{
			name:    "concatenation either side",
			code:    `const id = req.params.id; const l = id + "x"; const r = "x" + id;`,
			tainted: []string{"id", "l", "r"},
		},
		{
			name:    "template substitution",
			code:    "const id = req.params.id; const sql = `SELECT * FROM t WHERE id = ${id}`;",
			tainted: []string{"id", "sql"},
		},
		{
			name:      "parenthesized expressions are untainted",
			code:      `const id = req.params.id; const p = ("a" + id); const q = "a" + (id); const y = (id);`,
			tainted:   []string{"id"},
			untainted: []string{"p", "q", "y"},
		},
		{
			name:      "parenthesized source is not a direct match",
			code:      `const x = (req.body);`,
			untainted: []string{"x"},
		},
		{
			name:      "property chain on a parenthesized base is untainted",
			code:      `const id = req.params.id; const x = (id).length;`,
			untainted: []string{"x"},
		},
		{
			name:      "function call result is untainted",
			code:      `const id = req.params.id; const n = Number(id);`,
			untainted: []string{"n"},
		},
		{
			name:      "indexing is untainted",
			code:      `const ids = req.params.ids; const first = ids[0];`,
			untainted: []string{"first"},
		},
		{
			name:      "other operators are untainted",
			code:      `const id = req.params.id; const n = id - 1; const c = id || "default";`,
			untainted: []string{"n", "c"},
		},
		{
			name:      "spread and new are untainted",
			code:      `const body = req.body; const copy = {...body}; const list = [...body]; const w = new Wrapper(body);`,
			untainted: []string{"copy", "list", "w"},
		},
		{
			name:      "tagged templates are untainted",
			code:      "const id = req.params.id; const q = sql`SELECT ${id}`;",
			untainted: []string{"q"},
		},
		{
			name:      "destructuring taints every element name",
			code:      `const { a, b: alias, d = 1, ...rest } = req.body; const [x, , ...zs] = req.query.list;`,
			tainted:   []string{"a", "alias", "d", "rest", "x", "zs"},
			untainted: []string{"b"},
		},
		{
			name:      "names inside nested patterns stay untainted",
			code:      `const { a: { b }, c } = req.body; const [[y], z] = req.query.list;`,
			tainted:   []string{"c", "z"},
			untainted: []string{"a", "b", "y"},
		},
		{
			name:      "declarator without initializer",
			code:      `let pending;`,
			untainted: []string{"pending"},
		},
		{
			name:    "plain assignment",
			code:    `let q; q = req.query.q; let r; r = q;`,
			tainted: []string{"q", "r"},
		},
		{
			name:      "compound assignment is not propagated",
			code:      `let q = ""; q += req.query.q;`,
			untainted: []string{"q"},
		},
		{
			name:      "member assignment target is not tracked",
			code:      `const o = {}; o.field = req.body;`,
			untainted: []string{"o", "field"},
		},
		{
			name:      "no fixpoint: use before taint in source order",
			code:      `const b = a; const a = req.body;`,
			tainted:   []string{"a"},
			untainted: []string{"b"},
		},
		{
			name:    "closures share the file-wide state",
			code:    `function h(req) { const id = req.query.id; const cb = () => { const inner = id; }; }`,
			tainted: []string{"id", "inner"},
		},
		{
			name:      "no interprocedural leak",
			code:      `function f() { const t = req.body; return t; } const z = f();`,
			tainted:   []string{"t"},
			untainted: []string{"z"},
		},
		{
			name:    "comments inside initializers do not hide sources",
			code:    `const id = /* note */ req.body.id;`,
			tainted: []string{"id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := CollectTaint(parseRoot(t, tt.code), testSources)
			for _, name := range tt.tainted {
				assert.True(t, state.IsTainted(name), "expected %q to be tainted", name)
			}
			for _, name := range tt.untainted {
				assert.False(t, state.IsTainted(name), "expected %q to be untainted", name)
			}
		})
	}
}

func TestCollectTaint_Records(t *testing.T) {
	code := `
const id = req.query.id;
const sql = "SELECT " + id;
let again = req.body;
again = req.query;
`
	state := CollectTaint(parseRoot(t, code), testSources)

	want := []TaintedSymbol{
		{Name: "id", Origin: "req.query.id", Source: "req.query", Line: 2},
		{Name: "sql", Origin: "id", Source: "req.query", Line: 3},
		{Name: "again", Origin: "req.body", Source: "req.body", Line: 4},
	}
	if diff := cmp.Diff(want, state.Symbols()); diff != "" {
		t.Errorf("symbols mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectTaint_CustomMatcher(t *testing.T) {
	matcher := SourceMatcherFunc(func(text string) (string, bool) {
		if text == "readInput()" {
			return "readInput", true
		}
		return "", false
	})
	state := CollectTaint(parseRoot(t, `const v = readInput(); const w = readInputs();`), matcher)
	assert.Equal(t, []string{"v"}, state.Names())
}

func TestCollectTaint_NilMatcher(t *testing.T) {
	state := CollectTaint(parseRoot(t, `const v = req.body;`), nil)
	assert.Zero(t, state.Len())
}

// -- Sink Scanning --

func TestScanSinks(t *testing.T) {
	tests := []struct {
		name string
		code string
		want []flow
	}{
		{
			name: "template argument",
			code: "const id = req.params.id; db.query(`SELECT ${id}`);",
			want: []flow{{"query", 0, "id"}},
		},
		{
			name: "property chain argument reports base",
			code: `const body = req.body; db.execute(body.user.id);`,
			want: []flow{{"execute", 0, "body"}},
		},
		{
			name: "parenthesized argument is untainted",
			code: `const id = req.params.id; db.query((id)); db.query("SELECT " + (id));`,
			want: []flow{},
		},
		{
			name: "only tainted arguments are reported",
			code: `const id = req.params.id; db.query("SELECT ?", id, cb);`,
			want: []flow{{"query", 1, "id"}},
		},
		{
			name: "bare function call is not a sink",
			code: `const id = req.params.id; query(id);`,
			want: []flow{},
		},
		{
			name: "method outside the catalog",
			code: `const id = req.params.id; db.find(id);`,
			want: []flow{},
		},
		{
			name: "computed callee is not a sink",
			code: `const id = req.params.id; db["query"](id);`,
			want: []flow{},
		},
		{
			name: "direct source text in a sink argument is not a tainted symbol",
			code: `db.query(req.body.id);`,
			want: []flow{},
		},
		{
			name: "wrapped argument",
			code: `const id = req.params.id; db.query(escape(id));`,
			want: []flow{},
		},
		{
			name: "use before the tainting declaration still sees the final state",
			code: `function run() { db.query(id); } const id = req.body.id;`,
			want: []flow{{"query", 0, "id"}},
		},
		{
			name: "nested sink calls in pre-order",
			code: `const a = req.body; const b = req.query; db.query(a, pool.execute(b));`,
			want: []flow{{"query", 0, "a"}, {"execute", 0, "b"}},
		},
		{
			name: "sinks inside closures",
			code: `const id = req.query.id; app.get("/", () => { db.query(id); });`,
			want: []flow{{"query", 0, "id"}},
		},
		{
			name: "no deduplication of repeated calls",
			code: `const id = req.query.id; db.query(id); db.query(id);`,
			want: []flow{{"query", 0, "id"}, {"query", 0, "id"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, findings := runEngine(t, tt.code)
			if diff := cmp.Diff(tt.want, flows(findings)); diff != "" {
				t.Errorf("findings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScanSinks_Range(t *testing.T) {
	code := "const id = req.query.id;\n  db.query(\"SELECT \" + id);"
	_, findings := runEngine(t, code)
	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, core.Position{Line: 2, Column: 12}, f.Start)
	assert.Equal(t, core.Position{Line: 2, Column: 26}, f.End)
	assert.Equal(t, `Tainted data from "id" used in method "query" argument 1`, f.Message)
}

func TestScanSinks_NilState(t *testing.T) {
	root := parseRoot(t, `db.query(id);`)
	assert.Empty(t, ScanSinks(root, nil, testSinks))
}

func TestScanSinks_EmptyCatalog(t *testing.T) {
	root := parseRoot(t, `const id = req.query.id; db.query(id);`)
	state := CollectTaint(root, testSources)
	assert.Empty(t, ScanSinks(root, state, nil))
}

// -- Properties --

func TestIdempotence(t *testing.T) {
	code := `
		const { user } = req.body;
		let sql = "SELECT * FROM users WHERE name = '" + user.name + "'";
		sql = ` + "`${sql} LIMIT 1`" + `;
		db.query(sql, [user]);
		conn.execute(user.id);
	`
	root := parseRoot(t, code)

	first := ScanSinks(root, CollectTaint(root, testSources), testSinks)
	second := ScanSinks(root, CollectTaint(root, testSources), testSinks)
	require.NotEmpty(t, first)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestMonotonicityOverSourceCatalogs(t *testing.T) {
	code := `
		const a = req.body.a;
		const b = req.query.b;
		const c = process.env.C;
		const ab = a + b;
		db.query(a); db.query(b); db.query(c); db.query(ab);
	`
	root := parseRoot(t, code)

	catalogs := []SourceCatalog{
		{},
		{"req.body"},
		{"req.body", "req.query"},
		{"req.body", "req.query", "process.env"},
	}

	var prevNames []string
	var prevCount int
	for i, catalog := range catalogs {
		state := CollectTaint(root, catalog)
		findings := ScanSinks(root, state, testSinks)
		names := state.Names()
		for _, name := range prevNames {
			assert.True(t, state.IsTainted(name), "catalog %d lost %q", i, name)
		}
		assert.GreaterOrEqual(t, len(findings), prevCount, "catalog %d lost findings", i)
		prevNames, prevCount = names, len(findings)
	}
	assert.Equal(t, 4, prevCount)
}
