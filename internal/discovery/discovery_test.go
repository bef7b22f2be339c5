// internal/discovery/discovery_test.go
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/snitchlint/internal/config"
)

// writeTree creates files (with parent directories) under root.
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("const a = 1;\n"), 0o644))
	}
}

func newDiscoverer(t *testing.T) *Discoverer {
	t.Helper()
	d, err := New(config.NewDefaultConfig().Discovery, zaptest.NewLogger(t))
	require.NoError(t, err)
	return d
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(r))
	}
	return out
}

func TestDiscover_DefaultExcludes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/app.js",
		"src/routes/users.ts",
		"src/view.tsx",
		"src/legacy.cjs",
		"src/README.md",
		"src/vendor.min.js",
		"node_modules/express/index.js",
		"dist/bundle.js",
		".git/hooks/pre-commit.js",
		".cache/tmp.js",
		"coverage/lcov-report/prettify.js",
	)

	files, err := newDiscoverer(t).Discover(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"src/app.js",
		"src/legacy.cjs",
		"src/routes/users.ts",
		"src/view.tsx",
	}, rel(t, root, files))
}

func TestDiscover_ExplicitFilesAndDedup(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.js", "b.min.js", "notes.txt", "sub/c.js")

	d := newDiscoverer(t)
	files, err := d.Discover(context.Background(), []string{
		filepath.Join(root, "a.js"),
		filepath.Join(root, "b.min.js"),  // explicitly named, kept
		filepath.Join(root, "notes.txt"), // unsupported, dropped
		root,
		filepath.Join(root, "sub"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js", "b.min.js", "sub/c.js"}, rel(t, root, files))
}

func TestDiscover_ExplicitExcludedDirectoryIsScanned(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "build/out.js")

	files, err := newDiscoverer(t).Discover(context.Background(), []string{filepath.Join(root, "build")})
	require.NoError(t, err)
	assert.Equal(t, []string{"build/out.js"}, rel(t, root, files))
}

func TestDiscover_IncludeHidden(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, ".config/setup.js", "main.js")

	d, err := New(config.DiscoveryConfig{IncludeHidden: true}, zaptest.NewLogger(t))
	require.NoError(t, err)
	files, err := d.Discover(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{".config/setup.js", "main.js"}, rel(t, root, files))
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := newDiscoverer(t).Discover(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access scan path")
}

func TestDiscover_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.js")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDiscoverer(t).Discover(ctx, []string{root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBasicScopeManager_InvalidPattern(t *testing.T) {
	_, err := NewBasicScopeManager([]string{"[unclosed"}, false)
	assert.Error(t, err)
}

func TestBasicScopeManager(t *testing.T) {
	scope, err := NewBasicScopeManager([]string{"node_modules", "*.spec.ts"}, false)
	require.NoError(t, err)

	assert.True(t, scope.IsInScope("src/app.js"))
	assert.True(t, scope.IsInScope("src/App.JSX"))
	assert.False(t, scope.IsInScope("src/app.spec.ts"))
	assert.False(t, scope.IsInScope("src/.eslintrc.js"))
	assert.False(t, scope.IsInScope("src/style.css"))

	assert.True(t, scope.SkipDir("project/node_modules"))
	assert.True(t, scope.SkipDir("project/.git"))
	assert.False(t, scope.SkipDir("project/src"))
	assert.False(t, scope.SkipDir("."))
	assert.False(t, scope.SkipDir(".."))
}
