package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paths(s *Set) []string {
	out := make([]string, len(s.Files))
	for i, e := range s.Files {
		out[i] = e.Path
	}
	return out
}

func TestDiscoverSourceFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.js", "function main() {}")
	writeFile(t, dir, "lib/util.py", "def helper(): pass")
	writeFile(t, dir, "src/App.java", "class App {}")
	writeFile(t, dir, "web/view.tsx", "export const V = () => null;")
	// Unsupported file should be ignored
	writeFile(t, dir, "readme.md", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.js", "secret")

	set, err := Files(dir, Options{})
	require.NoError(t, err)

	// Sorted, slash-separated
	assert.Equal(t, []string{"lib/util.py", "main.js", "src/App.java", "web/view.tsx"}, paths(set))
	assert.Equal(t, dir, set.Root)
	assert.Empty(t, set.Warnings)

	langs := map[string]string{}
	for _, e := range set.Files {
		langs[e.Path] = e.Language
	}
	assert.Equal(t, "python", langs["lib/util.py"])
	assert.Equal(t, "javascript", langs["main.js"])
	assert.Equal(t, "java", langs["src/App.java"])
	assert.Equal(t, "tsx", langs["web/view.tsx"])
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.js", "x")
	writeFile(t, dir, "node_modules/pkg/index.js", "x")
	writeFile(t, dir, "__pycache__/cached.py", "x")
	writeFile(t, dir, "dist/bundle.js", "x")
	writeFile(t, dir, ".hidden/secret.js", "x")

	set, err := Files(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.js"}, paths(set))
}

func TestDiscoverLanguageFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "lib.py", "pass")

	set, err := Files(dir, Options{Languages: []string{"python"}})
	require.NoError(t, err)
	assert.Len(t, set.Files, 2)

	set, err = Files(dir, Options{Languages: []string{"javascript"}})
	require.NoError(t, err)
	assert.Empty(t, set.Files)
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "generated/\n*.min.js\n")
	writeFile(t, dir, "app.js", "x")
	writeFile(t, dir, "app.min.js", "x")
	writeFile(t, dir, "generated/api.ts", "x")

	set, err := Files(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js"}, paths(set))
}

func TestDiscoverExcludePatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "src/app.js", "x")
	writeFile(t, dir, "src/app.test.js", "x")
	writeFile(t, dir, "vendor/lib/dep.js", "x")

	set, err := Files(dir, Options{Exclude: []string{"vendor/", "*.test.js"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.js"}, paths(set))
}

func TestDiscoverMaxFileSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "small.js", "function a() {}")
	writeFile(t, dir, "big.js", strings.Repeat("x", 2048))

	set, err := Files(dir, Options{MaxFileSize: 1024})
	require.NoError(t, err)
	assert.Equal(t, []string{"small.js"}, paths(set))
	require.Len(t, set.Warnings, 1)
	assert.True(t, errors.Is(set.Warnings[0], ErrTooLarge))

	var se *ScanError
	require.ErrorAs(t, set.Warnings[0], &se)
	assert.Equal(t, "big.js", se.Path)

	// Negative disables the limit.
	set, err = Files(dir, Options{MaxFileSize: -1})
	require.NoError(t, err)
	assert.Len(t, set.Files, 2)
}

func TestDiscoverUnreadableSubtree(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}

	dir := t.TempDir()
	writeFile(t, dir, "ok.js", "x")
	writeFile(t, dir, "locked/inner.js", "x")

	locked := filepath.Join(dir, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	set, err := Files(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.js"}, paths(set))
	require.NotEmpty(t, set.Warnings)

	var se *ScanError
	require.ErrorAs(t, set.Warnings[0], &se)
	assert.Equal(t, "locked", se.Path)
}

func TestDiscoverMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := Files(filepath.Join(t.TempDir(), "nope"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.py", "pass")

	// Create symlink
	err := os.Symlink(filepath.Join(dir, "real.py"), filepath.Join(dir, "link.py"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	set, err := Files(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"real.py"}, paths(set))
}

func TestWalkerList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.js", "x")

	w := &Walker{Root: dir}
	set, err := w.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js"}, paths(set))
	assert.Equal(t, filepath.Join(dir, "a.js"), set.Abs(set.Files[0]))

	// New files show up on the next call.
	writeFile(t, dir, "b.js", "x")
	set, err = w.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js", "b.js"}, paths(set))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
