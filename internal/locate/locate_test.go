package locate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sayantanmandal1/function-dependency-warner/internal/cache"
	"github.com/sayantanmandal1/function-dependency-warner/internal/discover"
	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func listFiles(t *testing.T, root string) *discover.Set {
	t.Helper()
	set, err := discover.Files(root, discover.Options{})
	require.NoError(t, err)
	return set
}

func TestLocateGroupsByName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.js", "function helper() {}\nfunction main() { helper(); }\n")
	writeFile(t, dir, "lib/b.py", "import os\n\ndef helper():\n    pass\n")
	writeFile(t, dir, "c.js", "function unrelated() {}\n")

	c := New(cache.New(), WithWorkers(2))
	res, err := c.Locate(context.Background(), []string{"helper", "main", "ghost"}, listFiles(t, dir))
	require.NoError(t, err)

	assert.Equal(t, []model.FunctionLocation{
		{Name: "helper", File: "a.js", Line: 1, Kind: model.Declaration},
		{Name: "helper", File: "lib/b.py", Line: 3, Kind: model.PythonFunction},
	}, res.Locations["helper"])
	assert.Equal(t, []model.FunctionLocation{
		{Name: "main", File: "a.js", Line: 2, Kind: model.Declaration},
	}, res.Locations["main"])

	ghost, ok := res.Locations["ghost"]
	assert.True(t, ok)
	assert.Empty(t, ghost)
	assert.NotContains(t, res.Locations, "unrelated")

	assert.Equal(t, []string{"ghost"}, res.Missing([]string{"helper", "main", "ghost"}))
	assert.Equal(t, 3, res.Files)
	assert.Empty(t, res.Warnings)
}

func TestLocateSortsWithinFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "z.js", "function dup() {}\n")
	writeFile(t, dir, "a.js", "\n\nfunction dup() {}\nconst dup2 = 1;\nclass K { dup() {} }\n")

	c := New(cache.New())
	res, err := c.Locate(context.Background(), []string{"dup"}, listFiles(t, dir))
	require.NoError(t, err)

	locs := res.Locations["dup"]
	require.Len(t, locs, 3)
	assert.Equal(t, "a.js", locs[0].File)
	assert.Equal(t, 3, locs[0].Line)
	assert.Equal(t, "a.js", locs[1].File)
	assert.Equal(t, 5, locs[1].Line)
	assert.Equal(t, "z.js", locs[2].File)
}

type failingSource struct {
	fail string
	next Source
}

func (f *failingSource) GetOrCompute(ctx context.Context, path string) ([]model.FunctionLocation, error) {
	if filepath.Base(path) == f.fail {
		return nil, errors.New("permission denied")
	}
	return f.next.GetOrCompute(ctx, path)
}

func TestLocateUnreadableFileIsWarning(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "bad.js", "function target() {}\n")
	writeFile(t, dir, "good.js", "function target() {}\n")

	c := New(&failingSource{fail: "bad.js", next: cache.New()})
	res, err := c.Locate(context.Background(), []string{"target"}, listFiles(t, dir))
	require.NoError(t, err)

	require.Len(t, res.Locations["target"], 1)
	assert.Equal(t, "good.js", res.Locations["target"][0].File)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "bad.js")
}

func TestLocateFileRemovedAfterDiscovery(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "gone.js", "function target() {}\n")
	set := listFiles(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "gone.js")))

	c := New(cache.New())
	res, err := c.Locate(context.Background(), []string{"target"}, set)
	require.NoError(t, err)
	assert.Empty(t, res.Locations["target"])
	assert.Len(t, res.Warnings, 1)
}

func TestLocateCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.js", "function target() {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(cache.New())
	res, err := c.Locate(ctx, []string{"target"}, listFiles(t, dir))
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := res.Locations["target"]
	assert.True(t, ok)
}

func TestLocateEmptyInputs(t *testing.T) {
	t.Parallel()

	c := New(cache.New())
	res, err := c.Locate(context.Background(), []string{"x"}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Locations["x"])

	res, err = c.Locate(context.Background(), nil, &discover.Set{Root: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, res.Locations)
}

func TestBackfillMultiLineJavaSignature(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "UserService.java", `public class UserService {
    public User create(String name,
                       int age) {
        return new User(name, age);
    }
}
`)

	c := New(cache.New())
	set := listFiles(t, dir)

	res, err := c.Locate(context.Background(), []string{"create"}, set)
	require.NoError(t, err)
	require.Empty(t, res.Locations["create"], "line pattern should miss split signatures")

	res, err = c.Backfill(context.Background(), []string{"create"}, set)
	require.NoError(t, err)
	assert.Equal(t, []model.FunctionLocation{
		{Name: "create", File: "UserService.java", Line: 2, Kind: model.Heuristic},
	}, res.Locations["create"])
}

func TestBackfillSkipsSplitCallSites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.js", "function total() {\n  return calculateTax(\n    1)\n}\n")
	writeFile(t, dir, "B.java", "class B {\n  int run() {\n    return compute(a,\n      b);\n  }\n}\n")

	res, err := New(cache.New()).Backfill(context.Background(), []string{"calculateTax", "compute"}, listFiles(t, dir))
	require.NoError(t, err)
	assert.Empty(t, res.Locations["calculateTax"])
	assert.Empty(t, res.Locations["compute"])
	assert.Equal(t, []string{"calculateTax", "compute"}, res.Missing([]string{"calculateTax", "compute"}))
}

func TestBackfillPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		hit  bool
	}{
		{"send", "exports.send = function (msg) {", true},
		{"send", "module.exports.send = async (msg) => {", true},
		{"send", "  send: function (msg) {", true},
		{"send", "  send: async function (msg) {", true},
		{"send", "this.send = msg => post(msg);", true},
		{"send", "function send(msg) {", true},
		{"send", "async function send(msg) {", true},
		{"send", "    def send(self, msg):", true},
		{"send", "    public void send(String msg,", true},
		{"send", "send(msg);", false},
		{"send", "resend = function () {}", false},
		{"send", "const sender = () => 1;", false},
		{"send", "    public void send(String msg) {", false},
		{"$get", "  $get: function () {", true},
		{"send", "    public static <T> List<T> send(T msg,", true},
		{"calculateTax", "  return calculateTax(", false},
		{"compute", "    return compute(a,", false},
		{"Error", "    throw new Error(", false},
		{"Widget", "    Widget w = new Widget(a,", false},
		{"send", "  await send(", false},
		{"send", "  yield send(msg,", false},
		{"send", "    else send(msg,", false},
		{"send", "    case send(a,", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			got := matchContent([]byte(tt.line), "f", []nameMatcher{newNameMatcher(tt.name)})
			if tt.hit {
				require.Len(t, got, 1)
				assert.Equal(t, model.Heuristic, got[0].Kind)
				assert.Equal(t, 1, got[0].Line)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestBackfillPrefilterSkipsFiles(t *testing.T) {
	t.Parallel()

	assert.Nil(t, matchContent([]byte("function present() {}\n"), "f.js", []nameMatcher{newNameMatcher("absent")}))
}
