package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
	"github.com/sayantanmandal1/function-dependency-warner/internal/parse"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// countingExtractor wraps parse.Extract and counts calls.
type countingExtractor struct {
	calls atomic.Int64
}

func (e *countingExtractor) extract(ctx context.Context, path string, content []byte) ([]model.FunctionLocation, error) {
	e.calls.Add(1)
	return parse.Extract(ctx, path, content)
}

func TestCacheHitSkipsExtraction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "a.js", "function alpha() {}\n")

	ex := &countingExtractor{}
	c := New(WithExtractor(ex.extract))

	first, err := c.GetOrCompute(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "alpha", first[0].Name)

	second, err := c.GetOrCompute(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, int64(1), ex.calls.Load())
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Extractions: 1, Entries: 1}, c.Stats())
}

func TestCacheReflectsChangedContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "a.js", "function alpha() {}\n")

	c := New()
	locs, err := c.GetOrCompute(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, locs, 1)

	writeFile(t, dir, "a.js", "function alpha() {}\nfunction beta() {}\n")
	locs, err = c.GetOrCompute(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "beta", locs[1].Name)

	// The new fingerprint replaced the old entry.
	assert.Equal(t, 1, c.Len())
}

func TestCacheReturnsCopies(t *testing.T) {
	t.Parallel()

	c := New()
	content := []byte("def a():\n    pass\n")
	locs, err := c.Get(context.Background(), "x.py", content)
	require.NoError(t, err)
	locs[0].Name = "mutated"

	again, err := c.Get(context.Background(), "x.py", content)
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].Name)
}

func TestCacheUnreadable(t *testing.T) {
	t.Parallel()

	c := New()
	_, err := c.GetOrCompute(context.Background(), filepath.Join(t.TempDir(), "missing.js"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCacheExtractionErrorStoredEmpty(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var calls atomic.Int64
	c := New(WithExtractor(func(ctx context.Context, path string, content []byte) ([]model.FunctionLocation, error) {
		calls.Add(1)
		return nil, boom
	}))

	content := []byte("function a() {}")
	_, err := c.Get(context.Background(), "a.js", content)
	assert.ErrorIs(t, err, boom)

	locs, err := c.Get(context.Background(), "a.js", content)
	require.NoError(t, err)
	assert.Empty(t, locs)
	assert.Equal(t, int64(1), calls.Load())
}

func TestCacheCanceledExtractionNotStored(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	c := New(WithExtractor(func(ctx context.Context, path string, content []byte) ([]model.FunctionLocation, error) {
		calls.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []model.FunctionLocation{{Name: "a", File: path, Line: 1}}, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "a.js", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, c.Len())

	locs, err := c.Get(context.Background(), "a.js", []byte("x"))
	require.NoError(t, err)
	assert.Len(t, locs, 1)
	assert.Equal(t, int64(2), calls.Load())
}

func TestCacheSingleflight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var calls atomic.Int64
	c := New(WithExtractor(func(ctx context.Context, path string, content []byte) ([]model.FunctionLocation, error) {
		calls.Add(1)
		<-release
		return []model.FunctionLocation{{Name: "shared", File: path, Line: 1}}, nil
	}))

	const n = 8
	var wg sync.WaitGroup
	results := make([][]model.FunctionLocation, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			locs, err := c.Get(context.Background(), "s.js", []byte("same"))
			assert.NoError(t, err)
			results[i] = locs
		}(i)
	}

	// Let the goroutines pile up on the in-flight extraction.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, r := range results {
		require.Len(t, r, 1)
		assert.Equal(t, "shared", r[0].Name)
	}
}

func TestCacheEviction(t *testing.T) {
	t.Parallel()

	c := New(WithMaxEntries(2))
	for _, name := range []string{"a.py", "b.py", "c.py"} {
		_, err := c.Get(context.Background(), name, []byte("def f():\n"))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	c.Invalidate("c.py")
	assert.Equal(t, 1, c.Len())
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Fingerprint([]byte("x")), Fingerprint([]byte("x")))
	assert.NotEqual(t, Fingerprint([]byte("x")), Fingerprint([]byte("y")))
	assert.Len(t, Fingerprint(nil), 64)
}

func TestPersistentStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := OpenStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, ok, err := store.Get("h", "a.js")
	require.NoError(t, err)
	assert.False(t, ok)

	want := []model.FunctionLocation{{Name: "a", File: "a.js", Line: 3, Kind: model.Declaration}}
	require.NoError(t, store.Put("h", "a.js", want))

	got, ok, err := store.Get("h", "a.js")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	// Same path, different fingerprint is a separate key.
	_, ok, err = store.Get("other", "a.js")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachePersistentTierAvoidsExtraction(t *testing.T) {
	t.Parallel()

	store, err := OpenStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	content := []byte("function alpha() {}\n")

	ex1 := &countingExtractor{}
	warm := New(WithExtractor(ex1.extract), WithPersistentStore(store))
	_, err = warm.Get(context.Background(), "a.js", content)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ex1.calls.Load())

	// A fresh memory tier finds the entry on disk.
	ex2 := &countingExtractor{}
	cold := New(WithExtractor(ex2.extract), WithPersistentStore(store))
	locs, err := cold.Get(context.Background(), "a.js", content)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "alpha", locs[0].Name)
	assert.Equal(t, int64(0), ex2.calls.Load())
	assert.Equal(t, int64(0), cold.Stats().Extractions)
}
