// Package cache memoizes function extraction per file, keyed by the file path
// and a SHA-256 fingerprint of its content.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
	"github.com/sayantanmandal1/function-dependency-warner/internal/parse"
)

// DefaultMaxEntries bounds the number of files held in memory.
const DefaultMaxEntries = 10000

// ErrUnreadable wraps failures to read a file before extraction.
var ErrUnreadable = errors.New("file unreadable")

// ExtractFunc extracts the definitions in one file's content.
type ExtractFunc func(ctx context.Context, path string, content []byte) ([]model.FunctionLocation, error)

type entry struct {
	hash string
	locs []model.FunctionLocation
}

// Stats are the cumulative counters of a Cache.
type Stats struct {
	Hits        int64
	Misses      int64
	Extractions int64
	Entries     int
}

// Cache holds at most one entry per path. A lookup with a different
// fingerprint replaces it. Safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, entry]
	flight  singleflight.Group
	store   *Store
	extract ExtractFunc
	logger  *slog.Logger

	maxEntries int

	hits        atomic.Int64
	misses      atomic.Int64
	extractions atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries bounds the in-memory tier. Values below one are ignored.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithPersistentStore adds an on-disk tier consulted after memory.
func WithPersistentStore(s *Store) Option {
	return func(c *Cache) {
		c.store = s
	}
}

// WithExtractor replaces parse.Extract.
func WithExtractor(fn ExtractFunc) Option {
	return func(c *Cache) {
		if fn != nil {
			c.extract = fn
		}
	}
}

// WithLogger sets the logger for extraction and store failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		extract:    parse.Extract,
		logger:     slog.Default(),
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(c)
	}
	// Only fails for a non-positive size.
	c.entries, _ = lru.New[string, entry](c.maxEntries)
	return c
}

// Fingerprint returns the hex SHA-256 of content.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// GetOrCompute reads path and returns its definitions, extracting only when
// the content differs from the cached entry.
func (c *Cache) GetOrCompute(ctx context.Context, path string) ([]model.FunctionLocation, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return c.Get(ctx, path, content)
}

type flightResult struct {
	locs []model.FunctionLocation
	err  error
}

// Get is GetOrCompute for content the caller already holds.
//
// An extraction failure is returned once and cached as an empty entry, so
// the file is not parsed again until its content changes.
func (c *Cache) Get(ctx context.Context, path string, content []byte) ([]model.FunctionLocation, error) {
	hash := Fingerprint(content)

	if locs, ok := c.lookup(path, hash); ok {
		c.hits.Add(1)
		recordHit(ctx)
		return locs, nil
	}
	c.misses.Add(1)
	recordMiss(ctx)

	key := path + "\x00" + hash
	for {
		v, err, _ := c.flight.Do(key, func() (interface{}, error) {
			if locs, ok := c.lookup(path, hash); ok {
				return flightResult{locs: locs}, nil
			}
			if locs, ok := c.loadPersisted(hash, path); ok {
				c.entries.Add(path, entry{hash: hash, locs: locs})
				return flightResult{locs: slices.Clone(locs)}, nil
			}
			return c.compute(ctx, path, hash, content)
		})
		if err != nil {
			// A canceled leader must not fail a caller that is still live.
			if isContextErr(err) && ctx.Err() == nil {
				continue
			}
			return nil, err
		}
		res := v.(flightResult)
		return slices.Clone(res.locs), res.err
	}
}

func (c *Cache) compute(ctx context.Context, path, hash string, content []byte) (flightResult, error) {
	locs, err := c.extract(ctx, path, content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return flightResult{}, ctxErr
		}
		c.logger.Warn("extraction failed", "file", path, "error", err)
		locs = nil
	}
	c.extractions.Add(1)
	recordExtraction(ctx)

	c.entries.Add(path, entry{hash: hash, locs: locs})
	if c.store != nil {
		if perr := c.store.Put(hash, path, locs); perr != nil {
			c.logger.Warn("persist extraction", "file", path, "error", perr)
		}
	}
	return flightResult{locs: locs, err: err}, nil
}

func (c *Cache) lookup(path, hash string) ([]model.FunctionLocation, bool) {
	e, ok := c.entries.Get(path)
	if !ok || e.hash != hash {
		return nil, false
	}
	return slices.Clone(e.locs), true
}

func (c *Cache) loadPersisted(hash, path string) ([]model.FunctionLocation, bool) {
	if c.store == nil {
		return nil, false
	}
	locs, ok, err := c.store.Get(hash, path)
	if err != nil {
		c.logger.Warn("read persisted extraction", "file", path, "error", err)
		return nil, false
	}
	return locs, ok
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) {
	c.entries.Remove(path)
}

// Len returns the number of files held in memory.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Stats returns the cumulative counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Extractions: c.extractions.Load(),
		Entries:     c.entries.Len(),
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
