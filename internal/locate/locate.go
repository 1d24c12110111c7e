// Package locate finds where functions are defined across a workspace.
package locate

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sayantanmandal1/function-dependency-warner/internal/discover"
	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

// Source returns the definitions in one file. *cache.Cache satisfies it.
type Source interface {
	GetOrCompute(ctx context.Context, path string) ([]model.FunctionLocation, error)
}

// Result maps every requested name to its locations, sorted by file and line.
// A name with no definition maps to an empty slice.
type Result struct {
	Locations map[string][]model.FunctionLocation
	Warnings  []string
	Files     int
}

// Missing returns the requested names without locations, in the given order.
func (r *Result) Missing(names []string) []string {
	var out []string
	for _, n := range names {
		if len(r.Locations[n]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Correlator matches function names to definitions.
type Correlator struct {
	source  Source
	workers int
	logger  *slog.Logger
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithWorkers bounds the files processed at once. Default GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Correlator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger for per-file warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Correlator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Correlator reading definitions from source.
func New(source Source, opts ...Option) *Correlator {
	c := &Correlator{
		source:  source,
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Locate scans every file in set and collects definitions of names.
// Per-file failures become warnings. On cancellation the partial result is
// returned with ctx.Err().
func (c *Correlator) Locate(ctx context.Context, names []string, set *discover.Set) (Result, error) {
	return c.scan(ctx, names, set, func(ctx context.Context, abs string, e discover.FileEntry, targets map[string]struct{}) ([]model.FunctionLocation, error) {
		locs, err := c.source.GetOrCompute(ctx, abs)
		if err != nil {
			return nil, err
		}
		var out []model.FunctionLocation
		for _, loc := range locs {
			if _, ok := targets[loc.Name]; ok {
				loc.File = e.Path
				out = append(out, loc)
			}
		}
		return out, nil
	})
}

type scanFunc func(ctx context.Context, abs string, e discover.FileEntry, targets map[string]struct{}) ([]model.FunctionLocation, error)

func (c *Correlator) scan(ctx context.Context, names []string, set *discover.Set, fn scanFunc) (Result, error) {
	res := Result{Locations: make(map[string][]model.FunctionLocation, len(names))}
	targets := make(map[string]struct{}, len(names))
	for _, n := range names {
		targets[n] = struct{}{}
		res.Locations[n] = []model.FunctionLocation{}
	}
	if set == nil || len(targets) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, e := range set.Files {
		if gctx.Err() != nil {
			break
		}
		e := e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found, err := fn(gctx, set.Abs(e), e, targets)

			mu.Lock()
			defer mu.Unlock()
			res.Files++
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("skipping file", "file", e.Path, "error", err)
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", e.Path, err))
				return nil
			}
			for _, loc := range found {
				res.Locations[loc.Name] = append(res.Locations[loc.Name], loc)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	for _, locs := range res.Locations {
		sort.Slice(locs, func(i, j int) bool { return locs[i].Less(locs[j]) })
	}
	sort.Strings(res.Warnings)
	return res, err
}
