package main

import (
	"errors"
	"fmt"

	"github.com/sayantanmandal1/function-dependency-warner/internal/cache"
	"github.com/sayantanmandal1/function-dependency-warner/internal/config"
	"github.com/sayantanmandal1/function-dependency-warner/internal/discover"
	"github.com/sayantanmandal1/function-dependency-warner/internal/graph"
	"github.com/sayantanmandal1/function-dependency-warner/internal/impact"
	"github.com/sayantanmandal1/function-dependency-warner/internal/locate"
)

var errNoDependencyFile = errors.New("dependency file path not set (use --deps or dependency_file in " + config.FileName + ")")

// engine is the wired analysis pipeline for one invocation.
type engine struct {
	depPath string
	store   *graph.Store
	cache   *cache.Cache
	persist *cache.Store
	lister  *discover.Walker
	orch    *impact.Orchestrator
}

// newEngine wires the pipeline from a.cfg. With needGraph the dependency
// document must be configured and load cleanly.
func (a *app) newEngine(needGraph bool) (*engine, error) {
	cfg := a.cfg
	e := &engine{depPath: cfg.DependencyPath()}

	dir, err := graph.ParseDirection(cfg.Direction)
	if err != nil {
		return nil, err
	}
	e.store = graph.NewStore(graph.WithDirection(dir), graph.WithLogger(a.logger))
	if needGraph {
		if e.depPath == "" {
			return nil, errNoDependencyFile
		}
		if _, err := e.store.Load(e.depPath); err != nil {
			return nil, err
		}
	}

	opts := []cache.Option{
		cache.WithMaxEntries(cfg.CacheEntries),
		cache.WithLogger(a.logger),
	}
	if cfg.CacheDir != "" {
		e.persist, err = cache.OpenStore(cfg.CacheDir, a.logger)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		opts = append(opts, cache.WithPersistentStore(e.persist))
	}
	e.cache = cache.New(opts...)

	e.lister = &discover.Walker{
		Root: cfg.Root,
		Options: discover.Options{
			Exclude:     cfg.Exclude,
			MaxFileSize: cfg.MaxFileSize,
		},
	}
	correlator := locate.New(e.cache, locate.WithWorkers(cfg.Workers), locate.WithLogger(a.logger))
	e.orch = impact.New(e.store, correlator, e.lister,
		impact.WithBackfill(cfg.Backfill),
		impact.WithMaxDependents(cfg.MaxDependents),
		impact.WithMaxDepth(cfg.MaxDepth),
		impact.WithLogger(a.logger),
	)
	return e, nil
}

func (e *engine) Close() error {
	if e.persist == nil {
		return nil
	}
	return e.persist.Close()
}
