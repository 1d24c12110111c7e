package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/sayantanmandal1/function-dependency-warner/internal/impact"
	"github.com/sayantanmandal1/function-dependency-warner/internal/lang"
	"github.com/sayantanmandal1/function-dependency-warner/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-run impact reports as source files and the dependency document change",
		Long: `Watch the workspace. When the dependency document changes it is reloaded;
a document that fails to load leaves the previous graph in place. When a
source file changes, every graph function it defines or calls is reported
again, one report per function rather than only the first match. A newer
edit supersedes a report still running for the same function. Removing a
source file drops its cached definitions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.newEngine(true)
			if err != nil {
				return err
			}
			defer e.Close()

			debounce, err := a.cfg.DebounceDuration()
			if err != nil {
				return err
			}
			depAbs, err := filepath.Abs(e.depPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s := newWatchSession(ctx, a, e, depAbs)

			opts := watch.DefaultOptions()
			opts.Debounce = debounce
			opts.Logger = a.logger
			w, err := watch.New(a.cfg.Root, s.handle, &opts)
			if err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			defer w.Stop()
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			if err := w.AddFile(depAbs); err != nil {
				return fmt.Errorf("watching %s: %w", depAbs, err)
			}

			a.logger.Info("watching", "root", a.cfg.Root, "deps", depAbs,
				"direction", e.store.Direction(), "debounce", debounce)
			fmt.Fprintf(a.stderr, "watching %s (interrupt to stop)\n", a.cfg.Root)

			<-ctx.Done()
			w.Stop()
			s.close()
			return nil
		},
	}
}

// watchSession turns batches of file changes into graph reloads and impact
// reports.
type watchSession struct {
	ctx     context.Context
	a       *app
	e       *engine
	r       *renderer
	tracker *impact.Tracker
	depAbs  string

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newWatchSession(ctx context.Context, a *app, e *engine, depAbs string) *watchSession {
	return &watchSession{
		ctx:     ctx,
		a:       a,
		e:       e,
		r:       a.newRenderer(),
		tracker: impact.NewTracker(e.orch),
		depAbs:  depAbs,
	}
}

func (s *watchSession) handle(changes []watch.Change) {
	for _, c := range changes {
		if c.Path == s.depAbs {
			s.reload(c)
			continue
		}
		if lang.ForPath(c.Path) == nil {
			continue
		}
		if c.Op == watch.Remove || c.Op == watch.Rename {
			s.e.cache.Invalidate(c.Path)
			continue
		}
		content, err := os.ReadFile(c.Path)
		if err != nil {
			s.a.logger.Warn("watch: reading changed file", "file", c.Path, "error", err)
			continue
		}
		for _, name := range s.edited(c.Path, content) {
			s.submit(name)
		}
	}
}

// edited returns the graph functions touched by new content for path:
// definitions the extractor finds first, then names DetectEdited picks out
// of the text. The extraction refreshes the cache entry that later impact
// queries read.
func (s *watchSession) edited(path string, content []byte) []string {
	g := s.e.store.Current()
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if !seen[name] && g.Has(name) {
			seen[name] = true
			names = append(names, name)
		}
	}

	locs, err := s.e.cache.Get(s.ctx, path, content)
	if err != nil {
		s.a.logger.Warn("watch: extracting changed file", "file", path, "error", err)
	}
	for _, l := range locs {
		add(l.Name)
	}
	for _, name := range impact.DetectEdited(string(content), g) {
		add(name)
	}
	return names
}

func (s *watchSession) reload(c watch.Change) {
	if c.Op == watch.Remove || c.Op == watch.Rename {
		s.a.logger.Warn("watch: dependency document removed, keeping previous graph", "file", c.Path)
		return
	}
	// Store.Load logs failures and keeps the previous graph.
	if g, err := s.e.store.Load(s.depAbs); err == nil {
		s.a.logger.Info("watch: dependency graph reloaded",
			"source", g.Source(), "direction", g.Direction(), "functions", g.Len(), "generation", g.Generation())
	}
}

func (s *watchSession) submit(name string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	q, err := s.tracker.Submit(s.ctx, name)
	if q == nil {
		s.wg.Done()
		s.a.logger.Warn("watch: impact query", "function", name, "error", err)
		return
	}
	go func() {
		defer s.wg.Done()
		rep, err := q.Wait(s.ctx)
		if err != nil {
			s.a.logger.Debug("watch: query ended", "function", name, "state", q.State().String(), "error", err)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.r.Report(rep); err != nil {
			s.a.logger.Warn("watch: writing report", "error", err)
		}
	}()
}

// wait blocks until every submitted query has ended.
func (s *watchSession) wait() { s.wg.Wait() }

// close cancels live queries and waits for them. Later changes are ignored.
func (s *watchSession) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.tracker.CancelAll()
	s.wait()
}
