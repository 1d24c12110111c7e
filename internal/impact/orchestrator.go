// Package impact answers "what may break if this function changes, and where
// is it defined" by combining the dependency graph with a workspace scan.
package impact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sayantanmandal1/function-dependency-warner/internal/discover"
	"github.com/sayantanmandal1/function-dependency-warner/internal/graph"
	"github.com/sayantanmandal1/function-dependency-warner/internal/locate"
	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

var tracer = otel.Tracer("funcwarn/impact")

// ErrNoGraph is returned when no dependency graph has been loaded.
var ErrNoGraph = errors.New("no dependency graph loaded")

// GraphSource supplies the current graph snapshot. *graph.Store satisfies it.
type GraphSource interface {
	Current() *graph.Graph
}

// Locator resolves names to definitions. *locate.Correlator satisfies it.
type Locator interface {
	Locate(ctx context.Context, names []string, set *discover.Set) (locate.Result, error)
	Backfill(ctx context.Context, names []string, set *discover.Set) (locate.Result, error)
}

// Orchestrator runs impact queries.
type Orchestrator struct {
	graphs  GraphSource
	locator Locator
	lister  discover.Lister
	logger  *slog.Logger

	backfill      bool
	maxDependents int
	maxDepth      int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBackfill enables or disables the heuristic second pass. Default on.
func WithBackfill(enabled bool) Option {
	return func(o *Orchestrator) {
		o.backfill = enabled
	}
}

// WithMaxDependents truncates reports to n dependents. Zero means no limit.
func WithMaxDependents(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxDependents = n
		}
	}
}

// WithMaxDepth limits how many edges are followed from the changed function.
// Zero means no limit.
func WithMaxDepth(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxDepth = n
		}
	}
}

// WithLogger sets the logger for query events.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an Orchestrator.
func New(graphs GraphSource, locator Locator, lister discover.Lister, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		graphs:   graphs,
		locator:  locator,
		lister:   lister,
		logger:   slog.Default(),
		backfill: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ComputeImpact runs a query to completion and returns the final report.
func (o *Orchestrator) ComputeImpact(ctx context.Context, changed string) (*model.Report, error) {
	q, err := o.Start(ctx, changed)
	if err != nil {
		return nil, err
	}
	return q.Wait(ctx)
}

// Start runs the query up to the first location pass and returns. When
// names are still missing and backfill is enabled, the second pass runs in
// the background and Wait returns its merged report.
//
// ErrNoGraph is returned with a nil Query. If ctx is canceled before the
// first pass completes, the Query is returned in the Canceled state along
// with the context error.
func (o *Orchestrator) Start(ctx context.Context, changed string) (*Query, error) {
	start := time.Now()

	g := o.graphs.Current()
	if g == nil {
		return nil, ErrNoGraph
	}

	qctx, cancel := context.WithCancel(ctx)
	qctx, span := tracer.Start(qctx, "impact.query",
		trace.WithAttributes(
			attribute.String("function", changed),
			attribute.Int64("graph.generation", int64(g.Generation())),
		))
	q := newQuery(changed, cancel)
	go func() {
		<-q.done
		span.SetAttributes(attribute.String("state", q.State().String()))
		span.End()
	}()

	q.advance(GraphResolved)

	report := &model.Report{
		ID:              uuid.NewString(),
		ChangedFunction: changed,
		Dependents:      []string{},
		Depth:           map[string]int{},
		Locations:       map[string][]model.FunctionLocation{},
		Generation:      g.Generation(),
	}
	if !g.Has(changed) {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%q does not appear in the dependency graph", changed))
	}

	deps, err := graph.DependentsWithin(qctx, changed, g, o.maxDepth)
	if err != nil {
		q.fail(err)
		return q, err
	}
	if o.maxDependents > 0 && len(deps) > o.maxDependents {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("reporting %d of %d dependents", o.maxDependents, len(deps)))
		report.Truncated = true
		deps = deps[:o.maxDependents]
	}
	for _, d := range deps {
		report.Dependents = append(report.Dependents, d.Name)
		report.Depth[d.Name] = d.Depth
	}
	report.Parents = graph.GroupByFirstParent(changed, report.Dependents, g)
	q.advance(DependentsComputed)

	set, err := o.lister.List(qctx)
	if err != nil {
		if qctx.Err() != nil {
			q.fail(qctx.Err())
			return q, qctx.Err()
		}
		o.logger.Warn("workspace scan failed", "error", err)
		report.Warnings = append(report.Warnings, fmt.Sprintf("workspace scan: %v", err))
		set = nil
	}
	if set != nil {
		for _, w := range set.Warnings {
			report.Warnings = append(report.Warnings, w.Error())
		}
	}

	names := report.Names()
	res, err := o.locator.Locate(qctx, names, set)
	if err != nil {
		q.fail(err)
		return q, err
	}
	for _, name := range names {
		report.Locations[name] = res.Locations[name]
		if report.Locations[name] == nil {
			report.Locations[name] = []model.FunctionLocation{}
		}
	}
	report.Warnings = appendUnique(report.Warnings, res.Warnings...)
	report.RecomputeMissing()

	needBackfill := o.backfill && set != nil && len(report.Missing) > 0
	report.Final = !needBackfill
	report.DurationMs = time.Since(start).Milliseconds()

	q.setPartial(report)
	q.advance(LocationsPartial)

	o.logger.Debug("impact first pass",
		"function", changed,
		"dependents", len(report.Dependents),
		"missing", len(report.Missing),
		"files", res.Files)

	if !needBackfill {
		q.finish(report)
		return q, nil
	}

	go o.runBackfill(qctx, q, report, set, start)
	return q, nil
}

func (o *Orchestrator) runBackfill(ctx context.Context, q *Query, report *model.Report, set *discover.Set, start time.Time) {
	missing := append([]string(nil), report.Missing...)
	res, err := o.locator.Backfill(ctx, missing, set)
	if err != nil {
		q.fail(err)
		return
	}

	for _, name := range missing {
		if locs := res.Locations[name]; len(locs) > 0 {
			report.Locations[name] = locs
		}
	}
	report.Warnings = appendUnique(report.Warnings, res.Warnings...)
	report.RecomputeMissing()
	report.Final = true
	report.DurationMs = time.Since(start).Milliseconds()

	o.logger.Debug("impact backfill",
		"function", report.ChangedFunction,
		"recovered", len(missing)-len(report.Missing),
		"missing", len(report.Missing))

	q.finish(report)
}

func appendUnique(dst []string, src ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range src {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}
