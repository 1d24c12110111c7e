package impact

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

// State is the progress of one query.
type State int32

const (
	Idle State = iota
	GraphResolved
	DependentsComputed
	LocationsPartial
	LocationsFinal
	Canceled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case GraphResolved:
		return "graph-resolved"
	case DependentsComputed:
		return "dependents-computed"
	case LocationsPartial:
		return "locations-partial"
	case LocationsFinal:
		return "locations-final"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

// Query is one in-flight impact computation.
type Query struct {
	changed string
	state   atomic.Int32
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	partial *model.Report
	final   *model.Report
	err     error
}

func newQuery(changed string, cancel context.CancelFunc) *Query {
	return &Query{
		changed: changed,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Function returns the changed function the query is about.
func (q *Query) Function() string { return q.changed }

// State returns the current state.
func (q *Query) State() State { return State(q.state.Load()) }

// advance moves to s unless the query already reached a terminal state.
func (q *Query) advance(s State) bool {
	for {
		cur := q.state.Load()
		if State(cur) == LocationsFinal || State(cur) == Canceled {
			return false
		}
		if q.state.CompareAndSwap(cur, int32(s)) {
			return true
		}
	}
}

// Partial returns a copy of the report from the first location pass, or nil
// if the query was canceled before it finished.
func (q *Query) Partial() *model.Report {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.partial.Clone()
}

// Done is closed when the query reaches LocationsFinal or Canceled.
func (q *Query) Done() <-chan struct{} { return q.done }

// Cancel stops the query. It has no effect once the report is final.
func (q *Query) Cancel() { q.cancel() }

// Wait blocks until the report is final and returns a copy of it.
func (q *Query) Wait(ctx context.Context) (*model.Report, error) {
	select {
	case <-q.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	return q.final.Clone(), nil
}

func (q *Query) setPartial(r *model.Report) {
	q.mu.Lock()
	q.partial = r.Clone()
	q.mu.Unlock()
}

func (q *Query) finish(r *model.Report) {
	q.mu.Lock()
	q.final = r.Clone()
	q.mu.Unlock()
	q.advance(LocationsFinal)
	close(q.done)
	q.cancel()
}

func (q *Query) fail(err error) {
	q.mu.Lock()
	q.err = err
	q.mu.Unlock()
	q.state.Store(int32(Canceled))
	close(q.done)
	q.cancel()
}
