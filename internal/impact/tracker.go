package impact

import (
	"context"
	"sync"
)

// Starter begins a query. *Orchestrator satisfies it.
type Starter interface {
	Start(ctx context.Context, changed string) (*Query, error)
}

// Tracker keeps at most one live query per function. Submitting a name
// cancels the query already running for it.
type Tracker struct {
	starter Starter

	mu    sync.Mutex
	seq   uint64
	slots map[string]slot
}

type slot struct {
	cancel context.CancelFunc
	seq    uint64
}

// NewTracker creates a Tracker over s.
func NewTracker(s Starter) *Tracker {
	return &Tracker{starter: s, slots: map[string]slot{}}
}

// Submit cancels any live query for name and starts a new one.
func (t *Tracker) Submit(ctx context.Context, name string) (*Query, error) {
	t.mu.Lock()
	if prev, ok := t.slots[name]; ok {
		prev.cancel()
	}
	t.seq++
	seq := t.seq
	sctx, cancel := context.WithCancel(ctx)
	t.slots[name] = slot{cancel: cancel, seq: seq}
	t.mu.Unlock()

	q, err := t.starter.Start(sctx, name)
	if q == nil {
		t.release(name, seq)
		cancel()
		return nil, err
	}

	go func() {
		<-q.Done()
		t.release(name, seq)
		cancel()
	}()
	return q, err
}

func (t *Tracker) release(name string, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.slots[name]; ok && s.seq == seq {
		delete(t.slots, name)
	}
}

// InFlight returns the number of live queries.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// CancelAll cancels every live query.
func (t *Tracker) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, s := range t.slots {
		s.cancel()
		delete(t.slots, name)
	}
}
