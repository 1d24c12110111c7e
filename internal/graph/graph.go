// Package graph loads the function dependency document and answers
// impact questions over it.
package graph

import (
	"fmt"
	"sort"
)

// Direction says how a document entry "A": ["B"] is read.
type Direction string

const (
	// Affects reads "A": ["B"] as "changing A may affect B".
	Affects Direction = "affects"
	// DependsOn reads "A": ["B"] as "A depends on B", so changing B may
	// affect A.
	DependsOn Direction = "depends-on"
)

// ParseDirection validates s. The empty string selects Affects.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", Affects:
		return Affects, nil
	case DependsOn:
		return DependsOn, nil
	}
	return "", fmt.Errorf("unknown graph direction %q (want %q or %q)", s, Affects, DependsOn)
}

// Graph is an immutable snapshot of one loaded document.
type Graph struct {
	// deps is the document as recorded, duplicates included.
	deps map[string][]string
	// edges maps a name to the names directly affected when it changes.
	edges map[string][]string
	// names holds the sorted document keys.
	names []string
	// sources holds the sorted keys of edges.
	sources []string
	// known holds every name that appears anywhere in the document.
	known map[string]struct{}

	direction  Direction
	source     string
	generation uint64
}

// New builds a graph from an in-memory document. The map is copied.
func New(doc map[string][]string, dir Direction) *Graph {
	if dir == "" {
		dir = Affects
	}
	g := &Graph{
		deps:      make(map[string][]string, len(doc)),
		edges:     make(map[string][]string, len(doc)),
		names:     make([]string, 0, len(doc)),
		known:     make(map[string]struct{}, len(doc)),
		direction: dir,
	}
	for k, v := range doc {
		g.deps[k] = append([]string(nil), v...)
		g.names = append(g.names, k)
		g.known[k] = struct{}{}
		for _, n := range v {
			g.known[n] = struct{}{}
		}
	}
	sort.Strings(g.names)

	for _, k := range g.names {
		for _, n := range g.deps[k] {
			if dir == DependsOn {
				g.addEdge(n, k)
			} else {
				g.addEdge(k, n)
			}
		}
	}
	g.sources = make([]string, 0, len(g.edges))
	for k := range g.edges {
		g.sources = append(g.sources, k)
	}
	sort.Strings(g.sources)
	return g
}

func (g *Graph) addEdge(from, to string) {
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// DependenciesOf returns the list recorded for name in the document.
// Absent names yield an empty slice.
func (g *Graph) DependenciesOf(name string) []string {
	if g == nil {
		return []string{}
	}
	return append([]string{}, g.deps[name]...)
}

// DirectDependents returns the names directly affected by a change to name.
func (g *Graph) DirectDependents(name string) []string {
	if g == nil {
		return []string{}
	}
	return append([]string{}, g.edges[name]...)
}

// Has reports whether name appears anywhere in the document.
func (g *Graph) Has(name string) bool {
	if g == nil {
		return false
	}
	_, ok := g.known[name]
	return ok
}

// Names returns the document keys, sorted.
func (g *Graph) Names() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.names...)
}

// Len returns the number of document keys.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.names)
}

// Generation increases by one on every successful store load.
func (g *Graph) Generation() uint64 {
	if g == nil {
		return 0
	}
	return g.generation
}

// Direction returns the reading applied to the document.
func (g *Graph) Direction() Direction {
	if g == nil {
		return Affects
	}
	return g.direction
}

// Source returns the path or name the graph was loaded from.
func (g *Graph) Source() string {
	if g == nil {
		return ""
	}
	return g.source
}
