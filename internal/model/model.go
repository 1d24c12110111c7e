// Package model defines core data structures for funcwarn.
package model

import "slices"

// Kind indicates the syntactic shape of a function-like definition.
type Kind string

const (
	Declaration    Kind = "declaration"
	Arrow          Kind = "arrow"
	Method         Kind = "method"
	JavaMethod     Kind = "java-method"
	PythonFunction Kind = "python-function"
	// Heuristic marks a definition found by the loose backfill scan.
	Heuristic Kind = "heuristic"
)

// FunctionLocation is a single discovered definition.
// (File, Line, Name) identifies one occurrence; the same Name may appear at
// many locations across a workspace.
type FunctionLocation struct {
	Name string `json:"name"`
	File string `json:"file"`
	Line int    `json:"line"`
	Kind Kind   `json:"kind"`
}

// Less orders locations by file, then line, then name.
func (l FunctionLocation) Less(o FunctionLocation) bool {
	if l.File != o.File {
		return l.File < o.File
	}
	if l.Line != o.Line {
		return l.Line < o.Line
	}
	return l.Name < o.Name
}

// Report is the answer to one impact query.
type Report struct {
	ID              string `json:"id"`
	ChangedFunction string `json:"changed_function"`

	// Dependents is ordered and deduplicated and never contains
	// ChangedFunction.
	Dependents []string `json:"dependents"`

	// Depth is the number of edges between ChangedFunction and each dependent.
	Depth map[string]int `json:"depth,omitempty"`

	// Locations has a key for ChangedFunction and every dependent.
	// An empty slice means no definition was found.
	Locations map[string][]FunctionLocation `json:"locations"`

	// Parents attributes each dependent to one direct parent for display.
	// A dependent may have several parents; only the first found is shown.
	Parents map[string][]string `json:"parents,omitempty"`

	// Missing lists names with no discovered location, in Dependents order
	// (ChangedFunction first when it is missing too).
	Missing []string `json:"missing,omitempty"`

	// Final is false while a backfill scan may still add locations.
	Final bool `json:"final"`

	Generation uint64   `json:"graph_generation"`
	Truncated  bool     `json:"truncated,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// Clone returns a deep copy of r.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	c.Dependents = slices.Clone(r.Dependents)
	c.Missing = slices.Clone(r.Missing)
	c.Warnings = slices.Clone(r.Warnings)
	if r.Depth != nil {
		c.Depth = make(map[string]int, len(r.Depth))
		for k, v := range r.Depth {
			c.Depth[k] = v
		}
	}
	c.Locations = make(map[string][]FunctionLocation, len(r.Locations))
	for k, v := range r.Locations {
		c.Locations[k] = slices.Clone(v)
	}
	if r.Parents != nil {
		c.Parents = make(map[string][]string, len(r.Parents))
		for k, v := range r.Parents {
			c.Parents[k] = slices.Clone(v)
		}
	}
	return &c
}

// Names returns ChangedFunction followed by Dependents.
func (r *Report) Names() []string {
	names := make([]string, 0, len(r.Dependents)+1)
	names = append(names, r.ChangedFunction)
	return append(names, r.Dependents...)
}

// RecomputeMissing rebuilds Missing from Locations.
func (r *Report) RecomputeMissing() {
	r.Missing = r.Missing[:0]
	for _, name := range r.Names() {
		if len(r.Locations[name]) == 0 {
			r.Missing = append(r.Missing, name)
		}
	}
}
