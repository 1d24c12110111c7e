package graph

import "context"

// Dependent is one name reached from a changed function.
type Dependent struct {
	Name string
	// Depth is the number of edges from the root; direct dependents are 1.
	Depth int
	// Via is the name whose edge first reached this one.
	Via string
}

// DependentsOf returns every name transitively affected by a change to root,
// in breadth-first discovery order. root itself is never included, even on
// a cycle. A nil graph or unknown root yields an empty slice.
func DependentsOf(root string, g *Graph) []string {
	deps, _ := DependentsWithin(context.Background(), root, g, 0)
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
	}
	return names
}

// DependentsOf is the method form of the package function.
func (g *Graph) DependentsOf(root string) []string {
	return DependentsOf(root, g)
}

// DependentsWithin walks at most maxDepth edges from root (zero or negative
// means unlimited). It stops with ctx.Err() and the names found so far when
// ctx is canceled.
func DependentsWithin(ctx context.Context, root string, g *Graph, maxDepth int) ([]Dependent, error) {
	result := []Dependent{}
	if g == nil {
		return result, nil
	}

	type item struct {
		name  string
		depth int
	}

	visited := map[string]struct{}{root: {}}
	queue := []item{{root, 0}}

	for steps := 0; len(queue) > 0; steps++ {
		if steps%256 == 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}

		cur := queue[0]
		queue = queue[1:]

		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}

		for _, next := range g.edges[cur.name] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			result = append(result, Dependent{Name: next, Depth: cur.depth + 1, Via: cur.name})
			queue = append(queue, item{next, cur.depth + 1})
		}
	}

	return result, nil
}

// GroupByFirstParent attributes each dependent to a single parent for
// display. The parent is the first of root, then deps in order, whose
// direct edges contain the dependent; failing that, the first name in sorted
// order that has such an edge. A dependent can have several parents and only
// one is reported, so the grouping must not be treated as graph structure.
func GroupByFirstParent(root string, deps []string, g *Graph) map[string][]string {
	groups := map[string][]string{}
	if g == nil {
		return groups
	}

	candidates := make([]string, 0, len(deps)+1)
	candidates = append(candidates, root)
	candidates = append(candidates, deps...)

	hasEdge := func(from, to string) bool {
		for _, n := range g.edges[from] {
			if n == to {
				return true
			}
		}
		return false
	}

	for _, dep := range deps {
		parent := ""
		for _, c := range candidates {
			if c != dep && hasEdge(c, dep) {
				parent = c
				break
			}
		}
		if parent == "" {
			for _, c := range g.sources {
				if c != dep && hasEdge(c, dep) {
					parent = c
					break
				}
			}
		}
		if parent == "" {
			continue
		}
		groups[parent] = append(groups[parent], dep)
	}
	return groups
}
