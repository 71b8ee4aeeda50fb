package incremental

import "sort"

// DependencyGraph holds directed file → file import edges.
type DependencyGraph struct {
	edges map[string][]string
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{edges: make(map[string][]string)}
}

// Set replaces the outgoing edges of file.
func (g *DependencyGraph) Set(file string, deps []string) {
	if len(deps) == 0 {
		delete(g.edges, file)
		return
	}
	g.edges[file] = append([]string(nil), deps...)
}

// Remove drops file and its outgoing edges. Edges pointing at file from other
// files are left in place; they are rewritten when those files are next seen.
func (g *DependencyGraph) Remove(file string) {
	delete(g.edges, file)
}

// Dependencies returns the files file imports.
func (g *DependencyGraph) Dependencies(file string) []string {
	return g.edges[file]
}

// Dependents returns the files that import file, sorted.
func (g *DependencyGraph) Dependents(file string) []string {
	var out []string
	for from, deps := range g.edges {
		for _, d := range deps {
			if d == file {
				out = append(out, from)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// EdgeCount returns the number of edges.
func (g *DependencyGraph) EdgeCount() int {
	n := 0
	for _, deps := range g.edges {
		n += len(deps)
	}
	return n
}

// Impacted returns files depending on any of changed within maxHops edges,
// excluding the changed files themselves. Uses BFS level by level.
func (g *DependencyGraph) Impacted(changed []string, maxHops int) []string {
	reverse := make(map[string][]string)
	for from, deps := range g.edges {
		for _, d := range deps {
			reverse[d] = append(reverse[d], from)
		}
	}
	for k := range reverse {
		sort.Strings(reverse[k])
	}

	visited := make(map[string]bool, len(changed))
	for _, c := range changed {
		visited[c] = true
	}

	var out []string
	frontier := append([]string(nil), changed...)
	for depth := 1; depth <= maxHops && len(frontier) > 0; depth++ {
		var next []string
		for _, file := range frontier {
			for _, dep := range reverse[file] {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				out = append(out, dep)
				next = append(next, dep)
			}
		}
		frontier = next
	}
	return out
}

// Map returns a copy of the edges.
func (g *DependencyGraph) Map() map[string][]string {
	out := make(map[string][]string, len(g.edges))
	for k, v := range g.edges {
		out[k] = append([]string(nil), v...)
	}
	return out
}
