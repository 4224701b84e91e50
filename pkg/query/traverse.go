package query

import (
	"sort"

	"github.com/coderef/coderef/pkg/graph"
)

// Direction selects which adjacency index a traversal follows.
type Direction string

const (
	Forward Direction = "forward" // source to target
	Reverse Direction = "reverse" // target to source
	Both    Direction = "both"
)

// ResolveNodes maps a query term to node IDs: an exact node ID, a file path
// with a file node, the names of matching elements, or a phantom ID that
// only appears as an edge endpoint.
func ResolveNodes(g *graph.DependencyGraph, term string) []string {
	if _, ok := g.Nodes[term]; ok {
		return []string{term}
	}
	if id := graph.FileID(term); g.Nodes[id] != nil {
		return []string{id}
	}
	if ids := g.FindByName(term); len(ids) > 0 {
		return ids
	}
	if g.IsPhantom(term) {
		return []string{term}
	}
	return nil
}

func accepts(types []graph.EdgeType, t graph.EdgeType) bool {
	if len(types) == 0 {
		return true
	}
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// neighbors lists the nodes adjacent to id along dir, in edge insertion
// order, restricted to the given edge types (all types when empty).
func neighbors(g *graph.DependencyGraph, id string, dir Direction, types []graph.EdgeType) []string {
	var out []string
	if dir == Forward || dir == Both {
		for _, e := range g.EdgesBySource(id) {
			if accepts(types, e.Type) {
				out = append(out, e.Target)
			}
		}
	}
	if dir == Reverse || dir == Both {
		for _, e := range g.EdgesByTarget(id) {
			if accepts(types, e.Type) {
				out = append(out, e.Source)
			}
		}
	}
	return out
}

// reachable does a breadth-first walk from starts and returns every node
// reached within maxDepth hops, in discovery order, excluding the starts.
// maxDepth <= 0 means unbounded.
func reachable(g *graph.DependencyGraph, starts []string, dir Direction, types []graph.EdgeType, maxDepth int) []string {
	visited := make(map[string]bool, len(starts))
	queue := make([]string, 0, len(starts))
	for _, s := range starts {
		if !visited[s] {
			visited[s] = true
			queue = append(queue, s)
		}
	}

	var found []string
	for d := 0; (maxDepth <= 0 || d < maxDepth) && len(queue) > 0; d++ {
		var next []string
		for _, node := range queue {
			for _, n := range neighbors(g, node, dir, types) {
				if visited[n] {
					continue
				}
				visited[n] = true
				found = append(found, n)
				next = append(next, n)
			}
		}
		queue = next
	}
	return found
}

// shortestPath returns the node sequence of a shortest directed path from
// any source to any target. When several paths have the same length the
// first one discovered wins; which one that is depends on edge insertion
// order. A nil result means no path exists.
func shortestPath(g *graph.DependencyGraph, sources, targets []string) []string {
	targetSet := make(map[string]bool, len(targets))
	for _, t := range targets {
		targetSet[t] = true
	}

	parent := make(map[string]string)
	seen := make(map[string]bool)
	var queue []string
	for _, s := range sources {
		if seen[s] {
			continue
		}
		seen[s] = true
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		if targetSet[curr] {
			var path []string
			for n := curr; ; n = parent[n] {
				path = append(path, n)
				if _, ok := parent[n]; !ok {
					break
				}
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}

		for _, n := range neighbors(g, curr, Forward, nil) {
			if !seen[n] {
				seen[n] = true
				parent[n] = curr
				queue = append(queue, n)
			}
		}
	}
	return nil
}

// allPathNodes enumerates every simple directed path from the sources to
// the targets of at most maxDepth edges and returns the union of their
// nodes in first-visit order. Work grows exponentially with maxDepth on
// dense graphs.
func allPathNodes(g *graph.DependencyGraph, sources, targets []string, maxDepth int) []string {
	targetSet := make(map[string]bool, len(targets))
	for _, t := range targets {
		targetSet[t] = true
	}

	onPath := make(map[string]bool)
	inResult := make(map[string]bool)
	var result []string
	var path []string

	var dfs func(node string)
	dfs = func(node string) {
		path = append(path, node)
		onPath[node] = true
		defer func() {
			path = path[:len(path)-1]
			delete(onPath, node)
		}()

		if targetSet[node] && len(path) > 1 {
			for _, n := range path {
				if !inResult[n] {
					inResult[n] = true
					result = append(result, n)
				}
			}
		}
		if len(path)-1 >= maxDepth {
			return
		}
		for _, n := range neighbors(g, node, Forward, nil) {
			if !onPath[n] {
				dfs(n)
			}
		}
	}

	for _, s := range sources {
		if targetSet[s] {
			if !inResult[s] {
				inResult[s] = true
				result = append(result, s)
			}
		}
		dfs(s)
	}
	return result
}

// Subgraph is a neighborhood extracted for visualization consumers.
type Subgraph struct {
	Nodes     map[string]*graph.GraphNode `json:"nodes"`
	Edges     []graph.GraphEdge           `json:"edges"`
	Truncated bool                        `json:"truncated,omitempty"`
}

// Graph returns the subgraph as a standalone DependencyGraph.
func (s *Subgraph) Graph() *graph.DependencyGraph {
	g := graph.New()
	for _, n := range s.Nodes {
		c := *n
		g.AddNode(&c)
	}
	g.AddEdges(s.Edges...)
	return g
}

// Neighborhood computes the ego graph of target up to depth hops in the
// given direction. maxNodes caps the result size (0 means 500).
func Neighborhood(g *graph.DependencyGraph, target string, depth int, dir Direction, maxNodes int) *Subgraph {
	if dir == "" {
		dir = Both
	}
	if maxNodes == 0 {
		maxNodes = 500
	}

	visited := make(map[string]bool)
	queue := ResolveNodes(g, target)
	for _, id := range queue {
		visited[id] = true
	}
	if len(queue) == 0 {
		return &Subgraph{Nodes: map[string]*graph.GraphNode{}, Edges: []graph.GraphEdge{}}
	}

	truncated := false
	for d := 0; d < depth && len(queue) > 0; d++ {
		var next []string
		for _, node := range queue {
			for _, n := range neighbors(g, node, dir, nil) {
				if !visited[n] {
					visited[n] = true
					next = append(next, n)
				}
			}
		}
		queue = next

		if len(visited) >= maxNodes {
			truncated = true
			break
		}
	}

	return induced(g, visited, truncated)
}

// CapGraph returns at most maxNodes nodes of g, preferring high-degree
// nodes, with the edges among them.
func CapGraph(g *graph.DependencyGraph, maxNodes int) *Subgraph {
	if maxNodes <= 0 || len(g.Nodes) <= maxNodes {
		keep := make(map[string]bool, len(g.Nodes))
		for id := range g.Nodes {
			keep[id] = true
		}
		return induced(g, keep, false)
	}

	degree := make(map[string]int)
	for _, e := range g.Edges {
		degree[e.Source]++
		degree[e.Target]++
	}

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if degree[ids[i]] != degree[ids[j]] {
			return degree[ids[i]] > degree[ids[j]]
		}
		return ids[i] < ids[j]
	})

	keep := make(map[string]bool, maxNodes)
	for _, id := range ids[:maxNodes] {
		keep[id] = true
	}
	return induced(g, keep, true)
}

func induced(g *graph.DependencyGraph, keep map[string]bool, truncated bool) *Subgraph {
	nodes := make(map[string]*graph.GraphNode)
	for id := range keep {
		if n, ok := g.Nodes[id]; ok {
			nodes[id] = n
		}
	}
	edges := []graph.GraphEdge{}
	for _, e := range g.Edges {
		if keep[e.Source] && keep[e.Target] {
			edges = append(edges, e)
		}
	}
	return &Subgraph{Nodes: nodes, Edges: edges, Truncated: truncated}
}
