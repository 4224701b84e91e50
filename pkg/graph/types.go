// Package graph defines the dependency graph assembled from scanned program
// elements. These types are the shared vocabulary of the query executor, the
// exporter and the HTTP API.
package graph

import (
	"sort"

	"github.com/google/uuid"
)

// NodeTypeFile is the node type of file nodes. Element nodes carry their
// element type ("function", "class", ...).
const NodeTypeFile = "file"

// WildcardSymbol is the symbol of a module target when only a namespace
// binding is known.
const WildcardSymbol = "*"

// EdgeType is the relationship an edge represents.
type EdgeType string

const (
	EdgeImports     EdgeType = "imports"
	EdgeCalls       EdgeType = "calls"
	EdgeExtends     EdgeType = "extends"
	EdgeImplements  EdgeType = "implements"
	EdgeDynamicCall EdgeType = "dynamic-call"
)

// EdgeTypes lists every edge type in a stable order.
var EdgeTypes = []EdgeType{EdgeImports, EdgeCalls, EdgeExtends, EdgeImplements, EdgeDynamicCall}

// FileID is the node ID of a source file.
func FileID(file string) string {
	return "file:" + file
}

// ElementID is the node ID of an element declared in file.
func ElementID(file, name string) string {
	return "element:" + file + ":" + name
}

// ModuleID is the synthetic target of a dynamic-call edge.
func ModuleID(modulePath, symbol string) string {
	return "module:" + modulePath + "#" + symbol
}

// GraphNode is a graph vertex: a file or an element. Nodes are not modified
// after they are added.
type GraphNode struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	File     string         `json:"file"`
	Line     int            `json:"line,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// GraphEdge is a directed, typed relationship. Parallel edges of different
// types between the same pair are distinct edges.
type GraphEdge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
	Weight float64  `json:"weight,omitempty"`
}

// EdgeKey returns a stable string key for deduplication and set operations.
func (e GraphEdge) EdgeKey() string {
	return e.Source + "|" + e.Target + "|" + string(e.Type)
}

// DependencyGraph owns the node map, the edge list and the adjacency
// indexes derived from it. Edge targets need not exist as nodes: an edge into
// a file outside the scanned set is a phantom reference, not corruption.
//
// A graph is not safe for concurrent mutation. Build it, then share it
// read-only.
type DependencyGraph struct {
	ID    string
	Nodes map[string]*GraphNode
	Edges []GraphEdge

	bySource map[string][]GraphEdge
	byTarget map[string][]GraphEdge
}

// New returns an empty graph with a fresh ID.
func New() *DependencyGraph {
	return &DependencyGraph{
		ID:       uuid.New().String(),
		Nodes:    make(map[string]*GraphNode),
		Edges:    []GraphEdge{},
		bySource: make(map[string][]GraphEdge),
		byTarget: make(map[string][]GraphEdge),
	}
}

// AddNode stores n, replacing any node with the same ID.
func (g *DependencyGraph) AddNode(n *GraphNode) {
	g.Nodes[n.ID] = n
}

// AddEdges appends edges and updates both adjacency indexes.
func (g *DependencyGraph) AddEdges(edges ...GraphEdge) {
	if g.bySource == nil {
		g.Reindex()
	}
	for _, e := range edges {
		g.Edges = append(g.Edges, e)
		g.bySource[e.Source] = append(g.bySource[e.Source], e)
		g.byTarget[e.Target] = append(g.byTarget[e.Target], e)
	}
}

// Reindex rebuilds the adjacency indexes from the edge list. Needed only
// after Edges is assigned directly, as when decoding an export.
func (g *DependencyGraph) Reindex() {
	g.bySource = make(map[string][]GraphEdge, len(g.Nodes))
	g.byTarget = make(map[string][]GraphEdge, len(g.Nodes))
	for _, e := range g.Edges {
		g.bySource[e.Source] = append(g.bySource[e.Source], e)
		g.byTarget[e.Target] = append(g.byTarget[e.Target], e)
	}
}

// EdgesBySource returns the outgoing edges of id in insertion order.
func (g *DependencyGraph) EdgesBySource(id string) []GraphEdge {
	if g.bySource == nil {
		g.Reindex()
	}
	return g.bySource[id]
}

// EdgesByTarget returns the incoming edges of id in insertion order.
func (g *DependencyGraph) EdgesByTarget(id string) []GraphEdge {
	if g.byTarget == nil {
		g.Reindex()
	}
	return g.byTarget[id]
}

// Node returns the node for id, or nil for unknown and phantom IDs.
func (g *DependencyGraph) Node(id string) *GraphNode {
	return g.Nodes[id]
}

// IsPhantom reports whether id is referenced by an edge but has no node.
func (g *DependencyGraph) IsPhantom(id string) bool {
	if _, ok := g.Nodes[id]; ok {
		return false
	}
	return len(g.EdgesBySource(id)) > 0 || len(g.EdgesByTarget(id)) > 0
}

// PhantomIDs returns the edge endpoints without nodes, sorted.
func (g *DependencyGraph) PhantomIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range g.Edges {
		for _, id := range []string{e.Source, e.Target} {
			if _, ok := g.Nodes[id]; ok || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// InDegreeMap maps node IDs to their in-degree.
type InDegreeMap map[string]int

// ComputeInDegrees calculates the in-degree of every node in the graph.
func (g *DependencyGraph) ComputeInDegrees() InDegreeMap {
	degrees := make(InDegreeMap, len(g.Nodes))
	for id := range g.Nodes {
		degrees[id] = 0
	}
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.Target]; ok {
			degrees[e.Target]++
		}
	}
	return degrees
}

// OutDegreeMap maps node IDs to their out-degree.
type OutDegreeMap map[string]int

// ComputeOutDegrees calculates the out-degree of every node in the graph.
func (g *DependencyGraph) ComputeOutDegrees() OutDegreeMap {
	degrees := make(OutDegreeMap, len(g.Nodes))
	for id := range g.Nodes {
		degrees[id] = 0
	}
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.Source]; ok {
			degrees[e.Source]++
		}
	}
	return degrees
}

// Files returns the set of files that have a file node.
func (g *DependencyGraph) Files() map[string]bool {
	files := make(map[string]bool)
	for _, n := range g.Nodes {
		if n.Type == NodeTypeFile {
			files[n.File] = true
		}
	}
	return files
}

// FindByName returns the IDs of nodes whose ID or Name equals name, sorted.
func (g *DependencyGraph) FindByName(name string) []string {
	if _, ok := g.Nodes[name]; ok {
		return []string{name}
	}
	var ids []string
	for id, n := range g.Nodes {
		if n.Name == name {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
