package graph

import (
	"sort"

	"github.com/google/uuid"
)

// Delta is the structural difference between two graphs of the same
// project, typically two analyses taken at different times.
type Delta struct {
	ID           string      `json:"id"`
	BaseGraphID  string      `json:"base_graph_id"`
	HeadGraphID  string      `json:"head_graph_id"`
	AddedNodes   []GraphNode `json:"added_nodes"`
	RemovedNodes []GraphNode `json:"removed_nodes"`
	AddedEdges   []GraphEdge `json:"added_edges"`
	RemovedEdges []GraphEdge `json:"removed_edges"`
	Stats        DeltaStats  `json:"stats"`
}

// DeltaStats holds summary counts for a delta.
type DeltaStats struct {
	AddedNodeCount   int `json:"added_node_count"`
	RemovedNodeCount int `json:"removed_node_count"`
	AddedEdgeCount   int `json:"added_edge_count"`
	RemovedEdgeCount int `json:"removed_edge_count"`
}

// Empty reports whether the two graphs were structurally identical.
func (d *Delta) Empty() bool {
	return d.Stats == DeltaStats{}
}

// ComputeDelta diffs nodes by ID and edges by (source, target, type).
// Results are sorted so that deltas of equal graphs compare equal.
func ComputeDelta(base, head *DependencyGraph) *Delta {
	delta := &Delta{
		ID:           uuid.New().String(),
		BaseGraphID:  base.ID,
		HeadGraphID:  head.ID,
		AddedNodes:   []GraphNode{},
		RemovedNodes: []GraphNode{},
		AddedEdges:   []GraphEdge{},
		RemovedEdges: []GraphEdge{},
	}

	for id, node := range head.Nodes {
		if _, exists := base.Nodes[id]; !exists {
			delta.AddedNodes = append(delta.AddedNodes, *node)
		}
	}
	for id, node := range base.Nodes {
		if _, exists := head.Nodes[id]; !exists {
			delta.RemovedNodes = append(delta.RemovedNodes, *node)
		}
	}

	baseEdges := edgeSet(base.Edges)
	headEdges := edgeSet(head.Edges)
	for key, edge := range headEdges {
		if _, exists := baseEdges[key]; !exists {
			delta.AddedEdges = append(delta.AddedEdges, edge)
		}
	}
	for key, edge := range baseEdges {
		if _, exists := headEdges[key]; !exists {
			delta.RemovedEdges = append(delta.RemovedEdges, edge)
		}
	}

	sortNodes(delta.AddedNodes)
	sortNodes(delta.RemovedNodes)
	sortEdges(delta.AddedEdges)
	sortEdges(delta.RemovedEdges)

	delta.Stats = DeltaStats{
		AddedNodeCount:   len(delta.AddedNodes),
		RemovedNodeCount: len(delta.RemovedNodes),
		AddedEdgeCount:   len(delta.AddedEdges),
		RemovedEdgeCount: len(delta.RemovedEdges),
	}
	return delta
}

func edgeSet(edges []GraphEdge) map[string]GraphEdge {
	set := make(map[string]GraphEdge, len(edges))
	for _, e := range edges {
		set[e.EdgeKey()] = e
	}
	return set
}

func sortNodes(nodes []GraphNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

func sortEdges(edges []GraphEdge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].EdgeKey() < edges[j].EdgeKey() })
}
