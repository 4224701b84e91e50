package export

import (
	"github.com/coderef/coderef/pkg/graph"
)

// Statistics summarizes a graph.
type Statistics struct {
	NodeCount     int            `json:"nodeCount"`
	EdgeCount     int            `json:"edgeCount"`
	FileCount     int            `json:"fileCount"`
	PhantomCount  int            `json:"phantomCount"`
	NodeTypes     map[string]int `json:"nodeTypes"`
	EdgeTypes     map[string]int `json:"edgeTypes"`
	Density       float64        `json:"density"`
	AverageDegree float64        `json:"averageDegree"`
	MaxInDegree   int            `json:"maxInDegree"`
	MaxOutDegree  int            `json:"maxOutDegree"`
}

// ComputeStatistics derives node/edge histograms, density and degree
// figures. Density is edges / (n*(n-1)) and zero for n <= 1.
func ComputeStatistics(g *graph.DependencyGraph) Statistics {
	s := Statistics{
		NodeCount: len(g.Nodes),
		EdgeCount: len(g.Edges),
		NodeTypes: make(map[string]int),
		EdgeTypes: make(map[string]int),
	}
	for _, n := range g.Nodes {
		s.NodeTypes[n.Type]++
		if n.Type == graph.NodeTypeFile {
			s.FileCount++
		}
	}
	for _, e := range g.Edges {
		s.EdgeTypes[string(e.Type)]++
	}
	s.PhantomCount = len(g.PhantomIDs())

	n := float64(s.NodeCount)
	if s.NodeCount > 1 {
		s.Density = float64(s.EdgeCount) / (n * (n - 1))
	}
	if s.NodeCount > 0 {
		s.AverageDegree = 2 * float64(s.EdgeCount) / n
	}

	for _, d := range g.ComputeInDegrees() {
		if d > s.MaxInDegree {
			s.MaxInDegree = d
		}
	}
	for _, d := range g.ComputeOutDegrees() {
		if d > s.MaxOutDegree {
			s.MaxOutDegree = d
		}
	}
	return s
}
