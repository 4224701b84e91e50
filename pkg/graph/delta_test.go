package graph

import (
	"testing"

	"github.com/coderef/coderef/pkg/element"
)

func TestComputeDelta_AddedCallAndElement(t *testing.T) {
	base := BuildGraph([]element.Element{
		{Type: element.TypeFunction, Name: "foo", File: "a.ts", Line: 1},
		{Type: element.TypeFunction, Name: "bar", File: "a.ts", Line: 5},
	})
	head := BuildGraph([]element.Element{
		{Type: element.TypeFunction, Name: "foo", File: "a.ts", Line: 1, Calls: []string{"bar"}},
		{Type: element.TypeFunction, Name: "bar", File: "a.ts", Line: 5},
		{Type: element.TypeHook, Name: "useThing", File: "b.ts", Line: 1},
	})

	delta := ComputeDelta(base, head)

	// b.ts file node and useThing element node.
	if delta.Stats.AddedNodeCount != 2 {
		t.Errorf("AddedNodeCount = %d, want 2", delta.Stats.AddedNodeCount)
	}
	if delta.Stats.RemovedNodeCount != 0 {
		t.Errorf("RemovedNodeCount = %d, want 0", delta.Stats.RemovedNodeCount)
	}
	// foo -> bar calls edge, b.ts -> useThing belongs-to edge.
	if delta.Stats.AddedEdgeCount != 2 {
		t.Errorf("AddedEdgeCount = %d, want 2", delta.Stats.AddedEdgeCount)
	}
	if delta.Stats.RemovedEdgeCount != 0 {
		t.Errorf("RemovedEdgeCount = %d, want 0", delta.Stats.RemovedEdgeCount)
	}

	if delta.AddedNodes[0].ID != ElementID("b.ts", "useThing") || delta.AddedNodes[1].ID != FileID("b.ts") {
		t.Errorf("added nodes not sorted by ID: %+v", delta.AddedNodes)
	}
	if delta.BaseGraphID != base.ID || delta.HeadGraphID != head.ID {
		t.Errorf("graph IDs not carried over")
	}
}

func TestComputeDelta_Empty(t *testing.T) {
	g := New()
	delta := ComputeDelta(g, g)
	if !delta.Empty() {
		t.Errorf("delta of a graph with itself should be empty, got %+v", delta.Stats)
	}
}

func TestComputeDelta_AllRemoved(t *testing.T) {
	base := New()
	base.AddNode(&GraphNode{ID: "file:a.ts", Type: NodeTypeFile, File: "a.ts"})
	base.AddNode(&GraphNode{ID: "file:b.ts", Type: NodeTypeFile, File: "b.ts"})
	base.AddEdges(GraphEdge{Source: "file:a.ts", Target: "file:b.ts", Type: EdgeImports})

	delta := ComputeDelta(base, New())
	if delta.Stats.RemovedNodeCount != 2 {
		t.Errorf("RemovedNodeCount = %d, want 2", delta.Stats.RemovedNodeCount)
	}
	if delta.Stats.RemovedEdgeCount != 1 {
		t.Errorf("RemovedEdgeCount = %d, want 1", delta.Stats.RemovedEdgeCount)
	}
}

func TestComputeDelta_ParallelEdgesDiffByType(t *testing.T) {
	base := New()
	base.AddEdges(GraphEdge{Source: "x", Target: "y", Type: EdgeCalls})
	head := New()
	head.AddEdges(
		GraphEdge{Source: "x", Target: "y", Type: EdgeCalls},
		GraphEdge{Source: "x", Target: "y", Type: EdgeExtends},
	)

	delta := ComputeDelta(base, head)
	if delta.Stats.AddedEdgeCount != 1 || delta.AddedEdges[0].Type != EdgeExtends {
		t.Errorf("AddedEdges = %+v, want one extends edge", delta.AddedEdges)
	}
}
