package query

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/coderef/coderef/pkg/graph"
	"github.com/coderef/coderef/pkg/scan"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// chain builds A -> B -> C -> D plus a shortcut A -> X -> D when shortcut is set.
func chain(shortcut bool) *graph.DependencyGraph {
	g := graph.New()
	for _, id := range []string{"A", "B", "C", "D", "X"} {
		g.AddNode(&graph.GraphNode{ID: id, Name: id, Type: "function"})
	}
	g.AddEdges(
		graph.GraphEdge{Source: "A", Target: "B", Type: graph.EdgeCalls},
		graph.GraphEdge{Source: "B", Target: "C", Type: graph.EdgeCalls},
		graph.GraphEdge{Source: "C", Target: "D", Type: graph.EdgeCalls},
	)
	if shortcut {
		g.AddEdges(
			graph.GraphEdge{Source: "A", Target: "X", Type: graph.EdgeImports},
			graph.GraphEdge{Source: "X", Target: "D", Type: graph.EdgeCalls},
		)
	}
	return g
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestShortestPath_Chain(t *testing.T) {
	ex := NewExecutor(chain(false))
	r := ex.Execute(Request{Type: ShortestPath, Source: "A", Target: "D"})
	if !r.OK() {
		t.Fatalf("unexpected error: %s", r.Error)
	}
	if got, want := ids(r.Results), []string{"A", "B", "C", "D"}; !reflect.DeepEqual(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}
	if r.Count != 4 {
		t.Errorf("Count = %d, want 4", r.Count)
	}
}

func TestShortestPath_PrefersShorterRoute(t *testing.T) {
	ex := NewExecutor(chain(true))
	r := ex.Execute(Request{Type: ShortestPath, Source: "A", Target: "D"})
	if got, want := ids(r.Results), []string{"A", "X", "D"}; !reflect.DeepEqual(got, want) {
		t.Errorf("path = %v, want %v", got, want)
	}
}

func TestShortestPath_NoPath(t *testing.T) {
	ex := NewExecutor(chain(false))
	r := ex.Execute(Request{Type: ShortestPath, Source: "D", Target: "A"})
	if !r.OK() || r.Count != 0 {
		t.Errorf("result = %+v, want empty success", r)
	}
}

func TestPathQueries_RequireSource(t *testing.T) {
	ex := NewExecutor(chain(false))
	for _, typ := range []Type{ShortestPath, AllPaths} {
		r := ex.Execute(Request{Type: typ, Target: "D"})
		if r.Error != ErrSourceRequired.Error() {
			t.Errorf("%s: Error = %q, want %q", typ, r.Error, ErrSourceRequired)
		}
	}
}

func TestAllPaths_FlattensUnion(t *testing.T) {
	ex := NewExecutor(chain(true))
	r := ex.Execute(Request{Type: AllPaths, Source: "A", Target: "D"})
	if got, want := ids(r.Results), []string{"A", "B", "C", "D", "X"}; !reflect.DeepEqual(got, want) {
		t.Errorf("nodes = %v, want %v", got, want)
	}

	short := ex.Execute(Request{Type: AllPaths, Source: "A", Target: "D", MaxDepth: 2})
	if got, want := ids(short.Results), []string{"A", "X", "D"}; !reflect.DeepEqual(got, want) {
		t.Errorf("depth 2 nodes = %v, want %v", got, want)
	}
}

func TestAllPaths_Cycle(t *testing.T) {
	g := graph.New()
	g.AddEdges(
		graph.GraphEdge{Source: "a", Target: "b", Type: graph.EdgeCalls},
		graph.GraphEdge{Source: "b", Target: "a", Type: graph.EdgeCalls},
		graph.GraphEdge{Source: "b", Target: "c", Type: graph.EdgeCalls},
	)
	r := NewExecutor(g).Execute(Request{Type: AllPaths, Source: "a", Target: "c"})
	if got, want := ids(r.Results), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("nodes = %v, want %v", got, want)
	}
	for _, it := range r.Results {
		if !it.Phantom {
			t.Errorf("%s should be phantom: graph has no nodes", it.ID)
		}
	}
}

func TestDirectRelations(t *testing.T) {
	ex := NewExecutor(chain(true))
	tests := []struct {
		req  Request
		want []string
	}{
		{Request{Type: WhatCalls, Target: "D"}, []string{"C", "X"}},
		{Request{Type: WhatCallsMe, Target: "A"}, []string{"B"}},
		{Request{Type: WhatImports, Target: "A"}, []string{"X"}},
		{Request{Type: WhatImportsMe, Target: "X"}, []string{"A"}},
		{Request{Type: WhatDependsOn, Target: "A", MaxDepth: 1}, []string{"B", "X"}},
		{Request{Type: WhatDependsOn, Target: "A"}, []string{"B", "X", "C", "D"}},
		{Request{Type: WhatDependsOnMe, Target: "D", MaxDepth: 1}, []string{"C", "X"}},
		{Request{Type: WhatDependsOnMe, Target: "D"}, []string{"C", "X", "B", "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.req.Key(), func(t *testing.T) {
			r := ex.Execute(tt.req)
			if !r.OK() {
				t.Fatalf("unexpected error: %s", r.Error)
			}
			if got := ids(r.Results); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("results = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecute_Failures(t *testing.T) {
	ex := NewExecutor(chain(false))
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown type", Request{Type: "what-is-this", Target: "A"}, ErrUnknownQueryType},
		{"missing target", Request{Type: WhatCalls}, ErrTargetRequired},
		{"unknown target", Request{Type: WhatCalls, Target: "nope"}, ErrTargetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ex.Execute(tt.req)
			if r.OK() {
				t.Fatalf("expected an error")
			}
			if r.Results == nil || r.Count != 0 {
				t.Errorf("failed result should carry an empty result list: %+v", r)
			}
			if !strings.HasPrefix(r.Error, tt.want.Error()) {
				t.Errorf("Error = %q, want %v", r.Error, tt.want)
			}
		})
	}

	nilEx := NewExecutor(nil)
	if r := nilEx.Execute(Request{Type: WhatCalls, Target: "A"}); r.Error != ErrNilGraph.Error() {
		t.Errorf("nil graph Error = %q", r.Error)
	}
}

func TestCache_HitWithinTTL(t *testing.T) {
	clock := newClock()
	ex := NewExecutor(chain(false), WithClock(clock.now))
	req := Request{Type: WhatCalls, Target: "C"}

	first := ex.Execute(req)
	if first.Cached {
		t.Fatal("first result should not be cached")
	}

	clock.advance(time.Minute)
	second := ex.Execute(req)
	if !second.Cached {
		t.Fatal("second result should be cached")
	}
	if !reflect.DeepEqual(first.Results, second.Results) || first.Count != second.Count {
		t.Errorf("cached results differ: %v vs %v", first.Results, second.Results)
	}
	if !second.Timestamp.After(first.Timestamp) {
		t.Errorf("cached timestamp not refreshed")
	}
	if second.ExecutionTime != first.ExecutionTime {
		t.Errorf("cached execution time changed")
	}

	stats := ex.PerformanceStats()
	if stats[WhatCalls].Count != 1 {
		t.Errorf("performance recorded %d times, want 1 (misses only)", stats[WhatCalls].Count)
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	clock := newClock()
	ex := NewExecutor(chain(false), WithClock(clock.now), WithCacheTTL(time.Minute))
	req := Request{Type: WhatCalls, Target: "C"}

	ex.Execute(req)
	clock.advance(time.Minute)
	r := ex.Execute(req)
	if r.Cached {
		t.Error("result should have expired")
	}
	if got := ex.PerformanceStats()[WhatCalls].Count; got != 2 {
		t.Errorf("performance count = %d, want 2", got)
	}
}

func TestCache_ValueCopy(t *testing.T) {
	ex := NewExecutor(chain(false))
	req := Request{Type: WhatCalls, Target: "C"}

	first := ex.Execute(req)
	first.Results[0].Name = "mutated"
	second := ex.Execute(req)
	if second.Results[0].Name != "B" {
		t.Errorf("stored entry was mutated through a returned result")
	}
}

func TestCache_ErrorCaching(t *testing.T) {
	ex := NewExecutor(chain(false))
	bad := Request{Type: WhatCalls, Target: "nope"}
	ex.Execute(bad)
	if r := ex.Execute(bad); !r.Cached {
		t.Error("errors are cached by default")
	}

	noErr := NewExecutor(chain(false), WithErrorCaching(false))
	noErr.Execute(bad)
	if r := noErr.Execute(bad); r.Cached {
		t.Error("errors should not be cached with error caching off")
	}
	if noErr.CacheSize() != 0 {
		t.Errorf("CacheSize = %d, want 0", noErr.CacheSize())
	}
}

func TestClearAndReset(t *testing.T) {
	ex := NewExecutor(chain(false))
	ex.Execute(Request{Type: WhatCalls, Target: "C"})
	ex.Execute(Request{Type: WhatCallsMe, Target: "C"})
	if ex.CacheSize() != 2 {
		t.Fatalf("CacheSize = %d, want 2", ex.CacheSize())
	}

	ex.ClearCache()
	if ex.CacheSize() != 0 {
		t.Errorf("CacheSize after clear = %d", ex.CacheSize())
	}
	ex.ResetPerformanceStats()
	if len(ex.PerformanceStats()) != 0 {
		t.Errorf("performance stats not reset")
	}
}

func TestExecuteBatchAndFilter(t *testing.T) {
	ex := NewExecutor(chain(true))
	results := ex.ExecuteBatch([]Request{
		{Type: WhatCalls, Target: "D"},
		{Type: ShortestPath, Target: "D"},
		{Type: WhatCallsMe, Target: "B"},
	})
	if len(results) != 3 {
		t.Fatalf("len = %d, want 3", len(results))
	}
	if !results[0].OK() || results[1].OK() || !results[2].OK() {
		t.Errorf("batch outcomes = %q %q %q", results[0].Error, results[1].Error, results[2].Error)
	}

	r := ex.QueryWithFilter(Request{Type: WhatCalls, Target: "D"}, func(it Item) bool { return it.ID == "X" })
	if got := ids(r.Results); !reflect.DeepEqual(got, []string{"X"}) || r.Count != 1 {
		t.Errorf("filtered = %v", got)
	}
	full := ex.Execute(Request{Type: WhatCalls, Target: "D"})
	if full.Count != 2 {
		t.Errorf("filter leaked into cache: count %d", full.Count)
	}
}

func TestHealthCheck(t *testing.T) {
	if h := NewExecutor(chain(false)).HealthCheck(); !h.Healthy || h.Nodes != 5 || h.Edges != 3 {
		t.Errorf("health = %+v", h)
	}
	if h := NewExecutor(nil).HealthCheck(); h.Healthy {
		t.Errorf("nil graph should be unhealthy")
	}
}

func TestScenario_TwoFileProject(t *testing.T) {
	dir := t.TempDir()
	file1 := filepath.Join(dir, "file1.ts")
	file2 := filepath.Join(dir, "file2.ts")
	if err := os.WriteFile(file1, []byte("function foo() { bar(); }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file2, []byte("function bar() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := scan.New(scan.DefaultOptions()).Scan(context.Background(), []string{file1, file2})
	ex := NewExecutor(graph.BuildGraph(res.Elements))

	callees := ex.Execute(Request{Type: WhatCallsMe, Target: "foo"})
	if !callees.OK() || callees.Count != 0 {
		t.Errorf("cross-file callee should be unresolved, got %v (%s)", ids(callees.Results), callees.Error)
	}

	deps := ex.Execute(Request{Type: WhatDependsOnMe, Target: "bar", MaxDepth: 1})
	if got, want := ids(deps.Results), []string{graph.FileID(file2)}; !reflect.DeepEqual(got, want) {
		t.Errorf("what-depends-on-me(bar) = %v, want %v", got, want)
	}

	// Same file: the call resolves.
	both := filepath.Join(dir, "both.ts")
	if err := os.WriteFile(both, []byte("function foo() { bar(); }\nfunction bar() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res = scan.New(scan.DefaultOptions()).Scan(context.Background(), []string{both})
	ex = NewExecutor(graph.BuildGraph(res.Elements))
	callees = ex.Execute(Request{Type: WhatCallsMe, Target: "foo"})
	if got, want := ids(callees.Results), []string{graph.ElementID(both, "bar")}; !reflect.DeepEqual(got, want) {
		t.Errorf("what-calls-me(foo) = %v, want %v", got, want)
	}
}

func TestNeighborhoodAndCap(t *testing.T) {
	g := chain(true)
	sub := Neighborhood(g, "B", 1, Both, 0)
	if len(sub.Nodes) != 3 {
		t.Errorf("ego nodes = %d, want 3 (A, B, C)", len(sub.Nodes))
	}
	if len(sub.Edges) != 2 {
		t.Errorf("ego edges = %d, want 2", len(sub.Edges))
	}

	fwd := Neighborhood(g, "B", 5, Forward, 0)
	if _, ok := fwd.Nodes["A"]; ok {
		t.Errorf("forward neighborhood should not include A")
	}

	empty := Neighborhood(g, "missing", 2, Both, 0)
	if len(empty.Nodes) != 0 || empty.Edges == nil {
		t.Errorf("missing target should give an empty subgraph")
	}

	capped := CapGraph(g, 2)
	if !capped.Truncated || len(capped.Nodes) != 2 {
		t.Errorf("capped = %d nodes, truncated=%v", len(capped.Nodes), capped.Truncated)
	}

	cg := capped.Graph()
	if len(cg.Nodes) != 2 || len(cg.Edges) != len(capped.Edges) {
		t.Errorf("standalone graph = %d nodes / %d edges", len(cg.Nodes), len(cg.Edges))
	}
	for _, e := range capped.Edges {
		if len(cg.EdgesBySource(e.Source)) == 0 {
			t.Errorf("edge from %s not indexed", e.Source)
		}
	}
}
