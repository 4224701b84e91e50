package surface_test

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/graph"
	"github.com/coderef/coderef/pkg/query"
	"github.com/coderef/coderef/pkg/scan"
	"github.com/coderef/coderef/pkg/surface"
)

func sampleAnalysis() *analysis.Analysis {
	g := graph.New()
	g.AddNode(&graph.GraphNode{ID: graph.FileID("src/a.ts"), Type: graph.NodeTypeFile, Name: "a.ts", File: "src/a.ts"})
	g.AddNode(&graph.GraphNode{ID: graph.ElementID("src/a.ts", "main"), Type: "function", Name: "main", File: "src/a.ts", Line: 3})
	g.AddEdges(
		graph.GraphEdge{Source: graph.FileID("src/a.ts"), Target: graph.ElementID("src/a.ts", "main"), Type: graph.EdgeImports, Weight: 1},
		graph.GraphEdge{Source: graph.FileID("src/a.ts"), Target: graph.FileID("react"), Type: graph.EdgeImports, Weight: 1},
	)

	return &analysis.Analysis{
		Root: "src",
		Scan: &scan.Result{
			Files: []string{"src/a.ts"},
			Errors: []scan.ScanError{{
				Type:       scan.ErrorType("file_not_found"),
				Severity:   scan.SeverityError,
				File:       "src/gone.ts",
				Message:    "no such file or directory",
				Suggestion: "Check that the file exists and that the path is spelled correctly.",
			}},
			Warnings: []scan.ScanError{},
			Stats:    scan.Stats{FilesAttempted: 2, FilesScanned: 1, FilesFailed: 1, ElementsFound: 1, DurationMs: 4},
		},
		Graph: g,
	}
}

func sampleResults() []query.Result {
	return []query.Result{
		{
			Query: query.Request{Type: query.WhatCalls, Target: "helper"},
			Results: []query.Item{
				{ID: graph.ElementID("src/a.ts", "main"), Name: "main", Type: "function", File: "src/a.ts", Line: 3},
				{ID: graph.FileID("react"), Name: "react", Phantom: true},
			},
			Count:         2,
			ExecutionTime: 120 * time.Microsecond,
			Cached:        true,
		},
		{
			Query: query.Request{Type: query.ShortestPath, Target: "b"},
			Error: query.ErrSourceRequired.Error(),
		},
	}
}

func sampleDelta() *graph.Delta {
	base := graph.New()
	head := graph.New()
	head.AddNode(&graph.GraphNode{ID: "src/a.ts#main", Type: "function", Name: "main"})
	head.AddEdges(graph.GraphEdge{Source: "src/a.ts", Target: "src/a.ts#main", Type: graph.EdgeImports, Weight: 1})
	return graph.ComputeDelta(base, head)
}

func TestTerminalRenderer_Analysis(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	if err := (&surface.TerminalRenderer{}).RenderAnalysis(&buf, sampleAnalysis()); err != nil {
		t.Fatalf("RenderAnalysis() error: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"scanned 1/2 files (1 failed)",
		"Elements: 0",
		"Graph:    2 nodes / 2 edges / 1 phantom references (imports 2)",
		"Errors:",
		"file_not_found src/gone.ts no such file or directory",
		"Check that the file exists",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Warnings:") {
		t.Error("expected no Warnings section")
	}
}

func TestTerminalRenderer_Queries(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	if err := (&surface.TerminalRenderer{}).RenderQueries(&buf, sampleResults()); err != nil {
		t.Fatalf("RenderQueries() error: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"what-calls helper (2 results in 120µs, cached)",
		"main function src/a.ts:3",
		"file:react (outside scanned files)",
		"shortest-path b: error: " + query.ErrSourceRequired.Error(),
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestTerminalRenderer_Delta(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	if err := (&surface.TerminalRenderer{}).RenderDelta(&buf, sampleDelta()); err != nil {
		t.Fatalf("RenderDelta() error: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Delta: +1/-0 nodes, +1/-0 edges") {
		t.Errorf("unexpected header:\n%s", output)
	}
	if !strings.Contains(output, "+ src/a.ts -[imports]-> src/a.ts#main") {
		t.Errorf("expected added edge line:\n%s", output)
	}

	buf.Reset()
	empty := graph.ComputeDelta(graph.New(), graph.New())
	if err := (&surface.TerminalRenderer{}).RenderDelta(&buf, empty); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No structural changes.") {
		t.Errorf("expected no-change message, got:\n%s", buf.String())
	}
}

func TestTerminalRenderer_ColorRespected(t *testing.T) {
	// Without NO_COLOR, output should have ANSI codes
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")

	var buf bytes.Buffer
	if err := (&surface.TerminalRenderer{}).RenderQueries(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\033[") {
		t.Error("expected ANSI escape codes when NO_COLOR is not set")
	}
}

func TestMarkdownRenderer(t *testing.T) {
	r := &surface.MarkdownRenderer{}

	var buf bytes.Buffer
	if err := r.RenderAnalysis(&buf, sampleAnalysis()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "| Files scanned | 1 / 2 |") {
		t.Errorf("missing scan table:\n%s", out)
	}
	if !strings.Contains(out, ":red_circle: **file_not_found** `src/gone.ts`") {
		t.Errorf("missing error entry:\n%s", out)
	}

	buf.Reset()
	if err := r.RenderQueries(&buf, sampleResults()); err != nil {
		t.Fatal(err)
	}
	out = buf.String()
	if !strings.Contains(out, "| main | function | src/a.ts:3 |") {
		t.Errorf("missing result row:\n%s", out)
	}
	if !strings.Contains(out, "| react |  | _outside scanned files_ |") {
		t.Errorf("missing phantom row:\n%s", out)
	}

	buf.Reset()
	if err := r.RenderDelta(&buf, sampleDelta()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "| Added Nodes | 1 |") {
		t.Errorf("missing delta table:\n%s", buf.String())
	}
}

func TestJSONRenderer_Queries(t *testing.T) {
	var buf bytes.Buffer
	results := sampleResults()
	if err := (&surface.JSONRenderer{}).RenderQueries(&buf, results[:1]); err != nil {
		t.Fatal(err)
	}

	var got query.Result
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("single result should encode as an object: %v", err)
	}
	if got.Count != 2 || !got.Cached {
		t.Errorf("got count=%d cached=%v", got.Count, got.Cached)
	}

	buf.Reset()
	if err := (&surface.JSONRenderer{}).RenderQueries(&buf, results); err != nil {
		t.Fatal(err)
	}
	var all []query.Result
	if err := json.Unmarshal(buf.Bytes(), &all); err != nil {
		t.Fatalf("batch should encode as an array: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d results, want 2", len(all))
	}
}

func TestJSONRenderer_AnalysisIncludesStatistics(t *testing.T) {
	var buf bytes.Buffer
	if err := (&surface.JSONRenderer{}).RenderAnalysis(&buf, sampleAnalysis()); err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	stats, ok := doc["statistics"].(map[string]any)
	if !ok {
		t.Fatalf("expected statistics object, got %v", doc["statistics"])
	}
	if stats["nodeCount"] != float64(2) {
		t.Errorf("nodeCount = %v, want 2", stats["nodeCount"])
	}
	if doc["root"] != "src" {
		t.Errorf("root = %v", doc["root"])
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"", "text", "json", "markdown", "md"} {
		if _, err := surface.New(format); err != nil {
			t.Errorf("New(%q) error: %v", format, err)
		}
	}
	if _, err := surface.New("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
