// Package analysis runs the full pipeline over a project: element scan,
// dynamic-import detection and graph assembly.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coderef/coderef/pkg/dynimport"
	"github.com/coderef/coderef/pkg/graph"
	"github.com/coderef/coderef/pkg/scan"
)

// Analysis is the outcome of one pipeline run. The graph is built fresh for
// every run and is not modified afterwards.
type Analysis struct {
	Root            string                   `json:"root"`
	Scan            *scan.Result             `json:"scan"`
	DynamicImports  []dynimport.DynamicImport `json:"dynamic_imports"`
	DynamicWarnings []scan.ScanError         `json:"dynamic_warnings,omitempty"`
	Graph           *graph.DependencyGraph   `json:"-"`
	BuiltAt         time.Time                `json:"built_at"`
	DurationMs      int64                    `json:"duration_ms"`
}

// Summary returns a one-line human summary of the run.
func (a *Analysis) Summary() string {
	return fmt.Sprintf("%s; %d dynamic imports; graph %d nodes, %d edges",
		a.Scan.Summary(), len(a.DynamicImports), len(a.Graph.Nodes), len(a.Graph.Edges))
}

// Analyzer owns the scanner and the dynamic-import detector. The detector's
// per-file cache survives across runs; callers invalidate changed files.
type Analyzer struct {
	scanner  *scan.Scanner
	detector *dynimport.Detector
	resolver *dynimport.Resolver
}

// New returns an Analyzer scanning with opts.
func New(opts scan.Options) *Analyzer {
	resolver := dynimport.NewResolver()
	scanner := scan.New(opts)
	return &Analyzer{
		scanner: scanner,
		detector: dynimport.NewDetector(
			dynimport.WithResolver(resolver),
			dynimport.WithMaxFileSize(scanner.Options().MaxFileSize),
		),
		resolver: resolver,
	}
}

// Detector returns the dynamic-import detector, for cache invalidation.
func (a *Analyzer) Detector() *dynimport.Detector {
	return a.detector
}

// AnalyzeDir analyzes every eligible file under root. The root is made
// absolute so file node IDs match resolved import paths.
func (a *Analyzer) AnalyzeDir(ctx context.Context, root string) (*Analysis, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}
	files, problems := a.scanner.Files(abs)
	an := a.AnalyzeFiles(ctx, files)
	an.Root = abs
	an.Scan.AddWalkProblems(problems)
	return an, nil
}

// AnalyzeFiles runs the element scan and the dynamic-import pass
// concurrently over files, then assembles the graph.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, files []string) *Analysis {
	start := time.Now()
	an := &Analysis{}

	// Both passes record failures instead of returning errors.
	var g errgroup.Group
	g.Go(func() error {
		an.Scan = a.scanner.Scan(ctx, files)
		return nil
	})
	g.Go(func() error {
		an.DynamicImports, an.DynamicWarnings = a.detector.DetectFiles(ctx, files)
		return nil
	})
	_ = g.Wait()

	an.Graph = a.build(an)
	an.BuiltAt = time.Now()
	an.DurationMs = time.Since(start).Milliseconds()

	slog.Debug("analysis complete",
		"files", len(files),
		"elements", len(an.Scan.Elements),
		"dynamic_imports", len(an.DynamicImports),
		"nodes", len(an.Graph.Nodes),
		"edges", len(an.Graph.Edges),
		"duration_ms", an.DurationMs)
	return an
}

func (a *Analyzer) build(an *Analysis) *graph.DependencyGraph {
	b := graph.NewBuilder(a.resolver)
	for _, f := range an.Scan.Files {
		b.AddFile(f)
	}
	b.AddElements(an.Scan.Elements)
	for _, f := range an.Scan.Files {
		for _, ref := range an.Scan.Imports[f] {
			b.AddImport(f, ref.Module)
		}
	}
	// Dynamic-call edges only leave files the scan accepted.
	scanned := make(map[string]bool, len(an.Scan.Files))
	for _, f := range an.Scan.Files {
		scanned[f] = true
	}
	var accepted []dynimport.DynamicImport
	for _, imp := range an.DynamicImports {
		if scanned[imp.SourceFile] {
			accepted = append(accepted, imp)
		}
	}
	for _, e := range dynimport.CallEdges(accepted) {
		b.AddEdges(e.GraphEdge())
	}
	return b.Graph()
}
