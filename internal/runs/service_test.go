package runs

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/coderef/coderef/internal/platform"
	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/dynimport"
	"github.com/coderef/coderef/pkg/graph"
	"github.com/coderef/coderef/pkg/scan"
)

func sampleAnalysis() *analysis.Analysis {
	g := graph.New()
	g.AddNode(&graph.GraphNode{ID: graph.FileID("a.ts"), Type: graph.NodeTypeFile, Name: "a.ts", File: "a.ts"})
	g.AddNode(&graph.GraphNode{ID: graph.ElementID("a.ts", "main"), Type: "function", Name: "main", File: "a.ts"})
	g.AddEdges(graph.GraphEdge{Source: graph.FileID("a.ts"), Target: graph.ElementID("a.ts", "main"), Type: graph.EdgeImports, Weight: 1})

	return &analysis.Analysis{
		Root: "/src/webapp",
		Scan: &scan.Result{
			Errors:   []scan.ScanError{{Severity: scan.SeverityError}},
			Warnings: []scan.ScanError{{Severity: scan.SeverityWarning}, {Severity: scan.SeverityWarning}},
			Stats:    scan.Stats{FilesAttempted: 3, FilesScanned: 2, FilesFailed: 1, ElementsFound: 1},
		},
		DynamicImports:  []dynimport.DynamicImport{{}},
		DynamicWarnings: []scan.ScanError{{Severity: scan.SeverityWarning}},
		Graph:           g,
		DurationMs:      12,
	}
}

func TestFromAnalysis(t *testing.T) {
	r := FromAnalysis("webapp", sampleAnalysis())

	if r.Project != "webapp" || r.Root != "/src/webapp" {
		t.Errorf("project/root = %q/%q", r.Project, r.Root)
	}
	if r.FilesAttempted != 3 || r.FilesScanned != 2 || r.FilesFailed != 1 {
		t.Errorf("file counts = %d/%d/%d", r.FilesAttempted, r.FilesScanned, r.FilesFailed)
	}
	if r.NodeCount != 2 || r.EdgeCount != 1 {
		t.Errorf("graph size = %d nodes, %d edges", r.NodeCount, r.EdgeCount)
	}
	if r.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", r.ErrorCount)
	}
	if r.WarningCount != 3 {
		t.Errorf("WarningCount = %d, want 3 (scan + dynamic)", r.WarningCount)
	}
	if r.DynamicImports != 1 {
		t.Errorf("DynamicImports = %d, want 1", r.DynamicImports)
	}
	if r.ID != "" {
		t.Errorf("unsaved run should have no ID, got %q", r.ID)
	}
}

func TestNewService(t *testing.T) {
	// NewService should not panic with nil db (it just stores the reference).
	if NewService(nil) == nil {
		t.Fatal("NewService returned nil")
	}
}

// testDB connects to CODEREF_TEST_DATABASE_URL and migrates it, skipping the
// test when no database is configured.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("CODEREF_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CODEREF_TEST_DATABASE_URL not set")
	}
	db, err := platform.OpenDB(context.Background(), url)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := platform.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestServiceRoundTrip(t *testing.T) {
	db := testDB(t)
	svc := NewService(db)
	ctx := context.Background()
	project := "test-" + uuid.New().String()

	recorded, err := svc.Record(ctx, FromAnalysis(project, sampleAnalysis()))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if recorded.ID == "" || recorded.CreatedAt.IsZero() {
		t.Fatalf("Record returned %+v", recorded)
	}

	exportID := uuid.New().String()
	if err := svc.AttachExport(ctx, recorded.ID, exportID); err != nil {
		t.Fatalf("AttachExport: %v", err)
	}

	got, err := svc.Get(ctx, recorded.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ExportID == nil || *got.ExportID != exportID {
		t.Errorf("ExportID = %v, want %s", got.ExportID, exportID)
	}

	list, err := svc.List(ctx, project, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != recorded.ID {
		t.Errorf("List = %+v", list)
	}

	if err := svc.AttachExport(ctx, uuid.New().String(), exportID); err == nil {
		t.Error("expected error attaching export to unknown run")
	}
}
