// Package runs records a ledger of analysis runs in Postgres. Only the
// ScanStats summary and graph size are stored, never the graph itself.
package runs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coderef/coderef/pkg/analysis"
)

// Service provides run ledger access backed by Postgres.
type Service struct {
	db *sql.DB
}

// Run is one recorded analysis run.
type Run struct {
	ID             string    `json:"id"`
	Project        string    `json:"project"`
	Root           string    `json:"root"`
	FilesAttempted int       `json:"files_attempted"`
	FilesScanned   int       `json:"files_scanned"`
	FilesFailed    int       `json:"files_failed"`
	ElementsFound  int       `json:"elements_found"`
	DynamicImports int       `json:"dynamic_imports"`
	NodeCount      int       `json:"node_count"`
	EdgeCount      int       `json:"edge_count"`
	ErrorCount     int       `json:"error_count"`
	WarningCount   int       `json:"warning_count"`
	DurationMs     int64     `json:"duration_ms"`
	ExportID       *string   `json:"export_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewService creates a new run ledger Service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// FromAnalysis summarizes an analysis as an unsaved Run.
func FromAnalysis(project string, an *analysis.Analysis) Run {
	st := an.Scan.Stats
	r := Run{
		Project:        project,
		Root:           an.Root,
		FilesAttempted: st.FilesAttempted,
		FilesScanned:   st.FilesScanned,
		FilesFailed:    st.FilesFailed,
		ElementsFound:  st.ElementsFound,
		DynamicImports: len(an.DynamicImports),
		ErrorCount:     len(an.Scan.Errors),
		WarningCount:   len(an.Scan.Warnings) + len(an.DynamicWarnings),
		DurationMs:     an.DurationMs,
	}
	if an.Graph != nil {
		r.NodeCount = len(an.Graph.Nodes)
		r.EdgeCount = len(an.Graph.Edges)
	}
	return r
}

const runColumns = `id, project, root, files_attempted, files_scanned, files_failed,
		        elements_found, dynamic_imports, node_count, edge_count,
		        error_count, warning_count, duration_ms, export_id, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	r := &Run{}
	err := row.Scan(
		&r.ID, &r.Project, &r.Root, &r.FilesAttempted, &r.FilesScanned, &r.FilesFailed,
		&r.ElementsFound, &r.DynamicImports, &r.NodeCount, &r.EdgeCount,
		&r.ErrorCount, &r.WarningCount, &r.DurationMs, &r.ExportID, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Record inserts a run and returns it with its ID and creation time set.
func (s *Service) Record(ctx context.Context, run Run) (*Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`INSERT INTO scan_runs (id, project, root, files_attempted, files_scanned, files_failed,
		                        elements_found, dynamic_imports, node_count, edge_count,
		                        error_count, warning_count, duration_ms, export_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING `+runColumns,
		run.ID, run.Project, run.Root, run.FilesAttempted, run.FilesScanned, run.FilesFailed,
		run.ElementsFound, run.DynamicImports, run.NodeCount, run.EdgeCount,
		run.ErrorCount, run.WarningCount, run.DurationMs, run.ExportID,
	))
	if err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	return r, nil
}

// Get returns a single run by ID.
func (s *Service) Get(ctx context.Context, runID string) (*Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM scan_runs WHERE id = $1`, runID))
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// List returns the most recent runs for a project, newest first.
func (s *Service) List(ctx context.Context, project string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM scan_runs
		 WHERE project = $1 ORDER BY created_at DESC LIMIT $2`,
		project, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// AttachExport links a published export document to a run.
func (s *Service) AttachExport(ctx context.Context, runID, exportID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scan_runs SET export_id = $2 WHERE id = $1`, runID, exportID)
	if err != nil {
		return fmt.Errorf("attach export to run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach export to run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("attach export to run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}
