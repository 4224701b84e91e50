package api

import (
	"net/http"
	"strconv"

	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/export"
	"github.com/coderef/coderef/pkg/query"
)

const defaultMaxNodes = 500

// current returns the published analysis and executor, writing a 503 when
// the first build has not finished.
func (h *Handler) current(w http.ResponseWriter) (*analysis.Analysis, *query.Executor, bool) {
	an, ex, err := h.sess.Current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return nil, nil, false
	}
	return an, ex, true
}

func intParam(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

// handleGraph serves the current graph as an export document. Graphs over
// max_nodes are cut down to their best-connected nodes and flagged with the
// X-Graph-Truncated header.
func (h *Handler) handleGraph(w http.ResponseWriter, r *http.Request) {
	an, _, ok := h.current(w)
	if !ok {
		return
	}

	g := an.Graph
	if maxNodes := intParam(r, "max_nodes", defaultMaxNodes); len(g.Nodes) > maxNodes {
		g = query.CapGraph(g, maxNodes).Graph()
		g.ID = an.Graph.ID
		w.Header().Set("X-Graph-Truncated", "true")
	}
	writeJSON(w, http.StatusOK, export.NewExporter(g, h.exportOp).Document())
}

type statsResponse struct {
	Root           string            `json:"root"`
	GraphID        string            `json:"graph_id"`
	Generation     int               `json:"generation"`
	Summary        string            `json:"summary"`
	Statistics     export.Statistics `json:"statistics"`
	FilesScanned   int               `json:"files_scanned"`
	FilesFailed    int               `json:"files_failed"`
	DynamicImports int               `json:"dynamic_imports"`
	AnalysisMs     int64             `json:"analysis_ms"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	an, _, ok := h.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Root:           an.Root,
		GraphID:        an.Graph.ID,
		Generation:     h.sess.Generation(),
		Summary:        an.Summary(),
		Statistics:     export.ComputeStatistics(an.Graph),
		FilesScanned:   an.Scan.Stats.FilesScanned,
		FilesFailed:    an.Scan.Stats.FilesFailed,
		DynamicImports: len(an.DynamicImports),
		AnalysisMs:     an.DurationMs,
	})
}

func (h *Handler) handleEgo(w http.ResponseWriter, r *http.Request) {
	an, _, ok := h.current(w)
	if !ok {
		return
	}

	target := r.URL.Query().Get("target")
	if target == "" {
		writeError(w, http.StatusBadRequest, "target parameter required")
		return
	}

	dir := query.Direction(r.URL.Query().Get("direction"))
	switch dir {
	case "":
		dir = query.Both
	case query.Forward, query.Reverse, query.Both:
	default:
		writeError(w, http.StatusBadRequest, "direction must be forward, reverse or both")
		return
	}

	result := query.Neighborhood(an.Graph, target, intParam(r, "depth", 2), dir, intParam(r, "max_nodes", defaultMaxNodes))
	if len(result.Nodes) == 0 {
		writeError(w, http.StatusNotFound, query.ErrTargetNotFound.Error()+": "+target)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
