// Package api implements the coderef HTTP API: graph and query endpoints
// over the current analysis, and export publishing backed by blob storage.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coderef/coderef/internal/runs"
	"github.com/coderef/coderef/internal/session"
	"github.com/coderef/coderef/internal/storage"
	"github.com/coderef/coderef/pkg/export"
)

// RunLister lists recorded analysis runs.
type RunLister interface {
	List(ctx context.Context, project string, limit int) ([]runs.Run, error)
}

// Handler is the top-level API handler.
type Handler struct {
	sess     *session.Session
	store    storage.ExportStore
	exports  *ExportCache
	project  string
	runs     RunLister
	exportOp export.Options
}

// Option configures a Handler.
type Option func(*Handler)

// WithExportCache sets the cache of published export documents.
func WithExportCache(c *ExportCache) Option {
	return func(h *Handler) { h.exports = c }
}

// WithRuns enables the run history endpoint.
func WithRuns(r RunLister) Option {
	return func(h *Handler) { h.runs = r }
}

// WithExportOptions sets the defaults for published exports.
func WithExportOptions(o export.Options) Option {
	return func(h *Handler) { h.exportOp = o }
}

// NewHandler creates a new API handler. project namespaces stored exports.
func NewHandler(sess *session.Session, store storage.ExportStore, project string, opts ...Option) *Handler {
	h := &Handler{
		sess:     sess,
		store:    store,
		project:  project,
		exportOp: export.Options{Visualization: true},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.exports == nil {
		h.exports = NewExportCacheFromEnv()
	}
	return h
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Graph
	mux.HandleFunc("GET /api/graph", h.handleGraph)
	mux.HandleFunc("GET /api/graph/stats", h.handleStats)
	mux.HandleFunc("GET /api/graph/ego", h.handleEgo)

	// Queries
	mux.HandleFunc("POST /api/query", h.handleQuery)
	mux.HandleFunc("POST /api/query/batch", h.handleBatch)
	mux.HandleFunc("GET /api/query/performance", h.handlePerformance)
	mux.HandleFunc("DELETE /api/query/cache", h.handleClearCache)

	// Exports
	mux.HandleFunc("POST /api/exports", h.handlePublishExport)
	mux.HandleFunc("POST /api/exports/validate", h.handleValidateExport)
	mux.HandleFunc("GET /api/exports/{exportID}", h.handleGetExport)

	if h.runs != nil {
		mux.HandleFunc("GET /api/runs", h.handleListRuns)
	}

	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
