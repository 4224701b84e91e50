package api

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/coderef/coderef/internal/storage"
	"github.com/coderef/coderef/pkg/export"
)

// maxUpload bounds uploaded export documents.
const maxUpload = 64 << 20

type publishResponse struct {
	ID         string            `json:"id"`
	GraphID    string            `json:"graph_id"`
	Statistics export.Statistics `json:"statistics"`
}

// handlePublishExport exports the current graph, stores it and returns its ID.
func (h *Handler) handlePublishExport(w http.ResponseWriter, r *http.Request) {
	an, _, ok := h.current(w)
	if !ok {
		return
	}

	opts := h.exportOp
	switch r.URL.Query().Get("visualization") {
	case "true":
		opts.Visualization = true
	case "false":
		opts.Visualization = false
	}

	doc := export.NewExporter(an.Graph, opts).Document()
	data, err := export.Marshal(doc, opts.Pretty)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.store.PutExport(r.Context(), h.project, doc.ID, data); err != nil {
		slog.Error("store export", "export_id", doc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store export")
		return
	}
	h.exports.Put(doc.ID, data)
	h.linkExport(r, doc.ID)

	writeJSON(w, http.StatusCreated, publishResponse{ID: doc.ID, GraphID: an.Graph.ID, Statistics: doc.Statistics})
}

// exportLinker is implemented by run ledgers that can reference exports.
type exportLinker interface {
	AttachExport(ctx context.Context, runID, exportID string) error
}

// linkExport attaches a published export to the project's latest run.
// Failures are logged; the export itself is already stored.
func (h *Handler) linkExport(r *http.Request, exportID string) {
	linker, ok := h.runs.(exportLinker)
	if !ok {
		return
	}
	latest, err := h.runs.List(r.Context(), h.project, 1)
	if err != nil || len(latest) == 0 {
		return
	}
	if err := linker.AttachExport(r.Context(), latest[0].ID, exportID); err != nil {
		slog.Warn("link export to run", "export_id", exportID, "run_id", latest[0].ID, "error", err)
	}
}

func (h *Handler) handleGetExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("exportID")

	data := h.exports.Get(id)
	if data == nil {
		var err error
		data, err = h.store.GetExport(r.Context(), h.project, id)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "export not found")
			return
		}
		if err != nil {
			slog.Error("load export", "export_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load export")
			return
		}
		h.exports.Put(id, data)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type validateResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

// handleValidateExport checks an uploaded export document. Bodies may be
// gzip-compressed.
func (h *Handler) handleValidateExport(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = http.MaxBytesReader(w, r.Body, maxUpload)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid gzip body: "+err.Error())
			return
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}

	problems := export.ValidateExport(data)
	if problems == nil {
		problems = []string{}
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: len(problems) == 0, Problems: problems})
}
