package api

import (
	"encoding/json"
	"net/http"

	"github.com/coderef/coderef/pkg/query"
)

// maxBatch bounds the number of queries in one batch request.
const maxBatch = 100

type batchRequest struct {
	Queries []query.Request `json:"queries"`
}

type batchResponse struct {
	Results []query.Result `json:"results"`
	Count   int            `json:"count"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	_, ex, ok := h.current(w)
	if !ok {
		return
	}

	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// Query failures are part of the result; only malformed requests are
	// rejected at the HTTP level.
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ex.Execute(req))
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	_, ex, ok := h.current(w)
	if !ok {
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, "queries is required")
		return
	}
	if len(req.Queries) > maxBatch {
		writeError(w, http.StatusBadRequest, "too many queries in batch")
		return
	}

	results := ex.ExecuteBatch(req.Queries)
	writeJSON(w, http.StatusOK, batchResponse{Results: results, Count: len(results)})
}

type perfEntry struct {
	Count     int     `json:"count"`
	TotalMs   float64 `json:"total_ms"`
	AverageMs float64 `json:"average_ms"`
}

func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	_, ex, ok := h.current(w)
	if !ok {
		return
	}
	out := make(map[query.Type]perfEntry)
	for t, s := range ex.PerformanceStats() {
		out[t] = perfEntry{
			Count:     s.Count,
			TotalMs:   float64(s.Total.Microseconds()) / 1000,
			AverageMs: float64(s.Average.Microseconds()) / 1000,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cache_entries": ex.CacheSize(),
		"queries":       out,
	})
}

func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	_, ex, ok := h.current(w)
	if !ok {
		return
	}
	ex.ClearCache()
	if r.URL.Query().Get("reset_stats") == "true" {
		ex.ResetPerformanceStats()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
