package api

import (
	"net/http"

	"github.com/coderef/coderef/pkg/query"
)

type healthResponse struct {
	Status     string       `json:"status"`
	Generation int          `json:"generation"`
	Query      query.Health `json:"query"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, ex, err := h.sess.Current()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status: "starting",
			Query:  query.Health{Error: err.Error()},
		})
		return
	}

	hc := ex.HealthCheck()
	status, code := "ok", http.StatusOK
	if !hc.Healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{Status: status, Generation: h.sess.Generation(), Query: hc})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	list, err := h.runs.List(r.Context(), h.project, intParam(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs: "+err.Error())
		return
	}
	if list == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, list)
}
