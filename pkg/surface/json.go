package surface

import (
	"encoding/json"
	"io"

	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/export"
	"github.com/coderef/coderef/pkg/graph"
	"github.com/coderef/coderef/pkg/query"
)

// JSONRenderer writes indented JSON.
type JSONRenderer struct{}

type analysisView struct {
	*analysis.Analysis
	Statistics export.Statistics `json:"statistics"`
}

func (r *JSONRenderer) RenderAnalysis(w io.Writer, an *analysis.Analysis) error {
	return encode(w, analysisView{Analysis: an, Statistics: export.ComputeStatistics(an.Graph)})
}

func (r *JSONRenderer) RenderQueries(w io.Writer, results []query.Result) error {
	if len(results) == 1 {
		return encode(w, results[0])
	}
	return encode(w, results)
}

func (r *JSONRenderer) RenderDelta(w io.Writer, delta *graph.Delta) error {
	return encode(w, delta)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
