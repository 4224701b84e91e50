// Package surface renders analysis summaries, query results and graph
// deltas for different output targets: terminal, JSON and Markdown.
package surface

import (
	"fmt"
	"io"

	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/graph"
	"github.com/coderef/coderef/pkg/query"
)

// Renderer produces formatted output.
type Renderer interface {
	RenderAnalysis(w io.Writer, an *analysis.Analysis) error
	RenderQueries(w io.Writer, results []query.Result) error
	RenderDelta(w io.Writer, delta *graph.Delta) error
}

// New returns the renderer for a named output format.
func New(format string) (Renderer, error) {
	switch format {
	case "", "text", "terminal":
		return &TerminalRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// maxListed caps how many errors, warnings or delta entries are listed.
const maxListed = 10
