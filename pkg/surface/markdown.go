package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/export"
	"github.com/coderef/coderef/pkg/graph"
	"github.com/coderef/coderef/pkg/query"
	"github.com/coderef/coderef/pkg/scan"
)

// MarkdownRenderer produces Markdown suitable for pull request comments
// and generated documentation.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) RenderAnalysis(w io.Writer, an *analysis.Analysis) error {
	var sb strings.Builder
	res := an.Scan
	stats := export.ComputeStatistics(an.Graph)

	sb.WriteString("## coderef scan\n\n")
	sb.WriteString("| Metric | Count |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Files scanned | %d / %d |\n", res.Stats.FilesScanned, res.Stats.FilesAttempted))
	sb.WriteString(fmt.Sprintf("| Files failed | %d |\n", res.Stats.FilesFailed))
	sb.WriteString(fmt.Sprintf("| Elements | %d |\n", res.Stats.ElementsFound))
	sb.WriteString(fmt.Sprintf("| Dynamic imports | %d |\n", len(an.DynamicImports)))
	sb.WriteString(fmt.Sprintf("| Graph nodes | %d |\n", stats.NodeCount))
	sb.WriteString(fmt.Sprintf("| Graph edges | %d |\n", stats.EdgeCount))
	sb.WriteString(fmt.Sprintf("| Duration | %dms |\n", res.Stats.DurationMs))
	sb.WriteString("\n")

	if len(res.Errors) > 0 {
		sb.WriteString("### Errors\n\n")
		writeProblems(&sb, res.Errors)
	}
	if len(res.Warnings) > 0 {
		sb.WriteString("### Warnings\n\n")
		writeProblems(&sb, res.Warnings)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeProblems(sb *strings.Builder, problems []scan.ScanError) {
	for i, p := range problems {
		if i == maxListed {
			sb.WriteString(fmt.Sprintf("_... and %d more_\n", len(problems)-maxListed))
			break
		}
		sb.WriteString(fmt.Sprintf("- %s **%s** `%s`: %s\n", severityIcon(p.Severity), p.Type, p.File, p.Message))
		if p.Suggestion != "" {
			sb.WriteString(fmt.Sprintf("  - %s\n", p.Suggestion))
		}
	}
	sb.WriteString("\n")
}

func severityIcon(sev scan.Severity) string {
	switch sev {
	case scan.SeverityError:
		return ":red_circle:"
	case scan.SeverityWarning:
		return ":yellow_circle:"
	default:
		return ":blue_circle:"
	}
}

func (r *MarkdownRenderer) RenderQueries(w io.Writer, results []query.Result) error {
	var sb strings.Builder
	for _, res := range results {
		sb.WriteString(fmt.Sprintf("### `%s` %s\n\n", res.Query.Type, res.Query.Target))
		if !res.OK() {
			sb.WriteString(fmt.Sprintf(":red_circle: %s\n\n", res.Error))
			continue
		}
		if res.Count == 0 {
			sb.WriteString("_No results._\n\n")
			continue
		}
		sb.WriteString("| Name | Type | Location |\n|------|------|----------|\n")
		for _, it := range res.Results {
			loc := it.File
			if it.Line > 0 {
				loc = fmt.Sprintf("%s:%d", it.File, it.Line)
			}
			if it.Phantom {
				loc = "_outside scanned files_"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", it.Name, it.Type, loc))
		}
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func (r *MarkdownRenderer) RenderDelta(w io.Writer, delta *graph.Delta) error {
	var sb strings.Builder

	sb.WriteString("## coderef graph delta\n\n")
	sb.WriteString("| Metric | Count |\n|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Added Nodes | %d |\n", delta.Stats.AddedNodeCount))
	sb.WriteString(fmt.Sprintf("| Removed Nodes | %d |\n", delta.Stats.RemovedNodeCount))
	sb.WriteString(fmt.Sprintf("| Added Edges | %d |\n", delta.Stats.AddedEdgeCount))
	sb.WriteString(fmt.Sprintf("| Removed Edges | %d |\n", delta.Stats.RemovedEdgeCount))
	sb.WriteString("\n")

	list := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		sb.WriteString("### " + title + "\n\n")
		for i, l := range lines {
			if i == maxListed {
				sb.WriteString(fmt.Sprintf("_... and %d more_\n", len(lines)-maxListed))
				break
			}
			sb.WriteString("- `" + l + "`\n")
		}
		sb.WriteString("\n")
	}
	list("Added nodes", nodeLines(delta.AddedNodes))
	list("Removed nodes", nodeLines(delta.RemovedNodes))
	list("Added edges", edgeLines(delta.AddedEdges))
	list("Removed edges", edgeLines(delta.RemovedEdges))

	_, err := io.WriteString(w, sb.String())
	return err
}
