package surface

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/export"
	"github.com/coderef/coderef/pkg/graph"
	"github.com/coderef/coderef/pkg/query"
	"github.com/coderef/coderef/pkg/scan"
)

// TerminalRenderer renders results as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func severityColor(sev scan.Severity) string {
	switch sev {
	case scan.SeverityError:
		return colorRed
	case scan.SeverityWarning:
		return colorYellow
	default:
		return ""
	}
}

func (r *TerminalRenderer) RenderAnalysis(w io.Writer, an *analysis.Analysis) error {
	res := an.Scan
	fmt.Fprintf(w, "%s\n\n", bold("coderef: "+res.Summary()))

	counts := make(map[string]int)
	for _, el := range res.Elements {
		counts[string(el.Type)]++
	}
	fmt.Fprintf(w, "Elements: %d %s\n", len(res.Elements), dim(histogram(counts)))

	stats := export.ComputeStatistics(an.Graph)
	fmt.Fprintf(w, "Graph:    %d nodes / %d edges / %d phantom references %s\n",
		stats.NodeCount, stats.EdgeCount, stats.PhantomCount, dim(histogram(stats.EdgeTypes)))
	fmt.Fprintf(w, "Dynamic imports: %d\n\n", len(an.DynamicImports))

	renderProblems(w, "Errors", res.Errors)
	renderProblems(w, "Warnings", append(append([]scan.ScanError{}, res.Warnings...), an.DynamicWarnings...))
	return nil
}

func renderProblems(w io.Writer, title string, problems []scan.ScanError) {
	if len(problems) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for i, p := range problems {
		if i == maxListed {
			fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("... and %d more", len(problems)-maxListed)))
			break
		}
		loc := p.File
		if p.Line > 0 {
			loc = fmt.Sprintf("%s:%d", p.File, p.Line)
		}
		fmt.Fprintf(w, "  %s %s %s %s\n", colored("●", severityColor(p.Severity)), bold(string(p.Type)), loc, p.Message)
		if p.Suggestion != "" {
			for _, line := range wrapText(p.Suggestion, 70) {
				fmt.Fprintf(w, "    %s\n", dim(line))
			}
		}
	}
	fmt.Fprintln(w)
}

// histogram formats counts as "(a 2, b 1)" with keys sorted.
func histogram(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %d", k, counts[k])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (r *TerminalRenderer) RenderQueries(w io.Writer, results []query.Result) error {
	for _, res := range results {
		q := res.Query
		head := fmt.Sprintf("%s %s", q.Type, q.Target)
		if q.Source != "" {
			head = fmt.Sprintf("%s %s -> %s", q.Type, q.Source, q.Target)
		}

		if !res.OK() {
			fmt.Fprintf(w, "%s: %s\n\n", bold(head), colored("error: "+res.Error, colorRed))
			continue
		}

		meta := fmt.Sprintf("%d results in %s", res.Count, res.ExecutionTime.Round(time.Microsecond))
		if res.Cached {
			meta += ", cached"
		}
		fmt.Fprintf(w, "%s %s\n", bold(head), dim("("+meta+")"))
		for _, it := range res.Results {
			fmt.Fprintf(w, "  %s %s\n", colored("•", colorGreen), itemLine(it))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func itemLine(it query.Item) string {
	if it.Phantom {
		return it.ID + " " + dim("(outside scanned files)")
	}
	var b strings.Builder
	b.WriteString(it.Name)
	if it.Type != "" {
		b.WriteString(" " + dim(it.Type))
	}
	if it.File != "" && it.Type != graph.NodeTypeFile {
		loc := it.File
		if it.Line > 0 {
			loc = fmt.Sprintf("%s:%d", it.File, it.Line)
		}
		b.WriteString(" " + dim(loc))
	}
	return b.String()
}

func (r *TerminalRenderer) RenderDelta(w io.Writer, delta *graph.Delta) error {
	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("Delta: +%d/-%d nodes, +%d/-%d edges",
		delta.Stats.AddedNodeCount, delta.Stats.RemovedNodeCount,
		delta.Stats.AddedEdgeCount, delta.Stats.RemovedEdgeCount)))

	if delta.Empty() {
		fmt.Fprintln(w, "No structural changes.")
		return nil
	}

	section := func(title, sign, color string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(w, "%s:\n", title)
		for i, l := range lines {
			if i == maxListed {
				fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("... and %d more", len(lines)-maxListed)))
				break
			}
			fmt.Fprintf(w, "  %s %s\n", colored(sign, color), l)
		}
		fmt.Fprintln(w)
	}
	section("Added nodes", "+", colorGreen, nodeLines(delta.AddedNodes))
	section("Removed nodes", "-", colorRed, nodeLines(delta.RemovedNodes))
	section("Added edges", "+", colorGreen, edgeLines(delta.AddedEdges))
	section("Removed edges", "-", colorRed, edgeLines(delta.RemovedEdges))
	return nil
}

func nodeLines(nodes []graph.GraphNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = fmt.Sprintf("%s (%s)", n.ID, n.Type)
	}
	return out
}

func edgeLines(edges []graph.GraphEdge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = fmt.Sprintf("%s -[%s]-> %s", e.Source, e.Type, e.Target)
	}
	return out
}

// wrapText wraps a string at the given width, returning lines.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return lines
}
