// Package export serializes a DependencyGraph for visualization and
// downstream consumers, and reads such documents back.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/coderef/coderef/pkg/graph"
)

// Version is the document format version written by this package.
const Version = "1.0"

// Format selects the serialization.
type Format string

const (
	FormatJSON Format = "json"
	// FormatCompact is reserved for a binary encoding. It is not implemented
	// and currently produces JSON with a logged warning.
	FormatCompact Format = "compact"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCompact, "binary":
		return FormatCompact, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Document is the exported form of a graph.
type Document struct {
	ID            string            `json:"id,omitempty"`
	Version       string            `json:"version"`
	ExportedAt    time.Time         `json:"exportedAt"`
	Nodes         []graph.GraphNode `json:"nodes"`
	Edges         []graph.GraphEdge `json:"edges"`
	Statistics    Statistics        `json:"statistics"`
	Visualization *Visualization    `json:"visualization,omitempty"`
}

// Options controls what an Exporter writes.
type Options struct {
	Visualization bool
	Pretty        bool
}

// Exporter turns one graph into export documents.
type Exporter struct {
	graph *graph.DependencyGraph
	opts  Options
	now   func() time.Time
}

// NewExporter returns an Exporter for g.
func NewExporter(g *graph.DependencyGraph, opts Options) *Exporter {
	return &Exporter{graph: g, opts: opts, now: time.Now}
}

// Document builds the export document. Nodes are sorted by ID; edges keep
// insertion order.
func (e *Exporter) Document() *Document {
	nodes := make([]graph.GraphNode, 0, len(e.graph.Nodes))
	for _, n := range e.graph.Nodes {
		nodes = append(nodes, *n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	doc := &Document{
		ID:         uuid.New().String(),
		Version:    Version,
		ExportedAt: e.now().UTC(),
		Nodes:      nodes,
		Edges:      append([]graph.GraphEdge{}, e.graph.Edges...),
		Statistics: ComputeStatistics(e.graph),
	}
	if e.opts.Visualization {
		doc.Visualization = CircularLayout(nodes)
	}
	return doc
}

// Export serializes the graph in the given format.
func (e *Exporter) Export(format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
	case FormatCompact:
		slog.Warn("compact export format is not implemented, writing JSON instead",
			"graph_id", e.graph.ID)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	return Marshal(e.Document(), e.opts.Pretty)
}

// Marshal encodes a document as JSON, indented when pretty is set.
func Marshal(doc *Document, pretty bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("marshaling export: %w", err)
	}
	return data, nil
}

// Import rebuilds a DependencyGraph from an exported JSON document.
func Import(data []byte) (*graph.DependencyGraph, error) {
	if problems := ValidateExport(data); len(problems) > 0 {
		return nil, fmt.Errorf("invalid export: %s", problems[0])
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling export: %w", err)
	}
	return doc.Graph(), nil
}

// Graph rebuilds the graph described by the document.
func (d *Document) Graph() *graph.DependencyGraph {
	g := graph.New()
	for i := range d.Nodes {
		n := d.Nodes[i]
		g.AddNode(&n)
	}
	g.AddEdges(d.Edges...)
	return g
}
