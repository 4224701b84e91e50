package graph

import (
	"github.com/coderef/coderef/pkg/element"
)

// ImportResolver maps a module path imported from sourceFile to a file.
type ImportResolver interface {
	Resolve(sourceFile, modulePath string) (string, bool)
}

// Builder assembles a DependencyGraph. Assembly is append-only; each Builder
// produces one graph and a new analysis needs a new Builder.
type Builder struct {
	resolver ImportResolver
	graph    *DependencyGraph

	// element nodes by file, then name; last write wins
	byFile map[string]map[string]string
}

// NewBuilder returns a Builder for a fresh graph. resolver may be nil, in
// which case every static import is kept as a phantom target.
func NewBuilder(resolver ImportResolver) *Builder {
	return &Builder{
		resolver: resolver,
		graph:    New(),
		byFile:   make(map[string]map[string]string),
	}
}

// BuildGraph assembles file and element nodes, belongs-to edges and
// same-file calls/extends/implements edges from elements.
func BuildGraph(elements []element.Element) *DependencyGraph {
	b := NewBuilder(nil)
	b.AddElements(elements)
	return b.Graph()
}

// Graph returns the graph under construction.
func (b *Builder) Graph() *DependencyGraph {
	return b.graph
}

// AddFile adds a file node if the file has none yet.
func (b *Builder) AddFile(file string) {
	id := FileID(file)
	if _, ok := b.graph.Nodes[id]; ok {
		return
	}
	b.graph.AddNode(&GraphNode{ID: id, Type: NodeTypeFile, Name: file, File: file})
	if b.byFile[file] == nil {
		b.byFile[file] = make(map[string]string)
	}
}

// AddElements adds one node per element with an imports edge from its file
// node, then links elements in the same file by their recorded calls and
// class heritage. Names that match nothing in the same file produce no edge.
func (b *Builder) AddElements(elements []element.Element) {
	for _, el := range elements {
		b.AddFile(el.File)

		id := ElementID(el.File, el.Name)
		meta := map[string]any{}
		if el.Column > 0 {
			meta["column"] = el.Column
		}
		if el.Exported {
			meta["exported"] = true
		}
		if len(meta) == 0 {
			meta = nil
		}
		b.graph.AddNode(&GraphNode{
			ID:       id,
			Type:     string(el.Type),
			Name:     el.Name,
			File:     el.File,
			Line:     el.Line,
			Metadata: meta,
		})
		b.byFile[el.File][el.Name] = id
		b.graph.AddEdges(GraphEdge{Source: FileID(el.File), Target: id, Type: EdgeImports})
	}

	for _, el := range elements {
		from := ElementID(el.File, el.Name)
		for _, callee := range el.Calls {
			b.link(from, el.File, callee, EdgeCalls)
		}
		if el.Extends != "" {
			b.link(from, el.File, el.Extends, EdgeExtends)
		}
		for _, iface := range el.Implements {
			b.link(from, el.File, iface, EdgeImplements)
		}
	}
}

func (b *Builder) link(from, file, name string, typ EdgeType) {
	to, ok := b.byFile[file][name]
	if !ok {
		return
	}
	b.graph.AddEdges(GraphEdge{Source: from, Target: to, Type: typ})
}

// AddImport records a static import of modulePath by sourceFile as a
// file-to-file imports edge. Unresolvable modules become phantom targets
// named after the module path.
func (b *Builder) AddImport(sourceFile, modulePath string) {
	b.AddFile(sourceFile)
	target := modulePath
	if b.resolver != nil {
		if resolved, ok := b.resolver.Resolve(sourceFile, modulePath); ok {
			target = resolved
		}
	}
	b.graph.AddEdges(GraphEdge{Source: FileID(sourceFile), Target: FileID(target), Type: EdgeImports})
}

// AddEdges appends precomputed edges, such as dynamic-call edges.
func (b *Builder) AddEdges(edges ...GraphEdge) {
	b.graph.AddEdges(edges...)
}
