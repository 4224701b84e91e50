// Package dynimport finds deferred module loads (import() expressions) and
// the symbols later taken from them. These loads are invisible to static
// import resolution, so they are detected in a separate pass and folded into
// the dependency graph as dynamic-call edges.
package dynimport

import "github.com/coderef/coderef/pkg/graph"

// ImportType describes how the result of an import() call is consumed.
type ImportType string

const (
	ImportAwait       ImportType = "await"
	ImportPromise     ImportType = "promise"
	ImportConditional ImportType = "conditional"
)

// DynamicModulePath marks an import whose argument is not a string literal.
const DynamicModulePath = "<dynamic>"

// DynamicImport is one import() expression found in a source file.
type DynamicImport struct {
	SourceFile         string     `json:"source_file"`
	ModulePath         string     `json:"module_path"`
	ResolvedPath       string     `json:"resolved_path,omitempty"` // empty when unresolved
	ImportedSymbols    []string   `json:"imported_symbols"`
	NamespaceVariable  string     `json:"namespace_variable,omitempty"`
	Line               int        `json:"line"`
	Column             int        `json:"column"`
	ImportType         ImportType `json:"import_type"`
	ContainingFunction string     `json:"containing_function,omitempty"`
	ContainingClass    string     `json:"containing_class,omitempty"`
	Expression         string     `json:"expression,omitempty"` // argument source text for non-literal paths
}

// IsDynamicPath reports whether the module path could not be determined statically.
func (d DynamicImport) IsDynamicPath() bool {
	return d.ModulePath == DynamicModulePath
}

// Module returns the best known module identity: the resolved path when
// available, otherwise the literal module path.
func (d DynamicImport) Module() string {
	if d.ResolvedPath != "" {
		return d.ResolvedPath
	}
	return d.ModulePath
}

// DynamicCallEdge is a derived edge from the code that performs a dynamic
// import to a synthetic module target.
type DynamicCallEdge struct {
	Source     string     `json:"source"`
	Target     string     `json:"target"`
	Symbol     string     `json:"symbol"` // "*" for namespace-only imports
	ModulePath string     `json:"module_path"`
	ImportType ImportType `json:"import_type"`
	Line       int        `json:"line"`
}

// GraphEdge converts the edge into a dependency graph edge.
func (e DynamicCallEdge) GraphEdge() graph.GraphEdge {
	return graph.GraphEdge{
		Source: e.Source,
		Target: e.Target,
		Type:   graph.EdgeDynamicCall,
	}
}

// CallEdges derives dynamic-call edges: one per imported symbol, or a single
// wildcard edge when only a namespace variable is bound. Imports that bind
// nothing produce no edge.
func CallEdges(imports []DynamicImport) []DynamicCallEdge {
	var edges []DynamicCallEdge
	for _, imp := range imports {
		source := graph.FileID(imp.SourceFile)
		if imp.ContainingFunction != "" {
			source = graph.ElementID(imp.SourceFile, imp.ContainingFunction)
		}

		symbols := imp.ImportedSymbols
		if len(symbols) == 0 {
			if imp.NamespaceVariable == "" {
				continue
			}
			symbols = []string{graph.WildcardSymbol}
		}

		for _, sym := range symbols {
			edges = append(edges, DynamicCallEdge{
				Source:     source,
				Target:     graph.ModuleID(imp.Module(), sym),
				Symbol:     sym,
				ModulePath: imp.ModulePath,
				ImportType: imp.ImportType,
				Line:       imp.Line,
			})
		}
	}
	return edges
}
