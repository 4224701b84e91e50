package dynimport

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/coderef/coderef/pkg/scan"
)

// Detector finds dynamic imports. Results of DetectFile are cached per file
// path until Invalidate or ClearCache is called.
type Detector struct {
	resolver    *Resolver
	maxFileSize int64

	mu    sync.Mutex
	cache map[string][]DynamicImport
}

// Option configures a Detector.
type Option func(*Detector)

// WithResolver replaces the default path resolver.
func WithResolver(r *Resolver) Option {
	return func(d *Detector) {
		d.resolver = r
	}
}

// WithMaxFileSize skips files larger than n bytes, matching the scanner's
// max_file_size. Zero means unlimited.
func WithMaxFileSize(n int64) Option {
	return func(d *Detector) {
		d.maxFileSize = n
	}
}

// NewDetector creates a Detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		resolver: NewResolver(),
		cache:    make(map[string][]DynamicImport),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFile reads, parses and scans one file, caching the result by path.
// Files the scanner would skip for size or encoding are rejected with the
// same errors; see scan.Skipped. The returned slice is the caller's to modify.
func (d *Detector) DetectFile(ctx context.Context, path string) ([]DynamicImport, error) {
	d.mu.Lock()
	cached, ok := d.cache[path]
	d.mu.Unlock()
	if ok {
		return cloneImports(cached), nil
	}

	content, err := scan.ReadSource(path, d.maxFileSize)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	tree, err := scan.Parse(ctx, content, path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	imports := d.Detect(tree.RootNode(), content, path)

	d.mu.Lock()
	d.cache[path] = imports
	d.mu.Unlock()
	return cloneImports(imports), nil
}

func cloneImports(imports []DynamicImport) []DynamicImport {
	out := make([]DynamicImport, len(imports))
	for i, imp := range imports {
		imp.ImportedSymbols = append([]string{}, imp.ImportedSymbols...)
		out[i] = imp
	}
	return out
}

// DetectFiles runs DetectFile over many files. Failures are collected as
// scan errors and do not stop the pass. Files rejected for size or encoding
// are left out silently; the element scan reports them.
func (d *Detector) DetectFiles(ctx context.Context, paths []string) ([]DynamicImport, []scan.ScanError) {
	var (
		all      []DynamicImport
		problems []scan.ScanError
	)
	for _, p := range paths {
		imports, err := d.DetectFile(ctx, p)
		if scan.Skipped(err) {
			continue
		}
		if err != nil {
			problems = append(problems, scan.ScanError{
				Type:     scan.ErrorRead,
				Severity: scan.SeverityWarning,
				File:     p,
				Message:  err.Error(),
			})
			continue
		}
		all = append(all, imports...)
	}
	return all, problems
}

// Invalidate drops cached results for the given paths.
func (d *Detector) Invalidate(paths ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range paths {
		delete(d.cache, p)
	}
}

// ClearCache drops every cached result.
func (d *Detector) ClearCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = make(map[string][]DynamicImport)
}

// CacheSize returns the number of cached files.
func (d *Detector) CacheSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}

// Detect scans an already parsed tree. It does not touch the cache.
func (d *Detector) Detect(root *sitter.Node, content []byte, sourceFile string) []DynamicImport {
	w := &walker{
		content:    content,
		sourceFile: sourceFile,
		resolver:   d.resolver,
		imports:    []DynamicImport{},
	}
	if root != nil {
		w.walk(root, nil)
	}
	return w.imports
}

type walker struct {
	content    []byte
	sourceFile string
	resolver   *Resolver
	imports    []DynamicImport
}

// walk visits n in pre-order. ancestors holds the path from the root to
// n's parent, so classification never follows parent links.
func (w *walker) walk(n *sitter.Node, ancestors []*sitter.Node) {
	if isImportCall(n) {
		w.imports = append(w.imports, w.describe(n, ancestors))
	}

	ancestors = append(ancestors, n)
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil {
			w.walk(child, ancestors)
		}
	}
}

func (w *walker) describe(call *sitter.Node, ancestors []*sitter.Node) DynamicImport {
	line, col := scan.Position(call, w.content)
	imp := DynamicImport{
		SourceFile:      w.sourceFile,
		ImportedSymbols: []string{},
		Line:            line,
		Column:          col,
		ImportType:      w.classify(call, ancestors),
	}

	arg := firstArgument(call)
	if literal, ok := scan.StringValue(arg, w.content); ok {
		imp.ModulePath = literal
		if w.resolver != nil {
			if resolved, ok := w.resolver.Resolve(w.sourceFile, literal); ok {
				imp.ResolvedPath = resolved
			}
		}
	} else {
		imp.ModulePath = DynamicModulePath
		if arg != nil {
			imp.Expression = arg.Content(w.content)
		}
	}

	symbols, namespace := w.bindings(call, ancestors)
	if symbols != nil {
		imp.ImportedSymbols = symbols
	}
	imp.NamespaceVariable = namespace
	imp.ContainingFunction, imp.ContainingClass = w.container(ancestors)
	return imp
}

func isImportCall(n *sitter.Node) bool {
	if n.Type() != nodeCallExpression {
		return false
	}
	fn := n.ChildByFieldName("function")
	return fn != nil && fn.Type() == nodeImport
}

func firstArgument(call *sitter.Node) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	return args.NamedChild(0)
}
