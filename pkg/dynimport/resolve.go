package dynimport

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions is the lookup order for extensionless module paths.
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// Resolver maps literal module paths to files on disk. Only relative and
// absolute paths are tried; bare package specifiers stay unresolved.
type Resolver struct {
	Extensions []string
	IndexName  string

	stat func(string) (fs.FileInfo, error)
}

// NewResolver creates a Resolver probing the default extensions and index files.
func NewResolver() *Resolver {
	return &Resolver{
		Extensions: append([]string(nil), DefaultExtensions...),
		IndexName:  "index",
		stat:       os.Stat,
	}
}

// Candidates returns the lookup list for modulePath imported from sourceFile,
// in lookup order: the path itself, the path with each extension, then the
// index file inside it with each extension.
func (r *Resolver) Candidates(sourceFile, modulePath string) []string {
	if !isPathLike(modulePath) {
		return nil
	}
	base := modulePath
	if !filepath.IsAbs(base) {
		base = filepath.Join(filepath.Dir(sourceFile), filepath.FromSlash(modulePath))
	}

	candidates := make([]string, 0, 1+2*len(r.Extensions))
	candidates = append(candidates, base)
	for _, ext := range r.Extensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range r.Extensions {
		candidates = append(candidates, filepath.Join(base, r.IndexName+ext))
	}
	return candidates
}

// Resolve returns the first existing regular file among the candidates as
// an absolute path. The second result is false when nothing matched.
func (r *Resolver) Resolve(sourceFile, modulePath string) (string, bool) {
	stat := r.stat
	if stat == nil {
		stat = os.Stat
	}
	for _, c := range r.Candidates(sourceFile, modulePath) {
		info, err := stat(c)
		if err != nil || info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(c)
		if err != nil {
			return c, true
		}
		return abs, true
	}
	return "", false
}

func isPathLike(p string) bool {
	return strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../") ||
		p == "." || p == ".." || strings.HasPrefix(p, "/")
}
