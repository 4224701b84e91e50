package scan

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
)

var errIsDir = syscall.EISDIR


// ScanDir walks root, selects files by extension allowlist and exclude
// patterns, and scans them. Walk failures are reported like file failures.
func (s *Scanner) ScanDir(ctx context.Context, root string) *Result {
	start := time.Now()
	files, problems := s.Files(root)

	result := s.Scan(ctx, files)
	result.AddWalkProblems(problems)
	result.Stats.DurationMs = time.Since(start).Milliseconds()
	return result
}

// AddWalkProblems folds problems found while listing files into the result.
// Error-severity problems count as attempted and failed files.
func (r *Result) AddWalkProblems(problems []ScanError) {
	for _, p := range problems {
		r.report(p)
		if p.Severity == SeverityError {
			r.Stats.FilesAttempted++
			r.Stats.FilesFailed++
		}
	}
}

// Filter decides which paths a directory scan selects. Paths are slash
// separated and relative to the scan root.
type Filter struct {
	matcher *ignore.GitIgnore
	allowed map[string]bool
}

// Filter compiles the scanner's exclude patterns and extension allowlist.
// Malformed patterns are dropped and reported as warnings.
func (s *Scanner) Filter(root string) (*Filter, []ScanError) {
	var problems []ScanError
	var patterns []string
	for _, p := range s.opts.Exclude {
		if _, err := filepath.Match(strings.TrimSuffix(p, "/"), ""); err != nil {
			problems = append(problems, newScanError(ErrorPattern, SeverityWarning, root,
				fmt.Sprintf("malformed exclude pattern %q: %v", p, err)))
			continue
		}
		patterns = append(patterns, p)
	}

	allowed := make(map[string]bool, len(s.opts.Extensions))
	for _, ext := range s.opts.Extensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &Filter{matcher: ignore.CompileIgnoreLines(patterns...), allowed: allowed}, problems
}

// SkipDir reports whether the directory at rel is excluded.
func (f *Filter) SkipDir(rel string) bool {
	return path.Base(rel) == ".git" || f.matcher.MatchesPath(rel+"/")
}

// Selects reports whether the file at rel would be scanned.
func (f *Filter) Selects(rel string) bool {
	if !f.allowed[strings.ToLower(path.Ext(rel))] {
		return false
	}
	for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
		if f.SkipDir(dir) {
			return false
		}
	}
	return !f.matcher.MatchesPath(rel)
}

// Files lists the files under root that a directory scan would read, in
// lexical walk order. Malformed exclude patterns and unreadable directories
// are returned as ScanErrors.
func (s *Scanner) Files(root string) ([]string, []ScanError) {
	filter, problems := s.Filter(root)

	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			problems = append(problems, fileError(p, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if filter.SkipDir(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if !filter.allowed[strings.ToLower(path.Ext(rel))] || filter.matcher.MatchesPath(rel) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		problems = append(problems, fileError(root, err))
	}
	return files, problems
}
