// Package scan extracts classified program elements from JavaScript and
// TypeScript sources. A scan is a batch job: per-file failures are collected
// as ScanError values alongside running statistics and never abort the batch.
package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/coderef/coderef/pkg/element"
)

// Options controls which files are scanned and how they are read.
type Options struct {
	Extensions      []string // allowlist, with leading dot
	Exclude         []string // gitignore-style patterns, relative to the scan root
	MaxFileSize     int64    // bytes; 0 means unlimited
	ReadConcurrency int      // concurrent file reads; <= 0 means 8
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Extensions:      append([]string(nil), DefaultExtensions...),
		Exclude:         []string{"node_modules/", "dist/", "build/", ".next/", "coverage/"},
		MaxFileSize:     2 * 1024 * 1024,
		ReadConcurrency: 8,
	}
}

// Stats summarizes one scan.
type Stats struct {
	FilesAttempted int   `json:"files_attempted"`
	FilesScanned   int   `json:"files_scanned"`
	FilesFailed    int   `json:"files_failed"`
	ElementsFound  int   `json:"elements_found"`
	DurationMs     int64 `json:"duration_ms"`
}

// Result is the outcome of a scan. It is always produced, even when every
// file failed.
type Result struct {
	Elements []element.Element     `json:"elements"`
	Imports  map[string][]ImportRef `json:"imports,omitempty"` // keyed by file
	Files    []string              `json:"files"`             // successfully scanned, in scan order
	Errors   []ScanError           `json:"errors"`
	Warnings []ScanError           `json:"warnings"`
	Stats    Stats                 `json:"stats"`
}

func newResult() *Result {
	return &Result{
		Elements: []element.Element{},
		Imports:  make(map[string][]ImportRef),
		Files:    []string{},
		Errors:   []ScanError{},
		Warnings: []ScanError{},
	}
}

func (r *Result) report(e ScanError) {
	if e.Severity == SeverityError {
		r.Errors = append(r.Errors, e)
		return
	}
	r.Warnings = append(r.Warnings, e)
}

// Summary returns a one-line human summary of the scan.
func (r *Result) Summary() string {
	return fmt.Sprintf("scanned %d/%d files (%d failed), %d elements, %d errors, %d warnings in %dms",
		r.Stats.FilesScanned, r.Stats.FilesAttempted, r.Stats.FilesFailed,
		r.Stats.ElementsFound, len(r.Errors), len(r.Warnings), r.Stats.DurationMs)
}

// Scanner runs element extraction over many files.
type Scanner struct {
	opts Options
}

// New creates a Scanner. Zero-valued fields fall back to DefaultOptions.
func New(opts Options) *Scanner {
	def := DefaultOptions()
	if len(opts.Extensions) == 0 {
		opts.Extensions = def.Extensions
	}
	if opts.ReadConcurrency <= 0 {
		opts.ReadConcurrency = def.ReadConcurrency
	}
	return &Scanner{opts: opts}
}

// Options returns the effective options.
func (s *Scanner) Options() Options {
	return s.opts
}

type fileContent struct {
	data []byte
	err  error
}

// Scan extracts elements from the given files. Files are read concurrently
// but processed in input order, so element order follows the path order.
func (s *Scanner) Scan(ctx context.Context, paths []string) *Result {
	start := time.Now()
	result := newResult()

	contents := s.readAll(ctx, paths)

	for i, path := range paths {
		result.Stats.FilesAttempted++
		if s.scanFile(ctx, path, contents[i], result) {
			result.Stats.FilesScanned++
			result.Files = append(result.Files, path)
		} else {
			result.Stats.FilesFailed++
		}
	}

	result.Stats.ElementsFound = len(result.Elements)
	result.Stats.DurationMs = time.Since(start).Milliseconds()
	return result
}

// readAll reads every file with bounded concurrency. Read failures are kept
// per file rather than cancelling the group.
func (s *Scanner) readAll(ctx context.Context, paths []string) []fileContent {
	contents := make([]fileContent, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ReadConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				contents[i].err = err
				return nil
			}
			contents[i] = s.readFile(path)
			return nil
		})
	}
	_ = g.Wait()

	return contents
}

func (s *Scanner) readFile(path string) fileContent {
	data, err := ReadSource(path, s.opts.MaxFileSize)
	return fileContent{data: data, err: err}
}

// ErrNotText is returned by ReadSource for binary or invalid UTF-8 content.
var ErrNotText = errors.New("content is binary or invalid UTF-8")

// TooLargeError is returned by ReadSource for files over the size limit.
type TooLargeError struct {
	Size, Max int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file size %d exceeds max_file_size %d", e.Size, e.Max)
}

// ReadSource reads a source file under the scanner's limits: files larger
// than maxSize (when positive) are not read, and content must be UTF-8 text.
func ReadSource(path string, maxSize int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "read", Path: path, Err: errIsDir}
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, &TooLargeError{Size: info.Size(), Max: maxSize}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return nil, ErrNotText
	}
	return data, nil
}

// Skipped reports whether err from ReadSource rejects the file by size or
// encoding rather than failing to read it.
func Skipped(err error) bool {
	var tl *TooLargeError
	return errors.As(err, &tl) || errors.Is(err, ErrNotText)
}

// scanFile processes one file and reports whether it was scanned.
func (s *Scanner) scanFile(ctx context.Context, path string, fc fileContent, result *Result) bool {
	var tl *TooLargeError
	switch {
	case errors.As(fc.err, &tl):
		result.report(newScanError(ErrorEncoding, SeverityWarning, path,
			fmt.Sprintf("file is %d bytes, over max_file_size %d; skipped", tl.Size, tl.Max)))
		return false
	case errors.Is(fc.err, ErrNotText):
		result.report(newScanError(ErrorEncoding, SeverityError, path, ErrNotText.Error()))
		return false
	case fc.err != nil:
		result.report(fileError(path, fc.err))
		return false
	}

	tree, err := Parse(ctx, fc.data, path)
	if err != nil {
		result.report(newScanError(ErrorParse, SeverityError, path, err.Error()))
		return false
	}
	defer tree.Close()

	root := tree.RootNode()
	if bad := FirstError(root); bad != nil {
		line, col := Position(bad, fc.data)
		warn := newScanError(ErrorParse, SeverityWarning, path, fmt.Sprintf("syntax error near line %d", line))
		warn.Line, warn.Column = line, col
		result.report(warn)
		slog.Debug("partial parse", slog.String("file", path), slog.Int("line", line))
	}

	fr := Extract(root, fc.data, path)
	result.Elements = append(result.Elements, fr.Elements...)
	if len(fr.Imports) > 0 {
		result.Imports[path] = append(result.Imports[path], fr.Imports...)
	}
	return true
}
