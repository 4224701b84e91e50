package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"syscall"
)

// ErrorType is the failure family of a ScanError.
type ErrorType string

const (
	ErrorRead       ErrorType = "read"
	ErrorParse      ErrorType = "parse"
	ErrorPattern    ErrorType = "pattern"
	ErrorPermission ErrorType = "permission"
	ErrorEncoding   ErrorType = "encoding"
)

// Severity indicates how a ScanError should be reported.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ScanError describes a per-file failure. Scan collects these instead of
// returning them, so one bad file never loses the rest of the batch.
type ScanError struct {
	Type       ErrorType `json:"type"`
	Severity   Severity  `json:"severity"`
	File       string    `json:"file"`
	Line       int       `json:"line,omitempty"`
	Column     int       `json:"column,omitempty"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
}

func (e ScanError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.File, e.Line, e.Column, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Type, e.Message)
}

var codeSuggestions = map[string]string{
	"ENOENT":       "Check that the file exists and that the path is spelled correctly.",
	"EACCES":       "Check the file permissions or run the scan as a user that can read it.",
	"EPERM":        "The operation is not permitted; check ownership and permissions.",
	"EMFILE":       "Too many open files; lower scan.read_concurrency or raise the file limit (ulimit -n).",
	"EISDIR":       "The path is a directory; scan it as a directory instead of a file.",
	"ENAMETOOLONG": "The path is too long; move the project to a shorter location.",
}

var messageSuggestions = []struct {
	pattern    *regexp.Regexp
	suggestion string
}{
	{regexp.MustCompile(`(?i)syntax error`), "Fix the syntax error or add the file to scan.exclude."},
	{regexp.MustCompile(`(?i)invalid utf-8|binary`), "The file is not UTF-8 text; add it to scan.exclude."},
	{regexp.MustCompile(`(?i)max_file_size`), "Raise scan.max_file_size or exclude generated bundles."},
	{regexp.MustCompile(`(?i)pattern`), "Check the exclude pattern syntax (gitignore style)."},
}

// Suggest returns the human suggestion for a platform error code, falling
// back to the message patterns. It returns "" when nothing applies.
func Suggest(code, message string) string {
	if s, ok := codeSuggestions[code]; ok {
		return s
	}
	for _, ms := range messageSuggestions {
		if ms.pattern.MatchString(message) {
			return ms.suggestion
		}
	}
	return ""
}

// errorCode maps a filesystem error to its platform error code name.
func errorCode(err error) string {
	switch {
	case errors.Is(err, syscall.EMFILE):
		return "EMFILE"
	case errors.Is(err, syscall.EISDIR):
		return "EISDIR"
	case errors.Is(err, syscall.ENAMETOOLONG):
		return "ENAMETOOLONG"
	case errors.Is(err, syscall.EPERM):
		return "EPERM"
	case errors.Is(err, fs.ErrPermission):
		return "EACCES"
	case errors.Is(err, fs.ErrNotExist):
		return "ENOENT"
	default:
		return ""
	}
}

// fileError classifies a filesystem failure for path.
func fileError(path string, err error) ScanError {
	code := errorCode(err)
	typ := ErrorRead
	if code == "EACCES" || code == "EPERM" {
		typ = ErrorPermission
	}
	msg := err.Error()
	if code != "" {
		msg = code + ": " + msg
	}
	return ScanError{
		Type:       typ,
		Severity:   SeverityError,
		File:       path,
		Message:    msg,
		Suggestion: Suggest(code, msg),
	}
}

func newScanError(typ ErrorType, sev Severity, path, msg string) ScanError {
	return ScanError{
		Type:       typ,
		Severity:   sev,
		File:       path,
		Message:    msg,
		Suggestion: Suggest("", msg),
	}
}
