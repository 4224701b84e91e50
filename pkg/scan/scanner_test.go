package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScan_PartialFailureKeepsGoing(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.ts")
	binary := filepath.Join(dir, "blob.js")
	missing := filepath.Join(dir, "missing.ts")
	writeFile(t, good, "export function foo() { bar(); }\nfunction bar() {}\n")
	require.NoError(t, os.WriteFile(binary, []byte{0xff, 0x00, 0xfe}, 0o644))

	s := New(DefaultOptions())
	res := s.Scan(context.Background(), []string{missing, good, binary})

	assert.Equal(t, 3, res.Stats.FilesAttempted)
	assert.Equal(t, 1, res.Stats.FilesScanned)
	assert.Equal(t, 2, res.Stats.FilesFailed)
	assert.Equal(t, 2, res.Stats.ElementsFound)
	assert.Equal(t, []string{good}, res.Files)

	require.Len(t, res.Errors, 2)
	assert.Equal(t, ErrorRead, res.Errors[0].Type)
	assert.Equal(t, missing, res.Errors[0].File)
	assert.Contains(t, res.Errors[0].Message, "ENOENT")
	assert.NotEmpty(t, res.Errors[0].Suggestion)
	assert.Equal(t, ErrorEncoding, res.Errors[1].Type)

	assert.Contains(t, res.Summary(), "scanned 1/3 files")
}

func TestScan_SyntaxErrorIsWarning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.js")
	writeFile(t, path, "function ok() {}\nfunction broken( {\n")

	res := New(DefaultOptions()).Scan(context.Background(), []string{path})

	assert.Empty(t, res.Errors)
	require.NotEmpty(t, res.Warnings)
	w := res.Warnings[0]
	assert.Equal(t, ErrorParse, w.Type)
	assert.Equal(t, SeverityWarning, w.Severity)
	assert.GreaterOrEqual(t, w.Line, 1)
	assert.NotEmpty(t, w.Suggestion)
	assert.Equal(t, 1, res.Stats.FilesScanned)

	names := byName(res.Elements)
	assert.Contains(t, names, "ok")
}

func TestScan_MaxFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.js")
	writeFile(t, path, "function big() {}\n// padding padding padding\n")

	opts := DefaultOptions()
	opts.MaxFileSize = 10
	res := New(opts).Scan(context.Background(), []string{path})

	assert.Equal(t, 1, res.Stats.FilesFailed)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, ErrorEncoding, res.Warnings[0].Type)
	assert.Contains(t, res.Warnings[0].Message, "max_file_size")
	assert.Empty(t, res.Elements)
}

func TestReadSource(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "a.js")
	blob := filepath.Join(dir, "b.js")
	writeFile(t, text, "import('./x');\n")
	require.NoError(t, os.WriteFile(blob, []byte{0x00, 0x01}, 0o644))

	data, err := ReadSource(text, 0)
	require.NoError(t, err)
	assert.Equal(t, "import('./x');\n", string(data))

	_, err = ReadSource(text, 4)
	var tl *TooLargeError
	require.ErrorAs(t, err, &tl)
	assert.Equal(t, int64(4), tl.Max)
	assert.True(t, Skipped(err))

	_, err = ReadSource(blob, 0)
	assert.ErrorIs(t, err, ErrNotText)
	assert.True(t, Skipped(err))

	_, err = ReadSource(filepath.Join(dir, "missing.js"), 0)
	require.Error(t, err)
	assert.False(t, Skipped(err))
}

func TestScan_DirectoryPath(t *testing.T) {
	dir := t.TempDir()
	res := New(DefaultOptions()).Scan(context.Background(), []string{dir})
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "EISDIR")
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "a.ts"), "export function alpha() {}\n")
	writeFile(t, filepath.Join(dir, "src", "b.jsx"), "export const Beta = () => <div/>;\n")
	writeFile(t, filepath.Join(dir, "src", "notes.md"), "# notes\n")
	writeFile(t, filepath.Join(dir, "node_modules", "lib", "index.js"), "function vendored() {}\n")
	writeFile(t, filepath.Join(dir, "dist", "bundle.js"), "function bundled() {}\n")

	res := New(DefaultOptions()).ScanDir(context.Background(), dir)

	assert.Equal(t, 2, res.Stats.FilesScanned)
	names := byName(res.Elements)
	assert.Contains(t, names, "alpha")
	assert.Contains(t, names, "Beta")
	assert.NotContains(t, names, "vendored")
	assert.NotContains(t, names, "bundled")
}

func TestFiles_MalformedPattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.js"), "function a() {}\n")

	opts := DefaultOptions()
	opts.Exclude = []string{"[unclosed"}
	files, problems := New(opts).Files(dir)

	assert.Len(t, files, 1)
	require.Len(t, problems, 1)
	assert.Equal(t, ErrorPattern, problems[0].Type)
}

func TestFilter(t *testing.T) {
	f, problems := New(DefaultOptions()).Filter("/project")
	require.Empty(t, problems)

	tests := []struct {
		rel  string
		want bool
	}{
		{"src/a.ts", true},
		{"src/App.TSX", true},
		{"README.md", false},
		{"node_modules/lib/index.js", false},
		{"packages/web/node_modules/lib/index.js", false},
		{"dist/bundle.js", false},
		{".git/hooks/pre-commit.js", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.Selects(tt.rel), tt.rel)
	}

	assert.True(t, f.SkipDir("node_modules"))
	assert.True(t, f.SkipDir("sub/.git"))
	assert.False(t, f.SkipDir("src"))
}

func TestSuggest(t *testing.T) {
	assert.Contains(t, Suggest("EMFILE", ""), "ulimit")
	assert.Contains(t, Suggest("", "syntax error near line 3"), "syntax")
	assert.Empty(t, Suggest("", "something else"))
}
