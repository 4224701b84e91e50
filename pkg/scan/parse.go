package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrUnsupportedLanguage is returned when no grammar handles a file extension.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// DefaultExtensions is the extension allowlist used when none is configured.
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// LanguageFor returns the tree-sitter grammar for a file path.
// TSX files use the TSX grammar; JSX is covered by the JavaScript grammar.
func LanguageFor(path string) (*sitter.Language, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage(), nil
	case ".tsx":
		return tsx.GetLanguage(), nil
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Ext(path), ErrUnsupportedLanguage)
	}
}

// Parse builds a syntax tree for one file. The caller must Close the tree.
// A new parser is created per call so Parse is safe for concurrent use.
func Parse(ctx context.Context, content []byte, path string) (*sitter.Tree, error) {
	lang, err := LanguageFor(path)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	return tree, nil
}

// Position converts a node's start point to a 1-based line and a 1-based
// column counted in characters. Tree-sitter columns are byte offsets.
func Position(n *sitter.Node, content []byte) (line, column int) {
	p := n.StartPoint()
	end := int(n.StartByte())
	start := end - int(p.Column)
	if start < 0 || end > len(content) {
		return int(p.Row) + 1, int(p.Column) + 1
	}
	return int(p.Row) + 1, utf8.RuneCount(content[start:end]) + 1
}

// FirstError returns the first ERROR or missing node in pre-order, or nil.
func FirstError(n *sitter.Node) *sitter.Node {
	if n == nil || !n.HasError() {
		return nil
	}
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := FirstError(n.Child(i)); found != nil {
			return found
		}
	}
	return n
}

// StringValue returns the unquoted text of a string literal node.
// The second result is false when the node is not a plain string literal.
func StringValue(n *sitter.Node, content []byte) (string, bool) {
	if n == nil || n.Type() != "string" {
		return "", false
	}
	var b strings.Builder
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "string_fragment", "escape_sequence":
			b.WriteString(child.Content(content))
		}
	}
	return b.String(), true
}
