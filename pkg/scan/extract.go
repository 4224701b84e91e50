package scan

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/coderef/coderef/pkg/element"
)

// Tree-sitter node types for JavaScript, TypeScript and TSX.
const (
	nodeFunctionDecl          = "function_declaration"
	nodeGeneratorFunctionDecl = "generator_function_declaration"
	nodeClassDecl             = "class_declaration"
	nodeAbstractClassDecl     = "abstract_class_declaration"
	nodeClassHeritage         = "class_heritage"
	nodeExtendsClause         = "extends_clause"
	nodeImplementsClause      = "implements_clause"
	nodeMethodDefinition      = "method_definition"
	nodeVariableDeclarator    = "variable_declarator"
	nodeLexicalDecl           = "lexical_declaration"
	nodeVariableDecl          = "variable_declaration"
	nodeInterfaceDecl         = "interface_declaration"
	nodeTypeAliasDecl         = "type_alias_declaration"
	nodeEnumDecl              = "enum_declaration"
	nodeCallExpression        = "call_expression"
	nodeImportStatement       = "import_statement"
	nodeExportStatement       = "export_statement"
	nodeMemberExpression      = "member_expression"
	nodeIdentifier            = "identifier"
	nodeTypeIdentifier        = "type_identifier"
	nodePropertyIdentifier    = "property_identifier"
	nodePrivatePropertyIdent  = "private_property_identifier"
	nodeThis                  = "this"
	nodeImport                = "import"
)

// functionValues are initializer node types that make a variable a function.
var functionValues = map[string]bool{
	"arrow_function":      true,
	"function":            true,
	"function_expression": true,
	"generator_function":  true,
}

// nodeKind is the closed set of syntax categories the extractor reacts to.
type nodeKind int

const (
	kindOther nodeKind = iota
	kindFunctionDecl
	kindClassDecl
	kindMethod
	kindVariableDeclarator
	kindInterfaceDecl
	kindTypeAliasDecl
	kindEnumDecl
	kindCall
	kindImport
	kindExport
)

func kindOf(n *sitter.Node) nodeKind {
	switch n.Type() {
	case nodeFunctionDecl, nodeGeneratorFunctionDecl:
		return kindFunctionDecl
	case nodeClassDecl, nodeAbstractClassDecl:
		return kindClassDecl
	case nodeMethodDefinition:
		return kindMethod
	case nodeVariableDeclarator:
		return kindVariableDeclarator
	case nodeInterfaceDecl:
		return kindInterfaceDecl
	case nodeTypeAliasDecl:
		return kindTypeAliasDecl
	case nodeEnumDecl:
		return kindEnumDecl
	case nodeCallExpression:
		return kindCall
	case nodeImportStatement:
		return kindImport
	case nodeExportStatement:
		return kindExport
	default:
		return kindOther
	}
}

// ImportRef is a static import (or re-export) of a module by a file.
type ImportRef struct {
	Module string `json:"module"`
	Line   int    `json:"line"`
}

// FileResult holds what was extracted from one file. Each call to Extract
// returns a freshly allocated FileResult.
type FileResult struct {
	Elements []element.Element
	Imports  []ImportRef
}

// Extract walks the syntax tree of one file and classifies its declarations.
// Every node is visited in pre-order; nodes without a resolvable identifier
// name are skipped without error.
func Extract(root *sitter.Node, content []byte, file string) *FileResult {
	x := &extractor{
		content: content,
		file:    file,
		result:  &FileResult{},
	}
	if root != nil {
		x.walk(root, false)
	}
	return x.result
}

type extractor struct {
	content []byte
	file    string
	result  *FileResult

	// scopes holds indices into result.Elements for the enclosing
	// function-like elements; calls are attributed to the innermost.
	scopes []int
}

func (x *extractor) walk(n *sitter.Node, exported bool) {
	pushed := false

	switch kindOf(n) {
	case kindFunctionDecl:
		if name, ok := x.identifierName(n.ChildByFieldName("name")); ok {
			x.scopes = append(x.scopes, x.add(n, element.ClassifyName(name), name, exported))
			pushed = true
		}
	case kindClassDecl:
		if name, ok := x.identifierName(n.ChildByFieldName("name")); ok {
			idx := x.add(n, element.TypeClass, name, exported)
			x.heritage(n, idx)
		}
	case kindMethod:
		if name, ok := x.identifierName(n.ChildByFieldName("name")); ok {
			x.scopes = append(x.scopes, x.add(n, element.TypeMethod, name, false))
			pushed = true
		}
	case kindVariableDeclarator:
		value := n.ChildByFieldName("value")
		if value != nil && functionValues[value.Type()] {
			if name, ok := x.identifierName(n.ChildByFieldName("name")); ok {
				x.scopes = append(x.scopes, x.add(n, element.ClassifyName(name), name, exported))
				pushed = true
			}
		}
	case kindInterfaceDecl:
		if name, ok := x.identifierName(n.ChildByFieldName("name")); ok {
			x.add(n, element.TypeInterface, name, exported)
		}
	case kindTypeAliasDecl:
		if name, ok := x.identifierName(n.ChildByFieldName("name")); ok {
			x.add(n, element.TypeAlias, name, exported)
		}
	case kindEnumDecl:
		if name, ok := x.identifierName(n.ChildByFieldName("name")); ok {
			x.add(n, element.TypeEnum, name, exported)
		}
	case kindCall:
		x.recordCall(n)
	case kindImport:
		x.recordImport(n)
	case kindExport:
		// export { a } from './m' re-exports count as imports of './m'.
		if n.ChildByFieldName("source") != nil {
			x.recordImport(n)
		}
	case kindOther:
	}

	childExported := false
	switch n.Type() {
	case nodeExportStatement:
		childExported = true
	case nodeLexicalDecl, nodeVariableDecl:
		childExported = exported
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil {
			x.walk(child, childExported)
		}
	}

	if pushed {
		x.scopes = x.scopes[:len(x.scopes)-1]
	}
}

func (x *extractor) add(n *sitter.Node, typ element.Type, name string, exported bool) int {
	line, col := Position(n, x.content)
	x.result.Elements = append(x.result.Elements, element.Element{
		Type:     typ,
		Name:     name,
		File:     x.file,
		Line:     line,
		Column:   col,
		Exported: exported,
	})
	return len(x.result.Elements) - 1
}

// identifierName resolves a name node to a plain identifier. Computed
// property names, destructuring patterns and string keys are rejected.
func (x *extractor) identifierName(n *sitter.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case nodeIdentifier, nodeTypeIdentifier, nodePropertyIdentifier, nodePrivatePropertyIdent:
		name := n.Content(x.content)
		return name, name != ""
	default:
		return "", false
	}
}

func (x *extractor) heritage(class *sitter.Node, idx int) {
	for i := 0; i < int(class.NamedChildCount()); i++ {
		h := class.NamedChild(i)
		if h.Type() != nodeClassHeritage {
			continue
		}
		for j := 0; j < int(h.NamedChildCount()); j++ {
			clause := h.NamedChild(j)
			switch clause.Type() {
			case nodeIdentifier:
				// JavaScript: class A extends B
				x.result.Elements[idx].Extends = clause.Content(x.content)
			case nodeExtendsClause:
				if v := clause.ChildByFieldName("value"); v != nil && v.Type() == nodeIdentifier {
					x.result.Elements[idx].Extends = v.Content(x.content)
				} else if clause.NamedChildCount() > 0 && clause.NamedChild(0).Type() == nodeIdentifier {
					x.result.Elements[idx].Extends = clause.NamedChild(0).Content(x.content)
				}
			case nodeImplementsClause:
				for k := 0; k < int(clause.NamedChildCount()); k++ {
					t := clause.NamedChild(k)
					if t.Type() == nodeTypeIdentifier {
						x.result.Elements[idx].Implements = append(x.result.Elements[idx].Implements, t.Content(x.content))
					}
				}
			}
		}
	}
}

// recordCall attributes a call to the innermost enclosing function-like
// element. Only plain identifiers and this.member callees are recorded.
func (x *extractor) recordCall(n *sitter.Node) {
	if len(x.scopes) == 0 {
		return
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var callee string
	switch fn.Type() {
	case nodeIdentifier:
		callee = fn.Content(x.content)
	case nodeMemberExpression:
		obj := fn.ChildByFieldName("object")
		prop := fn.ChildByFieldName("property")
		if obj != nil && obj.Type() == nodeThis && prop != nil {
			callee = prop.Content(x.content)
		}
	case nodeImport:
		return
	}
	if callee == "" {
		return
	}

	idx := x.scopes[len(x.scopes)-1]
	for _, c := range x.result.Elements[idx].Calls {
		if c == callee {
			return
		}
	}
	x.result.Elements[idx].Calls = append(x.result.Elements[idx].Calls, callee)
}

func (x *extractor) recordImport(n *sitter.Node) {
	module, ok := StringValue(n.ChildByFieldName("source"), x.content)
	if !ok || module == "" {
		return
	}
	line, _ := Position(n, x.content)
	x.result.Imports = append(x.result.Imports, ImportRef{Module: module, Line: line})
}
