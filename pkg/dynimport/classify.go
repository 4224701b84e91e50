package dynimport

import (
	sitter "github.com/smacker/go-tree-sitter"
)

const (
	nodeCallExpression     = "call_expression"
	nodeImport             = "import"
	nodeAwaitExpression    = "await_expression"
	nodeMemberExpression   = "member_expression"
	nodeParenthesized      = "parenthesized_expression"
	nodeVariableDeclarator = "variable_declarator"
	nodeAssignment         = "assignment_expression"
	nodeObjectPattern      = "object_pattern"
	nodeIdentifier         = "identifier"
	nodeFormalParameters   = "formal_parameters"
	nodeRequiredParameter  = "required_parameter"
	nodeOptionalParameter  = "optional_parameter"
	nodeShorthandPattern   = "shorthand_property_identifier_pattern"
	nodePairPattern        = "pair_pattern"
	nodeAssignmentPattern  = "object_assignment_pattern"
	nodeFunctionDecl       = "function_declaration"
	nodeGeneratorDecl      = "generator_function_declaration"
	nodeMethodDefinition   = "method_definition"
	nodeArrowFunction      = "arrow_function"
	nodeClassDecl          = "class_declaration"
	nodeAbstractClassDecl  = "abstract_class_declaration"
	nodeClassExpression    = "class"
)

// functionBoundaries are the node kinds that introduce a function body.
var functionBoundaries = map[string]bool{
	nodeFunctionDecl:      true,
	nodeGeneratorDecl:     true,
	nodeMethodDefinition:  true,
	nodeArrowFunction:     true,
	"function":            true,
	"function_expression": true,
	"generator_function":  true,
}

var conditionals = map[string]bool{
	"if_statement":       true,
	"else_clause":        true,
	"ternary_expression": true,
	"switch_statement":   true,
	"switch_case":        true,
	"switch_default":     true,
}

// classify resolves the import type with a fixed precedence over all
// ancestors of the call: an await ancestor wins over a .then() chain, which
// wins over a conditional construct. Anything else is a bare promise.
func (w *walker) classify(call *sitter.Node, ancestors []*sitter.Node) ImportType {
	for _, a := range ancestors {
		if a.Type() == nodeAwaitExpression {
			return ImportAwait
		}
	}

	child := call
	for i := len(ancestors) - 1; i >= 0; i-- {
		if w.isThenCall(ancestors[i], child) {
			return ImportPromise
		}
		child = ancestors[i]
	}

	for _, a := range ancestors {
		if conditionals[a.Type()] {
			return ImportConditional
		}
	}
	return ImportPromise
}

// isThenCall reports whether n is a call of the form <child>.then(...),
// where child is the node on the path down to the import.
func (w *walker) isThenCall(n, child *sitter.Node) bool {
	if n.Type() != nodeCallExpression {
		return false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil || !sameNode(fn, child) || fn.Type() != nodeMemberExpression {
		return false
	}
	return w.propertyName(fn) == "then"
}

func (w *walker) propertyName(member *sitter.Node) string {
	prop := member.ChildByFieldName("property")
	if prop == nil {
		return ""
	}
	return prop.Content(w.content)
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// parentSkippingParens returns the nearest ancestor above index i that is
// not a parenthesized expression, with its index, or (nil, -1).
func parentSkippingParens(ancestors []*sitter.Node, i int) (*sitter.Node, int) {
	for j := i; j >= 0; j-- {
		if ancestors[j].Type() != nodeParenthesized {
			return ancestors[j], j
		}
	}
	return nil, -1
}

// bindings resolves what the import result is bound to: destructured symbol
// names, or a namespace variable.
func (w *walker) bindings(call *sitter.Node, ancestors []*sitter.Node) ([]string, string) {
	parent, pi := parentSkippingParens(ancestors, len(ancestors)-1)
	if parent == nil {
		return nil, ""
	}

	switch parent.Type() {
	case nodeAwaitExpression:
		holder, _ := parentSkippingParens(ancestors, pi-1)
		if holder == nil {
			return nil, ""
		}
		return w.bindingTarget(holder)

	case nodeMemberExpression:
		if w.propertyName(parent) != "then" || pi == 0 {
			return nil, ""
		}
		thenCall := ancestors[pi-1]
		if !w.isThenCall(thenCall, parent) {
			return nil, ""
		}
		return w.callbackBinding(thenCall)
	}
	return nil, ""
}

// bindingTarget handles `const {a, b} = await import(...)`,
// `const mod = await import(...)` and `mod = await import(...)`.
func (w *walker) bindingTarget(holder *sitter.Node) ([]string, string) {
	var target *sitter.Node
	switch holder.Type() {
	case nodeVariableDeclarator:
		target = holder.ChildByFieldName("name")
	case nodeAssignment:
		target = holder.ChildByFieldName("left")
	default:
		return nil, ""
	}
	return w.patternBinding(target)
}

// callbackBinding inspects the first parameter of the .then() callback.
func (w *walker) callbackBinding(thenCall *sitter.Node) ([]string, string) {
	args := thenCall.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil, ""
	}
	cb := args.NamedChild(0)
	if !functionBoundaries[cb.Type()] {
		return nil, ""
	}

	if p := cb.ChildByFieldName("parameter"); p != nil {
		return w.patternBinding(p)
	}
	params := cb.ChildByFieldName("parameters")
	if params == nil || params.Type() != nodeFormalParameters || params.NamedChildCount() == 0 {
		return nil, ""
	}
	first := params.NamedChild(0)
	if first.Type() == nodeRequiredParameter || first.Type() == nodeOptionalParameter {
		first = first.ChildByFieldName("pattern")
	}
	return w.patternBinding(first)
}

func (w *walker) patternBinding(target *sitter.Node) ([]string, string) {
	if target == nil {
		return nil, ""
	}
	switch target.Type() {
	case nodeObjectPattern:
		return w.patternNames(target), ""
	case nodeIdentifier:
		return nil, target.Content(w.content)
	}
	return nil, ""
}

// patternNames lists the module symbols taken by an object pattern. For
// `{ a: local }` the imported symbol is a.
func (w *walker) patternNames(pattern *sitter.Node) []string {
	names := []string{}
	for i := 0; i < int(pattern.NamedChildCount()); i++ {
		p := pattern.NamedChild(i)
		switch p.Type() {
		case nodeShorthandPattern:
			names = append(names, p.Content(w.content))
		case nodePairPattern:
			if key := p.ChildByFieldName("key"); key != nil {
				names = append(names, key.Content(w.content))
			}
		case nodeAssignmentPattern:
			if left := p.ChildByFieldName("left"); left != nil {
				names = append(names, left.Content(w.content))
			}
		}
	}
	return names
}

// container names the innermost enclosing function and class.
func (w *walker) container(ancestors []*sitter.Node) (function, class string) {
	for i := len(ancestors) - 1; i >= 0; i-- {
		a := ancestors[i]
		if function == "" {
			function = w.functionName(a, ancestors[:i])
		}
		if class == "" {
			switch a.Type() {
			case nodeClassDecl, nodeAbstractClassDecl, nodeClassExpression:
				if name := a.ChildByFieldName("name"); name != nil {
					class = name.Content(w.content)
				}
			}
		}
	}
	return function, class
}

func (w *walker) functionName(n *sitter.Node, above []*sitter.Node) string {
	switch n.Type() {
	case nodeFunctionDecl, nodeGeneratorDecl, nodeMethodDefinition:
		if name := n.ChildByFieldName("name"); name != nil {
			return name.Content(w.content)
		}
	case nodeArrowFunction, "function", "function_expression", "generator_function":
		if name := n.ChildByFieldName("name"); name != nil {
			return name.Content(w.content)
		}
		if len(above) > 0 && above[len(above)-1].Type() == nodeVariableDeclarator {
			if name := above[len(above)-1].ChildByFieldName("name"); name != nil && name.Type() == nodeIdentifier {
				return name.Content(w.content)
			}
		}
	}
	return ""
}
