// Package element defines the program elements extracted from source files.
// These types are the shared vocabulary between the scanner, the graph
// assembler and the documentation consumers.
package element

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// Type classifies an element. The set is closed; see Types.
type Type string

const (
	TypeFunction  Type = "function"
	TypeClass     Type = "class"
	TypeMethod    Type = "method"
	TypeComponent Type = "component"
	TypeHook      Type = "hook"
	TypeInterface Type = "interface"
	TypeAlias     Type = "type"
	TypeEnum      Type = "enum"
)

// Types lists every valid element type.
var Types = []Type{
	TypeFunction,
	TypeClass,
	TypeMethod,
	TypeComponent,
	TypeHook,
	TypeInterface,
	TypeAlias,
	TypeEnum,
}

// Valid reports whether t belongs to the closed type set.
func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// Element is a named, classified program construct with a source location.
// Identity is (File, Name); duplicates are not rejected.
type Element struct {
	Type     Type     `json:"type"`
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Line     int      `json:"line"`             // 1-based
	Column   int      `json:"column,omitempty"` // 1-based
	Exported bool     `json:"exported,omitempty"`
	Calls    []string `json:"calls,omitempty"` // callee names seen in the body

	// Heritage, classes only.
	Extends    string   `json:"extends,omitempty"`
	Implements []string `json:"implements,omitempty"`
}

// Key returns the composite identity used when elements are stored in maps.
func (e Element) Key() string {
	return e.File + ":" + e.Name
}

var hookName = regexp.MustCompile(`^use[A-Z]`)

// ClassifyName applies the naming heuristic shared by declared functions and
// function-valued variables: an uppercase first letter is a component, a
// use-prefixed name is a hook, anything else is a plain function.
func ClassifyName(name string) Type {
	if name == "" {
		return TypeFunction
	}
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return TypeComponent
	}
	if hookName.MatchString(name) {
		return TypeHook
	}
	return TypeFunction
}
