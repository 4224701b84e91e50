// Package query answers structural questions over a DependencyGraph: who
// calls, imports or depends on an element, what it calls, imports or depends
// on, and how two elements are connected. Results are cached for a bounded
// time and per-type performance counters are kept.
package query

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Type is one of the eight supported query kinds.
type Type string

const (
	WhatCalls       Type = "what-calls"
	WhatCallsMe     Type = "what-calls-me"
	WhatImports     Type = "what-imports"
	WhatImportsMe   Type = "what-imports-me"
	WhatDependsOn   Type = "what-depends-on"
	WhatDependsOnMe Type = "what-depends-on-me"
	ShortestPath    Type = "shortest-path"
	AllPaths        Type = "all-paths"
)

// Types lists every query kind.
var Types = []Type{
	WhatCalls, WhatCallsMe,
	WhatImports, WhatImportsMe,
	WhatDependsOn, WhatDependsOnMe,
	ShortestPath, AllPaths,
}

// Valid reports whether t is a supported query kind.
func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// NeedsSource reports whether the query connects a source to a target.
func (t Type) NeedsSource() bool {
	return t == ShortestPath || t == AllPaths
}

var (
	ErrUnknownQueryType = errors.New("unknown query type")
	ErrTargetRequired   = errors.New("target is required")
	ErrSourceRequired   = errors.New("source is required for path queries")
	ErrTargetNotFound   = errors.New("no node matches")
	ErrNilGraph         = errors.New("no graph loaded")
)

// Request is a single query. Target and Source name either a node ID, a file
// path or an element name.
type Request struct {
	Type     Type   `json:"type"`
	Target   string `json:"target"`
	Source   string `json:"source,omitempty"`
	MaxDepth int    `json:"max_depth,omitempty"`
	Format   string `json:"format,omitempty"`
}

// Validate checks the request shape without touching a graph.
func (r Request) Validate() error {
	if !r.Type.Valid() {
		return ErrUnknownQueryType
	}
	if r.Target == "" {
		return ErrTargetRequired
	}
	if r.Type.NeedsSource() && r.Source == "" {
		return ErrSourceRequired
	}
	return nil
}

// Key is the canonical cache key over all request fields.
func (r Request) Key() string {
	return strings.Join([]string{
		string(r.Type),
		r.Target,
		r.Source,
		strconv.Itoa(r.MaxDepth),
		r.Format,
	}, "|")
}

// Item is one node in a query result. Phantom items are edge endpoints with
// no node in the graph, such as files outside the scanned set.
type Item struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Phantom bool   `json:"phantom,omitempty"`
}

// Result is the outcome of one Execute call. Failures are reported in Error;
// Execute never returns a Go error.
type Result struct {
	Query         Request       `json:"query"`
	Results       []Item        `json:"results"`
	Count         int           `json:"count"`
	ExecutionTime time.Duration `json:"execution_time"`
	Cached        bool          `json:"cached"`
	Timestamp     time.Time     `json:"timestamp"`
	Error         string        `json:"error,omitempty"`
}

// OK reports whether the query succeeded.
func (r Result) OK() bool {
	return r.Error == ""
}

// clone returns a copy that shares nothing mutable with r.
func (r Result) clone() Result {
	c := r
	c.Results = append([]Item(nil), r.Results...)
	if c.Results == nil {
		c.Results = []Item{}
	}
	return c
}
