package query

import (
	"fmt"
	"sync"
	"time"

	"github.com/coderef/coderef/pkg/graph"
)

// DefaultMaxDepth bounds dependency walks and path enumeration when a
// request does not set MaxDepth.
const DefaultMaxDepth = 10

// Executor runs queries against one graph. It is safe for concurrent use;
// the graph itself must not be mutated while an Executor holds it.
type Executor struct {
	graph        *graph.DependencyGraph
	cache        *resultCache
	now          func() time.Time
	defaultDepth int
	cacheErrors  bool

	mu   sync.Mutex
	perf map[Type]*perfCounter
}

type perfCounter struct {
	total time.Duration
	count int
}

// PerfStats is the running performance of one query type. Average is
// derived from Total and Count.
type PerfStats struct {
	Count   int           `json:"count"`
	Total   time.Duration `json:"total"`
	Average time.Duration `json:"average"`
}

// Option configures an Executor.
type Option func(*Executor)

// WithCacheTTL sets how long results stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Executor) {
		e.cache = newResultCache(ttl)
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithDefaultMaxDepth sets the depth used when a request leaves MaxDepth unset.
func WithDefaultMaxDepth(depth int) Option {
	return func(e *Executor) {
		if depth > 0 {
			e.defaultDepth = depth
		}
	}
}

// WithErrorCaching controls whether failed results are cached. It is on by
// default; turning it off makes a failed lookup retry on the next call.
func WithErrorCaching(enabled bool) Option {
	return func(e *Executor) {
		e.cacheErrors = enabled
	}
}

// NewExecutor returns an Executor over g.
func NewExecutor(g *graph.DependencyGraph, opts ...Option) *Executor {
	e := &Executor{
		graph:        g,
		cache:        newResultCache(DefaultCacheTTL),
		now:          time.Now,
		defaultDepth: DefaultMaxDepth,
		cacheErrors:  true,
		perf:         make(map[Type]*perfCounter),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the graph the executor reads.
func (e *Executor) Graph() *graph.DependencyGraph {
	return e.graph
}

// Execute runs req. A cache hit returns a copy of the stored result marked
// cached with a fresh timestamp and the original execution time. Failures
// are reported in Result.Error.
func (e *Executor) Execute(req Request) Result {
	key := req.Key()
	if cached, ok := e.cache.get(key, e.now()); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		cached.Cached = true
		cached.Timestamp = e.now()
		return cached
	}
	cacheLookups.WithLabelValues("miss").Inc()

	start := e.now()
	items, err := e.run(req)
	elapsed := e.now().Sub(start)

	result := Result{
		Query:         req,
		Results:       items,
		Count:         len(items),
		ExecutionTime: elapsed,
		Timestamp:     e.now(),
	}
	outcome := "ok"
	if err != nil {
		result.Results = []Item{}
		result.Count = 0
		result.Error = err.Error()
		outcome = "error"
	}

	if err == nil || e.cacheErrors {
		e.cache.put(key, result, result.Timestamp)
	}
	e.record(req.Type, elapsed)
	queriesTotal.WithLabelValues(string(req.Type), outcome).Inc()
	queryDuration.WithLabelValues(string(req.Type)).Observe(elapsed.Seconds())
	return result
}

// ExecuteBatch runs every request in order. One failing request does not
// stop the rest.
func (e *Executor) ExecuteBatch(reqs []Request) []Result {
	results := make([]Result, 0, len(reqs))
	for _, r := range reqs {
		results = append(results, e.Execute(r))
	}
	return results
}

// QueryWithFilter runs req and keeps only the items keep accepts. The cached
// entry is left unfiltered.
func (e *Executor) QueryWithFilter(req Request, keep func(Item) bool) Result {
	r := e.Execute(req)
	if keep == nil {
		return r
	}
	filtered := make([]Item, 0, len(r.Results))
	for _, it := range r.Results {
		if keep(it) {
			filtered = append(filtered, it)
		}
	}
	r.Results = filtered
	r.Count = len(filtered)
	return r
}

// ClearCache drops every cached result.
func (e *Executor) ClearCache() {
	e.cache.clear()
}

// CacheSize returns the number of stored results, expired ones included.
func (e *Executor) CacheSize() int {
	return e.cache.len()
}

// ResetPerformanceStats zeroes every per-type counter.
func (e *Executor) ResetPerformanceStats() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.perf = make(map[Type]*perfCounter)
}

// PerformanceStats returns a snapshot of the per-type counters.
func (e *Executor) PerformanceStats() map[Type]PerfStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[Type]PerfStats, len(e.perf))
	for t, c := range e.perf {
		s := PerfStats{Count: c.count, Total: c.total}
		if c.count > 0 {
			s.Average = c.total / time.Duration(c.count)
		}
		out[t] = s
	}
	return out
}

func (e *Executor) record(t Type, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.perf[t]
	if !ok {
		c = &perfCounter{}
		e.perf[t] = c
	}
	c.total += d
	c.count++
}

// Health is the result of HealthCheck.
type Health struct {
	Healthy      bool   `json:"healthy"`
	Nodes        int    `json:"nodes"`
	Edges        int    `json:"edges"`
	CacheEntries int    `json:"cache_entries"`
	Error        string `json:"error,omitempty"`
}

// HealthCheck reports whether a graph is loaded. It never fails.
func (e *Executor) HealthCheck() Health {
	if e.graph == nil {
		return Health{Error: ErrNilGraph.Error()}
	}
	return Health{
		Healthy:      true,
		Nodes:        len(e.graph.Nodes),
		Edges:        len(e.graph.Edges),
		CacheEntries: e.cache.len(),
	}
}

func (e *Executor) depth(req Request) int {
	if req.MaxDepth > 0 {
		return req.MaxDepth
	}
	return e.defaultDepth
}

func (e *Executor) run(req Request) ([]Item, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if e.graph == nil {
		return nil, ErrNilGraph
	}

	targets := ResolveNodes(e.graph, req.Target)
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w target %q", ErrTargetNotFound, req.Target)
	}

	var ids []string
	switch req.Type {
	case WhatCalls:
		ids = reachable(e.graph, targets, Reverse, []graph.EdgeType{graph.EdgeCalls}, 1)
	case WhatCallsMe:
		ids = reachable(e.graph, targets, Forward, []graph.EdgeType{graph.EdgeCalls}, 1)
	case WhatImports:
		ids = reachable(e.graph, targets, Forward, []graph.EdgeType{graph.EdgeImports}, 1)
	case WhatImportsMe:
		ids = reachable(e.graph, targets, Reverse, []graph.EdgeType{graph.EdgeImports}, 1)
	case WhatDependsOn:
		ids = reachable(e.graph, targets, Forward, nil, e.depth(req))
	case WhatDependsOnMe:
		ids = reachable(e.graph, targets, Reverse, nil, e.depth(req))
	case ShortestPath, AllPaths:
		sources := ResolveNodes(e.graph, req.Source)
		if len(sources) == 0 {
			return nil, fmt.Errorf("%w source %q", ErrTargetNotFound, req.Source)
		}
		if req.Type == ShortestPath {
			ids = shortestPath(e.graph, sources, targets)
		} else {
			ids = allPathNodes(e.graph, sources, targets, e.depth(req))
		}
	}
	return e.items(ids), nil
}

func (e *Executor) items(ids []string) []Item {
	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		n, ok := e.graph.Nodes[id]
		if !ok {
			items = append(items, Item{ID: id, Name: id, Phantom: true})
			continue
		}
		items = append(items, Item{ID: n.ID, Name: n.Name, Type: n.Type, File: n.File, Line: n.Line})
	}
	return items
}
