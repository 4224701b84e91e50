// Package session holds the current analysis of a project for long-running
// processes. Each rebuild produces a fresh graph and executor which replace
// the previous pair atomically; a graph is never modified once published.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/query"
)

// ErrNotReady is returned by Current before the first build completes.
var ErrNotReady = errors.New("analysis not ready")

// Session owns the analyzer of one project root and the last published
// analysis.
type Session struct {
	root      string
	analyzer  *analysis.Analyzer
	queryOpts []query.Option

	buildMu sync.Mutex // serializes rebuilds

	mu         sync.RWMutex
	current    *analysis.Analysis
	executor   *query.Executor
	generation int
	hooks      []func(context.Context, *analysis.Analysis)
}

// New creates a Session. Nothing is analyzed until Rebuild is called.
func New(root string, analyzer *analysis.Analyzer, queryOpts ...query.Option) *Session {
	return &Session{root: root, analyzer: analyzer, queryOpts: queryOpts}
}

// Root returns the analyzed project root.
func (s *Session) Root() string {
	return s.root
}

// OnRebuild registers fn to run after each published rebuild.
func (s *Session) OnRebuild(fn func(context.Context, *analysis.Analysis)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Rebuild analyzes the root and publishes the result with a new executor.
// Readers holding the previous analysis keep a consistent view.
func (s *Session) Rebuild(ctx context.Context) (*analysis.Analysis, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	an, err := s.analyzer.AnalyzeDir(ctx, s.root)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ex := query.NewExecutor(an.Graph, s.queryOpts...)

	s.mu.Lock()
	s.current = an
	s.executor = ex
	s.generation++
	gen := s.generation
	hooks := append([]func(context.Context, *analysis.Analysis){}, s.hooks...)
	s.mu.Unlock()

	slog.Info("analysis published",
		"root", an.Root,
		"generation", gen,
		"nodes", len(an.Graph.Nodes),
		"edges", len(an.Graph.Edges),
		"duration_ms", an.DurationMs)

	for _, h := range hooks {
		h(ctx, an)
	}
	return an, nil
}

// Refresh drops cached per-file state for changed paths and rebuilds.
func (s *Session) Refresh(ctx context.Context, changed []string) (*analysis.Analysis, error) {
	s.analyzer.Detector().Invalidate(changed...)
	return s.Rebuild(ctx)
}

// Current returns the published analysis and its executor.
func (s *Session) Current() (*analysis.Analysis, *query.Executor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, nil, ErrNotReady
	}
	return s.current, s.executor, nil
}

// Generation counts published rebuilds.
func (s *Session) Generation() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
