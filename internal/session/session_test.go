package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/graph"
	"github.com/coderef/coderef/pkg/query"
	"github.com/coderef/coderef/pkg/scan"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCurrentBeforeBuild(t *testing.T) {
	s := New(t.TempDir(), analysis.New(scan.DefaultOptions()))
	if _, _, err := s.Current(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Current() error = %v, want ErrNotReady", err)
	}
}

func TestRebuildPublishesFreshGraph(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.ts")
	write(t, a, "function one() {}\n")

	s := New(root, analysis.New(scan.DefaultOptions()), query.WithDefaultMaxDepth(3))
	var hooked []int
	s.OnRebuild(func(_ context.Context, an *analysis.Analysis) {
		hooked = append(hooked, len(an.Graph.Nodes))
	})

	first, err := s.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	_, ex1, err := s.Current()
	if err != nil {
		t.Fatal(err)
	}
	if ex1.Graph() != first.Graph {
		t.Error("executor should query the published graph")
	}

	write(t, a, "function one() {}\nfunction two() {}\n")
	second, err := s.Refresh(context.Background(), []string{a})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if first.Graph == second.Graph {
		t.Fatal("rebuild must produce a new graph")
	}
	if first.Graph.Node(graph.ElementID(a, "two")) != nil {
		t.Error("previous graph was modified")
	}
	if second.Graph.Node(graph.ElementID(a, "two")) == nil {
		t.Error("new graph is missing the added element")
	}
	if s.Generation() != 2 {
		t.Errorf("Generation() = %d, want 2", s.Generation())
	}
	if len(hooked) != 2 || hooked[0] != 2 || hooked[1] != 3 {
		t.Errorf("hooks saw node counts %v, want [2 3]", hooked)
	}
}

func TestConcurrentReadsDuringRebuild(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.js"), "function a() { b(); }\nfunction b() {}\n")

	s := New(root, analysis.New(scan.DefaultOptions()))
	if _, err := s.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, ex, err := s.Current()
				if err != nil {
					t.Error(err)
					return
				}
				ex.Execute(query.Request{Type: query.WhatCalls, Target: "b"})
			}
		}()
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Rebuild(context.Background()); err != nil {
			t.Error(err)
		}
	}
	wg.Wait()
}

func TestRebuildCanceled(t *testing.T) {
	s := New(t.TempDir(), analysis.New(scan.DefaultOptions()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Rebuild(ctx); err == nil {
		t.Fatal("expected error from canceled rebuild")
	}
	if s.Generation() != 0 {
		t.Error("canceled rebuild must not publish")
	}
}
