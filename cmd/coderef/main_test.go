package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coderef/coderef/pkg/query"
)

func TestScanCmdFlags(t *testing.T) {
	f := newScanCmd().Flags()

	output, _ := f.GetString("output")
	if output != "text" {
		t.Errorf("default output = %q, want text", output)
	}
	for _, flag := range []string{"output", "save", "fail-on-error"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestQueryCmdFlags(t *testing.T) {
	f := newQueryCmd().Flags()
	for _, flag := range []string{"path", "graph", "source", "max-depth", "batch", "output"} {
		if f.Lookup(flag) == nil {
			t.Errorf("missing flag: %s", flag)
		}
	}
}

func TestDiffAndServeCmdFlags(t *testing.T) {
	diff := newDiffCmd().Flags()
	for _, flag := range []string{"base", "head", "output", "save"} {
		if diff.Lookup(flag) == nil {
			t.Errorf("diff: missing flag: %s", flag)
		}
	}

	serve := newServeCmd().Flags()
	port, _ := serve.GetString("port")
	if port != "7700" {
		t.Errorf("default port = %q, want 7700", port)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"a", "b", "c"}, "a"},
		{[]string{"", "b", "c"}, "b"},
		{[]string{"", "", "c"}, "c"},
		{[]string{"", "", ""}, ""},
	}

	for _, tt := range tests {
		got := firstNonEmpty(tt.args...)
		if got != tt.want {
			t.Errorf("firstNonEmpty(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestBuildRequests(t *testing.T) {
	reqs, err := buildRequests(queryOpts{maxDepth: 3}, []string{"what-calls", "greet"})
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 1 || reqs[0].Type != query.WhatCalls || reqs[0].MaxDepth != 3 {
		t.Errorf("unexpected requests: %+v", reqs)
	}

	if _, err := buildRequests(queryOpts{}, []string{"who-knows", "x"}); err == nil {
		t.Error("expected error for unknown query type")
	}

	batch := filepath.Join(t.TempDir(), "queries.yaml")
	writeFile(t, batch, `queries:
  - type: what-imports
    target: src/a.ts
  - type: shortest-path
    source: src/a.ts
    target: src/b.ts
    max_depth: 4
`)
	reqs, err = buildRequests(queryOpts{batchFile: batch, maxDepth: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 2 {
		t.Fatalf("got %d requests, want 2", len(reqs))
	}
	if reqs[0].MaxDepth != 2 || reqs[1].MaxDepth != 4 {
		t.Errorf("depths = %d, %d; want 2, 4", reqs[0].MaxDepth, reqs[1].MaxDepth)
	}
	if reqs[1].Source != "src/a.ts" {
		t.Errorf("source = %q", reqs[1].Source)
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	writeFile(t, empty, "queries: []\n")
	if _, err := buildRequests(queryOpts{batchFile: empty}, nil); err == nil {
		t.Error("expected error for empty batch")
	}
}

// newProject writes a two-file project and points the export cache at a
// temporary home directory.
func newProject(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name": "demo"}`)
	writeFile(t, filepath.Join(root, "src", "util.ts"), "export function greet(name: string) {\n  return 'hi ' + name;\n}\n")
	writeFile(t, filepath.Join(root, "src", "main.ts"), "import { greet } from './util';\n\nexport function main() {\n  greet('x');\n}\n")
	return root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScanCmd(t *testing.T) {
	root := newProject(t)

	out, err := execute(t, "scan", root, "--save")
	if err != nil {
		t.Fatalf("scan: %v\n%s", err, out)
	}
	if !strings.Contains(out, "coderef: ") {
		t.Errorf("expected summary header, got:\n%s", out)
	}
	if _, err := os.Stat(latestExportPath(root)); err != nil {
		t.Errorf("expected saved export: %v", err)
	}
}

func TestScanCmd_JSON(t *testing.T) {
	root := newProject(t)

	out, err := execute(t, "scan", root, "-o", "json")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if _, ok := doc["statistics"]; !ok {
		t.Error("expected statistics in JSON output")
	}
}

func TestDiffCmd_NoSavedGraph(t *testing.T) {
	root := newProject(t)

	_, err := execute(t, "diff", root)
	if err == nil || !strings.Contains(err.Error(), "scan --save") {
		t.Errorf("expected hint to run scan --save, got %v", err)
	}
}

func TestDiffCmd_DetectsNewFile(t *testing.T) {
	root := newProject(t)
	if _, err := execute(t, "scan", root, "--save"); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(root, "src", "extra.ts"), "export const answer = 42;\n")
	out, err := execute(t, "diff", root)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(out, "extra.ts") {
		t.Errorf("expected new file in delta:\n%s", out)
	}
}

func TestExportAndQueryCmd(t *testing.T) {
	root := newProject(t)
	exportPath := filepath.Join(t.TempDir(), "graph.json")

	if _, err := execute(t, "export", root, "--output", exportPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	if out, err := execute(t, "export", "--validate", exportPath); err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}

	out, err := execute(t, "query", "what-calls-me", "main", "--graph", exportPath, "-o", "json")
	if err != nil {
		t.Fatalf("query: %v\n%s", err, out)
	}
	var res query.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if res.Query.Type != query.WhatCallsMe || !res.OK() {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExportCmd_Publish(t *testing.T) {
	root := newProject(t)

	out, err := execute(t, "export", root, "--publish")
	if err != nil {
		t.Fatalf("export --publish: %v", err)
	}
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatal(err)
	}
	resolved, err := resolveProject(root)
	if err != nil {
		t.Fatal(err)
	}
	// LocalStore layout: <dir>/<project>/exports/<id>.json
	stored := filepath.Join(filepath.Dir(latestExportPath(resolved)), projectName(resolved), "exports", doc.ID+".json")
	if _, err := os.Stat(stored); err != nil {
		t.Errorf("published export not found: %v", err)
	}
}

func TestExportCmd_ValidateRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, path, `{"nodes": 3}`)

	out, err := execute(t, "export", "--validate", path)
	if err == nil {
		t.Fatalf("expected validation failure, got:\n%s", out)
	}
}
