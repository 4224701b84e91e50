package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/coderef/coderef/pkg/export"
	"github.com/coderef/coderef/pkg/graph"
	"github.com/coderef/coderef/pkg/query"
	"github.com/coderef/coderef/pkg/surface"
)

type queryOpts struct {
	path      string
	graphFile string
	source    string
	maxDepth  int
	batchFile string
	output    string
}

func newQueryCmd() *cobra.Command {
	var opts queryOpts

	cmd := &cobra.Command{
		Use:   "query <type> <target>",
		Short: "Answer a relationship query over the dependency graph",
		Long: fmt.Sprintf(`Runs one query, or a batch of queries from a YAML file, against the
dependency graph. The graph comes from a saved export (--graph) or a fresh
analysis of the project.

Query types: %s

Targets and sources may be node IDs, file paths or element names.`, typeList()),
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.batchFile != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := surface.New(opts.output)
			if err != nil {
				return err
			}

			reqs, err := buildRequests(opts, args)
			if err != nil {
				return err
			}

			g, err := loadQueryGraph(cmd.Context(), opts)
			if err != nil {
				return err
			}

			results := query.NewExecutor(g, loadQueryConfig(opts.path)...).ExecuteBatch(reqs)
			if err := renderer.RenderQueries(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			for _, r := range results {
				if !r.OK() {
					return errors.New("one or more queries failed")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.path, "path", "p", "", "Project path (default: current directory)")
	cmd.Flags().StringVar(&opts.graphFile, "graph", "", "Query a saved export instead of analyzing the project")
	cmd.Flags().StringVar(&opts.source, "source", "", "Source node for shortest-path and all-paths")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "Traversal depth limit (default from config)")
	cmd.Flags().StringVar(&opts.batchFile, "batch", "", "YAML file with a list of queries")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format: text, json or markdown")

	return cmd
}

func typeList() string {
	names := make([]string, len(query.Types))
	for i, t := range query.Types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// batchFile is the YAML layout accepted by --batch.
type batchFile struct {
	Queries []struct {
		Type     string `yaml:"type"`
		Target   string `yaml:"target"`
		Source   string `yaml:"source"`
		MaxDepth int    `yaml:"max_depth"`
	} `yaml:"queries"`
}

func buildRequests(opts queryOpts, args []string) ([]query.Request, error) {
	if opts.batchFile == "" {
		t := query.Type(args[0])
		if !t.Valid() {
			return nil, fmt.Errorf("%w %q (valid: %s)", query.ErrUnknownQueryType, args[0], typeList())
		}
		return []query.Request{{Type: t, Target: args[1], Source: opts.source, MaxDepth: opts.maxDepth}}, nil
	}

	data, err := os.ReadFile(opts.batchFile)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parsing batch file: %w", err)
	}
	if len(bf.Queries) == 0 {
		return nil, fmt.Errorf("batch file %s has no queries", opts.batchFile)
	}

	reqs := make([]query.Request, len(bf.Queries))
	for i, q := range bf.Queries {
		depth := q.MaxDepth
		if depth == 0 {
			depth = opts.maxDepth
		}
		reqs[i] = query.Request{Type: query.Type(q.Type), Target: q.Target, Source: q.Source, MaxDepth: depth}
	}
	return reqs, nil
}

func loadQueryGraph(ctx context.Context, opts queryOpts) (*graph.DependencyGraph, error) {
	if opts.graphFile != "" {
		return export.LoadGraph(opts.graphFile)
	}
	an, _, err := analyze(ctx, opts.path)
	if err != nil {
		return nil, err
	}
	return an.Graph, nil
}

func loadQueryConfig(path string) []query.Option {
	root, err := resolveProject(path)
	if err != nil {
		return nil
	}
	return loadConfig(root).QueryOptions()
}
