package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/coderef/coderef/pkg/export"
	"github.com/coderef/coderef/pkg/graph"
	"github.com/coderef/coderef/pkg/surface"
)

type diffOpts struct {
	path   string
	base   string
	head   string
	output string
	save   bool
}

func newDiffCmd() *cobra.Command {
	var opts diffOpts

	cmd := &cobra.Command{
		Use:   "diff [path]",
		Short: "Compare two graphs and report the structural delta",
		Long: `Compares a base graph with a head graph and lists the nodes and edges that
were added or removed. The base defaults to the export saved by the last
'scan --save'; the head defaults to a fresh analysis of the project.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.path = firstArg(args)
			renderer, err := surface.New(opts.output)
			if err != nil {
				return err
			}
			delta, err := runDiff(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return renderer.RenderDelta(cmd.OutOrStdout(), delta)
		},
	}

	cmd.Flags().StringVar(&opts.base, "base", "", "Base export file (default: the saved latest export)")
	cmd.Flags().StringVar(&opts.head, "head", "", "Head export file (default: analyze the project now)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format: text, json or markdown")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Replace the saved export with the head graph")

	return cmd
}

func runDiff(ctx context.Context, opts diffOpts) (*graph.Delta, error) {
	root, err := resolveProject(opts.path)
	if err != nil {
		return nil, err
	}

	basePath := firstNonEmpty(opts.base, latestExportPath(root))
	base, err := export.LoadGraph(basePath)
	if err != nil {
		if opts.base == "" && errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no saved graph for %s; run 'coderef scan --save' first", root)
		}
		return nil, fmt.Errorf("loading base graph: %w", err)
	}

	var head *graph.DependencyGraph
	if opts.head != "" {
		head, err = export.LoadGraph(opts.head)
		if err != nil {
			return nil, fmt.Errorf("loading head graph: %w", err)
		}
	} else {
		an, cfg, err := analyze(ctx, root)
		if err != nil {
			return nil, err
		}
		head = an.Graph
		if opts.save {
			doc := export.NewExporter(head, export.Options{Visualization: cfg.Export.Visualization}).Document()
			if err := export.SaveDocument(latestExportPath(root), doc); err != nil {
				return nil, fmt.Errorf("saving export: %w", err)
			}
		}
	}

	return graph.ComputeDelta(base, head), nil
}
