package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coderef/coderef/pkg/export"
	"github.com/coderef/coderef/pkg/surface"
)

func newScanCmd() *cobra.Command {
	var (
		output     string
		save       bool
		failOnErrs bool
	)

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a project and summarize its elements and dependency graph",
		Long: `Extracts elements and dynamic imports from every eligible source file,
builds the dependency graph and prints a summary. With --save the graph is
exported to the project cache for later diffs and queries.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := surface.New(output)
			if err != nil {
				return err
			}

			an, cfg, err := analyze(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}

			if err := renderer.RenderAnalysis(cmd.OutOrStdout(), an); err != nil {
				return err
			}

			if save {
				path := latestExportPath(an.Root)
				doc := export.NewExporter(an.Graph, export.Options{Visualization: cfg.Export.Visualization}).Document()
				if err := export.SaveDocument(path, doc); err != nil {
					return fmt.Errorf("saving export: %w", err)
				}
				fmt.Fprintf(os.Stderr, "Graph saved to %s\n", path)
			}

			if failOnErrs && len(an.Scan.Errors) > 0 {
				return errors.New("scan reported errors")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or markdown")
	cmd.Flags().BoolVar(&save, "save", false, "Save the graph export to the project cache")
	cmd.Flags().BoolVar(&failOnErrs, "fail-on-error", false, "Exit non-zero when any file failed to scan")

	return cmd
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
