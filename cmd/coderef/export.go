package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/coderef/coderef/internal/storage"
	"github.com/coderef/coderef/pkg/config"
	"github.com/coderef/coderef/pkg/export"
)

type exportOpts struct {
	format   string
	output   string
	pretty   bool
	noLayout bool
	publish  bool
	validate string
}

func newExportCmd() *cobra.Command {
	var opts exportOpts

	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export the dependency graph as a JSON document",
		Long: `Analyzes the project and writes the graph with statistics and an optional
circular layout. --publish stores the document in the configured blob store
(local, s3 or gcs). --validate checks an existing document instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.validate != "" {
				return runValidate(cmd, opts.validate)
			}
			return runExport(cmd, firstArg(args), opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "", "Export format: json or compact (default from config)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Indent the JSON document")
	cmd.Flags().BoolVar(&opts.noLayout, "no-layout", false, "Omit visualization positions")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Store the export in the configured blob store")
	cmd.Flags().StringVar(&opts.validate, "validate", "", "Validate an export document and exit")

	return cmd
}

func runExport(cmd *cobra.Command, path string, opts exportOpts) error {
	an, cfg, err := analyze(cmd.Context(), path)
	if err != nil {
		return err
	}

	format, err := export.ParseFormat(firstNonEmpty(opts.format, cfg.Export.Format))
	if err != nil {
		return err
	}
	if format == export.FormatCompact {
		slog.Warn("compact export format is not implemented, writing JSON instead")
	}
	doc := export.NewExporter(an.Graph, export.Options{
		Visualization: cfg.Export.Visualization && !opts.noLayout,
	}).Document()
	data, err := export.Marshal(doc, opts.pretty || cfg.Export.Pretty)
	if err != nil {
		return err
	}

	if opts.publish {
		if err := publish(cmd.Context(), an.Root, cfg.Storage, doc.ID, data); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Published export %s (%s backend)\n", doc.ID, firstNonEmpty(cfg.Storage.Backend, "local"))
	}

	if opts.output == "" {
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opts.output), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Export written to %s (%d nodes, %d edges)\n",
		opts.output, doc.Statistics.NodeCount, doc.Statistics.EdgeCount)
	return nil
}

// publish stores data in the configured blob store. The local backend
// defaults to the project export cache.
func publish(ctx context.Context, root string, cfg config.StorageConfig, id string, data []byte) error {
	if cfg.Backend == "" || cfg.Backend == "local" {
		cfg.LocalDir = firstNonEmpty(cfg.LocalDir, config.ExportDir(root))
	}
	store, err := storage.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := store.PutExport(ctx, projectName(root), id, data); err != nil {
		return fmt.Errorf("publishing export: %w", err)
	}
	return nil
}

func runValidate(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	problems := export.ValidateExport(data)
	if len(problems) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", path)
		return nil
	}
	for _, p := range problems {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, p)
	}
	return fmt.Errorf("%d problems found", len(problems))
}
