package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coderef/coderef/internal/session"
	"github.com/coderef/coderef/internal/watch"
	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/config"
	"github.com/coderef/coderef/pkg/scan"
	"github.com/coderef/coderef/pkg/surface"
)

func newWatchCmd() *cobra.Command {
	var (
		output   string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Rebuild the graph whenever source files change",
		Long: `Analyzes the project, then watches it for changes. Each batch of changes
invalidates the affected files and rebuilds the graph from scratch, printing
a fresh summary.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer, err := surface.New(output)
			if err != nil {
				return err
			}
			root, err := resolveProject(firstArg(args))
			if err != nil {
				return err
			}
			cfg := loadConfig(root)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sess := newSession(root, cfg)
			out := cmd.OutOrStdout()
			sess.OnRebuild(func(_ context.Context, an *analysis.Analysis) {
				if err := renderer.RenderAnalysis(out, an); err != nil {
					slog.Error("rendering summary", "error", err)
				}
			})

			if _, err := sess.Rebuild(ctx); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl-C to stop)\n", root)
			return runWatcher(ctx, sess, cfg, debounce)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or markdown")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Wait this long for changes to settle")

	return cmd
}

func newSession(root string, cfg *config.Config) *session.Session {
	return session.New(root, analysis.New(cfg.ScanOptions()), cfg.QueryOptions()...)
}

// runWatcher blocks until ctx is done, refreshing sess on every change batch.
func runWatcher(ctx context.Context, sess *session.Session, cfg *config.Config, debounce time.Duration) error {
	filter, problems := scan.New(cfg.ScanOptions()).Filter(sess.Root())
	for _, p := range problems {
		slog.Warn("ignore file", "file", p.File, "error", p.Message)
	}

	w, err := watch.New(watch.Config{
		Root:     sess.Root(),
		Filter:   filter,
		Debounce: debounce,
		OnChange: func(ctx context.Context, paths []string) {
			slog.Info("files changed", "count", len(paths))
			if _, err := sess.Refresh(ctx, paths); err != nil && ctx.Err() == nil {
				slog.Error("rebuild failed", "error", err)
			}
		},
	})
	if err != nil {
		return err
	}
	defer w.Close()

	slog.Debug("watching directories", "count", len(w.Watched()))
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
