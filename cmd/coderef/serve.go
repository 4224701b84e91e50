package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coderef/coderef/internal/api"
	"github.com/coderef/coderef/internal/storage"
	"github.com/coderef/coderef/pkg/config"
	"github.com/coderef/coderef/pkg/export"
)

func newServeCmd() *cobra.Command {
	var (
		port     string
		watchFS  bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Serve the graph and query API for a local project",
		Long: `Analyzes the project and serves the HTTP API on localhost: graph views,
queries, performance stats and exports. Published exports go to the project
export cache. With --watch the graph is rebuilt as files change.

Usage:
  coderef serve ./app --watch
  curl -s localhost:7700/api/query -d '{"type":"what-imports-me","target":"src/util.ts"}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveProject(firstArg(args))
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), root, port, watchFS, debounce)
		},
	}

	cmd.Flags().StringVar(&port, "port", "7700", "Port to serve on")
	cmd.Flags().BoolVar(&watchFS, "watch", false, "Rebuild the graph when files change")
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "Watch debounce interval")

	return cmd
}

func runServe(ctx context.Context, root, port string, watchFS bool, debounce time.Duration) error {
	cfg := loadConfig(root)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := newSession(root, cfg)
	if _, err := sess.Rebuild(ctx); err != nil {
		return err
	}

	storeCfg := cfg.Storage
	if storeCfg.Backend == "" || storeCfg.Backend == "local" {
		storeCfg.LocalDir = firstNonEmpty(storeCfg.LocalDir, config.ExportDir(root))
	}
	store, err := storage.New(ctx, storeCfg)
	if err != nil {
		return err
	}

	h := api.NewHandler(sess, store, projectName(root),
		api.WithExportCache(api.NewExportCacheFromEnv()),
		api.WithExportOptions(export.Options{Visualization: cfg.Export.Visualization, Pretty: cfg.Export.Pretty}),
	)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              "localhost:" + port,
		Handler:           api.CORS(api.Logging(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Fprintf(os.Stderr, "coderef API server\n")
	fmt.Fprintf(os.Stderr, "  Project:    %s\n", root)
	fmt.Fprintf(os.Stderr, "  Exports:    %s\n", firstNonEmpty(storeCfg.Bucket, storeCfg.LocalDir))
	fmt.Fprintf(os.Stderr, "  Listening:  http://localhost:%s\n", port)

	errc := make(chan error, 2)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	if watchFS {
		go func() {
			if err := runWatcher(ctx, sess, cfg, debounce); err != nil {
				errc <- err
			}
		}()
	}

	select {
	case err := <-errc:
		stop()
		_ = srv.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
