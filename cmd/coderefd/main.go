// Command coderefd is the coderef analysis service. It keeps the graph of
// one project current, serves the query and export API, and records every
// analysis run when a database is configured.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coderef/coderef/internal/api"
	"github.com/coderef/coderef/internal/platform"
	"github.com/coderef/coderef/internal/runs"
	"github.com/coderef/coderef/internal/session"
	"github.com/coderef/coderef/internal/storage"
	"github.com/coderef/coderef/internal/watch"
	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/config"
	"github.com/coderef/coderef/pkg/export"
	"github.com/coderef/coderef/pkg/scan"
)

type serverConfig struct {
	Port        string
	DatabaseURL string
	Root        string
	APIKey      string
	Watch       bool
	Backend     string
	Bucket      string
	StoragePath string
}

func loadServerConfig() serverConfig {
	return serverConfig{
		Port:        envOrDefault("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Root:        envOrDefault("CODEREF_ROOT", "."),
		APIKey:      os.Getenv("CODEREF_API_KEY"),
		Watch:       os.Getenv("CODEREF_WATCH") == "true",
		Backend:     os.Getenv("EXPORT_BACKEND"),
		Bucket:      os.Getenv("EXPORT_BUCKET"),
		StoragePath: envOrDefault("LOCAL_STORAGE_PATH", "/tmp/coderef-data"),
	}
}

// projectConfig loads .coderef/config.yaml from the root and applies the
// environment's storage overrides.
func projectConfig(sc serverConfig) *config.Config {
	cfg := config.DefaultConfig()
	if path := config.FindConfigFile(sc.Root); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Printf("config %s: %v (using defaults)", path, err)
		} else {
			cfg = loaded
		}
	}
	if sc.Backend != "" {
		cfg.Storage.Backend = sc.Backend
	}
	if sc.Bucket != "" {
		cfg.Storage.Bucket = sc.Bucket
	}
	if cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = sc.StoragePath
	}
	return cfg
}

func main() {
	sc := loadServerConfig()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	root, err := filepath.Abs(sc.Root)
	if err != nil {
		log.Fatalf("resolve root: %v", err)
	}
	sc.Root = root
	cfg := projectConfig(sc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}

	project := filepath.Base(root)
	sess := session.New(root, analysis.New(cfg.ScanOptions()), cfg.QueryOptions()...)
	opts := []api.Option{
		api.WithExportCache(api.NewExportCacheFromEnv()),
		api.WithExportOptions(export.Options{Visualization: cfg.Export.Visualization, Pretty: cfg.Export.Pretty}),
	}

	if sc.DatabaseURL != "" {
		db, err := platform.OpenDB(ctx, sc.DatabaseURL)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer db.Close()
		if err := platform.AutoMigrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		runSvc := runs.NewService(db)
		sess.OnRebuild(recordRun(runSvc, project))
		opts = append(opts, api.WithRuns(runSvc))
	}

	h := api.NewHandler(sess, store, project, opts...)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              ":" + sc.Port,
		Handler:           api.CORS(api.APIKeyAuth(sc.APIKey)(api.Logging(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting coderefd on :%s (root %s)", sc.Port, root)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// The first build runs in the background; /healthz reports "starting"
	// until it is published.
	go func() {
		if _, err := sess.Rebuild(ctx); err != nil && ctx.Err() == nil {
			log.Printf("initial build: %v", err)
			return
		}
		if sc.Watch {
			watchProject(ctx, sess, cfg)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func recordRun(svc *runs.Service, project string) func(context.Context, *analysis.Analysis) {
	return func(ctx context.Context, an *analysis.Analysis) {
		// The rebuild context may be canceled right after publishing.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		run, err := svc.Record(ctx, runs.FromAnalysis(project, an))
		if err != nil {
			log.Printf("record run: %v", err)
			return
		}
		slog.Info("run recorded", "run_id", run.ID, "nodes", run.NodeCount, "edges", run.EdgeCount)
	}
}

func watchProject(ctx context.Context, sess *session.Session, cfg *config.Config) {
	filter, _ := scan.New(cfg.ScanOptions()).Filter(sess.Root())
	w, err := watch.New(watch.Config{
		Root:   sess.Root(),
		Filter: filter,
		OnChange: func(ctx context.Context, paths []string) {
			if _, err := sess.Refresh(ctx, paths); err != nil && ctx.Err() == nil {
				log.Printf("rebuild: %v", err)
			}
		},
	})
	if err != nil {
		log.Printf("watch: %v", err)
		return
	}
	defer w.Close()
	log.Printf("watching %d directories under %s", len(w.Watched()), sess.Root())
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("watch: %v", err)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
