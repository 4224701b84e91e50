package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/coderef/coderef/pkg/analysis"
	"github.com/coderef/coderef/pkg/config"
)

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// resolveProject returns the project root for path: the nearest directory
// with a package.json, tsconfig.json or jsconfig.json, or path itself.
func resolveProject(path string) (string, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		path = cwd
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving project path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project path %s is not a directory", abs)
	}
	if root, err := config.FindProjectRoot(abs); err == nil {
		return root, nil
	}
	return abs, nil
}

func loadConfig(root string) *config.Config {
	cfgFile := config.FindConfigFile(root)
	if cfgFile == "" {
		return config.DefaultConfig()
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

// analyze runs the full pipeline over the project at path.
func analyze(ctx context.Context, path string) (*analysis.Analysis, *config.Config, error) {
	root, err := resolveProject(path)
	if err != nil {
		return nil, nil, err
	}
	cfg := loadConfig(root)
	fmt.Fprintf(os.Stderr, "Analyzing %s...\n", root)
	an, err := analysis.New(cfg.ScanOptions()).AnalyzeDir(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	return an, cfg, nil
}

// latestExportPath is where `scan --save` keeps the most recent export.
func latestExportPath(root string) string {
	return filepath.Join(config.ExportDir(root), "latest.json")
}

func projectName(root string) string {
	return filepath.Base(root)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
