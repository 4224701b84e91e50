// Package config handles loading and managing coderef configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coderef/coderef/pkg/export"
	"github.com/coderef/coderef/pkg/query"
	"github.com/coderef/coderef/pkg/scan"
)

// Config is the top-level configuration for coderef.
type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	Query   QueryConfig   `yaml:"query"`
	Export  ExportConfig  `yaml:"export"`
	Storage StorageConfig `yaml:"storage"`
}

// ScanConfig controls which files are read and how.
type ScanConfig struct {
	Extensions      []string `yaml:"extensions"`
	Exclude         []string `yaml:"exclude"` // gitignore-style patterns
	MaxFileSize     int64    `yaml:"max_file_size"`
	ReadConcurrency int      `yaml:"read_concurrency"`
}

// QueryConfig controls the query executor.
type QueryConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	DefaultMaxDepth int           `yaml:"default_max_depth"`
	CacheErrors     bool          `yaml:"cache_errors"`
}

// ExportConfig controls graph exports.
type ExportConfig struct {
	Format        string `yaml:"format"`
	Visualization bool   `yaml:"visualization"`
	Pretty        bool   `yaml:"pretty"`
}

// StorageConfig selects where published exports are stored.
type StorageConfig struct {
	Backend   string `yaml:"backend"` // local, s3, gcs
	LocalDir  string `yaml:"local_dir"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"` // S3-compatible endpoints such as MinIO
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	opts := scan.DefaultOptions()
	return &Config{
		Scan: ScanConfig{
			Extensions:      opts.Extensions,
			Exclude:         opts.Exclude,
			MaxFileSize:     opts.MaxFileSize,
			ReadConcurrency: opts.ReadConcurrency,
		},
		Query: QueryConfig{
			CacheTTL:        query.DefaultCacheTTL,
			DefaultMaxDepth: query.DefaultMaxDepth,
			CacheErrors:     true,
		},
		Export: ExportConfig{
			Format:        string(export.FormatJSON),
			Visualization: true,
		},
		Storage: StorageConfig{
			Backend: "local",
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	if c.Scan.MaxFileSize < 0 {
		return fmt.Errorf("scan.max_file_size must not be negative")
	}
	if c.Query.CacheTTL < 0 {
		return fmt.Errorf("query.cache_ttl must not be negative")
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("export.format: %w", err)
	}
	switch c.Storage.Backend {
	case "", "local", "s3", "gcs":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	return nil
}

// ScanOptions converts the scan section into scanner options.
func (c *Config) ScanOptions() scan.Options {
	opts := scan.DefaultOptions()
	if len(c.Scan.Extensions) > 0 {
		opts.Extensions = c.Scan.Extensions
	}
	opts.Exclude = c.Scan.Exclude
	if c.Scan.MaxFileSize > 0 {
		opts.MaxFileSize = c.Scan.MaxFileSize
	}
	if c.Scan.ReadConcurrency > 0 {
		opts.ReadConcurrency = c.Scan.ReadConcurrency
	}
	return opts
}

// QueryOptions converts the query section into executor options.
func (c *Config) QueryOptions() []query.Option {
	return []query.Option{
		query.WithCacheTTL(c.Query.CacheTTL),
		query.WithDefaultMaxDepth(c.Query.DefaultMaxDepth),
		query.WithErrorCaching(c.Query.CacheErrors),
	}
}

// FindConfigFile looks for .coderef/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".coderef", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the cache directory for a given project path.
// Uses ~/.cache/coderef/<project-slug>/ to avoid polluting the project.
func CacheDir(projectPath string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "coderef", projectSlug(projectPath))
}

// ExportDir returns the local export storage directory for a project.
func ExportDir(projectPath string) string {
	return filepath.Join(CacheDir(projectPath), "exports")
}

// projectSlug creates a filesystem-safe identifier from a project path
// out of its last two components.
func projectSlug(projectPath string) string {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		abs = projectPath
	}
	dir := filepath.Base(filepath.Dir(abs))
	base := filepath.Base(abs)
	return dir + "_" + base
}

// FindProjectRoot walks up from dir looking for a package.json, tsconfig.json
// or jsconfig.json.
func FindProjectRoot(dir string) (string, error) {
	for {
		for _, marker := range []string{"package.json", "tsconfig.json", "jsconfig.json"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no project root found (looked for package.json, tsconfig.json or jsconfig.json)")
}
