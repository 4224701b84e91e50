// Package storage persists exported graph documents in a blob store:
// the local filesystem, S3 (or an S3-compatible store) or GCS.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/coderef/coderef/pkg/config"
)

// ErrNotFound is returned by Get when no export is stored under the ID.
var ErrNotFound = errors.New("export not found")

// ExportStore abstracts blob storage for export documents. Documents are
// grouped by project so one bucket can serve several codebases.
type ExportStore interface {
	PutExport(ctx context.Context, project, exportID string, data []byte) error
	GetExport(ctx context.Context, project, exportID string) ([]byte, error)
}

// New returns the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ExportStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalDir), nil
	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func objectKey(project, exportID string) string {
	return project + "/exports/" + exportID + ".json"
}

// LocalStore implements ExportStore on the local filesystem.
type LocalStore struct {
	BaseDir string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{BaseDir: baseDir}
}

func (s *LocalStore) path(project, exportID string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(objectKey(project, exportID)))
}

// PutExport stores an export document.
func (s *LocalStore) PutExport(ctx context.Context, project, exportID string, data []byte) error {
	path := s.path(project, exportID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// GetExport retrieves an export document.
func (s *LocalStore) GetExport(ctx context.Context, project, exportID string) ([]byte, error) {
	data, err := os.ReadFile(s.path(project, exportID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, exportID)
	}
	return data, err
}
