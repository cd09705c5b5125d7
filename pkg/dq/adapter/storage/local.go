package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// TypeLocal identifies the local file system backend.
const TypeLocal = "local"

// LocalAdapter stores objects as files under BaseDir/<bucket>/<objectName>.
type LocalAdapter struct {
	cfg config.StorageConfig
}

// NewLocalAdapter creates a LocalAdapter, creating BaseDir when it does not exist.
func NewLocalAdapter(cfg config.StorageConfig) (*LocalAdapter, error) {
	if cfg.BaseDir == "" {
		return nil, exception.NewConfigurationError(moduleName, "Local storage requires base_dir.", nil)
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create base dir '%s': %w", cfg.BaseDir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base dir '%s': %w", cfg.BaseDir, err)
	case !info.IsDir():
		return nil, exception.NewConfigurationError(moduleName, fmt.Sprintf("Base dir '%s' is not a directory.", cfg.BaseDir), nil)
	}
	return &LocalAdapter{cfg: cfg}, nil
}

// Type implements Connection.
func (a *LocalAdapter) Type() string { return TypeLocal }

// Close implements Connection. Nothing is held open.
func (a *LocalAdapter) Close() error { return nil }

// Upload implements Connection.
func (a *LocalAdapter) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	fullPath, err := a.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", fullPath, err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", fullPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("failed to write file '%s': %w", fullPath, err)
	}
	logger.Debugf("Stored '%s' (local storage).", fullPath)
	return nil
}

// Download implements Connection.
func (a *LocalAdapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	fullPath, err := a.resolvePath(bucket, objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file '%s': %w", fullPath, err)
	}
	return file, nil
}

// ListObjects implements Connection. Object names are slash separated and relative to the bucket.
func (a *LocalAdapter) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	root, err := a.resolvePath(bucket, "")
	if err != nil {
		return err
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		return fn(name)
	})
}

// DeleteObject implements Connection.
func (a *LocalAdapter) DeleteObject(ctx context.Context, bucket, objectName string) error {
	fullPath, err := a.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("Attempted to delete non-existent object '%s'.", fullPath)
			return nil
		}
		return fmt.Errorf("failed to delete file '%s': %w", fullPath, err)
	}
	return nil
}

// resolvePath joins BaseDir, bucket and objectName and rejects paths escaping BaseDir.
func (a *LocalAdapter) resolvePath(bucket, objectName string) (string, error) {
	if bucket == "" {
		bucket = a.cfg.BucketName
	}
	base, err := filepath.Abs(a.cfg.BaseDir)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(base, bucket, objectName)
	if fullPath != base && !strings.HasPrefix(fullPath, base+string(filepath.Separator)) {
		return "", exception.NewConfigurationError(moduleName,
			fmt.Sprintf("Object path '%s' escapes base dir '%s'.", filepath.Join(bucket, objectName), a.cfg.BaseDir), nil)
	}
	return fullPath, nil
}

var _ Connection = (*LocalAdapter)(nil)
