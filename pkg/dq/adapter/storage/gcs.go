package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/exception"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// TypeGCS identifies the Google Cloud Storage backend.
const TypeGCS = "gcs"

// GCSAdapter stores objects in Google Cloud Storage.
type GCSAdapter struct {
	client        *gcs.Client
	defaultBucket string
}

// NewGCSAdapter creates a GCS client. A credentials file is used when configured,
// otherwise application default credentials. Extra options are appended, mainly for tests.
func NewGCSAdapter(ctx context.Context, cfg config.StorageConfig, opts ...option.ClientOption) (*GCSAdapter, error) {
	if cfg.BucketName == "" {
		return nil, exception.NewConfigurationError(moduleName, "GCS storage requires bucket_name.", nil)
	}
	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, exception.NewTransientError(moduleName, "Failed to create GCS client", err)
	}
	logger.Debugf("GCS storage initialized for bucket '%s'.", cfg.BucketName)
	return &GCSAdapter{client: client, defaultBucket: cfg.BucketName}, nil
}

func (a *GCSAdapter) bucket(name string) *gcs.BucketHandle {
	if name == "" {
		name = a.defaultBucket
	}
	return a.client.Bucket(name)
}

// Type implements Connection.
func (a *GCSAdapter) Type() string { return TypeGCS }

// Close implements Connection.
func (a *GCSAdapter) Close() error { return a.client.Close() }

// Upload implements Connection.
func (a *GCSAdapter) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	w := a.bucket(bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to upload gs://%s/%s: %w", w.Bucket, objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize gs://%s/%s: %w", w.Bucket, objectName, err)
	}
	logger.Debugf("Stored gs://%s/%s.", w.Bucket, objectName)
	return nil
}

// Download implements Connection.
func (a *GCSAdapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	r, err := a.bucket(bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", objectName, err)
	}
	return r, nil
}

// ListObjects implements Connection.
func (a *GCSAdapter) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	it := a.bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list objects with prefix '%s': %w", prefix, err)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
}

// DeleteObject implements Connection.
func (a *GCSAdapter) DeleteObject(ctx context.Context, bucket, objectName string) error {
	err := a.bucket(bucket).Object(objectName).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		logger.Warnf("Attempted to delete non-existent object '%s'.", objectName)
		return nil
	}
	return err
}

var _ Connection = (*GCSAdapter)(nil)
