// Package storage abstracts the object stores batch archives are written to.
// A bucket is a GCS bucket, or a sub directory of the base directory for local storage.
package storage

import (
	"context"
	"io"
)

const moduleName = "storage"

// Connection defines generic object storage operations.
type Connection interface {
	// Upload writes data to bucket/objectName. contentType is the MIME type of the data.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens bucket/objectName. The caller closes the reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object under prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes bucket/objectName. A missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
	// Close releases the connection.
	Close() error
	// Type returns the backend type, "local" or "gcs".
	Type() string
}
