// Package blobstore stores service packages in object storage so the
// service-management endpoint can fetch them by URL.
package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// PutOptions controls optional behavior for Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectMeta is returned from Head.
type ObjectMeta struct {
	ETag string
	Size int64
}

// ObjectInfo is a single entry returned from List.
type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

// Store is the object storage abstraction packages are uploaded to.
// Implementations exist for Azure Blob Storage, S3, GCS, MinIO and memory.
type Store interface {
	// Put writes an object unconditionally. Retrying wrappers rewind body
	// when it implements io.Seeker.
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error
	// Head retrieves object metadata. Returns ErrNotFound if the key does not exist.
	Head(ctx context.Context, key string) (ObjectMeta, error)
	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// List returns all objects under the given prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// URL returns the address the remote service fetches key from.
	URL(key string) string
	// Name returns the store name for logging.
	Name() string
}

// Config holds the configuration used by NewStore.
type Config struct {
	Name           string
	Type           string // "azure", "s3", "gcs", "minio", "memory"
	Bucket         string
	Region         string
	Prefix         string
	StorageAccount string
	ContainerName  string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Insecure       bool
	MaxRetries     int
	RetryDelayMS   int
}
