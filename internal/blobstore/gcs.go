package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	gcsstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// gcsStore implements Store for Google Cloud Storage.
type gcsStore struct {
	client *gcsstorage.Client
	bucket string
	prefix string
	name   string
}

// newGCSStore constructs a GCS-backed Store using Application Default Credentials.
func newGCSStore(cfg Config) (Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	client, err := gcsstorage.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	return &gcsStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
		name:   cfg.Name,
	}, nil
}

func (s *gcsStore) Name() string {
	return s.name
}

func (s *gcsStore) fullKey(key string) string {
	return s.prefix + key
}

func (s *gcsStore) obj(key string) *gcsstorage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.fullKey(key))
}

func (s *gcsStore) URL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, s.fullKey(key))
}

func (s *gcsStore) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error {
	w := s.obj(key).NewWriter(ctx)
	if opts.ContentType != "" {
		w.ContentType = opts.ContentType
	}
	if len(opts.Metadata) > 0 {
		w.Metadata = opts.Metadata
	}

	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return fmt.Errorf("gcs write %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close writer %q: %w", key, err)
	}
	return nil
}

func (s *gcsStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	attrs, err := s.obj(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcsstorage.ErrObjectNotExist) {
			return ObjectMeta{}, ErrNotFound
		}
		return ObjectMeta{}, fmt.Errorf("gcs Attrs %q: %w", key, err)
	}
	return ObjectMeta{ETag: attrs.Etag, Size: attrs.Size}, nil
}

func (s *gcsStore) Delete(ctx context.Context, key string) error {
	if err := s.obj(key).Delete(ctx); err != nil {
		if errors.Is(err, gcsstorage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("gcs Delete %q: %w", key, err)
	}
	return nil
}

func (s *gcsStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcsstorage.Query{
		Prefix: s.fullKey(prefix),
	})

	var results []ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs List prefix %q: %w", prefix, err)
		}
		results = append(results, ObjectInfo{
			Key:  strings.TrimPrefix(attrs.Name, s.prefix),
			Size: attrs.Size,
			ETag: attrs.Etag,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}
