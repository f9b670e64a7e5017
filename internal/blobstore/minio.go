package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioStore implements Store for S3-compatible endpoints through minio-go.
type minioStore struct {
	client   *minio.Client
	endpoint string
	secure   bool
	bucket   string
	prefix   string
	name     string
}

// newMinioStore constructs a Store for an S3-compatible endpoint. Static keys
// are used when given, otherwise credentials come from the environment.
func newMinioStore(cfg Config) (Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	creds := credentials.NewEnvMinio()
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	secure := !cfg.Insecure && !strings.HasPrefix(cfg.Endpoint, "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MinIO client: %w", err)
	}

	return &minioStore{
		client:   client,
		endpoint: endpoint,
		secure:   secure,
		bucket:   cfg.Bucket,
		prefix:   normalizePrefix(cfg.Prefix),
		name:     cfg.Name,
	}, nil
}

func (s *minioStore) Name() string {
	return s.name
}

func (s *minioStore) fullKey(key string) string {
	return s.prefix + key
}

func (s *minioStore) URL(key string) string {
	scheme := "https"
	if !s.secure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, s.fullKey(key))
}

func (s *minioStore) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.fullKey(key), body, -1, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	if err != nil {
		return fmt.Errorf("minio PutObject %q: %w", key, err)
	}
	return nil
}

func (s *minioStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.fullKey(key), minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return ObjectMeta{}, ErrNotFound
		}
		return ObjectMeta{}, fmt.Errorf("minio StatObject %q: %w", key, err)
	}
	return ObjectMeta{ETag: info.ETag, Size: info.Size}, nil
}

func (s *minioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.fullKey(key), minio.RemoveObjectOptions{})
	if err != nil && !isMinioNotFound(err) {
		return fmt.Errorf("minio RemoveObject %q: %w", key, err)
	}
	return nil
}

func (s *minioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var results []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.fullKey(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio ListObjects prefix %q: %w", prefix, obj.Err)
		}
		results = append(results, ObjectInfo{
			Key:  strings.TrimPrefix(obj.Key, s.prefix),
			Size: obj.Size,
			ETag: obj.ETag,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}
