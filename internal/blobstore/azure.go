package blobstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// azureStore implements Store for Azure Blob Storage.
type azureStore struct {
	client        *azblob.Client
	serviceURL    string
	containerName string
	prefix        string
	name          string
}

// newAzureStore constructs an Azure Blob Storage-backed Store.
func newAzureStore(cfg Config) (Store, error) {
	if cfg.StorageAccount == "" {
		return nil, fmt.Errorf("storage_account is required")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure credential: %w", err)
	}

	serviceURL := cfg.Endpoint
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.StorageAccount)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure blob client: %w", err)
	}

	containerName := cfg.ContainerName
	if containerName == "" {
		containerName = "packages"
	}

	return &azureStore{
		client:        client,
		serviceURL:    strings.TrimRight(serviceURL, "/"),
		containerName: containerName,
		prefix:        normalizePrefix(cfg.Prefix),
		name:          cfg.Name,
	}, nil
}

func (s *azureStore) Name() string {
	return s.name
}

func (s *azureStore) fullKey(key string) string {
	return s.prefix + key
}

func (s *azureStore) URL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.serviceURL, s.containerName, s.fullKey(key))
}

func (s *azureStore) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error {
	uploadOpts := &blockblob.UploadStreamOptions{}
	if opts.ContentType != "" {
		uploadOpts.HTTPHeaders = &blob.HTTPHeaders{
			BlobContentType: &opts.ContentType,
		}
	}
	if len(opts.Metadata) > 0 {
		m := make(map[string]*string, len(opts.Metadata))
		for k, v := range opts.Metadata {
			v := v
			m[k] = &v
		}
		uploadOpts.Metadata = m
	}

	if _, err := s.client.UploadStream(ctx, s.containerName, s.fullKey(key), body, uploadOpts); err != nil {
		return fmt.Errorf("azure UploadStream %q: %w", key, err)
	}
	return nil
}

func (s *azureStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	blobClient := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(s.fullKey(key))
	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return ObjectMeta{}, ErrNotFound
		}
		return ObjectMeta{}, fmt.Errorf("azure GetProperties %q: %w", key, err)
	}

	meta := ObjectMeta{}
	if props.ETag != nil {
		meta.ETag = string(*props.ETag)
	}
	if props.ContentLength != nil {
		meta.Size = *props.ContentLength
	}
	return meta, nil
}

func (s *azureStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteBlob(ctx, s.containerName, s.fullKey(key), nil); err != nil {
		if isAzureNotFound(err) {
			return nil
		}
		return fmt.Errorf("azure DeleteBlob %q: %w", key, err)
	}
	return nil
}

func (s *azureStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	fullPrefix := s.fullKey(prefix)
	var results []ObjectInfo

	pager := s.client.NewListBlobsFlatPager(s.containerName, &container.ListBlobsFlatOptions{
		Prefix: &fullPrefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if isAzureNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("azure ListBlobsFlat prefix %q: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			info := ObjectInfo{Key: strings.TrimPrefix(*item.Name, s.prefix)}
			if item.Properties != nil {
				if item.Properties.ContentLength != nil {
					info.Size = *item.Properties.ContentLength
				}
				if item.Properties.ETag != nil {
					info.ETag = string(*item.Properties.ETag)
				}
			}
			results = append(results, info)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

func isAzureNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound)
}

// normalizePrefix ensures a non-empty prefix ends with a slash.
func normalizePrefix(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
