package blobstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/retry"
)

const defaultRetryDelay = 500 * time.Millisecond

// NewStore creates a Store based on the provided Config and wraps it in a
// RetryStore when MaxRetries > 0.
func NewStore(cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)

	switch cfg.Type {
	case "azure":
		s, err = newAzureStore(cfg)
	case "s3":
		s, err = newS3Store(cfg)
	case "gcs":
		s, err = newGCSStore(cfg)
	case "minio":
		s, err = newMinioStore(cfg)
	case "memory":
		return GetOrCreateMemoryStore(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported package store type: %q (must be azure, s3, gcs, minio, or memory)", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s package store %q: %w", cfg.Type, cfg.Name, err)
	}

	if cfg.MaxRetries > 0 {
		delay := defaultRetryDelay
		if cfg.RetryDelayMS > 0 {
			delay = time.Duration(cfg.RetryDelayMS) * time.Millisecond
		}
		s = NewRetryStore(s, retry.Policy{MaxAttempts: cfg.MaxRetries + 1, Delay: delay})
	}
	return s, nil
}

// Resolver picks the package store for a publish. Azure stores configured
// without a storage account use the account named by the publish settings.
type Resolver interface {
	StoreFor(storageAccount string) (Store, error)
}

type staticResolver struct{ store Store }

func (s staticResolver) StoreFor(string) (Store, error) { return s.store, nil }

// StaticResolver always returns store.
func StaticResolver(store Store) Resolver {
	return staticResolver{store: store}
}

type accountResolver struct {
	cfg    Config
	mu     sync.Mutex
	stores map[string]Store
}

// NewResolver returns a Resolver for cfg. Stores are created lazily and
// cached per storage account.
func NewResolver(cfg Config) Resolver {
	return &accountResolver{cfg: cfg, stores: make(map[string]Store)}
}

func (r *accountResolver) StoreFor(storageAccount string) (Store, error) {
	cfg := r.cfg
	if cfg.Type == "azure" && cfg.StorageAccount == "" {
		cfg.StorageAccount = storageAccount
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := cfg.StorageAccount
	if s, ok := r.stores[key]; ok {
		return s, nil
	}
	s, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	r.stores[key] = s
	return s, nil
}
