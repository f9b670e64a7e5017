package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/retry"
)

// RetryStore wraps another Store and retries transient errors.
type RetryStore struct {
	inner  Store
	policy retry.Policy
}

// NewRetryStore creates a Store that retries transient errors under policy.
// A policy without a classifier uses Classify.
func NewRetryStore(inner Store, policy retry.Policy) *RetryStore {
	if policy.Classify == nil {
		policy.Classify = Classify
	}
	return &RetryStore{inner: inner, policy: policy}
}

// Classify treats everything except a missing object or a cancelled context
// as transient.
func Classify(err error) retry.Class {
	if err == nil || errors.Is(err, ErrNotFound) {
		return retry.Fatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Fatal
	}
	return retry.Transient
}

func (r *RetryStore) Name() string {
	return r.inner.Name()
}

func (r *RetryStore) URL(key string) string {
	return r.inner.URL(key)
}

func (r *RetryStore) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error {
	seeker, rewindable := body.(io.Seeker)
	first := true
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		if !first {
			if !rewindable {
				return fmt.Errorf("retrying put %q: body cannot be rewound", key)
			}
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewinding body for %q: %w", key, err)
			}
		}
		first = false
		return r.inner.Put(ctx, key, body, opts)
	})
}

func (r *RetryStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	return retry.Value(ctx, r.policy, func(ctx context.Context) (ObjectMeta, error) {
		return r.inner.Head(ctx, key)
	})
}

func (r *RetryStore) Delete(ctx context.Context, key string) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.inner.Delete(ctx, key)
	})
}

func (r *RetryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	return retry.Value(ctx, r.policy, func(ctx context.Context) ([]ObjectInfo, error) {
		return r.inner.List(ctx, prefix)
	})
}
