package servicemgmt

import (
	"context"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/retry"
)

// RetryClient wraps another Client and retries transient failures under a
// fixed-delay policy. Not-found is never retried.
type RetryClient struct {
	inner  Client
	policy retry.Policy
}

var _ Client = (*RetryClient)(nil)

// NewRetryClient wraps inner. A policy without a classifier uses Classify.
func NewRetryClient(inner Client, policy retry.Policy) *RetryClient {
	if policy.Classify == nil {
		policy.Classify = Classify
	}
	return &RetryClient{inner: inner, policy: policy}
}

func (r *RetryClient) GetHostedService(ctx context.Context, name string) (*HostedService, error) {
	return retry.Value(ctx, r.policy, func(ctx context.Context) (*HostedService, error) {
		return r.inner.GetHostedService(ctx, name)
	})
}

func (r *RetryClient) CreateHostedService(ctx context.Context, in HostedServiceInput) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.inner.CreateHostedService(ctx, in)
	})
}

func (r *RetryClient) GetDeploymentBySlot(ctx context.Context, service, slot string) (*Deployment, error) {
	return retry.Value(ctx, r.policy, func(ctx context.Context) (*Deployment, error) {
		return r.inner.GetDeploymentBySlot(ctx, service, slot)
	})
}

func (r *RetryClient) CreateDeployment(ctx context.Context, service, slot string, in CreateDeploymentInput) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.inner.CreateDeployment(ctx, service, slot, in)
	})
}

func (r *RetryClient) UpgradeDeployment(ctx context.Context, service, deploymentName string, in UpgradeDeploymentInput) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.inner.UpgradeDeployment(ctx, service, deploymentName, in)
	})
}

func (r *RetryClient) UpdateDeploymentStatus(ctx context.Context, service, slot, status string) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.inner.UpdateDeploymentStatus(ctx, service, slot, status)
	})
}

func (r *RetryClient) DeleteDeployment(ctx context.Context, service, slot string) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.inner.DeleteDeployment(ctx, service, slot)
	})
}

func (r *RetryClient) ListCertificates(ctx context.Context, service string) ([]Certificate, error) {
	return retry.Value(ctx, r.policy, func(ctx context.Context) ([]Certificate, error) {
		return r.inner.ListCertificates(ctx, service)
	})
}

func (r *RetryClient) AddCertificate(ctx context.Context, service string, cert CertificateFile) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.inner.AddCertificate(ctx, service, cert)
	})
}

func (r *RetryClient) GetStorageAccount(ctx context.Context, name string) (*StorageAccount, error) {
	return retry.Value(ctx, r.policy, func(ctx context.Context) (*StorageAccount, error) {
		return r.inner.GetStorageAccount(ctx, name)
	})
}

func (r *RetryClient) CreateStorageAccount(ctx context.Context, in StorageAccountInput) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.inner.CreateStorageAccount(ctx, in)
	})
}

func (r *RetryClient) GetStorageKeys(ctx context.Context, name string) (*StorageKeys, error) {
	return retry.Value(ctx, r.policy, func(ctx context.Context) (*StorageKeys, error) {
		return r.inner.GetStorageKeys(ctx, name)
	})
}

func (r *RetryClient) ListLocations(ctx context.Context) ([]Location, error) {
	return retry.Value(ctx, r.policy, func(ctx context.Context) ([]Location, error) {
		return r.inner.ListLocations(ctx)
	})
}
