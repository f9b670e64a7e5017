// Package servicemgmt talks to the remote service-management endpoint that
// hosts services, deployments, certificates and storage accounts.
package servicemgmt

import "context"

// Client is the remote control surface used by the publish orchestrator.
// Lookups return ErrNotFound when the target does not exist.
type Client interface {
	// GetHostedService returns the named hosted service.
	GetHostedService(ctx context.Context, name string) (*HostedService, error)
	// CreateHostedService creates a hosted service.
	CreateHostedService(ctx context.Context, in HostedServiceInput) error

	// GetDeploymentBySlot returns a fresh snapshot of the deployment in slot.
	GetDeploymentBySlot(ctx context.Context, service, slot string) (*Deployment, error)
	// CreateDeployment creates a deployment in an empty slot.
	CreateDeployment(ctx context.Context, service, slot string, in CreateDeploymentInput) error
	// UpgradeDeployment upgrades an existing deployment in place.
	UpgradeDeployment(ctx context.Context, service, deploymentName string, in UpgradeDeploymentInput) error
	// UpdateDeploymentStatus moves the deployment in slot to Running or Suspended.
	UpdateDeploymentStatus(ctx context.Context, service, slot, status string) error
	// DeleteDeployment deletes the deployment in slot.
	DeleteDeployment(ctx context.Context, service, slot string) error

	// ListCertificates lists certificates uploaded to a hosted service.
	ListCertificates(ctx context.Context, service string) ([]Certificate, error)
	// AddCertificate uploads a certificate to a hosted service.
	AddCertificate(ctx context.Context, service string, cert CertificateFile) error

	// GetStorageAccount returns the named storage account.
	GetStorageAccount(ctx context.Context, name string) (*StorageAccount, error)
	// CreateStorageAccount starts provisioning a storage account.
	CreateStorageAccount(ctx context.Context, in StorageAccountInput) error
	// GetStorageKeys returns the access keys of a storage account.
	GetStorageKeys(ctx context.Context, name string) (*StorageKeys, error)

	// ListLocations lists locations available to the subscription.
	ListLocations(ctx context.Context) ([]Location, error)
}

// Connector produces a Client bound to a subscription.
type Connector interface {
	Connect(ctx context.Context, sub Subscription) (Client, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, sub Subscription) (Client, error)

func (f ConnectorFunc) Connect(ctx context.Context, sub Subscription) (Client, error) {
	return f(ctx, sub)
}

// StaticConnector always returns the same client regardless of subscription.
func StaticConnector(c Client) Connector {
	return ConnectorFunc(func(context.Context, Subscription) (Client, error) {
		return c, nil
	})
}
