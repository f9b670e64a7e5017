// Package providerdata defines the ProviderData struct that is shared between
// the provider and its resources / data sources. It is separated into its own
// package to avoid import cycles (provider -> resource -> provider).
package providerdata

import (
	"context"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/publish"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
)

// ProviderData is configured during provider.Configure() and shared with
// resources via resp.ResourceData and resp.DataSourceData.
type ProviderData struct {
	// Publish is the orchestrator configuration every resource starts from.
	// Resources copy it and set per-resource fields such as RetainPackages.
	Publish  publish.Config
	Settings *settings.Store
}

// Orchestrator returns an orchestrator that keeps retain older packages
// per service after each publish.
func (pd *ProviderData) Orchestrator(retain int) *publish.Orchestrator {
	cfg := pd.Publish
	cfg.RetainPackages = retain
	return publish.New(cfg)
}

// Client connects to the named subscription, or the default one when name
// is empty.
func (pd *ProviderData) Client(ctx context.Context, name string) (servicemgmt.Client, servicemgmt.Subscription, error) {
	sub, err := pd.Settings.Subscription(name)
	if err != nil {
		return nil, servicemgmt.Subscription{}, err
	}
	client, err := pd.Publish.Connector.Connect(ctx, sub)
	if err != nil {
		return nil, sub, err
	}
	return client, sub, nil
}
