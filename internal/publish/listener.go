package publish

import (
	"context"
	"fmt"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/progress"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/project"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
)

// ListenerContext is what a listener may use to adjust the project before
// it is packaged. The storage account in Settings exists and is Created.
type ListenerContext struct {
	Client         servicemgmt.Client
	Project        *project.Project
	Settings       *settings.PublishSettings
	SubscriptionID string
	Reporter       progress.Reporter
}

// Listener is a pre-packaging hook. Each registered listener runs exactly
// once per publish, in registration order.
type Listener interface {
	OnPublish(ctx context.Context, lc *ListenerContext) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, lc *ListenerContext) error

func (f ListenerFunc) OnPublish(ctx context.Context, lc *ListenerContext) error { return f(ctx, lc) }

// CachingConnectionStringSetting is the role setting the caching plugin
// reads its configuration store from.
const CachingConnectionStringSetting = "Microsoft.WindowsAzure.Plugins.Caching.ConfigStoreConnectionString"

// CachingConnectionStringUpdater points every role's caching connection
// string at the publish storage account and saves the project.
type CachingConnectionStringUpdater struct{}

func (CachingConnectionStringUpdater) OnPublish(ctx context.Context, lc *ListenerContext) error {
	declared := false
	for _, r := range lc.Project.Roles {
		for _, s := range r.Settings {
			if s.Name == CachingConnectionStringSetting {
				declared = true
			}
		}
	}
	if !declared {
		return nil
	}

	account := lc.Settings.StorageAccount
	keys, err := lc.Client.GetStorageKeys(ctx, account)
	if err != nil {
		return fmt.Errorf("caching connection string: storage keys of %q: %w", account, err)
	}
	value := StorageConnectionString(account, keys.Primary)

	n := lc.Project.ForEachRoleSetting(
		func(_ project.Role, s project.Setting) bool { return s.Name == CachingConnectionStringSetting },
		func(_ *project.Role, s *project.Setting) { s.Value = value },
	)
	progress.Info(ctx, lc.Reporter, fmt.Sprintf("updated caching connection string in %d role(s)", n))
	return lc.Project.Save()
}

// StorageConnectionString formats an HTTPS connection string for a storage
// account.
func StorageConnectionString(account, key string) string {
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s", account, key)
}
