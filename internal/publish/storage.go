package publish

import (
	"context"
	"fmt"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/poller"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/progress"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
)

// ensureStorageAccount creates the publish storage account when it is
// absent and waits until it reports Created. While provisioning, a
// not-found answer means "not visible yet".
func ensureStorageAccount(ctx context.Context, client servicemgmt.Client, p *poller.Poller, ps *settings.PublishSettings, rep progress.Reporter) (created bool, err error) {
	name := ps.StorageAccount
	sa, err := client.GetStorageAccount(ctx, name)
	switch {
	case err == nil:
		if sa.Status == servicemgmt.StorageCreated {
			return false, nil
		}
	case servicemgmt.IsNotFound(err):
		progress.Info(ctx, rep, fmt.Sprintf("creating storage account %s", name))
		if err := client.CreateStorageAccount(ctx, servicemgmt.StorageAccountInput{
			Name:          name,
			Label:         name,
			Location:      ps.Location,
			AffinityGroup: ps.AffinityGroup,
		}); err != nil {
			return false, fmt.Errorf("create storage account %q: %w", name, err)
		}
		created = true
	default:
		return false, fmt.Errorf("get storage account %q: %w", name, err)
	}

	_, err = poller.Until(ctx, p, "storage account "+name, func(ctx context.Context) (*servicemgmt.StorageAccount, error) {
		sa, err := client.GetStorageAccount(ctx, name)
		if servicemgmt.IsNotFound(err) {
			return nil, nil
		}
		return sa, err
	}, func(sa *servicemgmt.StorageAccount) bool {
		return sa != nil && sa.Status == servicemgmt.StorageCreated
	})
	if err != nil {
		return created, fmt.Errorf("wait for storage account %q: %w", name, err)
	}
	return created, nil
}
