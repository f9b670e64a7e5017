package upload

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/sync/errgroup"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/blobstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/deployid"
)

// List returns the IDs of packages uploaded for service, newest first.
func (e *Engine) List(ctx context.Context, store blobstore.Store, service string) ([]string, error) {
	prefix := servicePrefix(service)
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("upload: list packages for %q: %w", service, err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, obj := range objects {
		rest := strings.TrimPrefix(obj.Key, prefix)
		id, _, ok := strings.Cut(rest, "/")
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return deployid.SortNewestFirst(ids), nil
}

// Prune deletes uploaded packages for service beyond the newest retain,
// never touching keepID. It returns the pruned IDs.
func (e *Engine) Prune(ctx context.Context, store blobstore.Store, service, keepID string, retain int) ([]string, error) {
	if retain < 0 {
		retain = 0
	}
	ids, err := e.List(ctx, store, service)
	if err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != keepID {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) <= retain {
		return nil, nil
	}

	var pruned []string
	for _, id := range candidates[retain:] {
		if err := e.DeletePackage(ctx, store, service, id); err != nil {
			return pruned, fmt.Errorf("upload: prune %q: %w", id, err)
		}
		pruned = append(pruned, id)
	}
	tflog.Info(ctx, "Pruned old packages", map[string]interface{}{
		"service": service,
		"pruned":  pruned,
	})
	return pruned, nil
}

// DeletePackage removes every object of one uploaded package.
func (e *Engine) DeletePackage(ctx context.Context, store blobstore.Store, service, id string) error {
	objects, err := store.List(ctx, packagePrefix(service, id))
	if err != nil {
		return fmt.Errorf("list package %q: %w", id, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, obj := range objects {
		g.Go(func() error {
			if err := e.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer e.sem.Release(1)

			if err := store.Delete(gctx, obj.Key); err != nil {
				return fmt.Errorf("delete %q: %w", obj.Key, err)
			}
			return nil
		})
	}
	return g.Wait()
}
