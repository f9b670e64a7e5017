// Package upload places built service packages in a blobstore so the
// service-management endpoint can fetch them by URL. Every upload gets its
// own package ID; older uploads are pruned by retention.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/blobstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/deployid"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/manifest"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/packaging"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/project"
)

// Object names inside a package prefix.
const (
	PackageObject  = "package.zip"
	ManifestObject = "manifest.json"
)

// Engine uploads packages. A weighted semaphore bounds the number of
// concurrent object operations across all calls sharing the engine.
type Engine struct {
	sem *semaphore.Weighted
}

// New creates an Engine bounded by sem.
func New(sem *semaphore.Weighted) *Engine {
	return &Engine{sem: sem}
}

// Input is everything needed to upload one package.
type Input struct {
	Package     *packaging.Package
	Project     *project.Project
	Slot        string
	ToolVersion string
}

// Result describes an uploaded package.
type Result struct {
	PackageID    string
	PackageURL   string
	ConfigURL    string
	ManifestJSON []byte
}

// Upload writes the package archive and its configuration in parallel, then
// the manifest. A failed upload removes whatever it already wrote.
func (e *Engine) Upload(ctx context.Context, store blobstore.Store, in Input) (*Result, error) {
	if in.Package == nil {
		return nil, fmt.Errorf("upload: no package")
	}
	service := in.Package.ServiceName
	id := deployid.New()
	prefix := packagePrefix(service, id)

	tflog.Debug(ctx, "Uploading package", map[string]interface{}{
		"store":      store.Name(),
		"service":    service,
		"package_id": id,
	})

	if err := e.putArtifacts(ctx, store, in.Package, prefix); err != nil {
		e.cleanup(ctx, store, service, id)
		return nil, fmt.Errorf("upload: %w", err)
	}

	data, err := e.putManifest(ctx, store, in, id, prefix)
	if err != nil {
		e.cleanup(ctx, store, service, id)
		return nil, fmt.Errorf("upload: manifest: %w", err)
	}

	return &Result{
		PackageID:    id,
		PackageURL:   store.URL(prefix + PackageObject),
		ConfigURL:    store.URL(prefix + packaging.ConfigurationFileName),
		ManifestJSON: data,
	}, nil
}

func (e *Engine) putArtifacts(ctx context.Context, store blobstore.Store, pkg *packaging.Package, prefix string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := e.sem.Acquire(gctx, 1); err != nil {
			return err
		}
		defer e.sem.Release(1)

		f, err := os.Open(pkg.ArchivePath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer f.Close()
		if err := store.Put(gctx, prefix+PackageObject, f, blobstore.PutOptions{
			ContentType: packaging.ContentTypePackage,
			Metadata:    map[string]string{"package-hash": pkg.Hash},
		}); err != nil {
			return fmt.Errorf("put %s: %w", PackageObject, err)
		}
		return nil
	})

	g.Go(func() error {
		if err := e.sem.Acquire(gctx, 1); err != nil {
			return err
		}
		defer e.sem.Release(1)

		key := prefix + packaging.ConfigurationFileName
		if err := store.Put(gctx, key, bytes.NewReader([]byte(pkg.Configuration)), blobstore.PutOptions{
			ContentType: packaging.ContentTypeConfiguration,
		}); err != nil {
			return fmt.Errorf("put %s: %w", packaging.ConfigurationFileName, err)
		}
		return nil
	})

	return g.Wait()
}

func (e *Engine) putManifest(ctx context.Context, store blobstore.Store, in Input, id, prefix string) ([]byte, error) {
	m := &manifest.Manifest{
		SchemaVersion:     manifest.SchemaVersion,
		ToolVersion:       in.ToolVersion,
		ServiceName:       in.Package.ServiceName,
		Slot:              in.Slot,
		PackageID:         id,
		CreatedAt:         time.Now().UTC().Format(time.RFC3339),
		PackageHash:       in.Package.Hash,
		ConfigurationHash: in.Package.FileHashes[packaging.ConfigurationFileName],
		Store:             store.Name(),
		Files:             in.Package.FileHashes,
	}
	if in.Project != nil {
		for _, r := range in.Project.Roles {
			role := manifest.Role{Name: r.Name, Kind: r.Kind, Instances: r.Instances}
			if r.Runtime != nil && r.Runtime.Name != "" {
				role.Runtime = r.Runtime.Name
				if r.Runtime.Version != "" {
					role.Runtime += " " + r.Runtime.Version
				}
			}
			m.Roles = append(m.Roles, role)
		}
	}

	data, err := manifest.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, prefix+ManifestObject, bytes.NewReader(data), blobstore.PutOptions{
		ContentType: packaging.ContentTypeManifest,
	}); err != nil {
		return nil, fmt.Errorf("put %s: %w", ManifestObject, err)
	}
	return data, nil
}

// cleanup removes a partially written package. Failures are logged only.
func (e *Engine) cleanup(ctx context.Context, store blobstore.Store, service, id string) {
	if err := e.DeletePackage(context.WithoutCancel(ctx), store, service, id); err != nil {
		tflog.Warn(ctx, "Failed to clean up partial package upload", map[string]interface{}{
			"store":      store.Name(),
			"package_id": id,
			"error":      err.Error(),
		})
	}
}

// Verify checks that the package and its manifest are still present.
func (e *Engine) Verify(ctx context.Context, store blobstore.Store, service, id string) error {
	prefix := packagePrefix(service, id)
	for _, name := range []string{PackageObject, ManifestObject} {
		if _, err := store.Head(ctx, prefix+name); err != nil {
			return fmt.Errorf("upload: package %s: %s: %w", id, name, err)
		}
	}
	return nil
}

func packagePrefix(service, id string) string {
	return servicePrefix(service) + id + "/"
}

func servicePrefix(service string) string {
	return service + "/"
}
