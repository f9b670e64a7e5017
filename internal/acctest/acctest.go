package acctest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-go/tfprotov6"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/blobstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/provider"
)

// SubscriptionID is the id of the subscription ProviderConfig registers.
const SubscriptionID = "sub-0001"

// TestProtoV6ProviderFactories is a map of provider factory functions
// suitable for use with the terraform-plugin-testing framework.
var TestProtoV6ProviderFactories = map[string]func() (tfprotov6.ProviderServer, error){
	"cloudsvc": providerserver.NewProtocol6WithError(provider.New("test")()),
}

// SetupTest resets the global memory package store registry so each test
// starts with a clean slate.
func SetupTest(t *testing.T) {
	t.Helper()
	blobstore.ResetMemoryStores()
	t.Cleanup(func() {
		blobstore.ResetMemoryStores()
	})
}

// CreateTempProject creates a service project with a single web role named
// Web and returns its absolute path. files are written below the project
// root in addition to service.yaml.
func CreateTempProject(t *testing.T, name string, files map[string]string) string {
	t.Helper()

	all := map[string]string{
		"service.yaml": fmt.Sprintf(`name: %s
roles:
  - name: Web
    kind: web
    instances: 1
`, name),
		"Web/index.html": "<html>" + name + "</html>",
	}
	for k, v := range files {
		all[k] = v
	}
	return CreateTempSourceDir(t, all)
}

// CreateTempSourceDir creates a temporary directory with the given files
// and returns the absolute path. The files map keys are relative paths and
// values are file contents. The directory is automatically cleaned up when
// the test finishes.
func CreateTempSourceDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for relPath, content := range files {
		fullPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("failed to create parent dir for %s: %s", relPath, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write file %s: %s", relPath, err)
		}
	}
	return dir
}

// ProviderConfig returns an HCL snippet that configures the cloudsvc
// provider against the mock server at mockURL, with one default
// subscription named "dev" and a memory package store.
func ProviderConfig(mockURL string) string {
	return fmt.Sprintf(`
provider "cloudsvc" {
  endpoint                     = %q
  max_retries                  = 0
  poll_interval_ms             = 5
  certificate_poll_interval_ms = 5

  subscription {
    name    = "dev"
    id      = %q
    default = true
  }

  package_store {
    name = "acc"
    type = "memory"
  }
}
`, mockURL, SubscriptionID)
}

// ProviderConfigWithRuntimes is ProviderConfig with a runtime table that
// offers only node 20.
func ProviderConfigWithRuntimes(mockURL string) string {
	return fmt.Sprintf(`
provider "cloudsvc" {
  endpoint         = %q
  max_retries      = 0
  poll_interval_ms = 5

  runtimes = {
    node = ["20"]
  }

  subscription {
    name    = "dev"
    id      = %q
    default = true
  }

  package_store {
    name = "acc"
    type = "memory"
  }
}
`, mockURL, SubscriptionID)
}
