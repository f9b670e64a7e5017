package provider_test

import (
	"regexp"
	"testing"

	"github.com/hashicorp/terraform-plugin-testing/helper/resource"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/acctest"
)

func TestAccProvider_MissingPackageStore(t *testing.T) {
	acctest.SetupTest(t)

	resource.Test(t, resource.TestCase{
		ProtoV6ProviderFactories: acctest.TestProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: `
provider "cloudsvc" {
  subscription {
    name = "dev"
    id   = "sub-0001"
  }
}

data "cloudsvc_locations" "all" {}
`,
				ExpectError: regexp.MustCompile("Missing Package Store Configuration"),
			},
		},
	})
}

func TestAccProvider_EmptySubscriptionID(t *testing.T) {
	acctest.SetupTest(t)

	resource.Test(t, resource.TestCase{
		ProtoV6ProviderFactories: acctest.TestProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: `
provider "cloudsvc" {
  subscription {
    name = "dev"
    id   = ""
  }

  package_store {
    type = "memory"
  }
}

data "cloudsvc_locations" "all" {}
`,
				ExpectError: regexp.MustCompile("Invalid Subscription Configuration"),
			},
		},
	})
}

func TestAccProvider_MalformedSubscriptionsFile(t *testing.T) {
	acctest.SetupTest(t)

	dir := acctest.CreateTempSourceDir(t, map[string]string{
		"subscriptions.yaml": "subscriptions: [",
	})

	resource.Test(t, resource.TestCase{
		ProtoV6ProviderFactories: acctest.TestProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: `
provider "cloudsvc" {
  subscriptions_file = "` + dir + `/subscriptions.yaml"

  package_store {
    type = "memory"
  }
}

data "cloudsvc_locations" "all" {}
`,
				ExpectError: regexp.MustCompile("Invalid Subscriptions File"),
			},
		},
	})
}

func TestAccProvider_UnsupportedStoreType(t *testing.T) {
	acctest.SetupTest(t)

	resource.Test(t, resource.TestCase{
		ProtoV6ProviderFactories: acctest.TestProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: `
provider "cloudsvc" {
  package_store {
    type = "ftp"
  }
}

data "cloudsvc_locations" "all" {}
`,
				ExpectError: regexp.MustCompile(`value must be one of`),
			},
		},
	})
}

func TestAccProvider_MemoryStoreWorks(t *testing.T) {
	acctest.SetupTest(t)
	mock := acctest.NewMockServiceServer(t)

	resource.Test(t, resource.TestCase{
		ProtoV6ProviderFactories: acctest.TestProtoV6ProviderFactories,
		Steps: []resource.TestStep{
			{
				Config: acctest.ProviderConfig(mock.URL()) + `
data "cloudsvc_locations" "all" {}
`,
				Check: resource.ComposeAggregateTestCheckFunc(
					resource.TestCheckResourceAttr("data.cloudsvc_locations.all", "names.#", "1"),
					resource.TestCheckResourceAttr("data.cloudsvc_locations.all", "default", "North Europe"),
				),
			},
		},
	})
}
