package provider

import "github.com/cloudsvc/terraform-provider-cloudsvc/internal/providerdata"

// ProviderData is an alias for the shared ProviderData type. The canonical
// definition lives in the providerdata package so resource packages can
// import it without importing the provider.
type ProviderData = providerdata.ProviderData
