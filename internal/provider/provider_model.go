package provider

import "github.com/hashicorp/terraform-plugin-framework/types"

// ProviderModel maps the provider schema to a Go struct.
type ProviderModel struct {
	Endpoint                  types.String        `tfsdk:"endpoint"`
	SubscriptionsFile         types.String        `tfsdk:"subscriptions_file"`
	UseAzureIdentity          types.Bool          `tfsdk:"use_azure_identity"`
	CertificateDir            types.String        `tfsdk:"certificate_dir"`
	MaxRetries                types.Int64         `tfsdk:"max_retries"`
	RetryDelayMS              types.Int64         `tfsdk:"retry_delay_ms"`
	TimeoutSeconds            types.Int64         `tfsdk:"timeout_seconds"`
	PollIntervalMS            types.Int64         `tfsdk:"poll_interval_ms"`
	CertificatePollIntervalMS types.Int64         `tfsdk:"certificate_poll_interval_ms"`
	MaxConcurrency            types.Int64         `tfsdk:"max_concurrency"`
	Runtimes                  types.Map           `tfsdk:"runtimes"` // map of list of strings
	Subscriptions             []SubscriptionModel `tfsdk:"subscription"`
	PackageStore              []PackageStoreModel `tfsdk:"package_store"`
}

// SubscriptionModel maps each subscription {} block.
type SubscriptionModel struct {
	Name     types.String `tfsdk:"name"`
	ID       types.String `tfsdk:"id"`
	Endpoint types.String `tfsdk:"endpoint"`
	Default  types.Bool   `tfsdk:"default"`
}

// PackageStoreModel maps the package_store {} block.
type PackageStoreModel struct {
	Name           types.String `tfsdk:"name"`
	Type           types.String `tfsdk:"type"`
	Bucket         types.String `tfsdk:"bucket"`
	Region         types.String `tfsdk:"region"`
	Prefix         types.String `tfsdk:"prefix"`
	StorageAccount types.String `tfsdk:"storage_account"`
	ContainerName  types.String `tfsdk:"container_name"`
	Endpoint       types.String `tfsdk:"endpoint"`
	AccessKey      types.String `tfsdk:"access_key"`
	SecretKey      types.String `tfsdk:"secret_key"`
	Insecure       types.Bool   `tfsdk:"insecure"`
}
