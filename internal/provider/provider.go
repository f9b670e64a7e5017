package provider

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/listvalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/sync/semaphore"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/blobstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/certstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/datasource/deploymentstatus"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/datasource/locations"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/packaging"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/progress"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/publish"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/resource/servicedeployment"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/retry"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/upload"
)

// Environment variables consulted when the matching attribute is unset.
const (
	EnvEndpoint      = "CLOUDSVC_ENDPOINT"
	EnvSubscriptions = "CLOUDSVC_SUBSCRIPTIONS"
	EnvCertDir       = "CLOUDSVC_CERT_DIR"
)

// Ensure CloudSvcProvider satisfies the provider.Provider interface.
var _ provider.Provider = &CloudSvcProvider{}

// CloudSvcProvider implements the cloudsvc Terraform provider.
type CloudSvcProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and run locally.
	version string
}

// New returns a factory function that creates a new CloudSvcProvider instance
// for the given version string. This is the entry-point used in main.go.
func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &CloudSvcProvider{
			version: version,
		}
	}
}

// Metadata returns the provider type name.
func (p *CloudSvcProvider) Metadata(_ context.Context, _ provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "cloudsvc"
	resp.Version = p.version
}

// Schema returns the provider schema.
func (p *CloudSvcProvider) Schema(_ context.Context, _ provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The cloudsvc provider packages role-based service projects and publishes them to hosted services through the service-management API.",
		Attributes: map[string]schema.Attribute{
			"endpoint": schema.StringAttribute{
				MarkdownDescription: "Base URL of the service-management API. Used for subscriptions that do not name their own endpoint. Defaults to the `" + EnvEndpoint + "` environment variable.",
				Optional:            true,
			},
			"subscriptions_file": schema.StringAttribute{
				MarkdownDescription: "Path to a YAML subscription store. Defaults to the `" + EnvSubscriptions + "` environment variable. Entries are merged with `subscription` blocks.",
				Optional:            true,
			},
			"use_azure_identity": schema.BoolAttribute{
				MarkdownDescription: "Authenticate service-management requests with the default Azure identity chain. Defaults to `false`.",
				Optional:            true,
			},
			"certificate_dir": schema.StringAttribute{
				MarkdownDescription: "Directory of PEM files forming the local certificate store. Defaults to the `" + EnvCertDir + "` environment variable.",
				Optional:            true,
			},
			"max_retries": schema.Int64Attribute{
				MarkdownDescription: "Maximum number of retries for transient service-management and package store failures. Defaults to `3`.",
				Optional:            true,
				Validators:          []validator.Int64{int64validator.AtLeast(0)},
			},
			"retry_delay_ms": schema.Int64Attribute{
				MarkdownDescription: "Fixed delay between retries in milliseconds. Defaults to `1000`.",
				Optional:            true,
				Validators:          []validator.Int64{int64validator.AtLeast(0)},
			},
			"timeout_seconds": schema.Int64Attribute{
				MarkdownDescription: "Timeout in seconds for individual service-management requests. Defaults to `60`.",
				Optional:            true,
				Validators:          []validator.Int64{int64validator.AtLeast(1)},
			},
			"poll_interval_ms": schema.Int64Attribute{
				MarkdownDescription: "Interval between deployment, instance and storage account polls in milliseconds. Defaults to `10000`.",
				Optional:            true,
				Validators:          []validator.Int64{int64validator.AtLeast(1)},
			},
			"certificate_poll_interval_ms": schema.Int64Attribute{
				MarkdownDescription: "Interval between certificate visibility polls in milliseconds. Defaults to `500`.",
				Optional:            true,
				Validators:          []validator.Int64{int64validator.AtLeast(1)},
			},
			"max_concurrency": schema.Int64Attribute{
				MarkdownDescription: "Maximum number of concurrent package store operations. Defaults to `16`.",
				Optional:            true,
				Validators:          []validator.Int64{int64validator.AtLeast(1)},
			},
			"runtimes": schema.MapAttribute{
				MarkdownDescription: "Runtime versions the hosted service offers, keyed by runtime name. Roles asking for anything else make the publish warn and require `force`.",
				Optional:            true,
				ElementType:         types.ListType{ElemType: types.StringType},
			},
		},
		Blocks: map[string]schema.Block{
			"subscription": schema.ListNestedBlock{
				MarkdownDescription: "A subscription to publish into, in addition to those in `subscriptions_file`.",
				NestedObject: schema.NestedBlockObject{
					Attributes: map[string]schema.Attribute{
						"name": schema.StringAttribute{
							MarkdownDescription: "Name used to reference the subscription.",
							Required:            true,
						},
						"id": schema.StringAttribute{
							MarkdownDescription: "Subscription identifier.",
							Required:            true,
						},
						"endpoint": schema.StringAttribute{
							MarkdownDescription: "Service-management endpoint for this subscription. Overrides the provider-level `endpoint`.",
							Optional:            true,
						},
						"default": schema.BoolAttribute{
							MarkdownDescription: "Use this subscription when a resource names none.",
							Optional:            true,
						},
					},
				},
			},
			"package_store": schema.ListNestedBlock{
				MarkdownDescription: "Object storage that receives service packages before deployment. Exactly one block must be configured.",
				Validators: []validator.List{
					listvalidator.SizeAtMost(1),
				},
				NestedObject: schema.NestedBlockObject{
					Attributes: map[string]schema.Attribute{
						"name": schema.StringAttribute{
							MarkdownDescription: "Name of the store. Memory stores with the same name share contents.",
							Optional:            true,
						},
						"type": schema.StringAttribute{
							MarkdownDescription: "Storage backend type. Supported values are `\"azure\"`, `\"s3\"`, `\"gcs\"`, `\"minio\"` and `\"memory\"`.",
							Required:            true,
							Validators: []validator.String{
								stringvalidator.OneOf("azure", "s3", "gcs", "minio", "memory"),
							},
						},
						"bucket": schema.StringAttribute{
							MarkdownDescription: "Bucket name. Required for `s3`, `gcs` and `minio` stores.",
							Optional:            true,
						},
						"region": schema.StringAttribute{
							MarkdownDescription: "Region of the `s3` or `minio` bucket.",
							Optional:            true,
						},
						"prefix": schema.StringAttribute{
							MarkdownDescription: "Key prefix prepended to every package object.",
							Optional:            true,
						},
						"storage_account": schema.StringAttribute{
							MarkdownDescription: "Azure storage account. When omitted for an `azure` store, the publish storage account of each deployment is used.",
							Optional:            true,
						},
						"container_name": schema.StringAttribute{
							MarkdownDescription: "Azure blob container. Defaults to `\"packages\"`.",
							Optional:            true,
						},
						"endpoint": schema.StringAttribute{
							MarkdownDescription: "Custom endpoint for `minio` stores or Azure blob service URL.",
							Optional:            true,
						},
						"access_key": schema.StringAttribute{
							MarkdownDescription: "Access key for `minio` stores.",
							Optional:            true,
							Sensitive:           true,
						},
						"secret_key": schema.StringAttribute{
							MarkdownDescription: "Secret key for `minio` stores.",
							Optional:            true,
							Sensitive:           true,
						},
						"insecure": schema.BoolAttribute{
							MarkdownDescription: "Use plain HTTP for `minio` stores. Defaults to `false`.",
							Optional:            true,
						},
					},
				},
			},
		},
	}
}

// Configure parses the provider configuration, loads the subscription store,
// builds the service-management connector and package store resolver, and
// stores everything in ProviderData for downstream resources.
func (p *CloudSvcProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var config ProviderModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	// ----------------------------------------------------------------
	// Resolve top-level defaults
	// ----------------------------------------------------------------
	endpoint := stringOrEnv(config.Endpoint, EnvEndpoint)
	subscriptionsFile := stringOrEnv(config.SubscriptionsFile, EnvSubscriptions)
	certDir := stringOrEnv(config.CertificateDir, EnvCertDir)

	maxRetries := int64OrDefault(config.MaxRetries, 3)
	retryDelay := time.Duration(int64OrDefault(config.RetryDelayMS, 1000)) * time.Millisecond
	timeoutSeconds := int64OrDefault(config.TimeoutSeconds, 60)
	pollInterval := time.Duration(int64OrDefault(config.PollIntervalMS, 10000)) * time.Millisecond
	certPollInterval := time.Duration(int64OrDefault(config.CertificatePollIntervalMS, 500)) * time.Millisecond
	maxConcurrency := int64OrDefault(config.MaxConcurrency, 16)

	var runtimes map[string][]string
	if !config.Runtimes.IsNull() && !config.Runtimes.IsUnknown() {
		resp.Diagnostics.Append(config.Runtimes.ElementsAs(ctx, &runtimes, false)...)
		if resp.Diagnostics.HasError() {
			return
		}
	}

	// ----------------------------------------------------------------
	// Subscriptions
	// ----------------------------------------------------------------
	subs, err := settings.LoadSubscriptions(subscriptionsFile)
	if err != nil {
		resp.Diagnostics.AddError(
			"Invalid Subscriptions File",
			fmt.Sprintf("Failed to load subscriptions from %q: %s", subscriptionsFile, err),
		)
		return
	}
	for _, sc := range config.Subscriptions {
		if sc.Name.ValueString() == "" || sc.ID.ValueString() == "" {
			resp.Diagnostics.AddError(
				"Invalid Subscription Configuration",
				"Every subscription block must have a non-empty name and id.",
			)
			return
		}
		subs.Add(settings.Subscription{
			Name:     sc.Name.ValueString(),
			ID:       sc.ID.ValueString(),
			Endpoint: sc.Endpoint.ValueString(),
			Default:  sc.Default.ValueBool(),
		})
	}

	// ----------------------------------------------------------------
	// Package store
	// ----------------------------------------------------------------
	if len(config.PackageStore) == 0 {
		resp.Diagnostics.AddError(
			"Missing Package Store Configuration",
			"A package_store block must be configured in the provider.",
		)
		return
	}
	ps := config.PackageStore[0]
	storeName := ps.Name.ValueString()
	if storeName == "" {
		storeName = ps.Type.ValueString()
	}
	storeCfg := blobstore.Config{
		Name:           storeName,
		Type:           ps.Type.ValueString(),
		Bucket:         ps.Bucket.ValueString(),
		Region:         ps.Region.ValueString(),
		Prefix:         ps.Prefix.ValueString(),
		StorageAccount: ps.StorageAccount.ValueString(),
		ContainerName:  ps.ContainerName.ValueString(),
		Endpoint:       ps.Endpoint.ValueString(),
		AccessKey:      ps.AccessKey.ValueString(),
		SecretKey:      ps.SecretKey.ValueString(),
		Insecure:       ps.Insecure.ValueBool(),
		MaxRetries:     int(maxRetries),
		RetryDelayMS:   int(retryDelay / time.Millisecond),
	}
	// An Azure store without an account is bound per deployment, later.
	if !(storeCfg.Type == "azure" && storeCfg.StorageAccount == "") {
		if _, err := blobstore.NewStore(storeCfg); err != nil {
			resp.Diagnostics.AddError(
				"Package Store Initialization Failed",
				fmt.Sprintf("Failed to create package store %q: %s", storeName, err),
			)
			return
		}
	}

	// ----------------------------------------------------------------
	// Service-management connector
	// ----------------------------------------------------------------
	var cred azcore.TokenCredential
	if config.UseAzureIdentity.ValueBool() {
		c, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			resp.Diagnostics.AddError(
				"Azure Identity Unavailable",
				fmt.Sprintf("Failed to create the default Azure credential: %s", err),
			)
			return
		}
		cred = c
	}
	connector := servicemgmt.HTTPConnector{
		Endpoint:       endpoint,
		Credential:     cred,
		TimeoutSeconds: int(timeoutSeconds),
		Policy:         retry.Policy{MaxAttempts: int(maxRetries) + 1, Delay: retryDelay},
	}

	var certs certstore.Store
	if certDir != "" {
		certs = &certstore.DirStore{Dir: certDir}
	}

	store := &settings.Store{Subscriptions: subs}

	tflog.Debug(ctx, "Configured cloudsvc provider", map[string]interface{}{
		"endpoint":      endpoint,
		"subscriptions": len(subs.Subscriptions),
		"package_store": storeCfg.Type,
		"poll_interval": pollInterval.String(),
	})

	// ----------------------------------------------------------------
	// Build ProviderData and share with resources / data sources
	// ----------------------------------------------------------------
	pd := &ProviderData{
		Settings: store,
		Publish: publish.Config{
			Connector:               connector,
			Settings:                store,
			Builder:                 &packaging.Builder{Runtimes: runtimes},
			Uploader:                upload.New(semaphore.NewWeighted(maxConcurrency)),
			Stores:                  blobstore.NewResolver(storeCfg),
			Certificates:            certs,
			Listeners:               []publish.Listener{publish.CachingConnectionStringUpdater{}},
			Reporter:                progress.TFLog,
			PollInterval:            pollInterval,
			CertificatePollInterval: certPollInterval,
			ToolVersion:             p.version,
		},
	}

	resp.DataSourceData = pd
	resp.ResourceData = pd
}

// Resources returns the set of resource types supported by this provider.
func (p *CloudSvcProvider) Resources(_ context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		servicedeployment.NewServiceDeploymentResource,
	}
}

// DataSources returns the set of data source types supported by this provider.
func (p *CloudSvcProvider) DataSources(_ context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		deploymentstatus.NewDeploymentStatusDataSource,
		locations.NewLocationsDataSource,
	}
}

func stringOrEnv(v types.String, env string) string {
	if !v.IsNull() && !v.IsUnknown() {
		return v.ValueString()
	}
	return os.Getenv(env)
}

func int64OrDefault(v types.Int64, def int64) int64 {
	if !v.IsNull() && !v.IsUnknown() {
		return v.ValueInt64()
	}
	return def
}
