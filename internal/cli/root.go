// Package cli implements the cloudsvc command-line front end.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/blobstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/certstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/packaging"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/publish"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/retry"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/upload"
)

// Environment variables supplying flag defaults.
const (
	EnvEndpoint      = "CLOUDSVC_ENDPOINT"
	EnvSubscriptions = "CLOUDSVC_SUBSCRIPTIONS"
	EnvCertDir       = "CLOUDSVC_CERT_DIR"
	EnvMaxRetries    = "CLOUDSVC_MAX_RETRIES"
)

// options holds the persistent flags shared by every command.
type options struct {
	endpoint          string
	subscriptionsFile string
	certDir           string
	useAzureIdentity  bool
	maxRetries        int
	retryDelay        time.Duration
	pollInterval      time.Duration
	concurrency       int64
	store             blobstore.Config
	runtimes          []string
	version           string

	// connector replaces the HTTP connector when set.
	connector servicemgmt.Connector
}

// NewRootCommand returns the cloudsvc root command.
func NewRootCommand(version string) *cobra.Command {
	return newRootCmd(version, &options{})
}

func newRootCmd(version string, opts *options) *cobra.Command {
	opts.version = version
	root := &cobra.Command{
		Use:   "cloudsvc",
		Short: "Package and publish role-based cloud services",
		Long: `cloudsvc packages a service project, uploads it to a package store and
publishes it to a deployment slot of a hosted service, creating the service,
its storage account and missing certificates on the way.`,
		Version:      version,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.endpoint, "endpoint", os.Getenv(EnvEndpoint), "service-management API URL")
	flags.StringVar(&opts.subscriptionsFile, "subscriptions-file", defaultSubscriptionsFile(), "YAML subscription store")
	flags.StringVar(&opts.certDir, "cert-dir", os.Getenv(EnvCertDir), "directory of PEM files forming the local certificate store")
	flags.BoolVar(&opts.useAzureIdentity, "azure-identity", false, "authenticate with the default Azure identity chain")
	flags.IntVar(&opts.maxRetries, "max-retries", envInt(EnvMaxRetries, 3), "retries for transient remote failures")
	flags.DurationVar(&opts.retryDelay, "retry-delay", time.Second, "delay between retries")
	flags.DurationVar(&opts.pollInterval, "poll-interval", 10*time.Second, "interval between deployment and storage polls")
	flags.Int64Var(&opts.concurrency, "max-concurrency", 16, "concurrent package store operations")
	flags.StringArrayVar(&opts.runtimes, "runtime", nil, "runtime versions the service offers, as name=v1,v2 (repeatable)")

	flags.StringVar(&opts.store.Type, "package-store", "azure", "package store type: azure, s3, gcs, minio or memory")
	flags.StringVar(&opts.store.Bucket, "bucket", "", "bucket for s3, gcs and minio stores")
	flags.StringVar(&opts.store.Region, "region", "", "region for s3 and minio stores")
	flags.StringVar(&opts.store.Prefix, "prefix", "", "key prefix for package objects")
	flags.StringVar(&opts.store.StorageAccount, "store-account", "", "azure storage account for packages; defaults to the publish storage account")
	flags.StringVar(&opts.store.ContainerName, "container", "", "azure blob container")
	flags.StringVar(&opts.store.Endpoint, "store-endpoint", "", "custom package store endpoint")

	root.AddCommand(
		newPublishCmd(opts),
		newStatusCmd(opts),
		newSetStatusCmd(opts, "start", servicemgmt.DeploymentRunning),
		newSetStatusCmd(opts, "stop", servicemgmt.DeploymentSuspended),
		newLocationsCmd(opts),
	)
	return root
}

func defaultSubscriptionsFile() string {
	if v := os.Getenv(EnvSubscriptions); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + string(os.PathSeparator) + ".cloudsvc" + string(os.PathSeparator) + "subscriptions.yaml"
}

func envInt(name string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(name)); err == nil {
		return v
	}
	return def
}

// settings loads the subscription store.
func (o *options) settings() (*settings.Store, error) {
	subs, err := settings.LoadSubscriptions(o.subscriptionsFile)
	if err != nil {
		return nil, err
	}
	return &settings.Store{Subscriptions: subs}, nil
}

func (o *options) resolveConnector() (servicemgmt.Connector, error) {
	if o.connector != nil {
		return o.connector, nil
	}
	var cred azcore.TokenCredential
	if o.useAzureIdentity {
		c, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("azure identity: %w", err)
		}
		cred = c
	}
	return servicemgmt.HTTPConnector{
		Endpoint:   o.endpoint,
		Credential: cred,
		Policy:     retry.Policy{MaxAttempts: o.maxRetries + 1, Delay: o.retryDelay},
	}, nil
}

// orchestrator wires a publish orchestrator from the persistent flags.
// Progress is printed to out.
func (o *options) orchestrator(out io.Writer, retain int) (*publish.Orchestrator, error) {
	store, err := o.settings()
	if err != nil {
		return nil, err
	}
	connector, err := o.resolveConnector()
	if err != nil {
		return nil, err
	}

	storeCfg := o.store
	if storeCfg.Name == "" {
		storeCfg.Name = storeCfg.Type
	}
	storeCfg.MaxRetries = o.maxRetries
	storeCfg.RetryDelayMS = int(o.retryDelay / time.Millisecond)

	var certs certstore.Store
	if o.certDir != "" {
		certs = &certstore.DirStore{Dir: o.certDir}
	}

	runtimes, err := parseRuntimes(o.runtimes)
	if err != nil {
		return nil, err
	}

	return publish.New(publish.Config{
		Connector:      connector,
		Settings:       store,
		Builder:        &packaging.Builder{Runtimes: runtimes},
		Uploader:       upload.New(semaphore.NewWeighted(o.concurrency)),
		Stores:         blobstore.NewResolver(storeCfg),
		Certificates:   certs,
		Listeners:      []publish.Listener{publish.CachingConnectionStringUpdater{}},
		Reporter:       newPrinter(out),
		PollInterval:   o.pollInterval,
		RetainPackages: retain,
		ToolVersion:    "cloudsvc-cli/" + o.version,
	}), nil
}

// parseRuntimes turns name=v1,v2 entries into a runtime table.
func parseRuntimes(entries []string) (map[string][]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string][]string, len(entries))
	for _, e := range entries {
		name, versions, ok := strings.Cut(e, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --runtime %q: want name=v1,v2", e)
		}
		for _, v := range strings.Split(versions, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out[name] = append(out[name], v)
			}
		}
	}
	return out, nil
}
