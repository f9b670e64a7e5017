// Package publish drives a service project from source to a running
// deployment: settings, storage, listeners, packaging, hosted service,
// upload, certificates, deployment and readiness, in that order.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"golang.org/x/sync/semaphore"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/blobstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/certstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/packaging"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/poller"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/progress"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/project"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/upload"
)

// Action is what a publish did to the deployment slot.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpgrade Action = "upgrade"
)

// Config wires an Orchestrator to its collaborators. Listeners run in the
// order given.
type Config struct {
	Connector    servicemgmt.Connector
	Settings     *settings.Store
	Builder      *packaging.Builder
	Uploader     *upload.Engine
	Stores       blobstore.Resolver
	Certificates certstore.Store
	Listeners    []Listener
	Reporter     progress.Reporter

	// PollInterval separates deployment, instance and storage polls.
	PollInterval time.Duration
	// CertificatePollInterval separates certificate visibility polls.
	CertificatePollInterval time.Duration

	// PackageDir receives built archives; empty means inside the project.
	PackageDir string
	// RetainPackages is how many older uploads to keep per service after a
	// successful publish. Zero keeps everything.
	RetainPackages int
	ToolVersion    string
}

// Options tune a single publish.
type Options struct {
	// Force accepts package warnings without asking.
	Force bool
	// Confirm is asked when the package has warnings and Force is off. A nil
	// Confirm declines.
	Confirm func(ctx context.Context, message string) bool
	// Timeout bounds the whole publish. Zero means no bound beyond ctx.
	Timeout time.Duration
}

// Outcome is the result of a publish. Aborted is set, with every other
// field except Settings and Warnings empty, when a confirmation was declined.
type Outcome struct {
	Deployment           *servicemgmt.Deployment
	Settings             *settings.PublishSettings
	Action               Action
	ServiceCreated       bool
	StorageCreated       bool
	PackageID            string
	PackageURL           string
	PackageHash          string
	CertificatesUploaded []string
	Warnings             []string
	URL                  string
	Aborted              bool
}

// Orchestrator publishes service projects.
type Orchestrator struct {
	cfg Config
}

// New creates an Orchestrator, filling in defaults for unset collaborators.
func New(cfg Config) *Orchestrator {
	if cfg.Settings == nil {
		cfg.Settings = &settings.Store{}
	}
	if cfg.Builder == nil {
		cfg.Builder = &packaging.Builder{}
	}
	if cfg.Uploader == nil {
		cfg.Uploader = upload.New(semaphore.NewWeighted(4))
	}
	if cfg.Reporter == nil {
		cfg.Reporter = progress.Discard
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = poller.DefaultInterval
	}
	if cfg.CertificatePollInterval <= 0 {
		cfg.CertificatePollInterval = poller.CertificateInterval
	}
	return &Orchestrator{cfg: cfg}
}

func (o *Orchestrator) poller() *poller.Poller {
	return &poller.Poller{Interval: o.cfg.PollInterval, Reporter: o.cfg.Reporter}
}

func (o *Orchestrator) phase(ctx context.Context, phase, message string) {
	progress.Phase(ctx, o.cfg.Reporter, phase, message)
}

// Publish publishes the project at projectPath with default options.
func (o *Orchestrator) Publish(ctx context.Context, projectPath string, ov settings.Overrides) (*Outcome, error) {
	return o.PublishWith(ctx, projectPath, ov, Options{})
}

// PublishWith publishes the project at projectPath. Any remote fault other
// than an expected not-found aborts the publish; nothing already done is
// rolled back.
func (o *Orchestrator) PublishWith(ctx context.Context, projectPath string, ov settings.Overrides, opts Options) (*Outcome, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	out, err := o.publish(ctx, projectPath, ov, opts)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", &poller.TimeoutError{Operation: "publish"}, err)
		}
		tflog.Error(ctx, "Publish failed", map[string]interface{}{
			"project": projectPath,
			"error":   err.Error(),
		})
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) publish(ctx context.Context, projectPath string, ov settings.Overrides, opts Options) (*Outcome, error) {
	// Step 1: settings. Nothing remote is touched until local checks pass.
	o.phase(ctx, progress.PhaseResolving, "")
	if err := ov.Validate(); err != nil {
		return nil, err
	}
	p, err := project.Load(projectPath)
	if err != nil {
		return nil, err
	}
	ps, err := o.cfg.Settings.Resolve(ctx, p, ov, o.listLocations)
	if err != nil {
		return nil, err
	}
	if ps.ServiceName != p.Name {
		p.ChangeServiceName(ps.ServiceName)
	}
	client, err := o.connect(ctx, ps.Subscription)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Settings: ps}
	name, slot := ps.ServiceName, ps.Slot

	tflog.Info(ctx, "Publishing service", map[string]interface{}{
		"service":         name,
		"slot":            slot,
		"subscription":    ps.Subscription.Name,
		"storage_account": ps.StorageAccount,
	})

	// Step 2: storage account, then listeners.
	o.phase(ctx, progress.PhaseStorage, ps.StorageAccount)
	out.StorageCreated, err = ensureStorageAccount(ctx, client, o.poller(), ps, o.cfg.Reporter)
	if err != nil {
		return nil, err
	}
	if len(o.cfg.Listeners) > 0 {
		o.phase(ctx, progress.PhaseListeners, "")
		lc := &ListenerContext{
			Client:         client,
			Project:        p,
			Settings:       ps,
			SubscriptionID: ps.Subscription.ID,
			Reporter:       o.cfg.Reporter,
		}
		for i, l := range o.cfg.Listeners {
			if err := l.OnPublish(ctx, lc); err != nil {
				return nil, fmt.Errorf("publish listener %d: %w", i, err)
			}
		}
	}

	// Step 3: package.
	o.phase(ctx, progress.PhasePackaging, "")
	pkg, err := o.cfg.Builder.Build(p, o.cfg.PackageDir)
	if err != nil {
		return nil, err
	}
	out.PackageHash = pkg.Hash
	out.Warnings = pkg.Warnings
	if len(pkg.Warnings) > 0 {
		for _, w := range pkg.Warnings {
			progress.Warn(ctx, o.cfg.Reporter, w)
		}
		if !o.confirmed(ctx, opts, name, pkg.Warnings) {
			progress.Info(ctx, o.cfg.Reporter, "publish aborted")
			return &Outcome{Settings: ps, Warnings: pkg.Warnings, Aborted: true}, nil
		}
	}

	// Step 4: does the hosted service exist?
	o.phase(ctx, progress.PhaseConnecting, name)
	exists, err := serviceExists(ctx, client, name)
	if err != nil {
		return nil, err
	}

	// Step 5: create the service, or find what occupies the slot.
	out.Action = ActionCreate
	deploymentName := ps.DeploymentName
	if !exists {
		o.phase(ctx, progress.PhaseCreating, name)
		if err := client.CreateHostedService(ctx, servicemgmt.HostedServiceInput{
			Name:          name,
			Label:         ps.Label,
			Location:      ps.Location,
			AffinityGroup: ps.AffinityGroup,
		}); err != nil {
			return nil, fmt.Errorf("create hosted service %q: %w", name, err)
		}
		out.ServiceCreated = true
	} else {
		existing, err := client.GetDeploymentBySlot(ctx, name, slot)
		switch {
		case err == nil:
			out.Action = ActionUpgrade
			deploymentName = existing.Name
		case servicemgmt.IsNotFound(err):
		default:
			return nil, fmt.Errorf("get deployment %s/%s: %w", name, slot, err)
		}
	}

	// Step 6: upload the package, then certificates.
	o.phase(ctx, progress.PhaseUploading, "")
	store, err := o.store(ps)
	if err != nil {
		return nil, err
	}
	res, err := o.cfg.Uploader.Upload(ctx, store, upload.Input{
		Package:     pkg,
		Project:     p,
		Slot:        slot,
		ToolVersion: o.cfg.ToolVersion,
	})
	if err != nil {
		return nil, err
	}
	out.PackageID = res.PackageID
	out.PackageURL = res.PackageURL

	if certs := p.Certificates(); len(certs) > 0 {
		o.phase(ctx, progress.PhaseCertificates, fmt.Sprintf("%d certificate(s)", len(certs)))
		if o.cfg.Certificates == nil {
			return nil, &settings.ConfigurationError{Field: "certificate store", Reason: "the project references certificates but no certificate store is configured"}
		}
		sync := &CertificateSync{
			Client:   client,
			Store:    o.cfg.Certificates,
			Poller:   &poller.Poller{Interval: o.cfg.CertificatePollInterval},
			Reporter: o.cfg.Reporter,
		}
		out.CertificatesUploaded, err = sync.Sync(ctx, name, certs)
		if err != nil {
			return nil, err
		}
	}

	// Step 7: create or upgrade, then wait for it to start.
	switch out.Action {
	case ActionUpgrade:
		o.phase(ctx, progress.PhaseUpgrading, deploymentName)
		if err := client.UpgradeDeployment(ctx, name, deploymentName, servicemgmt.UpgradeDeploymentInput{
			Mode:          servicemgmt.UpgradeModeAuto,
			Label:         ps.Label,
			PackageURL:    res.PackageURL,
			Configuration: pkg.Configuration,
			Force:         opts.Force,
		}); err != nil {
			return nil, fmt.Errorf("upgrade deployment %q: %w", deploymentName, err)
		}
	default:
		o.phase(ctx, progress.PhaseDeploying, deploymentName)
		if err := client.CreateDeployment(ctx, name, slot, servicemgmt.CreateDeploymentInput{
			Name:            deploymentName,
			Label:           ps.Label,
			PackageURL:      res.PackageURL,
			Configuration:   pkg.Configuration,
			StartDeployment: true,
		}); err != nil {
			return nil, fmt.Errorf("create deployment %s/%s: %w", name, slot, err)
		}
	}

	o.phase(ctx, progress.PhaseStarting, "")
	pl := o.poller()
	if _, err := pl.WaitForStatus(ctx, client, name, slot, servicemgmt.DeploymentStarting, servicemgmt.DeploymentRunning); err != nil {
		return nil, err
	}

	// Step 8: every role instance ready.
	o.phase(ctx, progress.PhaseRoles, "")
	if _, err := pl.WaitForAllInstancesReady(ctx, client, name, slot); err != nil {
		return nil, err
	}

	// Step 9: final snapshot.
	final, err := client.GetDeploymentBySlot(ctx, name, slot)
	if err != nil {
		if servicemgmt.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrDeploymentNotFound, name, slot)
		}
		return nil, err
	}
	out.Deployment = final
	if strings.EqualFold(slot, servicemgmt.SlotProduction) {
		out.URL = ServiceURL(name)
	} else {
		out.URL = final.URL
	}

	o.prune(ctx, store, name, res.PackageID)
	o.phase(ctx, progress.PhaseComplete, out.URL)
	return out, nil
}

// ServiceURL is the public address of a hosted service's production slot.
func ServiceURL(service string) string {
	return fmt.Sprintf("https://%s.cloudapp.net/", service)
}

func (o *Orchestrator) confirmed(ctx context.Context, opts Options, service string, warnings []string) bool {
	if opts.Force {
		return true
	}
	if opts.Confirm == nil {
		return false
	}
	msg := fmt.Sprintf("Publishing %s with warnings:\n  %s\nContinue?", service, strings.Join(warnings, "\n  "))
	return opts.Confirm(ctx, msg)
}

func (o *Orchestrator) connect(ctx context.Context, sub servicemgmt.Subscription) (servicemgmt.Client, error) {
	if o.cfg.Connector == nil {
		return nil, &settings.ConfigurationError{Field: "endpoint", Reason: "no service-management connector configured"}
	}
	client, err := o.cfg.Connector.Connect(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("connect to subscription %q: %w", sub.Name, err)
	}
	return client, nil
}

func (o *Orchestrator) listLocations(ctx context.Context, sub servicemgmt.Subscription) ([]servicemgmt.Location, error) {
	client, err := o.connect(ctx, sub)
	if err != nil {
		return nil, err
	}
	return client.ListLocations(ctx)
}

func (o *Orchestrator) store(ps *settings.PublishSettings) (blobstore.Store, error) {
	if o.cfg.Stores == nil {
		return nil, &settings.ConfigurationError{Field: "package store", Reason: "no package store configured"}
	}
	store, err := o.cfg.Stores.StoreFor(ps.StorageAccount)
	if err != nil {
		return nil, fmt.Errorf("package store: %w", err)
	}
	return store, nil
}

// prune drops old uploads. Failures are reported and otherwise ignored.
func (o *Orchestrator) prune(ctx context.Context, store blobstore.Store, service, keepID string) {
	if o.cfg.RetainPackages <= 0 {
		return
	}
	if _, err := o.cfg.Uploader.Prune(ctx, store, service, keepID, o.cfg.RetainPackages); err != nil {
		progress.Warn(ctx, o.cfg.Reporter, fmt.Sprintf("pruning old packages: %v", err))
	}
}

// serviceExists reports whether the hosted service exists. Not-found is
// the only fault turned into an answer.
func serviceExists(ctx context.Context, client servicemgmt.Client, name string) (bool, error) {
	_, err := client.GetHostedService(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case servicemgmt.IsNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("get hosted service %q: %w", name, err)
	}
}
