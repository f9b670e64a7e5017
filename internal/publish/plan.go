package publish

import (
	"context"
	"fmt"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/certstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/planformat"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/project"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
)

// Plan works out what Publish would do without changing anything: no
// package is written and no remote object is created.
func (o *Orchestrator) Plan(ctx context.Context, projectPath string, ov settings.Overrides) (*planformat.Plan, error) {
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

	plan := &planformat.Plan{
		ServiceName:    ps.ServiceName,
		Slot:           ps.Slot,
		Subscription:   ps.Subscription.Name,
		Location:       ps.Location,
		AffinityGroup:  ps.AffinityGroup,
		StorageAccount: ps.StorageAccount,
		DeploymentName: ps.DeploymentName,
		Label:          ps.Label,
		Roles:          len(p.Roles),
		Warnings:       o.cfg.Builder.RuntimeWarnings(p),
	}

	sa, err := client.GetStorageAccount(ctx, ps.StorageAccount)
	switch {
	case err == nil:
		plan.Steps = append(plan.Steps, planformat.Step{Action: planformat.ActionNoop, Kind: planformat.KindStorageAccount, Name: sa.Name, Detail: sa.Status})
	case servicemgmt.IsNotFound(err):
		plan.Steps = append(plan.Steps, planformat.Step{Action: planformat.ActionCreate, Kind: planformat.KindStorageAccount, Name: ps.StorageAccount, Detail: placement(ps)})
	default:
		return nil, fmt.Errorf("get storage account %q: %w", ps.StorageAccount, err)
	}

	exists, err := serviceExists(ctx, client, ps.ServiceName)
	if err != nil {
		return nil, err
	}
	deployment := planformat.Step{Action: planformat.ActionCreate, Kind: planformat.KindDeployment, Name: ps.DeploymentName}
	if !exists {
		plan.Steps = append(plan.Steps, planformat.Step{Action: planformat.ActionCreate, Kind: planformat.KindHostedService, Name: ps.ServiceName, Detail: placement(ps)})
	} else {
		existing, err := client.GetDeploymentBySlot(ctx, ps.ServiceName, ps.Slot)
		switch {
		case err == nil:
			deployment = planformat.Step{
				Action: planformat.ActionUpdate,
				Kind:   planformat.KindDeployment,
				Name:   existing.Name,
				Detail: fmt.Sprintf("upgrade mode %s, currently %s", servicemgmt.UpgradeModeAuto, existing.Status),
			}
		case servicemgmt.IsNotFound(err):
		default:
			return nil, fmt.Errorf("get deployment %s/%s: %w", ps.ServiceName, ps.Slot, err)
		}
	}

	certs := p.Certificates()
	if exists {
		sync := &CertificateSync{Client: client}
		certs, err = sync.Missing(ctx, ps.ServiceName, certs)
		if err != nil {
			return nil, err
		}
	}
	for _, c := range certs {
		plan.Steps = append(plan.Steps, planformat.Step{Action: planformat.ActionCreate, Kind: planformat.KindCertificate, Name: certstore.NormalizeThumbprint(c.Thumbprint), Detail: c.Name})
	}

	plan.Steps = append(plan.Steps, deployment)
	return plan, nil
}

func placement(ps *settings.PublishSettings) string {
	if ps.AffinityGroup != "" {
		return "affinity group " + ps.AffinityGroup
	}
	return ps.Location
}
